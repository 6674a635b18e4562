package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/progress"
)

type Config struct {
	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"` // postgres, sqlite
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"learning_platform"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"learning_platform.db"`

	JWTSecret  string        `env:"JWT_SECRET" envDefault:"secret"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"72h"`
	ServerPort string        `env:"SERVER_PORT" envDefault:"8080"`
	LogMode    string        `env:"LOG_MODE" envDefault:"development"`

	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"course-events"`

	// PolicyFile, when set, is a YAML document overriding Policy.
	PolicyFile string `env:"POLICY_FILE"`
	Policy     Policy
}

// Policy holds the behaviours left open by the course workflow.
type Policy struct {
	CompletionPolicy           string `env:"COMPLETION_POLICY" envDefault:"sticky" yaml:"completion_policy"`
	VideoAutoCompleteThreshold int    `env:"VIDEO_AUTO_COMPLETE_THRESHOLD" envDefault:"0" yaml:"video_auto_complete_threshold"`
	ReviewEditLock             string `env:"REVIEW_EDIT_LOCK" envDefault:"enforce" yaml:"review_edit_lock"`
}

// LoadConfig reads .env files (missing files are fine), then the environment,
// then the optional policy file.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.PolicyFile != "" {
		if err := cfg.loadPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadPolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c.Policy); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if _, err := c.Policy.Completion(); err != nil {
		return err
	}
	if _, err := c.Policy.Threshold(); err != nil {
		return err
	}
	if _, err := c.Policy.EditLock(); err != nil {
		return err
	}
	return nil
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func (p Policy) Completion() (progress.Policy, error) {
	return progress.ParsePolicy(p.CompletionPolicy)
}

func (p Policy) Threshold() (progress.Threshold, error) {
	return progress.ParseThreshold(p.VideoAutoCompleteThreshold)
}

func (p Policy) EditLock() (lifecycle.EditLock, error) {
	return lifecycle.ParseEditLock(p.ReviewEditLock)
}
