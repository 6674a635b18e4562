package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassslll/philosofium/backend/lifecycle"
	"github.com/kassslll/philosofium/backend/progress"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)

	completion, err := cfg.Policy.Completion()
	require.NoError(t, err)
	assert.Equal(t, progress.PolicySticky, completion)

	threshold, err := cfg.Policy.Threshold()
	require.NoError(t, err)
	assert.False(t, threshold.Enabled())

	lock, err := cfg.Policy.EditLock()
	require.NoError(t, err)
	assert.Equal(t, lifecycle.EditLockEnforce, lock)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("COMPLETION_POLICY", "recount")
	t.Setenv("VIDEO_AUTO_COMPLETE_THRESHOLD", "90")
	t.Setenv("REVIEW_EDIT_LOCK", "advisory")

	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "recount", cfg.Policy.CompletionPolicy)
	assert.Equal(t, 90, cfg.Policy.VideoAutoCompleteThreshold)
	assert.Equal(t, "advisory", cfg.Policy.ReviewEditLock)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=from_dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DB_NAME") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.DBName)
}

func TestPolicyFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "completion_policy: recount\nvideo_auto_complete_threshold: 95\nreview_edit_lock: advisory\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("POLICY_FILE", path)
	t.Setenv("COMPLETION_POLICY", "sticky")

	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, Policy{CompletionPolicy: "recount", VideoAutoCompleteThreshold: 95, ReviewEditLock: "advisory"}, cfg.Policy)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	t.Setenv("COMPLETION_POLICY", "forgiving")
	_, err := LoadConfig(missingEnvFile(t))
	assert.Error(t, err)

	t.Setenv("COMPLETION_POLICY", "sticky")
	t.Setenv("VIDEO_AUTO_COMPLETE_THRESHOLD", "150")
	_, err = LoadConfig(missingEnvFile(t))
	assert.Error(t, err)

	t.Setenv("VIDEO_AUTO_COMPLETE_THRESHOLD", "0")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = LoadConfig(missingEnvFile(t))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5433", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=require", cfg.DSN())
}
