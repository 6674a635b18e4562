package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kassslll/philosofium/backend/config"
	"github.com/kassslll/philosofium/backend/events"
	"github.com/kassslll/philosofium/backend/routes"
	"github.com/kassslll/philosofium/backend/utils"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "philosofium",
		Short:         "Course authoring, review and progress API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	})
	return root
}

func bootstrap(envFile string) (*config.Config, *utils.Logger, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.InitLogger(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, envFile string) error {
	cfg, logger, err := bootstrap(envFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := utils.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := utils.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pub := events.NewNopPublisher(logger)
	if cfg.RedisAddr != "" {
		pub, err = events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return err
		}
	}
	defer pub.Close()

	app, err := routes.NewApp(db, cfg, logger, pub)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.ServerPort,
			"completion_policy", cfg.Policy.CompletionPolicy,
			"review_edit_lock", cfg.Policy.ReviewEditLock,
		)
		errCh <- app.Listen(":" + cfg.ServerPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
