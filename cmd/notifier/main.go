package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/subsmarket/configs"
	"github.com/example/subsmarket/internal/bootstrap"
	"github.com/example/subsmarket/internal/config"
	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/models"
	"github.com/example/subsmarket/internal/notifier"
	"github.com/example/subsmarket/pkg/cache"
	"github.com/example/subsmarket/pkg/database"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "notifier",
		Short:   "WhatsApp notification worker for the marketplace",
		Version: Version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(seedTemplatesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the environment, the config and a logger for a subcommand.
func setup() (*config.Config, *zap.Logger, error) {
	if err := bootstrap.LoadEnv(os.Getenv("GIN_MODE")); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: Error loading .env file:", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := bootstrap.NewLogger(cfg.AppEnv)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runCmd() *cobra.Command {
	var workerID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the pending notification queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			infra, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			return infra.NewWorker(workerID).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "identifier written to claimed entries (random when empty)")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay-dlq",
		Short: "Move dead-lettered notifications back to the pending queue",
		Long: `Drain the RabbitMQ dead-letter queue and re-enqueue every entry in
pendingWhatsappMessages with its attempt counter reset.

Run it after fixing the cause of the failures, e.g. a disconnected
WhatsApp instance or a revoked API token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			infra, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			mq, err := infra.DialQueue()
			if err != nil {
				return err
			}
			n, err := notifier.ReplayDeadLetters(ctx, mq, cfg.NotificationDLQName, infra.Repos.Notifications, time.Now)
			if err != nil {
				return fmt.Errorf("replay stopped after %d entries: %w", n, err)
			}
			fmt.Printf("Replayed %d notifications\n", n)
			return nil
		},
	}
}

func seedTemplatesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-templates",
		Short: "Write the WhatsApp message templates from a YAML file to configs/whatsapp",
		Long: `Load message templates from YAML (default configs/templates.yaml, or
PATH_TEMPLATES) and store them in the configs/whatsapp document.
The stored API token is kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			tf, err := configs.LoadTemplates(configs.TemplatesPath(file))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := database.NewFirestoreService(ctx, database.NewFirestoreServiceConfig{
				ProjectID:       cfg.FirebaseProjectID,
				CredentialsFile: cfg.GoogleApplicationCredentials,
			}, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			repo := db.NewConfigRepository(store, cache.NewMemoryCache(), logger)
			current, err := repo.Whatsapp(ctx)
			if err != nil {
				return err
			}
			current.Templates = tf.Templates
			if tf.InstanceName != "" {
				current.InstanceName = tf.InstanceName
			}
			if err := repo.Put(ctx, models.ConfigWhatsapp, *current); err != nil {
				return err
			}
			fmt.Println("Templates stored in configs/" + models.ConfigWhatsapp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "templates YAML file")
	return cmd
}
