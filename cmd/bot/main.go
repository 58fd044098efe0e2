package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/school_scheduler/internal/app"
	"github.com/Freeeeeet/school_scheduler/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "school-scheduler",
		Short: "Telegram bot for parent-teacher appointments and meeting polls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if migrate {
					if err := a.Migrate(ctx); err != nil {
						return err
					}
				}
				return a.Serve(ctx)
			})
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.Migrate(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "db-version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				v, err := a.MigrationVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("schema version %d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("school-scheduler %s (build: %s)\n", Version, BuildTime)
		},
	})

	return cmd
}

// withApp загружает конфиг, поднимает логгер и приложение, отменяет ctx по SIGINT/SIGTERM
func withApp(run func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting school scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("version", Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := run(ctx, a); err != nil {
		logger.Error("Command failed", zap.Error(err))
		return err
	}

	logger.Info("👋 Stopped")
	return nil
}
