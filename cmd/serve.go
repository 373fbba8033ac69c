package cmd

import (
	"context"
	"fmt"
	"time"

	"wagerledger/config"
	"wagerledger/database"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Wire the services and run until interrupted",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg := config.Get()
			configureLogging(cfg)
			return Run(c.Context(), cfg, migrate)
		},
	}
	c.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")
	return c
}

// Run initializes the application and blocks until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, migrate bool) error {
	log.Info("Starting wagerledger...")

	if migrate {
		if err := database.MigrateUp(cfg.GetDatabaseURL()); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	app, err := NewApp(ctx, cfg)
	// Give cleanup operations time to complete
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Close(shutdownCtx)
		log.Info("Shutdown completed")
	}()
	if err != nil {
		return err
	}

	log.WithField("environment", cfg.Environment).Info("wagerledger is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	return nil
}
