package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lossforecast engine",
	Long: `Starts the HTTP API, the retrain scheduler and, with Redis configured, the
training worker. Builds features and trains on first start.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Configuration loaded")

	if err := svc.Start(ctx); err != nil {
		stop(svc)

		return err
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Graceful shutdown
	return svc.Stop()
}
