// Package cmd contains the CLI commands for lossforecast
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/lossforecast/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile string
	logger  *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "lossforecast",
	Short: "Per-country forecasts of annual energy losses",
	Long: `lossforecast builds lag and trend features from yearly energy data,
selects between ridge regression and a random forest per country with
forward-chaining cross-validation, and forecasts total losses under
constant, growing and shrinking consumption scenarios.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level overriding the config (debug, info, warn, error, fatal, panic)")

	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// setup loads the configuration, applies the log level and builds the engine
func setup(cmd *cobra.Command) (*engine.Service, *engine.Config, error) {
	path, explicit := cfgFile, cfgFile != ""
	if !explicit {
		path = "./config.yaml"
	}

	config, err := loadConfig(path, explicit)
	if err != nil {
		return nil, nil, err
	}

	logLevel := config.Logging
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		logLevel = flag
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}

	logger.SetLevel(level)

	svc, err := engine.NewService(context.Background(), logger, config)
	if err != nil {
		return nil, nil, err
	}

	return svc, config, nil
}

// stop shuts the engine down, logging instead of returning its error
func stop(svc *engine.Service) {
	if err := svc.Stop(); err != nil {
		logger.WithError(err).Warn("Engine shutdown failed")
	}
}
