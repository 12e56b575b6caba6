package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build the feature table from the raw data",
	Long:  `Reads the raw observations, derives lag, rolling-mean and trend features per entity and writes the feature table.`,
	RunE:  runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, _ []string) error {
	svc, config, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop(svc)

	ft, err := svc.Pipeline().BuildFeatures(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows for %d entities to %s\n",
		ft.Len(), len(ft.Entities()), config.Data.FeaturesPath)

	return nil
}
