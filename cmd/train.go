package cmd

import (
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/rendering"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	trainEntity   string
	trainTemplate string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Select and fit a model per entity",
	Long: `Cross-validates ridge regression and a random forest for every entity with
enough history, refits the winner and stores it. Entities with too little
history have their stale model removed.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&trainEntity, "entity", "", "train a single entity instead of all")
	trainCmd.Flags().StringVar(&trainTemplate, "template", "", "template file for the report")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop(svc)

	ctx := cmd.Context()
	p := svc.Pipeline()

	if _, err := p.PrepareFeatures(ctx); err != nil {
		return err
	}

	if trainEntity != "" {
		res, err := p.TrainEntity(ctx, trainEntity)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", res.EntityID, res.Status, res.Reason)

		if res.Status == training.StatusFailed {
			return fmt.Errorf("training %s failed: %s", res.EntityID, res.Reason)
		}

		return nil
	}

	report, err := p.Train(ctx, training.TriggerCLI)
	if err != nil {
		return err
	}

	content, err := rendering.LoadTemplate(trainTemplate)
	if err != nil {
		return err
	}

	out, err := rendering.NewTemplateEngine().RenderTraining(content, report)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), out)

	return nil
}
