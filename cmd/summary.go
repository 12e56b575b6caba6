package cmd

import (
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/rendering"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	summaryTemplate string
	summaryCSV      string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "List the stored models by cross-validation error",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryTemplate, "template", "", "template file for the report")
	summaryCmd.Flags().StringVar(&summaryCSV, "csv", "", "also write the summary as CSV")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	svc, _, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop(svc)

	ctx := cmd.Context()

	rows, err := svc.Pipeline().Summary(ctx)
	if err != nil {
		return err
	}

	if summaryCSV != "" {
		if err := pipeline.WriteTable(summaryCSV, artifact.SummaryTable(rows)); err != nil {
			return err
		}
	}

	runs, err := svc.Pipeline().Runs(ctx, 1)
	if err != nil {
		return err
	}

	var last *artifact.Run
	if len(runs) > 0 {
		last = &runs[0]
	}

	content, err := rendering.LoadTemplate(summaryTemplate)
	if err != nil {
		return err
	}

	out, err := rendering.NewTemplateEngine().RenderSummary(content, rows, last)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), out)

	return nil
}
