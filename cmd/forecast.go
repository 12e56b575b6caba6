package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/rendering"
	"github.com/spf13/cobra"
)

// ErrCSVNeedsEntity is returned when --csv is used without --entity
var ErrCSVNeedsEntity = errors.New("--csv requires --entity")

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	forecastEntity   string
	forecastHorizon  int
	forecastScenario string
	forecastCSV      string
	forecastJSON     bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast total losses for one or every entity",
	Long: `Rolls the stored model forward year by year. Scenarios: constant holds the
last covariate values, growth and decay compound them by the configured rate.`,
	RunE: runForecast,
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.Flags().StringVar(&forecastEntity, "entity", "", "entity to forecast (default all)")
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", 0, "years to forecast (default api.defaultHorizon)")
	forecastCmd.Flags().StringVar(&forecastScenario, "scenario", string(forecast.ScenarioConstant), "constant, growth or decay")
	forecastCmd.Flags().StringVar(&forecastCSV, "csv", "", "write the forecast as Year,forecast CSV")
	forecastCmd.Flags().BoolVar(&forecastJSON, "json", false, "print JSON instead of text")
}

func runForecast(cmd *cobra.Command, _ []string) error {
	if forecastCSV != "" && forecastEntity == "" {
		return ErrCSVNeedsEntity
	}

	svc, config, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop(svc)

	scenario, err := svc.Pipeline().ParseScenario(forecastScenario)
	if err != nil {
		return err
	}

	horizon := forecastHorizon
	if horizon == 0 {
		horizon = config.API.DefaultHorizon
	}

	if horizon < 1 || horizon > config.API.MaxHorizon {
		return fmt.Errorf("%w: %d (allowed 1..%d)", forecast.ErrInvalidHorizon, horizon, config.API.MaxHorizon)
	}

	ctx := cmd.Context()
	p := svc.Pipeline()

	if _, err := p.PrepareFeatures(ctx); err != nil {
		return err
	}

	var results []pipeline.Result

	if forecastEntity != "" {
		res, err := p.Forecast(ctx, forecastEntity, horizon, scenario)
		if err != nil {
			return err
		}

		if forecastCSV != "" {
			if err := pipeline.WriteTable(forecastCSV, res.Table()); err != nil {
				return err
			}
		}

		results = []pipeline.Result{*res}
	} else {
		results, err = p.ForecastAll(ctx, horizon, scenario)
		if err != nil {
			return err
		}
	}

	if forecastJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(results)
	}

	tmpl := rendering.NewTemplateEngine()

	for i := range results {
		if results[i].Status != pipeline.StatusOK {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", results[i].EntityID, results[i].Status, results[i].Reason)
			continue
		}

		out, err := tmpl.RenderForecast("", &results[i])
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), out)
	}

	return nil
}
