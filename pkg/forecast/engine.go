// Package forecast rolls a fitted model forward year by year, feeding each
// prediction back into the lag and rolling features of the next step
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidHorizon is returned for a horizon below 1
	ErrInvalidHorizon = errors.New("horizon must be a positive integer")
	// ErrPrediction wraps a predictor failure during the rollout
	ErrPrediction = errors.New("prediction failed")
	// ErrInvalidRate is returned for a scenario rate outside [0, 1)
	ErrInvalidRate = errors.New("rate must be in [0, 1)")
)

// Config configures covariate projection
type Config struct {
	// Rate is the yearly growth/decay applied by the non-constant scenarios
	Rate float64 `yaml:"rate" default:"0.02"`
	// CovariatePrefixes selects the columns projected by the scenario
	CovariatePrefixes []string `yaml:"covariatePrefixes" default:"[\"PEC\",\"FEC\"]"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Rate < 0 || c.Rate >= 1 {
		return ErrInvalidRate
	}

	return nil
}

// Model is the fitted-artifact contract the engine needs
type Model interface {
	FeatureColumns() []string
	TargetColumn() string
	Predict(x []float64) (float64, error)
}

// Point is one forecast step
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Engine produces recursive multi-step forecasts
type Engine struct {
	log logrus.FieldLogger
	cfg Config
}

// NewEngine creates a forecast engine
func NewEngine(log logrus.FieldLogger, cfg Config) *Engine {
	return &Engine{
		log: log.WithField("component", "forecast"),
		cfg: cfg,
	}
}

// Rate returns the configured scenario rate
func (e *Engine) Rate() float64 {
	return e.cfg.Rate
}

// ParseScenario parses a scenario name against the configured rate
func (e *Engine) ParseScenario(name string) (Scenario, error) {
	return ParseScenario(name, e.cfg.Rate)
}

// Forecast returns exactly horizon points for the years following the last
// real observation. An empty history yields no points. The history is copied;
// the caller's series is never modified.
func (e *Engine) Forecast(history *features.Series, model Model, horizon int, scenario Scenario) ([]Point, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}

	scenario, err := e.ParseScenario(string(scenario))
	if err != nil {
		return nil, err
	}

	if history.Len() == 0 {
		return []Point{}, nil
	}

	synthetic := history.Clone()
	columns := model.FeatureColumns()
	targets := synthetic.Targets()

	minYear := synthetic.MinYear()
	lastYear := synthetic.LastYear()
	lastReal := history.Rows[len(history.Rows)-1]

	points := make([]Point, 0, horizon)

	for k := 1; k <= horizon; k++ {
		// Years follow the real anchor while lag features follow the synthetic history
		row := features.Row{
			Year:       lastYear + k,
			Covariates: make([]float64, len(synthetic.Covariates)),
		}
		features.Trend(&row, minYear)
		features.HistoryFeatures(targets).Apply(&row)

		previous := synthetic.Rows[len(synthetic.Rows)-1]

		for j, name := range synthetic.Covariates {
			if features.HasCovariatePrefix(name, e.cfg.CovariatePrefixes) {
				row.Covariates[j] = scenario.Project(lastReal.Covariates[j], e.cfg.Rate, k)
			} else {
				row.Covariates[j] = previous.Covariates[j]
			}
		}

		x := synthetic.Vector(&row, columns)

		prediction, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %s year %d: %w", ErrPrediction, history.EntityID, row.Year, err)
		}

		if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
			return nil, fmt.Errorf("%w: %s year %d: non-finite value", ErrPrediction, history.EntityID, row.Year)
		}

		row.Target = prediction
		synthetic.Rows = append(synthetic.Rows, row)
		targets = append(targets, prediction)

		points = append(points, Point{Year: row.Year, Value: prediction})
	}

	e.log.WithFields(logrus.Fields{
		"entity":   history.EntityID,
		"horizon":  horizon,
		"scenario": scenario,
		"target":   model.TargetColumn(),
	}).Debug("Forecast complete")

	return points, nil
}
