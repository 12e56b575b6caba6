package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/observability"
	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/ethpandaops/lossforecast/pkg/table"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownEntity is returned for an entity absent from the feature table
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrNoModel is returned when an entity has no trained model
	ErrNoModel = errors.New("no forecast available")
)

// Status is the outcome of one entity's forecast in a batch
type Status string

const (
	// StatusOK means the forecast succeeded
	StatusOK Status = "ok"
	// StatusNoModel means the entity had no model
	StatusNoModel Status = "no_model"
	// StatusFailed means the rollout raised an error
	StatusFailed Status = "failed"
)

// Entity describes one entity of the feature table
type Entity struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	FirstYear int             `json:"first_year"`
	LastYear  int             `json:"last_year"`
	Samples   int             `json:"n_samples"`
	Kind      regression.Kind `json:"model,omitempty"`
	CVMAE     float64         `json:"cv_mae,omitempty"`
	HasModel  bool            `json:"has_model"`
}

// Result is a forecast response
type Result struct {
	EntityID     string            `json:"entity_id"`
	Label        string            `json:"label"`
	Scenario     forecast.Scenario `json:"scenario"`
	ScenarioName string            `json:"scenario_name"`
	Kind         regression.Kind   `json:"model,omitempty"`
	CVMAE        float64           `json:"cv_mae,omitempty"`
	Status       Status            `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	History      []forecast.Point  `json:"history,omitempty"`
	Points       []forecast.Point  `json:"forecast"`
}

// Table returns the forecast as a Year,forecast table
func (r *Result) Table() *table.Table {
	years := make([]float64, len(r.Points))
	values := make([]float64, len(r.Points))

	for i, p := range r.Points {
		years[i] = float64(p.Year)
		values[i] = p.Value
	}

	t := table.New()
	_ = t.AddNumeric("Year", years)
	_ = t.AddNumeric("forecast", values)

	return t
}

// Pipeline ties the feature table, training and forecasting together
type Pipeline struct {
	log     logrus.FieldLogger
	cfg     Config
	featCfg features.Config
	builder *features.Builder
	trainer *training.Service
	store   artifact.Store
	engine  *forecast.Engine

	mu    sync.RWMutex
	table *features.Table
}

// New creates a pipeline
func New(
	log logrus.FieldLogger,
	cfg Config,
	featCfg features.Config,
	trainer *training.Service,
	store artifact.Store,
	engine *forecast.Engine,
) *Pipeline {
	return &Pipeline{
		log:     log.WithField("service", "pipeline"),
		cfg:     cfg,
		featCfg: featCfg,
		builder: features.NewBuilder(log, featCfg),
		trainer: trainer,
		store:   store,
		engine:  engine,
	}
}

// BuildFeatures rebuilds the feature table from the raw CSV and persists it
func (p *Pipeline) BuildFeatures(_ context.Context) (*features.Table, error) {
	raw, err := ReadTable(p.cfg.RawPath)
	if err != nil {
		return nil, fmt.Errorf("load raw data: %w", err)
	}

	ft, err := p.builder.Build(raw)
	if err != nil {
		return nil, err
	}

	if err := WriteTable(p.cfg.FeaturesPath, ft.ToTable()); err != nil {
		return nil, fmt.Errorf("persist features: %w", err)
	}

	p.setTable(ft)

	p.log.WithFields(logrus.Fields{
		"path":     p.cfg.FeaturesPath,
		"entities": len(ft.Entities()),
		"rows":     ft.Len(),
	}).Info("Built feature table")

	return ft, nil
}

// LoadFeatures reads the persisted feature table
func (p *Pipeline) LoadFeatures(_ context.Context) (*features.Table, error) {
	raw, err := ReadTable(p.cfg.FeaturesPath)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}

	ft, err := features.Parse(raw, p.featCfg)
	if err != nil {
		return nil, err
	}

	p.setTable(ft)

	return ft, nil
}

// Features returns the feature table, loading it on first use
func (p *Pipeline) Features(ctx context.Context) (*features.Table, error) {
	p.mu.RLock()
	ft := p.table
	p.mu.RUnlock()

	if ft != nil {
		return ft, nil
	}

	return p.LoadFeatures(ctx)
}

func (p *Pipeline) setTable(ft *features.Table) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.table = ft
}

// EnsureReady builds the feature table when its file is missing and trains
// every entity when the store holds no model
func (p *Pipeline) EnsureReady(ctx context.Context) error {
	if _, err := p.PrepareFeatures(ctx); err != nil {
		return err
	}

	existing, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	p.log.Info("No trained models found, training")

	_, err = p.Train(ctx, training.TriggerAutopilot)

	return err
}

// PrepareFeatures loads the persisted feature table, building it first when
// the file is missing
func (p *Pipeline) PrepareFeatures(ctx context.Context) (*features.Table, error) {
	if _, err := os.Stat(p.cfg.FeaturesPath); errors.Is(err, os.ErrNotExist) {
		p.log.WithField("path", p.cfg.FeaturesPath).Info("Feature table missing, building it")

		return p.BuildFeatures(ctx)
	}

	return p.LoadFeatures(ctx)
}

// Train runs a full training pass over the current feature table
func (p *Pipeline) Train(ctx context.Context, trigger string) (*training.Report, error) {
	ft, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}

	return p.trainer.TrainAll(ctx, ft, trigger)
}

// TrainEntity trains a single entity of the current feature table
func (p *Pipeline) TrainEntity(ctx context.Context, entityID string) (training.Result, error) {
	series, err := p.series(ctx, entityID)
	if err != nil {
		return training.Result{}, err
	}

	return p.trainer.TrainEntity(ctx, series), nil
}

// Summary lists the stored models by ascending CV error
func (p *Pipeline) Summary(ctx context.Context) ([]artifact.SummaryRow, error) {
	return p.trainer.Summary(ctx)
}

// Runs returns the most recent training passes first
func (p *Pipeline) Runs(ctx context.Context, limit int) ([]artifact.Run, error) {
	return p.store.Runs(ctx, limit)
}

// Entities lists every entity of the feature table with its model, if any
func (p *Pipeline) Entities(ctx context.Context) ([]Entity, error) {
	ft, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}

	all := ft.Series()
	out := make([]Entity, 0, len(all))

	for i := range all {
		s := &all[i]
		e := Entity{
			ID:        s.EntityID,
			Label:     ft.Label(s.EntityID),
			FirstYear: s.MinYear(),
			LastYear:  s.LastYear(),
			Samples:   s.Len(),
		}

		a, err := p.store.Get(ctx, s.EntityID)
		switch {
		case err == nil:
			e.HasModel = true
			e.Kind = a.Kind
			e.CVMAE = a.CVMAE
		case !errors.Is(err, artifact.ErrNotFound):
			return nil, fmt.Errorf("load artifact %s: %w", s.EntityID, err)
		}

		out = append(out, e)
	}

	return out, nil
}

func (p *Pipeline) series(ctx context.Context, entityID string) (*features.Series, error) {
	ft, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}

	s, ok := ft.Entity(entityID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entityID)
	}

	return &s, nil
}

// Forecast rolls the entity's model forward. It returns ErrUnknownEntity,
// ErrNoModel or an error wrapping forecast.ErrPrediction.
func (p *Pipeline) Forecast(ctx context.Context, entityID string, horizon int, scenario forecast.Scenario) (*Result, error) {
	started := time.Now()

	res, err := p.forecast(ctx, entityID, horizon, scenario)

	status := StatusOK

	switch {
	case errors.Is(err, ErrNoModel):
		status = StatusNoModel
	case err != nil:
		status = StatusFailed
	}

	observability.RecordForecast(string(scenario), string(status), time.Since(started).Seconds())

	return res, err
}

func (p *Pipeline) forecast(ctx context.Context, entityID string, horizon int, scenario forecast.Scenario) (*Result, error) {
	scenario, err := p.engine.ParseScenario(string(scenario))
	if err != nil {
		return nil, err
	}

	series, err := p.series(ctx, entityID)
	if err != nil {
		return nil, err
	}

	a, err := p.store.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, entityID)
		}

		return nil, fmt.Errorf("load artifact %s: %w", entityID, err)
	}

	points, err := p.engine.Forecast(series, a, horizon, scenario)
	if err != nil {
		return nil, err
	}

	label := series.Label
	if label == "" {
		label = entityID
	}

	history := make([]forecast.Point, 0, series.Len())
	for _, row := range series.Rows {
		history = append(history, forecast.Point{Year: row.Year, Value: row.Target})
	}

	return &Result{
		EntityID:     entityID,
		Label:        label,
		Scenario:     scenario,
		ScenarioName: scenario.DisplayName(p.engine.Rate()),
		Kind:         a.Kind,
		CVMAE:        a.CVMAE,
		Status:       StatusOK,
		History:      history,
		Points:       points,
	}, nil
}

// ParseScenario parses a scenario name against the configured rate
func (p *Pipeline) ParseScenario(name string) (forecast.Scenario, error) {
	return p.engine.ParseScenario(name)
}

// ForecastAll forecasts every entity. Entities without a model or whose
// rollout fails are reported in their result instead of aborting the batch.
func (p *Pipeline) ForecastAll(ctx context.Context, horizon int, scenario forecast.Scenario) ([]Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: %d", forecast.ErrInvalidHorizon, horizon)
	}

	scenario, err := p.engine.ParseScenario(string(scenario))
	if err != nil {
		return nil, err
	}

	ft, err := p.Features(ctx)
	if err != nil {
		return nil, err
	}

	ids := ft.Entities()
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.Forecast(ctx, id, horizon, scenario)
		if err == nil {
			results = append(results, *res)
			continue
		}

		failed := Result{
			EntityID:     id,
			Label:        ft.Label(id),
			Scenario:     scenario,
			ScenarioName: scenario.DisplayName(p.engine.Rate()),
			Status:       StatusFailed,
			Reason:       err.Error(),
			Points:       []forecast.Point{},
		}

		if errors.Is(err, ErrNoModel) {
			failed.Status = StatusNoModel
		} else {
			p.log.WithError(err).WithField("entity", id).Warn("Forecast failed")
		}

		results = append(results, failed)
	}

	return results, nil
}
