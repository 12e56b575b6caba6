package selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Score is the cross-validation result of one candidate
type Score struct {
	Kind regression.Kind `json:"kind"`
	// MAE is the mean of the per-fold mean absolute errors; +Inf when no fold exists
	MAE   float64   `json:"mae"`
	Folds []float64 `json:"folds"`
}

// Selector evaluates candidates in priority order. Earlier candidates win ties.
type Selector struct {
	log        logrus.FieldLogger
	cfg        Config
	candidates []regression.Trainer
	now        func() time.Time
}

// NewSelector creates a selector with ridge preferred over the random forest
func NewSelector(log logrus.FieldLogger, cfg Config) *Selector {
	return &Selector{
		log: log.WithField("component", "selection"),
		cfg: cfg,
		candidates: []regression.Trainer{
			regression.RidgeTrainer{Alpha: cfg.RidgeAlpha},
			regression.ForestTrainer{
				Trees:           cfg.Trees,
				Seed:            cfg.Seed,
				MinSamplesSplit: cfg.MinSamplesSplit,
				MaxDepth:        cfg.MaxDepth,
			},
		},
		now: time.Now,
	}
}

// Eligible reports whether a history is long enough to train on
func (s *Selector) Eligible(series *features.Series) bool {
	return series.Len() >= s.cfg.MinObservations
}

// Evaluate scores every candidate on forward-chaining folds of the series
func (s *Selector) Evaluate(ctx context.Context, series *features.Series) ([]Score, error) {
	x, y := Design(series, series.Columns())
	n := len(y)

	folds := Splits(n, s.cfg.Folds)
	scores := make([]Score, 0, len(s.candidates))

	for _, trainer := range s.candidates {
		score := Score{Kind: trainer.Kind(), MAE: math.Inf(1)}

		for _, fold := range folds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			mae, err := foldError(trainer, x, y, fold)
			if err != nil {
				return nil, fmt.Errorf("cross-validate %s: %w", trainer.Kind(), err)
			}

			score.Folds = append(score.Folds, mae)
		}

		if len(score.Folds) > 0 {
			if mae := floats.Sum(score.Folds) / float64(len(score.Folds)); !math.IsNaN(mae) {
				score.MAE = mae
			}
		}

		scores = append(scores, score)
	}

	return scores, nil
}

// SelectAndFit returns the refitted winning model, or nil without error when
// the history is shorter than the configured minimum.
func (s *Selector) SelectAndFit(ctx context.Context, series *features.Series) (*artifact.Artifact, error) {
	if !s.Eligible(series) {
		return nil, nil //nolint:nilnil // insufficient history is not an error
	}

	scores, err := s.Evaluate(ctx, series)
	if err != nil {
		return nil, err
	}

	// Strictly lower error is required to displace an earlier candidate
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].MAE < scores[best].MAE {
			best = i
		}
	}

	columns := series.Columns()
	x, y := Design(series, columns)

	model, err := s.candidates[best].Fit(x, y)
	if err != nil {
		return nil, fmt.Errorf("refit %s: %w", scores[best].Kind, err)
	}

	s.log.WithFields(logrus.Fields{
		"entity": series.EntityID,
		"model":  scores[best].Kind,
		"cv_mae": scores[best].MAE,
	}).Debug("Selected model")

	return &artifact.Artifact{
		EntityID:  series.EntityID,
		Label:     series.Label,
		Kind:      scores[best].Kind,
		Columns:   columns,
		Target:    series.TargetColumn,
		CVMAE:     scores[best].MAE,
		Samples:   len(y),
		TrainedAt: s.now().UTC(),
		Model:     model,
	}, nil
}

func foldError(trainer regression.Trainer, x *mat.Dense, y []float64, fold Fold) (float64, error) {
	_, p := x.Dims()

	train := x.Slice(0, fold.TestStart, 0, p).(*mat.Dense)
	test := x.Slice(fold.TestStart, fold.TestEnd, 0, p).(*mat.Dense)

	model, err := trainer.Fit(train, y[:fold.TestStart])
	if err != nil {
		return 0, err
	}

	pred, err := regression.PredictAll(model, test)
	if err != nil {
		return 0, err
	}

	actual := y[fold.TestStart:fold.TestEnd]

	return floats.Distance(pred, actual, 1) / float64(len(actual)), nil
}

// Design assembles the feature matrix and target vector of a series
func Design(series *features.Series, columns []string) (*mat.Dense, []float64) {
	n := series.Len()
	y := make([]float64, n)

	if n == 0 || len(columns) == 0 {
		return &mat.Dense{}, y
	}

	x := mat.NewDense(n, len(columns), nil)
	for i := range series.Rows {
		x.SetRow(i, series.Vector(&series.Rows[i], columns))
		y[i] = series.Rows[i].Target
	}

	return x, y
}
