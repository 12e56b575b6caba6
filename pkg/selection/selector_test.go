package selection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/ethpandaops/lossforecast/pkg/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return log
}

func testSelector(t *testing.T, mutate func(*Config)) *Selector {
	t.Helper()

	var cfg Config
	require.NoError(t, defaults.Set(&cfg))

	cfg.Trees = 40
	if mutate != nil {
		mutate(&cfg)
	}

	require.NoError(t, cfg.Validate())

	return NewSelector(testLogger(), cfg)
}

// buildSeries builds one entity's features from year/target pairs starting at 2000
func buildSeries(t *testing.T, targets func(i int) float64, years int) *features.Series {
	t.Helper()

	var b strings.Builder

	b.WriteString("Country_ID,Year,Total losses,PEC_total\n")

	for i := range years {
		fmt.Fprintf(&b, "DE,%d,%g,%g\n", 2000+i, targets(i), float64(i%3))
	}

	raw, err := table.ReadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)

	var cfg features.Config
	require.NoError(t, defaults.Set(&cfg))

	ft, err := features.NewBuilder(testLogger(), cfg).Build(raw)
	require.NoError(t, err)

	s, ok := ft.Entity("DE")
	require.True(t, ok)

	return &s
}

func linear(i int) float64 { return 100 + 5*float64(i) }

func TestSplits(t *testing.T) {
	tests := []struct {
		n, k int
		want []Fold
	}{
		{n: 8, k: 3, want: []Fold{{2, 4}, {4, 6}, {6, 8}}},
		{n: 10, k: 3, want: []Fold{{4, 6}, {6, 8}, {8, 10}}},
		{n: 13, k: 3, want: []Fold{{4, 7}, {7, 10}, {10, 13}}},
		{n: 3, k: 3, want: nil},
		{n: 10, k: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			folds := Splits(tt.n, tt.k)
			assert.Equal(t, tt.want, folds)

			for _, f := range folds {
				assert.Positive(t, f.TestStart, "training set must be non-empty")
			}
		})
	}
}

func TestSelectAndFit_MinimumHistory(t *testing.T) {
	sel := testSelector(t, nil)
	ctx := context.Background()

	art, err := sel.SelectAndFit(ctx, buildSeries(t, linear, 7))
	require.NoError(t, err)
	assert.Nil(t, art, "seven observations are not enough")

	art, err = sel.SelectAndFit(ctx, buildSeries(t, linear, 8))
	require.NoError(t, err)
	require.NotNil(t, art)

	assert.Equal(t, "DE", art.EntityID)
	assert.Equal(t, 8, art.Samples)
	assert.Equal(t, "Total losses", art.Target)
	assert.Len(t, art.Columns, 9)
	assert.Equal(t, len(art.Columns), art.Model.Features())
	assert.False(t, art.TrainedAt.IsZero())
}

func TestSelectAndFit_LinearTrendPrefersRidge(t *testing.T) {
	art, err := testSelector(t, nil).SelectAndFit(context.Background(), buildSeries(t, linear, 14))
	require.NoError(t, err)
	require.NotNil(t, art)

	assert.Equal(t, regression.KindRidge, art.Kind, "trees cannot extrapolate a trend")
}

func TestSelectAndFit_TiesGoToRidge(t *testing.T) {
	constant := func(int) float64 { return 42 }

	sel := testSelector(t, nil)
	scores, err := sel.Evaluate(context.Background(), buildSeries(t, constant, 10))
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, scores[0].MAE, scores[1].MAE, 1e-9)

	art, err := sel.SelectAndFit(context.Background(), buildSeries(t, constant, 10))
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, regression.KindRidge, art.Kind)
}

func TestSelectAndFit_Deterministic(t *testing.T) {
	noisy := func(i int) float64 { return 50 + float64((i*37)%11) - float64(i) }

	run := func() (regression.Kind, float64, float64) {
		sel := testSelector(t, func(c *Config) { c.RidgeAlpha = 1e6 })
		s := buildSeries(t, noisy, 12)

		art, err := sel.SelectAndFit(context.Background(), s)
		require.NoError(t, err)
		require.NotNil(t, art)

		pred, err := art.Predict(s.Vector(&s.Rows[len(s.Rows)-1], art.Columns))
		require.NoError(t, err)

		return art.Kind, art.CVMAE, pred
	}

	k1, mae1, p1 := run()
	k2, mae2, p2 := run()

	assert.Equal(t, k1, k2)
	assert.InDelta(t, mae1, mae2, 0)
	assert.InDelta(t, p1, p2, 0)
}

func TestEvaluate_FoldCount(t *testing.T) {
	scores, err := testSelector(t, nil).Evaluate(context.Background(), buildSeries(t, linear, 9))
	require.NoError(t, err)

	for _, s := range scores {
		assert.Len(t, s.Folds, 3)
		assert.GreaterOrEqual(t, s.MAE, 0.0)
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testSelector(t, nil).Evaluate(ctx, buildSeries(t, linear, 9))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{MinObservations: 8, Folds: 3, RidgeAlpha: 1, Trees: 10}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{name: "one fold", mutate: func(c *Config) { c.Folds = 1 }, err: ErrInvalidFolds},
		{name: "threshold too low", mutate: func(c *Config) { c.MinObservations = 3 }, err: ErrMinObservationsTooLow},
		{name: "negative alpha", mutate: func(c *Config) { c.RidgeAlpha = -1 }, err: ErrInvalidAlpha},
		{name: "no trees", mutate: func(c *Config) { c.Trees = 0 }, err: ErrInvalidTrees},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}

func TestEvaluate_NoFoldsScoresInfinity(t *testing.T) {
	scores, err := testSelector(t, nil).Evaluate(context.Background(), buildSeries(t, linear, 3))
	require.NoError(t, err)
	require.Len(t, scores, 2)

	for _, s := range scores {
		assert.True(t, math.IsInf(s.MAE, 1))
		assert.Empty(t, s.Folds)
	}
}
