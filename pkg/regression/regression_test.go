package regression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// linearData returns y = 3 + 2*x0 - x1 over a small grid
func linearData() (*mat.Dense, []float64) {
	var (
		data []float64
		y    []float64
	)

	for i := range 12 {
		x0 := float64(i)
		x1 := float64((i * 7) % 5)
		data = append(data, x0, x1)
		y = append(y, 3+2*x0-x1)
	}

	return mat.NewDense(12, 2, data), y
}

func TestRidge_RecoversLinearRelation(t *testing.T) {
	x, y := linearData()

	model, err := RidgeTrainer{Alpha: 1e-9}.Fit(x, y)
	require.NoError(t, err)
	assert.Equal(t, KindRidge, model.Kind())
	assert.Equal(t, 2, model.Features())

	got, err := model.Predict([]float64{20, 1})
	require.NoError(t, err)
	assert.InDelta(t, 42.0, got, 1e-6)
}

func TestRidge_PenaltyShrinksTowardMean(t *testing.T) {
	x, y := linearData()

	loose, err := RidgeTrainer{Alpha: 1e-9}.Fit(x, y)
	require.NoError(t, err)

	tight, err := RidgeTrainer{Alpha: 1e6}.Fit(x, y)
	require.NoError(t, err)

	for j := range 2 {
		assert.Less(t, abs(tight.(*Ridge).Coef[j]), abs(loose.(*Ridge).Coef[j]))
	}
}

func TestRidge_ConstantColumnDoesNotBreakScaling(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	model, err := RidgeTrainer{Alpha: 1}.Fit(x, []float64{2, 4, 6, 8})
	require.NoError(t, err)

	r := model.(*Ridge)
	assert.InDelta(t, 1.0, r.Scale[1], 0, "zero spread must scale by 1")

	v, err := model.Predict([]float64{2.5, 5})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-9, "prediction at the mean equals the target mean")
}

func TestForest_Deterministic(t *testing.T) {
	x, y := linearData()
	trainer := ForestTrainer{Trees: 50, Seed: 42, MinSamplesSplit: 2}

	a, err := trainer.Fit(x, y)
	require.NoError(t, err)

	b, err := trainer.Fit(x, y)
	require.NoError(t, err)

	assert.Equal(t, a, b)

	other, err := ForestTrainer{Trees: 50, Seed: 7, MinSamplesSplit: 2}.Fit(x, y)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestForest_PredictsWithinTargetRange(t *testing.T) {
	x, y := linearData()

	model, err := ForestTrainer{Trees: 100, Seed: 42}.Fit(x, y)
	require.NoError(t, err)
	assert.Equal(t, KindForest, model.Kind())

	lo, hi := y[0], y[0]
	for _, v := range y {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	for _, probe := range [][]float64{{-100, 0}, {5, 2}, {1000, 4}} {
		v, err := model.Predict(probe)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}
}

func TestForest_ConstantTargetIsSingleLeaf(t *testing.T) {
	x, _ := linearData()
	y := make([]float64, 12)

	for i := range y {
		y[i] = 7
	}

	model, err := ForestTrainer{Trees: 3, Seed: 1}.Fit(x, y)
	require.NoError(t, err)

	for _, tree := range model.(*Forest).Trees {
		require.Len(t, tree.Nodes, 1)
		assert.InDelta(t, 7.0, tree.Nodes[0].Value, 0)
	}
}

func TestPredict_DimensionMismatch(t *testing.T) {
	x, y := linearData()

	for _, trainer := range []Trainer{RidgeTrainer{Alpha: 1}, ForestTrainer{Trees: 2, Seed: 1}} {
		model, err := trainer.Fit(x, y)
		require.NoError(t, err)

		_, err = model.Predict([]float64{1})
		require.ErrorIs(t, err, ErrDimensionMismatch, trainer.Kind())
	}
}

func TestFit_Errors(t *testing.T) {
	x, _ := linearData()

	_, err := RidgeTrainer{Alpha: 1}.Fit(x, []float64{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ForestTrainer{Trees: 1}.Fit(&mat.Dense{}, nil)
	require.ErrorIs(t, err, ErrEmptyTrainingSet)
}

func TestCodec_PreservesPredictions(t *testing.T) {
	x, y := linearData()
	probe := []float64{4.5, 3}

	for _, trainer := range []Trainer{RidgeTrainer{Alpha: 1}, ForestTrainer{Trees: 20, Seed: 42}} {
		model, err := trainer.Fit(x, y)
		require.NoError(t, err)

		data, err := Marshal(model)
		require.NoError(t, err)

		back, err := Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, model.Kind(), back.Kind())

		want, err := model.Predict(probe)
		require.NoError(t, err)

		got, err := back.Predict(probe)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 0)
	}

	_, err := Unmarshal([]byte(`{"kind":"svm"}`))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
