package forecast

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/ethpandaops/lossforecast/pkg/features"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingModel predicts lag1 + step and remembers every input vector
type recordingModel struct {
	columns []string
	step    float64
	err     error
	inputs  [][]float64
}

func (m *recordingModel) FeatureColumns() []string { return m.columns }
func (m *recordingModel) TargetColumn() string     { return "Total losses" }

func (m *recordingModel) Predict(x []float64) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.inputs = append(m.inputs, slices.Clone(x))

	return x[slices.Index(m.columns, features.ColumnLag1)] + m.step, nil
}

func (m *recordingModel) value(step int, column string) float64 {
	return m.inputs[step][slices.Index(m.columns, column)]
}

func testEngine() *Engine {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return NewEngine(log, Config{Rate: 0.02, CovariatePrefixes: []string{"PEC", "FEC"}})
}

// germany has ten years of history ending with 120.0 in 2023
func germany() *features.Series {
	s := &features.Series{
		EntityID:     "DE",
		YearColumn:   "Year",
		TargetColumn: "Total losses",
		Covariates:   []string{"PEC_total", "FEC_total"},
	}

	var prior []float64

	for i := range 10 {
		target := 75 + 5*float64(i)
		row := features.Row{
			Year:       2014 + i,
			Covariates: []float64{100 + float64(i), 50 - float64(i)},
			Target:     target,
		}
		features.Trend(&row, 2014)
		features.HistoryFeatures(prior).Apply(&row)

		s.Rows = append(s.Rows, row)
		prior = append(prior, target)
	}

	return s
}

func TestForecast_ConstantScenarioEndToEnd(t *testing.T) {
	history := germany()
	require.InDelta(t, 120.0, history.Rows[9].Target, 0)

	model := &recordingModel{columns: history.Columns(), step: 1}

	points, err := testEngine().Forecast(history, model, 3, ScenarioConstant)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, []int{2024, 2025, 2026}, []int{points[0].Year, points[1].Year, points[2].Year})

	assert.InDelta(t, 120.0, model.value(0, features.ColumnLag1), 0)
	assert.InDelta(t, points[0].Value, model.value(1, features.ColumnLag1), 0)
	assert.InDelta(t, points[1].Value, model.value(2, features.ColumnLag1), 0)

	for step := range 3 {
		assert.InDelta(t, 109.0, model.value(step, "PEC_total"), 0, "covariates hold their 2023 value")
		assert.InDelta(t, 41.0, model.value(step, "FEC_total"), 0)
		assert.InDelta(t, float64(2024+step), model.value(step, "Year"), 0)
		assert.InDelta(t, float64(10+step), model.value(step, features.ColumnYearCentered), 0)
		assert.InDelta(t, float64((10+step)*(10+step)), model.value(step, features.ColumnYearSquared), 0)
	}

	// The rolling mean of the second step includes the first prediction
	assert.InDelta(t, (115+120+points[0].Value)/3, model.value(1, features.ColumnRoll3Mean), 1e-9)

	// The caller's history is untouched
	assert.Len(t, history.Rows, 10)
}

func TestForecast_Horizon(t *testing.T) {
	points, err := testEngine().Forecast(germany(), &recordingModel{columns: germany().Columns()}, 5, ScenarioConstant)
	require.NoError(t, err)
	require.Len(t, points, 5)

	for i := 1; i < len(points); i++ {
		assert.Equal(t, points[i-1].Year+1, points[i].Year)
	}

	_, err = testEngine().Forecast(germany(), &recordingModel{columns: germany().Columns()}, 0, ScenarioConstant)
	require.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestForecast_ScenarioMath(t *testing.T) {
	tests := []struct {
		scenario Scenario
		factor   float64
	}{
		{scenario: ScenarioConstant, factor: 1},
		{scenario: ScenarioGrowth, factor: 1.02},
		{scenario: ScenarioDecay, factor: 0.98},
	}

	for _, tt := range tests {
		t.Run(string(tt.scenario), func(t *testing.T) {
			history := germany()
			model := &recordingModel{columns: history.Columns()}

			_, err := testEngine().Forecast(history, model, 4, tt.scenario)
			require.NoError(t, err)

			for k := 1; k <= 4; k++ {
				want := 109 * math.Pow(tt.factor, float64(k))
				assert.InDelta(t, want, model.value(k-1, "PEC_total"), 1e-9, "step %d", k)
			}
		})
	}
}

func TestForecast_UnprojectedCovariatesCarryForward(t *testing.T) {
	history := germany()
	history.Covariates[1] = "GDP_total"

	model := &recordingModel{columns: history.Columns()}
	engine := NewEngine(logrus.New(), Config{Rate: 0.5, CovariatePrefixes: []string{"PEC"}})

	_, err := engine.Forecast(history, model, 3, ScenarioGrowth)
	require.NoError(t, err)

	for step := range 3 {
		assert.InDelta(t, 41.0, model.value(step, "GDP_total"), 0)
	}

	assert.InDelta(t, 109*1.5*1.5*1.5, model.value(2, "PEC_total"), 1e-9)
}

func TestForecast_EmptyHistory(t *testing.T) {
	empty := &features.Series{EntityID: "XX", YearColumn: "Year"}

	points, err := testEngine().Forecast(empty, &recordingModel{}, 5, ScenarioConstant)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestForecast_PredictionFailure(t *testing.T) {
	boom := errors.New("boom")
	model := &recordingModel{columns: germany().Columns(), err: boom}

	_, err := testEngine().Forecast(germany(), model, 2, ScenarioConstant)
	require.ErrorIs(t, err, ErrPrediction)
	require.ErrorIs(t, err, boom)
}

func TestForecast_MissingColumnsDefaultToZero(t *testing.T) {
	history := germany()
	model := &recordingModel{columns: []string{features.ColumnLag1, "not_a_feature"}}

	_, err := testEngine().Forecast(history, model, 1, ScenarioConstant)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, model.value(0, "not_a_feature"), 0)
}

func TestForecast_UnknownScenario(t *testing.T) {
	_, err := testEngine().Forecast(germany(), &recordingModel{columns: germany().Columns()}, 1, Scenario("boom"))
	require.ErrorIs(t, err, ErrUnknownScenario)
}

func TestParseScenario(t *testing.T) {
	tests := map[string]Scenario{
		"":                        ScenarioConstant,
		"constant":                ScenarioConstant,
		"Konstant (letzte Werte)": ScenarioConstant,
		"growth":                  ScenarioGrowth,
		"+2%/Jahr":                ScenarioGrowth,
		"decay":                   ScenarioDecay,
		" -2%/Jahr ":              ScenarioDecay,
	}

	for in, want := range tests {
		got, err := ParseScenario(in, 0.02)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"sideways", "+5%/Jahr", "-3%/Jahr", "konstant"} {
		_, err := ParseScenario(in, 0.02)
		require.ErrorIs(t, err, ErrUnknownScenario, in)
	}

	// The engine parses against its configured rate
	got, err := NewEngine(logrus.New(), Config{Rate: 0.05}).ParseScenario("+5%/Jahr")
	require.NoError(t, err)
	assert.Equal(t, ScenarioGrowth, got)

	_, err = testEngine().ParseScenario("+5%/Jahr")
	require.ErrorIs(t, err, ErrUnknownScenario)
}

func TestScenario_DisplayName(t *testing.T) {
	assert.Equal(t, "Konstant (letzte Werte)", ScenarioConstant.DisplayName(0.02))
	assert.Equal(t, "+2%/Jahr", ScenarioGrowth.DisplayName(0.02))
	assert.Equal(t, "-2%/Jahr", ScenarioDecay.DisplayName(0.02))

	for _, s := range Scenarios() {
		parsed, err := ParseScenario(s.DisplayName(0.05), 0.05)
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}
