package rendering

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEngine() *TemplateEngine {
	e := NewTemplateEngine()
	e.now = func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) }

	return e
}

func TestTemplateEngine_Render(t *testing.T) {
	engine := NewTemplateEngine()

	tests := []struct {
		name      string
		template  string
		variables map[string]interface{}
		expected  string
		hasError  bool
	}{
		{
			name:      "simple variable substitution",
			template:  "{{ .entity }}: {{ .value }}",
			variables: map[string]interface{}{"entity": "DE", "value": 42},
			expected:  "DE: 42",
		},
		{
			name:      "sprig function usage",
			template:  `{{ .label | upper | quote }}`,
			variables: map[string]interface{}{"label": "germany"},
			expected:  `"GERMANY"`,
		},
		{
			name:      "sprig default",
			template:  `{{ .label | default "n/a" }}`,
			variables: map[string]interface{}{"label": ""},
			expected:  "n/a",
		},
		{
			name:     "parse error",
			template: "{{ .entity ",
			hasError: true,
		},
		{
			name:      "missing key",
			template:  "{{ .nope }}",
			variables: map[string]interface{}{},
			hasError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render(tt.template, tt.variables)
			if tt.hasError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRenderSummary_Default(t *testing.T) {
	rows := []artifact.SummaryRow{
		{EntityID: "AT", Label: "Austria", Kind: regression.KindRidge, CVMAE: 0.5, Samples: 20, Features: 10},
		{EntityID: "DE", Kind: regression.KindForest, CVMAE: 1.25, Samples: 18, Features: 10},
	}
	run := &artifact.Run{ID: "0123456789abcdef", Trigger: "cli", Trained: 2, Skipped: 1}

	out, err := fixedEngine().RenderSummary("", rows, run)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)

	assert.Equal(t, "Model summary (2 entities, generated 2025-03-01 12:30)", lines[0])
	assert.Contains(t, lines[2], "Austria")
	assert.Contains(t, lines[2], "0.500")
	assert.Contains(t, lines[3], "random_forest")
	assert.Contains(t, lines[3], "DE", "label falls back to the entity id")
	assert.Contains(t, out, "Last run 01234567 (cli): 2 trained, 1 skipped, 0 failed")
}

func TestRenderSummary_NoRun(t *testing.T) {
	out, err := fixedEngine().RenderSummary("", nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, out, "Last run")
}

func TestRenderForecast(t *testing.T) {
	result := &pipeline.Result{
		EntityID:     "DE",
		Label:        "Germany",
		Kind:         regression.KindRidge,
		ScenarioName: "+2%/Jahr",
		Points:       []forecast.Point{{Year: 2024, Value: 101.5}, {Year: 2025, Value: 103}},
	}

	out, err := fixedEngine().RenderForecast("", result)
	require.NoError(t, err)

	assert.Equal(t, "Germany (DE), ridge, scenario +2%/Jahr\n2024  101.500\n2025  103.000\n", out)
}

func TestRenderTraining(t *testing.T) {
	report := &training.Report{
		Run: artifact.Run{ID: "abcdef0123456789", Trigger: "schedule", Trained: 1, Skipped: 1},
		Results: []training.Result{
			{EntityID: "AT", Status: training.StatusTrained, Kind: regression.KindRidge, CVMAE: 2},
			{EntityID: "LU", Status: training.StatusSkipped, Reason: "insufficient history"},
		},
	}

	out, err := fixedEngine().RenderTraining("", report)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Training run abcdef01 (schedule): 1 trained, 1 skipped, 0 failed", lines[0])
	assert.Equal(t, "AT       trained  ridge cv_mae=2.000", lines[1])
	assert.Equal(t, "LU       skipped  insufficient history", lines[2])
}

func TestLoadTemplate(t *testing.T) {
	empty, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	path := filepath.Join(t.TempDir(), "summary.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("{{ len .models }}"), 0o600))

	content, err := LoadTemplate(path)
	require.NoError(t, err)

	out, err := fixedEngine().RenderSummary(content, make([]artifact.SummaryRow, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
