// Package rendering renders text reports of the trained models and forecasts
package rendering

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/training"
)

// DefaultSummaryTemplate lists the models sorted as given, best first
const DefaultSummaryTemplate = `Model summary ({{ len .models }} entities, generated {{ dateInZone "2006-01-02 15:04" .generated "UTC" }})
{{ printf "%-8s %-24s %-14s %10s %6s %6s" "entity" "label" "model" "cv_mae" "rows" "feats" }}
{{- range .models }}
{{ printf "%-8s %-24s %-14s %10.3f %6d %6d" .EntityID (.Label | default .EntityID | trunc 24) (toString .Kind) .CVMAE .Samples .Features }}
{{- end }}
{{- with .run }}

Last run {{ .ID | trunc 8 }} ({{ .Trigger }}): {{ .Trained }} trained, {{ .Skipped }} skipped, {{ .Failed }} failed
{{- end }}
`

// DefaultForecastTemplate prints one forecast
const DefaultForecastTemplate = `{{ .result.Label }} ({{ .result.EntityID }}), {{ .result.Kind }}, scenario {{ .result.ScenarioName }}
{{- range .result.Points }}
{{ .Year }}  {{ printf "%.3f" .Value }}
{{- end }}
`

// DefaultTrainingTemplate prints one line per entity of a training pass
const DefaultTrainingTemplate = `Training run {{ .report.Run.ID | trunc 8 }} ({{ .report.Run.Trigger }}): {{ .report.Run.Trained }} trained, {{ .report.Run.Skipped }} skipped, {{ .report.Run.Failed }} failed
{{- range .report.Results }}
{{ printf "%-8s %-8s" .EntityID (toString .Status) }}
{{- if .Kind }} {{ .Kind }} cv_mae={{ printf "%.3f" .CVMAE }}{{ end }}
{{- with .Reason }} {{ . }}{{ end }}
{{- end }}
`

// TemplateEngine provides template rendering with Sprig functions
type TemplateEngine struct {
	funcMap template.FuncMap
	now     func() time.Time
}

// NewTemplateEngine creates a new template engine with Sprig functions
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		funcMap: sprig.TxtFuncMap(),
		now:     time.Now,
	}
}

// Render renders a template with the given variables
func (t *TemplateEngine) Render(content string, variables map[string]interface{}) (string, error) {
	tmpl, err := template.New("report").Funcs(t.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// SummaryVariables builds the variables of a summary report. run may be nil.
func (t *TemplateEngine) SummaryVariables(rows []artifact.SummaryRow, run *artifact.Run) map[string]interface{} {
	return map[string]interface{}{
		"models":    rows,
		"run":       run,
		"generated": t.now().UTC(),
	}
}

// RenderSummary renders the summary with content, or the default template when empty
func (t *TemplateEngine) RenderSummary(content string, rows []artifact.SummaryRow, run *artifact.Run) (string, error) {
	if content == "" {
		content = DefaultSummaryTemplate
	}

	return t.Render(content, t.SummaryVariables(rows, run))
}

// RenderForecast renders one forecast with content, or the default template when empty
func (t *TemplateEngine) RenderForecast(content string, result *pipeline.Result) (string, error) {
	if content == "" {
		content = DefaultForecastTemplate
	}

	return t.Render(content, map[string]interface{}{
		"result":    result,
		"generated": t.now().UTC(),
	})
}

// RenderTraining renders a training report with content, or the default template when empty
func (t *TemplateEngine) RenderTraining(content string, report *training.Report) (string, error) {
	if content == "" {
		content = DefaultTrainingTemplate
	}

	return t.Render(content, map[string]interface{}{
		"report":    report,
		"generated": t.now().UTC(),
	})
}

// LoadTemplate reads a template file; an empty path yields an empty template
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}

	return string(data), nil
}
