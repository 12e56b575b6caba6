package artifact

import (
	"sort"

	"github.com/ethpandaops/lossforecast/pkg/regression"
	"github.com/ethpandaops/lossforecast/pkg/table"
)

// SummaryRow describes the selected model of one entity
type SummaryRow struct {
	EntityID string          `json:"entity_id"`
	Label    string          `json:"label,omitempty"`
	Kind     regression.Kind `json:"model"`
	CVMAE    float64         `json:"cv_mae"`
	Samples  int             `json:"n_samples"`
	Features int             `json:"n_features"`
}

// BuildSummary lists artifacts by ascending CV error, ties broken by entity id
func BuildSummary(artifacts []*Artifact) []SummaryRow {
	rows := make([]SummaryRow, 0, len(artifacts))
	for _, a := range artifacts {
		rows = append(rows, SummaryRow{
			EntityID: a.EntityID,
			Label:    a.Label,
			Kind:     a.Kind,
			CVMAE:    a.CVMAE,
			Samples:  a.Samples,
			Features: len(a.Columns),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CVMAE != rows[j].CVMAE {
			return rows[i].CVMAE < rows[j].CVMAE
		}

		return rows[i].EntityID < rows[j].EntityID
	})

	return rows
}

// SummaryTable converts summary rows for CSV export
func SummaryTable(rows []SummaryRow) *table.Table {
	ids := make([]string, len(rows))
	labels := make([]string, len(rows))
	kinds := make([]string, len(rows))
	maes := make([]float64, len(rows))
	samples := make([]float64, len(rows))
	features := make([]float64, len(rows))

	for i, r := range rows {
		ids[i] = r.EntityID
		labels[i] = r.Label
		kinds[i] = string(r.Kind)
		maes[i] = r.CVMAE
		samples[i] = float64(r.Samples)
		features[i] = float64(r.Features)
	}

	out := table.New()
	_ = out.AddText("entity_id", ids)
	_ = out.AddText("label", labels)
	_ = out.AddText("model", kinds)
	_ = out.AddNumeric("cv_mae", maes)
	_ = out.AddNumeric("n_samples", samples)
	_ = out.AddNumeric("n_features", features)

	return out
}
