package features

import (
	"sort"
	"strings"

	"github.com/ethpandaops/lossforecast/pkg/table"
)

// Table is the feature table: one Series per entity, sorted by entity id
type Table struct {
	EntityColumn string
	YearColumn   string
	TargetColumn string
	LabelColumn  string
	HasLabel     bool
	Covariates   []string

	series []Series
}

// Columns returns the feature columns shared by every entity
func (t *Table) Columns() []string {
	return featureColumns(t.YearColumn, t.Covariates)
}

// Len returns the total number of rows across entities
func (t *Table) Len() int {
	n := 0
	for i := range t.series {
		n += len(t.series[i].Rows)
	}

	return n
}

// Entities returns the entity ids in sorted order
func (t *Table) Entities() []string {
	ids := make([]string, len(t.series))
	for i := range t.series {
		ids[i] = t.series[i].EntityID
	}

	return ids
}

// Series returns an owned copy of every entity's history
func (t *Table) Series() []Series {
	out := make([]Series, len(t.series))
	for i := range t.series {
		out[i] = t.series[i].Clone()
	}

	return out
}

// Entity returns an owned copy of one entity's history
func (t *Table) Entity(id string) (Series, bool) {
	for i := range t.series {
		if t.series[i].EntityID == id {
			return t.series[i].Clone(), true
		}
	}

	return Series{}, false
}

// Label returns the display name of an entity, falling back to its id
func (t *Table) Label(id string) string {
	for i := range t.series {
		if t.series[i].EntityID == id && t.series[i].Label != "" {
			return t.series[i].Label
		}
	}

	return id
}

// ToTable flattens the feature table for export. Column order is entity,
// label (when present), features, target.
func (t *Table) ToTable() *table.Table {
	n := t.Len()
	ids := make([]string, 0, n)
	labels := make([]string, 0, n)
	features := t.Columns()

	values := make([][]float64, len(features))
	for j := range values {
		values[j] = make([]float64, 0, n)
	}

	targets := make([]float64, 0, n)

	for i := range t.series {
		s := &t.series[i]
		for r := range s.Rows {
			row := &s.Rows[r]
			ids = append(ids, s.EntityID)
			labels = append(labels, s.Label)

			for j, v := range s.Vector(row, features) {
				values[j] = append(values[j], v)
			}

			targets = append(targets, row.Target)
		}
	}

	out := table.New()
	// Column names are distinct by construction, so Add* cannot fail
	_ = out.AddText(t.EntityColumn, ids)

	if t.HasLabel {
		_ = out.AddText(t.LabelColumn, labels)
	}

	for j, name := range features {
		_ = out.AddNumeric(name, values[j])
	}

	_ = out.AddNumeric(t.TargetColumn, targets)

	return out
}

// Parse loads a previously exported feature table. Engineered values are taken
// as stored, not recomputed.
func Parse(raw *table.Table, cfg Config) (*Table, error) {
	required := append([]string{cfg.TargetColumn, cfg.EntityColumn, cfg.YearColumn}, engineered...)
	for _, col := range required {
		if !raw.Has(col) {
			return nil, &SchemaError{Column: col}
		}
	}

	var covariates []string

	for _, name := range raw.Columns() {
		if col, _ := raw.Column(name); col.Numeric && cfg.IsCovariate(name) {
			covariates = append(covariates, name)
		}
	}

	hasLabel := cfg.LabelColumn != "" && raw.Has(cfg.LabelColumn)
	groups := make(map[string]*Series)

	for i := 0; i < raw.Len(); i++ {
		id := strings.TrimSpace(raw.Text(cfg.EntityColumn, i))

		s, ok := groups[id]
		if !ok {
			s = &Series{
				EntityID:     id,
				YearColumn:   cfg.YearColumn,
				TargetColumn: cfg.TargetColumn,
				Covariates:   covariates,
			}
			groups[id] = s
		}

		if hasLabel && s.Label == "" {
			s.Label = strings.TrimSpace(raw.Text(cfg.LabelColumn, i))
		}

		row := Row{
			Year:         int(zeroFill(raw.Float(cfg.YearColumn, i))),
			YearCentered: zeroFill(raw.Float(ColumnYearCentered, i)),
			YearSquared:  zeroFill(raw.Float(ColumnYearSquared, i)),
			Lag1:         zeroFill(raw.Float(ColumnLag1, i)),
			Lag2:         zeroFill(raw.Float(ColumnLag2, i)),
			Lag3:         zeroFill(raw.Float(ColumnLag3, i)),
			Roll3Mean:    zeroFill(raw.Float(ColumnRoll3Mean, i)),
			Roll5Mean:    zeroFill(raw.Float(ColumnRoll5Mean, i)),
			Covariates:   make([]float64, len(covariates)),
			Target:       zeroFill(raw.Float(cfg.TargetColumn, i)),
		}

		for j, col := range covariates {
			row.Covariates[j] = zeroFill(raw.Float(col, i))
		}

		s.Rows = append(s.Rows, row)
	}

	out := &Table{
		EntityColumn: cfg.EntityColumn,
		YearColumn:   cfg.YearColumn,
		TargetColumn: cfg.TargetColumn,
		LabelColumn:  cfg.LabelColumn,
		HasLabel:     hasLabel,
		Covariates:   covariates,
	}

	for _, id := range sortedKeys(groups) {
		s := groups[id]
		sortRows(s.Rows)
		out.series = append(out.series, *s)
	}

	return out, nil
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
}
