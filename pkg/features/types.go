package features

import (
	"slices"
)

// Engineered column names
const (
	ColumnYearCentered = "year_centered"
	ColumnYearSquared  = "year_sq"
	ColumnLag1         = "loss_lag1"
	ColumnLag2         = "loss_lag2"
	ColumnLag3         = "loss_lag3"
	ColumnRoll3Mean    = "loss_roll3_mean"
	ColumnRoll5Mean    = "loss_roll5_mean"
)

// engineered lists the columns derived from an entity's own history, in the
// fixed order they follow the year column
//
//nolint:gochecknoglobals // fixed feature schema
var engineered = []string{
	ColumnYearCentered,
	ColumnYearSquared,
	ColumnLag1,
	ColumnLag2,
	ColumnLag3,
	ColumnRoll3Mean,
	ColumnRoll5Mean,
}

// IsEngineered reports whether column is recomputed from history rather than observed
func IsEngineered(column string) bool {
	return slices.Contains(engineered, column)
}

// Row is one (entity, year) observation with its engineered features
type Row struct {
	Year         int
	YearCentered float64
	YearSquared  float64
	Lag1         float64
	Lag2         float64
	Lag3         float64
	Roll3Mean    float64
	Roll5Mean    float64
	// Covariates is aligned with the owning Series' Covariates names
	Covariates []float64
	Target     float64
}

// Series is the owned, year-ordered history of a single entity
type Series struct {
	EntityID     string
	Label        string
	YearColumn   string
	TargetColumn string
	Covariates   []string
	Rows         []Row
}

// Columns returns the feature columns in their fixed order: year, engineered
// features, then covariates in discovery order.
func (s *Series) Columns() []string {
	return featureColumns(s.YearColumn, s.Covariates)
}

// Len returns the number of observations
func (s *Series) Len() int {
	return len(s.Rows)
}

// MinYear returns the first observed year, or 0 for an empty series
func (s *Series) MinYear() int {
	if len(s.Rows) == 0 {
		return 0
	}

	return s.Rows[0].Year
}

// LastYear returns the last observed year, or 0 for an empty series
func (s *Series) LastYear() int {
	if len(s.Rows) == 0 {
		return 0
	}

	return s.Rows[len(s.Rows)-1].Year
}

// Targets returns the target values in year order
func (s *Series) Targets() []float64 {
	out := make([]float64, len(s.Rows))
	for i := range s.Rows {
		out[i] = s.Rows[i].Target
	}

	return out
}

// Value returns the named feature of a row belonging to this series
func (s *Series) Value(row *Row, column string) (float64, bool) {
	switch column {
	case s.YearColumn:
		return float64(row.Year), true
	case ColumnYearCentered:
		return row.YearCentered, true
	case ColumnYearSquared:
		return row.YearSquared, true
	case ColumnLag1:
		return row.Lag1, true
	case ColumnLag2:
		return row.Lag2, true
	case ColumnLag3:
		return row.Lag3, true
	case ColumnRoll3Mean:
		return row.Roll3Mean, true
	case ColumnRoll5Mean:
		return row.Roll5Mean, true
	case s.TargetColumn:
		return row.Target, true
	}

	if i := slices.Index(s.Covariates, column); i >= 0 && i < len(row.Covariates) {
		return row.Covariates[i], true
	}

	return 0, false
}

// Vector assembles a row's values in the given column order. Unknown columns are 0.
func (s *Series) Vector(row *Row, columns []string) []float64 {
	out := make([]float64, len(columns))
	for i, col := range columns {
		if v, ok := s.Value(row, col); ok {
			out[i] = v
		}
	}

	return out
}

// Clone returns a deep copy that shares no memory with s
func (s *Series) Clone() Series {
	out := *s
	out.Covariates = slices.Clone(s.Covariates)
	out.Rows = make([]Row, len(s.Rows))

	for i := range s.Rows {
		out.Rows[i] = s.Rows[i]
		out.Rows[i].Covariates = slices.Clone(s.Rows[i].Covariates)
	}

	return out
}

func featureColumns(yearColumn string, covariates []string) []string {
	cols := make([]string, 0, 1+len(engineered)+len(covariates))
	cols = append(cols, yearColumn)
	cols = append(cols, engineered...)
	cols = append(cols, covariates...)

	return cols
}
