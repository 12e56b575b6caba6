package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ethpandaops/lossforecast/pkg/table"
	"github.com/sirupsen/logrus"
)

// ErrDuplicateYear is returned when an entity reports the same year twice
var ErrDuplicateYear = errors.New("duplicate year for entity")

// History holds the features derived from an entity's strictly earlier targets
type History struct {
	Lag1      float64
	Lag2      float64
	Lag3      float64
	Roll3Mean float64
	Roll5Mean float64
}

// HistoryFeatures computes lags and trailing means from the targets observed
// before the row being described, oldest first. Positions without history are 0;
// rolling means average whatever part of the window is available.
func HistoryFeatures(prior []float64) History {
	return History{
		Lag1:      lag(prior, 1),
		Lag2:      lag(prior, 2),
		Lag3:      lag(prior, 3),
		Roll3Mean: trailingMean(prior, 3),
		Roll5Mean: trailingMean(prior, 5),
	}
}

func lag(prior []float64, k int) float64 {
	if len(prior) < k {
		return 0
	}

	return prior[len(prior)-k]
}

func trailingMean(prior []float64, window int) float64 {
	if len(prior) == 0 {
		return 0
	}

	start := max(len(prior)-window, 0)

	sum := 0.0
	for _, v := range prior[start:] {
		sum += v
	}

	return sum / float64(len(prior)-start)
}

// Apply stores the history features on a row
func (h History) Apply(row *Row) {
	row.Lag1 = h.Lag1
	row.Lag2 = h.Lag2
	row.Lag3 = h.Lag3
	row.Roll3Mean = h.Roll3Mean
	row.Roll5Mean = h.Roll5Mean
}

// Trend fills the year-derived features of a row relative to the entity's first year
func Trend(row *Row, minYear int) {
	centered := float64(row.Year - minYear)
	row.YearCentered = centered
	row.YearSquared = centered * centered
}

// Builder derives the feature table from raw observations
type Builder struct {
	log logrus.FieldLogger
	cfg Config
}

// NewBuilder creates a feature builder
func NewBuilder(log logrus.FieldLogger, cfg Config) *Builder {
	return &Builder{
		log: log.WithField("component", "features"),
		cfg: cfg,
	}
}

type observation struct {
	label      string
	year       int
	target     float64
	covariates []float64
}

// Build validates the raw table and produces one feature row per (entity, year).
// Rows are grouped by entity and sorted by year; every numeric gap is zero-filled.
func (b *Builder) Build(raw *table.Table) (*Table, error) {
	for _, col := range []string{b.cfg.TargetColumn, b.cfg.EntityColumn, b.cfg.YearColumn} {
		if !raw.Has(col) {
			return nil, &SchemaError{Column: col}
		}
	}

	covariates := b.covariateColumns(raw)
	hasLabel := b.cfg.LabelColumn != "" && raw.Has(b.cfg.LabelColumn)

	groups := make(map[string][]observation)

	for i := 0; i < raw.Len(); i++ {
		entity := strings.TrimSpace(raw.Text(b.cfg.EntityColumn, i))

		obs := observation{
			year:       int(zeroFill(raw.Float(b.cfg.YearColumn, i))),
			target:     zeroFill(raw.Float(b.cfg.TargetColumn, i)),
			covariates: make([]float64, len(covariates)),
		}

		if hasLabel {
			obs.label = strings.TrimSpace(raw.Text(b.cfg.LabelColumn, i))
		}

		for j, col := range covariates {
			obs.covariates[j] = zeroFill(raw.Float(col, i))
		}

		groups[entity] = append(groups[entity], obs)
	}

	out := &Table{
		EntityColumn: b.cfg.EntityColumn,
		YearColumn:   b.cfg.YearColumn,
		TargetColumn: b.cfg.TargetColumn,
		LabelColumn:  b.cfg.LabelColumn,
		HasLabel:     hasLabel,
		Covariates:   covariates,
	}

	for _, entity := range sortedKeys(groups) {
		series, err := b.series(entity, covariates, groups[entity])
		if err != nil {
			return nil, err
		}

		out.series = append(out.series, series)
	}

	b.log.WithFields(logrus.Fields{
		"entities":   len(out.series),
		"rows":       out.Len(),
		"covariates": len(covariates),
	}).Debug("Built feature table")

	return out, nil
}

func (b *Builder) series(entity string, covariates []string, obs []observation) (Series, error) {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].year < obs[j].year })

	s := Series{
		EntityID:     entity,
		YearColumn:   b.cfg.YearColumn,
		TargetColumn: b.cfg.TargetColumn,
		Covariates:   covariates,
		Rows:         make([]Row, len(obs)),
	}

	minYear := obs[0].year
	prior := make([]float64, 0, len(obs))

	for i, o := range obs {
		if i > 0 && o.year == obs[i-1].year {
			return Series{}, fmt.Errorf("%w: %s %d", ErrDuplicateYear, entity, o.year)
		}

		if s.Label == "" {
			s.Label = o.label
		}

		row := Row{
			Year:       o.year,
			Covariates: o.covariates,
			Target:     o.target,
		}
		Trend(&row, minYear)
		HistoryFeatures(prior).Apply(&row)

		s.Rows[i] = row
		prior = append(prior, o.target)
	}

	return s, nil
}

// covariateColumns returns the prefixed columns in table order. Text columns
// cannot be zero-filled meaningfully and are skipped.
func (b *Builder) covariateColumns(raw *table.Table) []string {
	var out []string

	for _, name := range raw.Columns() {
		if !b.cfg.IsCovariate(name) {
			continue
		}

		col, _ := raw.Column(name)
		if !col.Numeric {
			b.log.WithField("column", name).Warn("Skipping non-numeric covariate column")
			continue
		}

		out = append(out, name)
	}

	return out
}

func zeroFill(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
