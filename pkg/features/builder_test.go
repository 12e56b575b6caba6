package features

import (
	"bytes"
	"strings"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/lossforecast/pkg/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	var cfg Config
	require.NoError(t, defaults.Set(&cfg))
	require.NoError(t, cfg.Validate())

	return cfg
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return NewBuilder(log, testConfig(t))
}

func readTable(t *testing.T, csv string) *table.Table {
	t.Helper()

	tbl, err := table.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)

	return tbl
}

func TestHistoryFeatures(t *testing.T) {
	tests := []struct {
		name  string
		prior []float64
		want  History
	}{
		{
			name:  "no history",
			prior: nil,
			want:  History{},
		},
		{
			name:  "single prior value",
			prior: []float64{10},
			want:  History{Lag1: 10, Roll3Mean: 10, Roll5Mean: 10},
		},
		{
			name:  "partial windows",
			prior: []float64{10, 20},
			want:  History{Lag1: 20, Lag2: 10, Roll3Mean: 15, Roll5Mean: 15},
		},
		{
			name:  "full windows",
			prior: []float64{1, 2, 3, 4, 5, 6},
			want:  History{Lag1: 6, Lag2: 5, Lag3: 4, Roll3Mean: 5, Roll5Mean: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HistoryFeatures(tt.prior))
		})
	}
}

func TestBuild_CausalFeatures(t *testing.T) {
	raw := readTable(t, `Country_ID,Country_name,Year,Total losses,PEC_total,FEC_total
DE,Germany,2012,30,1,
DE,Germany,2010,10,1,5
DE,Germany,2011,20,1,5
DE,Germany,2013,40,,5
FR,France,2010,7,2,3
`)

	ft, err := testBuilder(t).Build(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"DE", "FR"}, ft.Entities())
	assert.Equal(t, []string{"PEC_total", "FEC_total"}, ft.Covariates)
	assert.Equal(t, 5, ft.Len())

	de, ok := ft.Entity("DE")
	require.True(t, ok)
	assert.Equal(t, "Germany", de.Label)
	require.Len(t, de.Rows, 4)

	years := make([]int, len(de.Rows))
	for i, r := range de.Rows {
		years[i] = r.Year
	}

	assert.Equal(t, []int{2010, 2011, 2012, 2013}, years, "rows sorted by year")

	first := de.Rows[0]
	assert.Zero(t, first.Lag1)
	assert.Zero(t, first.Roll3Mean)
	assert.Zero(t, first.YearCentered)

	second := de.Rows[1]
	assert.InDelta(t, 10.0, second.Lag1, 1e-12)
	assert.InDelta(t, 10.0, second.Roll3Mean, 1e-12, "rolling mean of one available value")
	assert.InDelta(t, 1.0, second.YearSquared, 1e-12)

	last := de.Rows[3]
	assert.InDelta(t, 30.0, last.Lag1, 1e-12)
	assert.InDelta(t, 20.0, last.Lag2, 1e-12)
	assert.InDelta(t, 10.0, last.Lag3, 1e-12)
	assert.InDelta(t, 20.0, last.Roll3Mean, 1e-12, "current target must not leak into the window")
	assert.InDelta(t, 3.0, last.YearCentered, 1e-12)
	assert.InDelta(t, 9.0, last.YearSquared, 1e-12)

	// Missing covariates are zero-filled
	assert.Equal(t, []float64{1, 0}, de.Rows[2].Covariates)
	assert.Equal(t, []float64{0, 5}, de.Rows[3].Covariates)
}

func TestBuild_ChangingCurrentTargetLeavesFeaturesUnchanged(t *testing.T) {
	base := `Country_ID,Year,Total losses,PEC_x
DE,2010,10,1
DE,2011,20,1
DE,2012,%s,1
`
	b := testBuilder(t)

	a, err := b.Build(readTable(t, strings.Replace(base, "%s", "30", 1)))
	require.NoError(t, err)

	c, err := b.Build(readTable(t, strings.Replace(base, "%s", "9000", 1)))
	require.NoError(t, err)

	sa, _ := a.Entity("DE")
	sc, _ := c.Entity("DE")

	cols := sa.Columns()
	assert.Equal(t, sa.Vector(&sa.Rows[2], cols), sc.Vector(&sc.Rows[2], cols))
}

func TestBuild_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		missing string
	}{
		{
			name:    "target missing",
			csv:     "Country_ID,Year\nDE,2010\n",
			missing: "Total losses",
		},
		{
			name:    "entity missing",
			csv:     "Year,Total losses\n2010,1\n",
			missing: "Country_ID",
		},
		{
			name:    "year missing",
			csv:     "Country_ID,Total losses\nDE,1\n",
			missing: "Year",
		},
		{
			name:    "target reported before entity",
			csv:     "Year\n2010\n",
			missing: "Total losses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testBuilder(t).Build(readTable(t, tt.csv))
			require.ErrorIs(t, err, ErrSchema)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.missing, schemaErr.Column)
		})
	}
}

func TestBuild_DuplicateYear(t *testing.T) {
	_, err := testBuilder(t).Build(readTable(t, "Country_ID,Year,Total losses\nDE,2010,1\nDE,2010,2\n"))
	require.ErrorIs(t, err, ErrDuplicateYear)
}

func TestBuild_SkipsTextCovariates(t *testing.T) {
	ft, err := testBuilder(t).Build(readTable(t, "Country_ID,Year,Total losses,PEC_note,FEC_total\nDE,2010,1,n/a,2\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"FEC_total"}, ft.Covariates)
	assert.NotContains(t, ft.Columns(), "PEC_note")
}

func TestBuild_WithoutLabelOrCovariates(t *testing.T) {
	ft, err := testBuilder(t).Build(readTable(t, "Country_ID,Year,Total losses\nAT,2010,1\nAT,2011,2\n"))
	require.NoError(t, err)

	assert.False(t, ft.HasLabel)
	assert.Empty(t, ft.Covariates)
	assert.Equal(t, "AT", ft.Label("AT"))
	assert.Len(t, ft.Columns(), 8)
}

func TestBuild_Deterministic(t *testing.T) {
	csv := `Country_ID,Country_name,Year,Total losses,PEC_total
FR,France,2011,8,2
DE,Germany,2011,20,1
DE,Germany,2010,10,1
FR,France,2010,7,2
`
	b := testBuilder(t)

	var outputs []string

	for range 2 {
		ft, err := b.Build(readTable(t, csv))
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, ft.ToTable().WriteCSV(&buf))
		outputs = append(outputs, buf.String())
	}

	assert.Equal(t, outputs[0], outputs[1])
}

func TestParse_RoundTrip(t *testing.T) {
	csv := `Country_ID,Country_name,Year,Total losses,PEC_total
DE,Germany,2010,10,1
DE,Germany,2011,20,1.5
DE,Germany,2012,35,2
FR,France,2010,7,2
`
	cfg := testConfig(t)

	ft, err := testBuilder(t).Build(readTable(t, csv))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ft.ToTable().WriteCSV(&buf))

	raw, err := table.ReadCSV(&buf)
	require.NoError(t, err)

	back, err := Parse(raw, cfg)
	require.NoError(t, err)

	assert.Equal(t, ft.Entities(), back.Entities())
	assert.Equal(t, ft.Columns(), back.Columns())
	assert.Equal(t, ft.Series(), back.Series())
}

func TestParse_RequiresEngineeredColumns(t *testing.T) {
	_, err := Parse(readTable(t, "Country_ID,Year,Total losses\nDE,2010,1\n"), testConfig(t))
	require.ErrorIs(t, err, ErrSchema)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, ColumnYearCentered, schemaErr.Column)
}
