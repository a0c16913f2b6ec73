package features

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickmap/internal/colormap"
	"github.com/sells-group/clickmap/internal/model"
)

func geocodedDataset(rows ...model.Row) *model.Dataset {
	return &model.Dataset{
		Columns: []string{model.ColumnDate, model.ColumnCountry, model.ColumnClicks, model.ColumnLatitude, model.ColumnLongitude},
		Schema:  model.DefaultSchema(),
		Rows:    rows,
	}
}

func row(day int, country string, clicks, lat, lon float64) model.Row {
	r := model.NewRow(time.Date(2022, 10, day, 0, 0, 0, 0, time.UTC), country, clicks)
	r.Latitude, r.Longitude = lat, lon
	return r
}

func TestBuild_ThreeRowsOneUnresolved(t *testing.T) {
	ds := geocodedDataset(
		row(1, "Germany", 10, 51.08, 10.42),
		row(1, "Atlantis", 1, math.NaN(), math.NaN()),
		row(2, "Germany", 20, 51.08, 10.42),
	)

	res, err := NewBuilder().Build(ds, Options{Caption: "Clicks"})
	require.NoError(t, err)

	require.Len(t, res.Features, 3)
	assert.False(t, res.Features[1].HasCoordinates())
	assert.InDelta(t, 1.0, res.Scale.Min, 0, "scale includes the unresolved row")
	assert.InDelta(t, 20.0, res.Scale.Max, 0)
	assert.Equal(t, "Clicks", res.Scale.Caption)

	f := res.Features[0]
	assert.Equal(t, "Germany", f.Tooltip)
	assert.Equal(t, "2022-10-01T00:00:00", f.TimeString())
	assert.InDelta(t, 10.0, f.Style.Radius, 0)
	assert.InDelta(t, 0.4, f.Style.FillOpacity, 0)
	assert.Equal(t, "true", f.Style.Stroke)

	assert.Equal(t, "#b35549", res.Features[1].Style.FillColor)
	assert.Equal(t, "#1596ce", res.Features[2].Style.FillColor)
}

func TestBuild_FeatureCountMatchesRows(t *testing.T) {
	var rows []model.Row
	for i := 1; i <= 25; i++ {
		rows = append(rows, row(i, "Peru", float64(i), -9.2, -75.0))
	}
	res, err := NewBuilder().Build(geocodedDataset(rows...), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Features, 25)
	for i, f := range res.Features {
		assert.Equal(t, rows[i].Date, f.Time)
	}
}

func TestBuild_NormalizeLeavesInputUntouched(t *testing.T) {
	ds := geocodedDataset(
		row(1, "A", 1, 0, 0),
		row(2, "B", 2, 0, 0),
		row(3, "C", 3, 0, 0),
		row(4, "D", 100, 0, 0),
	)

	res, err := NewBuilder().Build(ds, Options{Normalize: true})
	require.NoError(t, err)

	assert.InDelta(t, 100.0, ds.Rows[3].Value, 0)
	for _, f := range res.Features {
		assert.GreaterOrEqual(t, f.Value, 1.0)
		assert.InDelta(t, f.Value, f.Style.Radius, 0)
	}
	assert.InDelta(t, 1.0, res.Scale.Min, 0)
	assert.InDelta(t, res.Dataset.Rows[3].Value, res.Scale.Max, 0)
}

func TestBuild_CustomColumns(t *testing.T) {
	r := row(1, "Chile", 5, -35.6, -71.5)
	r.Extra = map[string]string{"impressions": "42", "day": "2022-10-09"}
	ds := geocodedDataset(r)
	ds.Columns = append(ds.Columns, "impressions", "day")

	res, err := NewBuilder().Build(ds, Options{ValueColumn: "impressions", DateColumn: "day"})
	require.NoError(t, err)
	assert.InDelta(t, 42.0, res.Features[0].Value, 0)
	assert.Equal(t, "2022-10-09T00:00:00", res.Features[0].TimeString())
}

func TestBuild_BadValue(t *testing.T) {
	r := row(1, "Chile", 5, 0, 0)
	r.Extra = map[string]string{"impressions": "lots"}
	_, err := NewBuilder().Build(geocodedDataset(r), Options{ValueColumn: "impressions"})
	require.Error(t, err)
}

func TestBuild_NilDataset(t *testing.T) {
	_, err := NewBuilder().Build(nil, Options{})
	require.Error(t, err)
}

func TestZScores_MeanZeroStdOne(t *testing.T) {
	vs := []float64{3, 7, 7, 19, 24, 1, 0, 12}
	zs := ZScores(vs)

	mean, std := meanStd(zs)
	assert.InDelta(t, 0.0, mean, 1e-9)
	assert.InDelta(t, 1.0, std, 1e-9)
}

func TestZScores_Degenerate(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, ZScores([]float64{5, 5, 5}))
	assert.Equal(t, []float64{1}, ZScores([]float64{9}))
	assert.Empty(t, ZScores(nil))
}

func TestNormalize_ClampsBelowOne(t *testing.T) {
	ds := geocodedDataset(
		row(1, "A", 1, 0, 0),
		row(2, "B", 2, 0, 0),
		row(3, "C", 3, 0, 0),
		row(4, "D", 4, 0, 0),
		row(5, "E", 5, 0, 0),
	)
	out, err := Normalize(ds, model.ColumnClicks)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, out.Rows[i].Value, 0)
	}
	// (5-3)/sqrt(2.5)
	assert.InDelta(t, 1.2649, out.Rows[4].Value, 1e-4)
}

func TestFeature_GeoJSON(t *testing.T) {
	f := Feature{
		Longitude: 10.42,
		Latitude:  51.08,
		Time:      time.Date(2022, 10, 1, 0, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		Tooltip:   "Germany",
		Style:     IconStyle{FillColor: "#b35549", FillOpacity: 0.4, Stroke: "true", Radius: 3},
	}

	b, err := json.Marshal(f.GeoJSON())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Feature", got["type"])

	geometry := got["geometry"].(map[string]any)
	assert.Equal(t, "Point", geometry["type"])
	assert.Equal(t, []any{10.42, 51.08}, geometry["coordinates"])

	props := got["properties"].(map[string]any)
	assert.Equal(t, "2022-09-30T22:00:00", props["time"])
	assert.Equal(t, "circle", props["icon"])
	assert.Equal(t, "Germany", props["tooltip"])
	assert.Equal(t, map[string]any{"color": ""}, props["style"])
	iconstyle := props["iconstyle"].(map[string]any)
	assert.Equal(t, "#b35549", iconstyle["fillColor"])
	assert.Equal(t, "true", iconstyle["stroke"])
	assert.InDelta(t, 3.0, iconstyle["radius"], 0)
}

func TestCollection_SkipsNaN(t *testing.T) {
	fs := []Feature{
		{Longitude: 1, Latitude: 2, Time: time.Now()},
		{Longitude: math.NaN(), Latitude: math.NaN(), Time: time.Now()},
		{Longitude: 3, Latitude: math.Inf(1), Time: time.Now()},
	}
	fc, skipped := Collection(fs)
	assert.Len(t, fc.Features, 1)
	assert.Equal(t, 2, skipped)

	_, err := json.Marshal(fc)
	require.NoError(t, err)
}

func TestDefaultColorsUsed(t *testing.T) {
	res, err := NewBuilder().Build(geocodedDataset(row(1, "A", 1, 0, 0), row(1, "B", 2, 0, 0)), Options{})
	require.NoError(t, err)
	assert.Equal(t, colormap.DefaultColors, res.Scale.Colors)
}
