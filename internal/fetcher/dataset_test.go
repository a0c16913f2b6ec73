package fetcher

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/pkg/windsor"
)

func TestFromRecords_FieldOrder(t *testing.T) {
	records := []windsor.Record{
		{"date": "2022-10-01", "country": "Germany", "campaign": "brand", "clicks": json.Number("12")},
		{"date": "2022-10-02", "country": "France", "campaign": nil, "clicks": 3.0},
	}

	ds, err := FromRecords(records, []string{"date", "country", "campaign", "clicks"}, model.DefaultSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "country", "campaign", "clicks"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "Germany", ds.Rows[0].Location)
	assert.InDelta(t, 12, ds.Rows[0].Value, 0)
	assert.Equal(t, "brand", ds.Rows[0].Extra["campaign"])
	assert.Equal(t, "", ds.Rows[1].Extra["campaign"])
	assert.Equal(t, time.Date(2022, 10, 2, 0, 0, 0, 0, time.UTC), ds.Rows[1].Date)
	assert.False(t, ds.Rows[0].HasCoordinates())
}

func TestFromRecords_NoFieldsUsesSortedKeys(t *testing.T) {
	records := []windsor.Record{{"date": "2022-10-01", "country": "Spain", "clicks": 1.0}}

	ds, err := FromRecords(records, nil, model.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"clicks", "country", "date"}, ds.Columns)
}

func TestFromTable_MissingRequiredColumn(t *testing.T) {
	_, err := FromTable([]string{"date", "clicks"}, [][]string{{"2022-10-01", "1"}}, model.DefaultSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "country"`)
}

func TestFromTable_BadValue(t *testing.T) {
	_, err := FromTable([]string{"date", "country", "clicks"}, [][]string{{"2022-10-01", "Peru", "many"}}, model.DefaultSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestFromTable_ParsesCoordinates(t *testing.T) {
	header := []string{"date", "country", "clicks", "latitude", "longitude"}
	rows := [][]string{
		{"2022-10-01", "Germany", "5", "51.08", "10.42"},
		{"2022-10-01", "Atlantis", "2", "", ""},
	}

	ds, err := FromTable(header, rows, model.DefaultSchema())
	require.NoError(t, err)
	assert.True(t, HasCoordinates(ds))
	assert.InDelta(t, 51.08, ds.Rows[0].Latitude, 0.0001)
	assert.InDelta(t, 10.42, ds.Rows[0].Longitude, 0.0001)
	assert.True(t, math.IsNaN(ds.Rows[1].Latitude))
	assert.Nil(t, ds.Rows[0].Extra)
}

func TestLoadDataset_TSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp.tsv")
	content := "date\tcountry\tsource\tclicks\n2022-10-01\tGermany\tgoogle\t10\n2022-10-02\tFrance\tgoogle\t4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "France", ds.Rows[1].Location)
	assert.Equal(t, "google", ds.Rows[1].Extra["source"])
	assert.False(t, HasCoordinates(ds))
}

func TestLoadDataset_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.csv")
	content := "date,country,clicks\n2022-10-01,\"Korea, Republic of\",\"1,200\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "Korea, Republic of", ds.Rows[0].Location)
	assert.InDelta(t, 1200, ds.Rows[0].Value, 0)
}

func TestLoadDataset_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.json")
	content := `[{"date":"2022-10-01","country":"Chile","clicks":7},{"date":"2022-10-03","country":"Peru","clicks":2}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "Peru", ds.Rows[1].Location)
	assert.InDelta(t, 7, ds.Rows[0].Value, 0)
}

func TestLoadDataset_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"date", "country", "clicks"},
			{"2022-10-01", "Japan", "9"},
		},
	})

	ds, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "Japan", ds.Rows[0].Location)
}

func TestLoadDataset_UnsupportedExtension(t *testing.T) {
	_, err := LoadDataset(context.Background(), "clicks.parquet", model.DefaultSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestWriteDataset_RoundTripsCoordinates(t *testing.T) {
	day := time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)
	resolved := model.NewRow(day, "Germany", 10)
	resolved.Latitude, resolved.Longitude = 51.08, 10.42
	ds := &model.Dataset{
		Columns: []string{"date", "country", "clicks"},
		Schema:  model.DefaultSchema(),
		Rows:    []model.Row{resolved, model.NewRow(day, "Atlantis", 1)},
	}

	path := filepath.Join(t.TempDir(), "enriched.tsv")
	require.NoError(t, WriteDataset(path, ds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"date\tcountry\tclicks\tlatitude\tlongitude\n"+
			"2022-10-01\tGermany\t10\t51.08\t10.42\n"+
			"2022-10-01\tAtlantis\t1\t\t\n",
		string(data))

	loaded, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	assert.True(t, HasCoordinates(loaded))
	assert.True(t, loaded.Rows[0].HasCoordinates())
	assert.False(t, loaded.Rows[1].HasCoordinates())
}

func TestWriteDataset_KeepsTimeOfDay(t *testing.T) {
	morning := time.Date(2022, 10, 1, 9, 30, 0, 0, time.UTC)
	evening := time.Date(2022, 10, 1, 18, 0, 0, 0, time.UTC)
	ds := &model.Dataset{
		Columns: []string{"date", "country", "clicks"},
		Schema:  model.DefaultSchema(),
		Rows:    []model.Row{model.NewRow(evening, "Peru", 2), model.NewRow(morning, "Chile", 3)},
	}

	path := filepath.Join(t.TempDir(), "hourly.tsv")
	require.NoError(t, WriteDataset(path, ds))

	loaded, err := LoadDataset(context.Background(), path, model.DefaultSchema())
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 2)
	assert.True(t, evening.Equal(loaded.Rows[0].Date))
	assert.True(t, morning.Equal(loaded.Rows[1].Date))
}
