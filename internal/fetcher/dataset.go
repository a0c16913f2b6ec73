package fetcher

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clickmap/internal/fsutil"
	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/pkg/windsor"
)

// FromRecords converts API records into a dataset. Columns are taken from
// fields in request order; when fields is empty the keys of the first record
// are used in sorted order.
func FromRecords(records []windsor.Record, fields []string, schema model.Schema) (*model.Dataset, error) {
	header := fields
	if len(header) == 0 && len(records) > 0 {
		for k := range records[0] {
			header = append(header, k)
		}
		sort.Strings(header)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = cellString(rec[col])
		}
		rows = append(rows, row)
	}
	return FromTable(header, rows, schema)
}

// FromTable builds a dataset from a header and string rows. The schema's
// date, location and value columns must be present. Latitude and longitude
// columns, when present, are parsed; empty cells become NaN.
func FromTable(header []string, rows [][]string, schema model.Schema) (*model.Dataset, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	for _, col := range []string{schema.DateColumn, schema.LocationColumn, schema.ValueColumn} {
		if _, ok := index[col]; !ok {
			return nil, eris.Errorf("dataset: missing required column %q", col)
		}
	}

	ds := &model.Dataset{Schema: schema}
	for _, h := range header {
		ds.AddColumn(strings.TrimSpace(h))
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ds.Rows = make([]model.Row, 0, len(rows))
	for n, raw := range rows {
		date, err := model.ParseDate(cell(raw, schema.DateColumn))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: row %d", n+1)
		}
		value, err := model.ParseNumber(cell(raw, schema.ValueColumn))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: row %d", n+1)
		}

		row := model.NewRow(date, cell(raw, schema.LocationColumn), value)
		if lat, ok := parseCoord(cell(raw, model.ColumnLatitude)); ok {
			row.Latitude = lat
		}
		if lon, ok := parseCoord(cell(raw, model.ColumnLongitude)); ok {
			row.Longitude = lon
		}

		for _, h := range ds.Columns {
			switch h {
			case schema.DateColumn, schema.LocationColumn, schema.ValueColumn,
				model.ColumnLatitude, model.ColumnLongitude:
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[h] = cell(raw, h)
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// HasCoordinates reports whether the dataset already carries latitude and
// longitude columns, in which case geocoding can be skipped.
func HasCoordinates(ds *model.Dataset) bool {
	return ds.HasColumn(model.ColumnLatitude) && ds.HasColumn(model.ColumnLongitude)
}

// LoadDataset reads a local dataset file. The format is chosen by extension:
// .csv (comma), .tsv or .txt (tab), .xlsx (first sheet), .json (array of
// objects or a saved connectors response).
func LoadDataset(ctx context.Context, path string, schema model.Schema) (*model.Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".xlsx":
		t, err := ReadWorkbook(path, "")
		if err != nil {
			return nil, err
		}
		return FromTable(t.Header, t.Rows, schema)

	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: open json")
		}
		defer f.Close() //nolint:errcheck

		records, err := ReadRecords(ctx, f)
		if err != nil {
			return nil, err
		}
		return FromRecords(records, nil, schema)

	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: open table")
		}
		defer f.Close() //nolint:errcheck

		comma := '\t'
		if ext == ".csv" {
			comma = ','
		}
		t, err := ReadDelimited(ctx, f, comma)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s", path)
		}
		return FromTable(t.Header, t.Rows, schema)
	}

	return nil, eris.Errorf("dataset: unsupported file type %q", ext)
}

// WriteDataset writes the dataset as tab-separated values, including the
// latitude and longitude columns. Missing coordinates are written empty.
func WriteDataset(path string, ds *model.Dataset) error {
	out := ds.Clone()
	out.AddColumn(model.ColumnLatitude)
	out.AddColumn(model.ColumnLongitude)

	return fsutil.WriteAtomic(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		w.Comma = '\t'

		if err := w.Write(out.Columns); err != nil {
			return eris.Wrap(err, "dataset: write header")
		}
		record := make([]string, len(out.Columns))
		for i := range out.Rows {
			for j, col := range out.Columns {
				record[j] = out.Text(i, col)
			}
			if err := w.Write(record); err != nil {
				return eris.Wrapf(err, "dataset: write row %d", i)
			}
		}
		w.Flush()
		return eris.Wrap(w.Error(), "dataset: flush")
	})
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func parseCoord(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
