// Package fetcher loads click datasets from the Windsor.ai API response or
// from local CSV, TSV, XLSX and JSON exports.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/clickmap/pkg/windsor"
)

// Table is a header row plus data rows, all cells as text.
type Table struct {
	Header []string
	Rows   [][]string
}

const utf8BOM = "\xef\xbb\xbf"

// ReadDelimited parses comma- or tab-separated text. Cells are trimmed and
// blank lines dropped; rows may be ragged.
func ReadDelimited(ctx context.Context, r io.Reader, comma rune) (*Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var t Table
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "table: read cancelled")
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "table: read line %d", line)
		}
		if blank(rec) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if t.Header == nil {
		return nil, eris.New("table: no header row")
	}
	return &t, nil
}

// ReadWorkbook reads the first sheet of an .xlsx file, or the sheet named
// sheet when set.
func ReadWorkbook(path, sheet string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "table: open workbook %s", path)
	}

	var sh *xlsx.Sheet
	switch {
	case sheet != "":
		var ok bool
		if sh, ok = f.Sheet[sheet]; !ok {
			return nil, eris.Errorf("table: workbook has no sheet %q", sheet)
		}
	case len(f.Sheets) > 0:
		sh = f.Sheets[0]
	default:
		return nil, eris.New("table: workbook has no sheets")
	}

	var t Table
	for _, row := range sh.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = strings.TrimSpace(c.String())
		}
		if blank(cells) {
			continue
		}
		if t.Header == nil {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return nil, eris.Errorf("table: sheet %q is empty", sh.Name)
	}
	return &t, nil
}

// ReadRecords decodes a JSON export: either a bare array of objects or a
// saved connectors response with the rows under "data". Numbers keep their
// original text.
func ReadRecords(ctx context.Context, r io.Reader) ([]windsor.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "records: read opening token")
	}
	switch tok {
	case json.Delim('['):
		return decodeRecordArray(ctx, dec)
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, eris.Wrap(err, "records: read key")
			}
			if key, _ := keyTok.(string); key == "data" {
				open, err := dec.Token()
				if err != nil || open != json.Delim('[') {
					return nil, eris.New(`records: "data" is not an array`)
				}
				return decodeRecordArray(ctx, dec)
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, eris.Wrap(err, "records: skip value")
			}
		}
		return nil, eris.New(`records: object has no "data" array`)
	default:
		return nil, eris.Errorf("records: expected array or object, got %v", tok)
	}
}

// decodeRecordArray reads elements after the opening bracket has been consumed.
func decodeRecordArray(ctx context.Context, dec *json.Decoder) ([]windsor.Record, error) {
	var out []windsor.Record
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "records: decode cancelled")
		}
		var rec windsor.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, eris.Wrapf(err, "records: decode element %d", len(out))
		}
		out = append(out, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "records: read closing token")
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
