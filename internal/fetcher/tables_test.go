package fetcher

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX writes a workbook with one sheet per map entry.
func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, cells := range rows {
			row := sheet.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "clicks.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadDelimited_TSV(t *testing.T) {
	in := "date\tcountry\tclicks\n2022-10-01\t Germany \t10\n\n2022-10-02\tChile\t3\n"
	tbl, err := ReadDelimited(context.Background(), strings.NewReader(in), '\t')
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "country", "clicks"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Germany", tbl.Rows[0][1])
}

func TestReadDelimited_BOMAndQuotedComma(t *testing.T) {
	in := "\xef\xbb\xbfdate,country,clicks\n2022-10-01,\"Korea, Republic of\",12\n"
	tbl, err := ReadDelimited(context.Background(), strings.NewReader(in), ',')
	require.NoError(t, err)
	assert.Equal(t, "date", tbl.Header[0])
	assert.Equal(t, "Korea, Republic of", tbl.Rows[0][1])
}

func TestReadDelimited_RaggedRows(t *testing.T) {
	in := "date,country,clicks\n2022-10-01,Peru\n"
	tbl, err := ReadDelimited(context.Background(), strings.NewReader(in), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-10-01", "Peru"}, tbl.Rows[0])
}

func TestReadDelimited_Empty(t *testing.T) {
	_, err := ReadDelimited(context.Background(), strings.NewReader("\n\n"), ',')
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header")
}

func TestReadDelimited_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadDelimited(ctx, strings.NewReader("a,b\n1,2\n"), ',')
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadWorkbook_FirstSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Clicks": {
			{"date", "country", "clicks"},
			{"", "", ""},
			{"2022-10-01", "Japan", "9"},
		},
	})

	tbl, err := ReadWorkbook(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "country", "clicks"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Japan", tbl.Rows[0][1])
}

func TestReadWorkbook_NamedSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Clicks": {{"date", "country", "clicks"}, {"2022-10-01", "Japan", "9"}},
	})

	tbl, err := ReadWorkbook(path, "Clicks")
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)

	_, err = ReadWorkbook(path, "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sheet")
}

func TestReadWorkbook_Errors(t *testing.T) {
	_, err := ReadWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	assert.Error(t, err)

	path := createTestXLSX(t, map[string][][]string{"Empty": {}})
	_, err = ReadWorkbook(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestReadRecords_Array(t *testing.T) {
	in := `[{"date":"2022-10-01","country":"Chile","clicks":7},{"date":"2022-10-02","country":"Peru","clicks":2.5}]`
	recs, err := ReadRecords(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, json.Number("7"), recs[0]["clicks"])
	assert.Equal(t, json.Number("2.5"), recs[1]["clicks"])
}

func TestReadRecords_ResponseEnvelope(t *testing.T) {
	in := `{"meta":{"total":1},"data":[{"date":"2022-10-01","country":"Chile","clicks":7}]}`
	recs, err := ReadRecords(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Chile", recs[0]["country"])
}

func TestReadRecords_EmptyArray(t *testing.T) {
	recs, err := ReadRecords(context.Background(), strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadRecords_Errors(t *testing.T) {
	cases := map[string]string{
		"scalar":         `42`,
		"no data":        `{"meta":{}}`,
		"data not array": `{"data":{}}`,
		"bad element":    `[{"date":}]`,
		"empty input":    ``,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadRecords(context.Background(), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadRecords_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadRecords(ctx, strings.NewReader(`[{"a":1}]`))
	assert.ErrorIs(t, err, context.Canceled)
}
