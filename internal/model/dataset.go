package model

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Well-known column names.
const (
	ColumnDate      = "date"
	ColumnCountry   = "country"
	ColumnClicks    = "clicks"
	ColumnLatitude  = "latitude"
	ColumnLongitude = "longitude"
)

// dateLayouts lists the accepted date encodings, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Schema maps the typed row fields to dataset column names.
type Schema struct {
	DateColumn     string `json:"date_column"`
	LocationColumn string `json:"location_column"`
	ValueColumn    string `json:"value_column"`
}

// DefaultSchema returns the schema of a Google Ads clicks export.
func DefaultSchema() Schema {
	return Schema{
		DateColumn:     ColumnDate,
		LocationColumn: ColumnCountry,
		ValueColumn:    ColumnClicks,
	}
}

// Row is one dataset record. Latitude and Longitude are NaN until resolved.
type Row struct {
	Date      time.Time
	Location  string
	Value     float64
	Latitude  float64
	Longitude float64
	Extra     map[string]string // passthrough columns
}

// NewRow returns a row with missing coordinates.
func NewRow(date time.Time, location string, value float64) Row {
	return Row{
		Date:      date,
		Location:  location,
		Value:     value,
		Latitude:  math.NaN(),
		Longitude: math.NaN(),
	}
}

// HasCoordinates reports whether both coordinates are finite.
func (r Row) HasCoordinates() bool {
	return !math.IsNaN(r.Latitude) && !math.IsNaN(r.Longitude) &&
		!math.IsInf(r.Latitude, 0) && !math.IsInf(r.Longitude, 0)
}

// Dataset is an ordered table of rows with a column schema.
type Dataset struct {
	Columns []string
	Schema  Schema
	Rows    []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether name is a column of the dataset.
func (d *Dataset) HasColumn(name string) bool {
	return name != "" && slices.Contains(d.Columns, name)
}

// AddColumn appends name to the column list if it is not already present.
func (d *Dataset) AddColumn(name string) {
	if !slices.Contains(d.Columns, name) {
		d.Columns = append(d.Columns, name)
	}
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns: slices.Clone(d.Columns),
		Schema:  d.Schema,
		Rows:    make([]Row, len(d.Rows)),
	}
	for i, r := range d.Rows {
		cp := r
		if r.Extra != nil {
			cp.Extra = make(map[string]string, len(r.Extra))
			for k, v := range r.Extra {
				cp.Extra[k] = v
			}
		}
		out.Rows[i] = cp
	}
	return out
}

// Text returns the string cell of row i in column.
func (d *Dataset) Text(i int, column string) string {
	r := d.Rows[i]
	switch column {
	case d.Schema.LocationColumn:
		return r.Location
	case d.Schema.DateColumn:
		return formatDate(r.Date)
	case d.Schema.ValueColumn:
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	case ColumnLatitude:
		return formatCoord(r.Latitude)
	case ColumnLongitude:
		return formatCoord(r.Longitude)
	}
	return r.Extra[column]
}

// formatDate keeps day-only dates short and writes anything with a time of
// day as RFC3339, which ParseDate reads back unchanged.
func formatDate(t time.Time) string {
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// Number returns the numeric cell of row i in column.
func (d *Dataset) Number(i int, column string) (float64, error) {
	if column == d.Schema.ValueColumn {
		return d.Rows[i].Value, nil
	}
	v, err := ParseNumber(d.Rows[i].Extra[column])
	if err != nil {
		return 0, eris.Wrapf(err, "dataset: row %d column %q", i, column)
	}
	return v, nil
}

// SetNumber overwrites the numeric cell of row i in column.
func (d *Dataset) SetNumber(i int, column string, v float64) {
	if column == d.Schema.ValueColumn {
		d.Rows[i].Value = v
		return
	}
	if d.Rows[i].Extra == nil {
		d.Rows[i].Extra = make(map[string]string)
	}
	d.Rows[i].Extra[column] = strconv.FormatFloat(v, 'f', -1, 64)
}

// Time returns the date cell of row i in column.
func (d *Dataset) Time(i int, column string) (time.Time, error) {
	if column == d.Schema.DateColumn {
		return d.Rows[i].Date, nil
	}
	t, err := ParseDate(d.Rows[i].Extra[column])
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "dataset: row %d column %q", i, column)
	}
	return t, nil
}

// Locations returns the distinct values of column in order of first appearance.
func (d *Dataset) Locations(column string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range d.Rows {
		label := d.Text(i, column)
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

// ParseDate parses a date cell in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized date %q", s)
}

// ParseNumber parses a numeric cell, tolerating thousands separators.
// An empty cell is zero.
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("not a number: %q", s)
	}
	return v, nil
}

func formatCoord(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
