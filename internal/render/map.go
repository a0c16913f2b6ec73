// Package render writes a time-animated Leaflet map of click features to a
// standalone HTML document.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/clickmap/internal/colormap"
)

//go:embed templates/map.html.tmpl
var templates embed.FS

// Defaults for the base map and the time player.
const (
	DefaultTiles       = "https://{s}.basemaps.cartocdn.com/dark_nolabels/{z}/{x}/{y}{r}.png"
	DefaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`
	DefaultPeriod      = "P1D"
	DefaultDuration    = "P1D"
)

// Options configures the base map and the time player.
type Options struct {
	Title        string
	Tiles        string
	Attribution  string
	CenterLat    float64
	CenterLon    float64
	Zoom         float64
	Period       string
	Duration     string
	TransitionMS int
	NoAutoPlay   bool // leave the player paused on load
	NoLoop       bool // stop at the last time step
	LegendTicks  int
	LegendWidth  int
}

// DefaultOptions returns the dark world map centered on (0, 30).
func DefaultOptions() Options {
	return Options{
		Title:        "Click map",
		Tiles:        DefaultTiles,
		Attribution:  DefaultAttribution,
		CenterLat:    0,
		CenterLon:    30,
		Zoom:         1.5,
		Period:       DefaultPeriod,
		Duration:     DefaultDuration,
		TransitionMS: 1000,
		LegendTicks:  6,
		LegendWidth:  450,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.Tiles == "" {
		o.Tiles = d.Tiles
	}
	if o.Attribution == "" {
		o.Attribution = d.Attribution
	}
	if o.CenterLat == 0 && o.CenterLon == 0 {
		o.CenterLat, o.CenterLon = d.CenterLat, d.CenterLon
	}
	if o.Zoom <= 0 {
		o.Zoom = d.Zoom
	}
	if o.Period == "" {
		o.Period = d.Period
	}
	if o.Duration == "" {
		o.Duration = d.Duration
	}
	if o.TransitionMS <= 0 {
		o.TransitionMS = d.TransitionMS
	}
	if o.LegendTicks <= 0 {
		o.LegendTicks = d.LegendTicks
	}
	if o.LegendWidth <= 0 {
		o.LegendWidth = d.LegendWidth
	}
	return o
}

// Tick is a labelled legend position.
type Tick struct {
	X     float64
	Label string
}

// Legend is the color bar drawn in the corner of the map.
type Legend struct {
	Caption  string
	Width    int
	Pad      float64
	BarWidth float64
	Stops    []colormap.Stop
	Ticks    []Tick
}

const legendPad = 15

func newLegend(scale *colormap.Linear, width, ticks int) Legend {
	bar := float64(width - 2*legendPad)
	l := Legend{
		Caption:  scale.Caption,
		Width:    width,
		Pad:      legendPad,
		BarWidth: bar,
		Stops:    scale.Stops(),
	}
	span := scale.Max - scale.Min
	for _, v := range scale.Ticks(ticks) {
		x := float64(legendPad)
		if span > 0 {
			x += (v - scale.Min) / span * bar
		}
		l.Ticks = append(l.Ticks, Tick{X: x, Label: colormap.FormatTick(v)})
	}
	return l
}

// Map is an in-memory map document.
type Map struct {
	Options    Options
	Collection *geojson.FeatureCollection
	Legend     Legend
	Skipped    int    // features dropped for missing coordinates
	Path       string // set once written to disk

	tmpl *template.Template
}

type mapView struct {
	Options      Options
	Legend       Legend
	FeaturesJSON template.JS
}

// Features returns the number of features placed on the map.
func (m *Map) Features() int {
	return len(m.Collection.Features)
}

// WriteTo renders the HTML document to w.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	payload, err := json.Marshal(m.Collection)
	if err != nil {
		return 0, &Error{Op: "encode", Err: eris.Wrap(err, "marshal features")}
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, mapView{
		Options:      m.Options,
		Legend:       m.Legend,
		FeaturesJSON: template.JS(payload), //nolint:gosec // marshalled by encoding/json
	}); err != nil {
		return 0, &Error{Op: "template", Err: err}
	}
	return buf.WriteTo(w)
}
