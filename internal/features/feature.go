// Package features turns a geocoded dataset into time-stamped map features.
package features

import (
	"math"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// TimeLayout is the feature timestamp format understood by the map player.
const TimeLayout = "2006-01-02T15:04:05"

// Default marker styling.
const (
	DefaultFillOpacity = 0.4
	DefaultIcon        = "circle"
)

// IconStyle is the per-marker style block.
type IconStyle struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Stroke      string  `json:"stroke"`
	Radius      float64 `json:"radius"`
}

// Feature is one timestamped point on the map. Unresolved rows carry NaN
// coordinates.
type Feature struct {
	Longitude float64
	Latitude  float64
	Time      time.Time
	Tooltip   string
	Value     float64
	Style     IconStyle
}

// HasCoordinates reports whether the feature can be placed on the map.
func (f Feature) HasCoordinates() bool {
	return !math.IsNaN(f.Latitude) && !math.IsNaN(f.Longitude) &&
		!math.IsInf(f.Latitude, 0) && !math.IsInf(f.Longitude, 0)
}

// TimeString formats the feature time in UTC.
func (f Feature) TimeString() string {
	return f.Time.UTC().Format(TimeLayout)
}

// GeoJSON converts the feature to a GeoJSON point feature.
func (f Feature) GeoJSON() *geojson.Feature {
	return &geojson.Feature{
		Geometry: geom.NewPointFlat(geom.XY, []float64{f.Longitude, f.Latitude}),
		Properties: map[string]any{
			"time":      f.TimeString(),
			"style":     map[string]string{"color": ""},
			"icon":      DefaultIcon,
			"tooltip":   f.Tooltip,
			"iconstyle": f.Style,
		},
	}
}

// Collection converts the placeable features to a FeatureCollection and
// reports how many were skipped for missing coordinates.
func Collection(fs []Feature) (*geojson.FeatureCollection, int) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fs))}
	skipped := 0
	for _, f := range fs {
		if !f.HasCoordinates() {
			skipped++
			continue
		}
		fc.Features = append(fc.Features, f.GeoJSON())
	}
	return fc, skipped
}
