package geocode

import (
	"context"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Coordinate is a fixed latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// overridesFile is the on-disk layout of an overrides file:
//
//	locations:
//	  "Korea, Republic of": {latitude: 35.9, longitude: 127.8}
type overridesFile struct {
	Locations map[string]Coordinate `yaml:"locations"`
}

// StaticProvider answers from a fixed label table. Labels are matched after
// normalization, so "germany" and "Germany " hit the same entry.
type StaticProvider struct {
	labels  map[string]string // normalized -> original label
	entries map[string]Coordinate
}

// NewStatic creates a provider from label→coordinate pairs.
func NewStatic(locations map[string]Coordinate) *StaticProvider {
	p := &StaticProvider{
		labels:  make(map[string]string, len(locations)),
		entries: make(map[string]Coordinate, len(locations)),
	}
	for label, c := range locations {
		key := NormalizeLabel(label)
		p.labels[key] = label
		p.entries[key] = c
	}
	return p
}

// LoadStatic reads a YAML overrides file.
func LoadStatic(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: read overrides %s", path)
	}
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "geocode: parse overrides %s", path)
	}
	return NewStatic(f.Locations), nil
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }

// Available implements Provider.
func (p *StaticProvider) Available() bool { return len(p.entries) > 0 }

// Geocode implements Provider.
func (p *StaticProvider) Geocode(_ context.Context, label string) (*Result, error) {
	c, ok := p.entries[NormalizeLabel(label)]
	if !ok {
		return &Result{Matched: false, Source: "static"}, nil
	}
	return &Result{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Source:    "static",
		Quality:   "override",
		Matched:   true,
	}, nil
}

// Labels returns the original labels in sorted order.
func (p *StaticProvider) Labels() []string {
	out := make([]string, 0, len(p.labels))
	for _, l := range p.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
