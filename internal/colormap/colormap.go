// Package colormap maps numeric values onto a linear multi-stop color gradient.
package colormap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultColors is the gradient used for click maps, low to high.
var DefaultColors = []string{"#b35549", "#a6ac24", "#1da976", "#1596ce"}

type rgb struct{ r, g, b float64 }

// Linear is a piecewise-linear color scale over [Min, Max] with evenly
// spaced color stops.
type Linear struct {
	Min     float64
	Max     float64
	Colors  []string
	Caption string

	stops []rgb
}

// Stop is one gradient stop, with Offset in [0, 1].
type Stop struct {
	Offset float64
	Color  string
}

// NewLinear builds a scale from min to max. At least one color is required.
func NewLinear(min, max float64, caption string, colors ...string) (*Linear, error) {
	if len(colors) == 0 {
		return nil, eris.New("colormap: no colors")
	}
	if math.IsNaN(min) || math.IsNaN(max) {
		return nil, eris.New("colormap: NaN bound")
	}
	if min > max {
		min, max = max, min
	}

	stops := make([]rgb, len(colors))
	normalized := make([]string, len(colors))
	for i, c := range colors {
		v, err := parseHex(c)
		if err != nil {
			return nil, err
		}
		stops[i] = v
		normalized[i] = v.hex()
	}

	return &Linear{Min: min, Max: max, Colors: normalized, Caption: caption, stops: stops}, nil
}

// FromValues builds a scale spanning the finite values in vs. An empty or
// all-NaN input yields a [0, 0] scale.
func FromValues(vs []float64, caption string, colors ...string) (*Linear, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	return NewLinear(lo, hi, caption, colors...)
}

// At returns the color for v as #rrggbb. Values outside the range clamp to
// the end colors. A degenerate range or NaN returns the first color.
func (l *Linear) At(v float64) string {
	if len(l.stops) == 1 || l.Max == l.Min || math.IsNaN(v) {
		return l.stops[0].hex()
	}

	t := (v - l.Min) / (l.Max - l.Min)
	switch {
	case t <= 0:
		return l.stops[0].hex()
	case t >= 1:
		return l.stops[len(l.stops)-1].hex()
	}

	segments := float64(len(l.stops) - 1)
	pos := t * segments
	i := int(pos)
	if i >= len(l.stops)-1 {
		i = len(l.stops) - 2
	}
	frac := pos - float64(i)
	a, b := l.stops[i], l.stops[i+1]
	return rgb{
		r: a.r + (b.r-a.r)*frac,
		g: a.g + (b.g-a.g)*frac,
		b: a.b + (b.b-a.b)*frac,
	}.hex()
}

// Stops returns the gradient stops at evenly spaced offsets.
func (l *Linear) Stops() []Stop {
	out := make([]Stop, len(l.Colors))
	for i, c := range l.Colors {
		off := 0.0
		if len(l.Colors) > 1 {
			off = float64(i) / float64(len(l.Colors)-1)
		}
		out[i] = Stop{Offset: off, Color: c}
	}
	return out
}

// Ticks returns n evenly spaced values from Min to Max inclusive.
func (l *Linear) Ticks(n int) []float64 {
	if n <= 1 || l.Max == l.Min {
		return []float64{l.Min}
	}
	out := make([]float64, n)
	step := (l.Max - l.Min) / float64(n-1)
	for i := range out {
		out[i] = l.Min + step*float64(i)
	}
	out[n-1] = l.Max
	return out
}

// FormatTick renders a tick value compactly for the legend.
func FormatTick(v float64) string {
	if math.Abs(v) >= 100 || v == math.Trunc(v) {
		return strconv.FormatFloat(math.Round(v), 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func parseHex(s string) (rgb, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return rgb{}, eris.Errorf("colormap: invalid color %q", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return rgb{}, eris.Errorf("colormap: invalid color %q", s)
	}
	return rgb{r: float64(n >> 16 & 0xff), g: float64(n >> 8 & 0xff), b: float64(n & 0xff)}, nil
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", clampByte(c.r), clampByte(c.g), clampByte(c.b))
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
