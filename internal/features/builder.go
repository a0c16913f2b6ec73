package features

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/colormap"
	"github.com/sells-group/clickmap/internal/model"
)

// Options controls feature generation.
type Options struct {
	Caption     string
	Normalize   bool
	DateColumn  string   // defaults to the dataset's date column
	ValueColumn string   // defaults to the dataset's value column
	Colors      []string // defaults to colormap.DefaultColors
}

// Result is the output of Build.
type Result struct {
	Features []Feature
	Scale    *colormap.Linear
	Dataset  *model.Dataset // the (possibly normalized) copy the features came from
}

// Builder produces map features from a geocoded dataset.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build creates one feature per row, in row order. Rows without coordinates
// still produce a feature. The color scale spans every row's value.
func (b *Builder) Build(ds *model.Dataset, opts Options) (*Result, error) {
	if ds == nil {
		return nil, eris.New("features: nil dataset")
	}
	dateCol := opts.DateColumn
	if dateCol == "" {
		dateCol = ds.Schema.DateColumn
	}
	valueCol := opts.ValueColumn
	if valueCol == "" {
		valueCol = ds.Schema.ValueColumn
	}
	colors := opts.Colors
	if len(colors) == 0 {
		colors = colormap.DefaultColors
	}

	work := ds
	if opts.Normalize {
		var err error
		work, err = Normalize(ds, valueCol)
		if err != nil {
			return nil, err
		}
	}

	values := make([]float64, work.Len())
	for i := range work.Rows {
		v, err := work.Number(i, valueCol)
		if err != nil {
			return nil, eris.Wrap(err, "features: read value")
		}
		values[i] = v
	}

	scale, err := colormap.FromValues(values, opts.Caption, colors...)
	if err != nil {
		return nil, eris.Wrap(err, "features: build color scale")
	}

	out := make([]Feature, work.Len())
	for i, row := range work.Rows {
		ts, err := work.Time(i, dateCol)
		if err != nil {
			return nil, eris.Wrap(err, "features: read date")
		}
		out[i] = Feature{
			Longitude: row.Longitude,
			Latitude:  row.Latitude,
			Time:      ts,
			Tooltip:   row.Location,
			Value:     values[i],
			Style: IconStyle{
				FillColor:   scale.At(values[i]),
				FillOpacity: DefaultFillOpacity,
				Stroke:      "true",
				Radius:      values[i],
			},
		}
	}

	zap.L().Debug("features: built",
		zap.Int("features", len(out)),
		zap.Float64("min", scale.Min),
		zap.Float64("max", scale.Max),
		zap.Bool("normalized", opts.Normalize),
	)
	return &Result{Features: out, Scale: scale, Dataset: work}, nil
}

// Normalize returns a copy of ds with column replaced by its z-score using
// the sample standard deviation, clamped below at 1. When the deviation is
// zero or undefined every value becomes 1.
func Normalize(ds *model.Dataset, column string) (*model.Dataset, error) {
	out := ds.Clone()
	values := make([]float64, out.Len())
	for i := range out.Rows {
		v, err := out.Number(i, column)
		if err != nil {
			return nil, eris.Wrap(err, "features: normalize")
		}
		values[i] = v
	}
	for i, z := range ZScores(values) {
		out.SetNumber(i, column, math.Max(z, 1))
	}
	return out, nil
}

// ZScores standardizes vs using the sample standard deviation (n-1). A zero
// or undefined deviation yields all ones.
func ZScores(vs []float64) []float64 {
	out := make([]float64, len(vs))
	mean, std := meanStd(vs)
	if std == 0 || math.IsNaN(std) {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, v := range vs {
		out[i] = (v - mean) / std
	}
	return out
}

func meanStd(vs []float64) (float64, float64) {
	n := float64(len(vs))
	if n < 2 {
		return 0, math.NaN()
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	mean := sum / n
	var ss float64
	for _, v := range vs {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
