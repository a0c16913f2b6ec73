// Package geo attaches coordinates to dataset rows by geocoding their
// location labels.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/pkg/geocode"
)

// Miss records a label that could not be resolved. It is not fatal: rows
// carrying the label keep NaN coordinates.
type Miss struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

func (m *Miss) Error() string {
	return fmt.Sprintf("geocode miss for %q: %s", m.Label, m.Reason)
}

// Report summarizes one Resolve call.
type Report struct {
	Labels   int    `json:"labels"`
	Resolved int    `json:"resolved"`
	Misses   []Miss `json:"misses,omitempty"`
}

// Unresolved returns the labels that missed, in first-appearance order.
func (r *Report) Unresolved() []string {
	out := make([]string, len(r.Misses))
	for i, m := range r.Misses {
		out[i] = m.Label
	}
	return out
}

// Resolver geocodes the distinct labels of a dataset column.
type Resolver struct {
	client geocode.Client
}

// NewResolver creates a Resolver backed by client.
func NewResolver(client geocode.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve returns a copy of ds with latitude and longitude set on every row.
// Each distinct label in column is geocoded exactly once; the input dataset
// is left untouched. Row count and order are preserved.
func (r *Resolver) Resolve(ctx context.Context, ds *model.Dataset, column string) (*model.Dataset, *Report, error) {
	if ds == nil {
		return nil, nil, eris.New("geo: nil dataset")
	}
	if !ds.HasColumn(column) {
		return nil, nil, eris.Errorf("geo: dataset has no column %q", column)
	}

	log := zap.L().With(zap.String("column", column))
	labels := ds.Locations(column)
	report := &Report{Labels: len(labels)}

	type point struct{ lat, lon float64 }
	lookup := make(map[string]point, len(labels))

	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, nil, eris.Wrap(err, "geo: resolve")
		}

		p, miss, err := r.resolveOne(ctx, label)
		if err != nil {
			return nil, nil, err
		}
		if miss != nil {
			log.Debug("geo: label unresolved", zap.String("label", label), zap.String("reason", miss.Reason))
			report.Misses = append(report.Misses, *miss)
			continue
		}
		lookup[label] = point{lat: p.Latitude, lon: p.Longitude}
		report.Resolved++
	}

	out := ds.Clone()
	for i := range out.Rows {
		p, ok := lookup[out.Text(i, column)]
		if !ok {
			out.Rows[i].Latitude = math.NaN()
			out.Rows[i].Longitude = math.NaN()
			continue
		}
		out.Rows[i].Latitude = p.lat
		out.Rows[i].Longitude = p.lon
	}
	out.AddColumn(model.ColumnLatitude)
	out.AddColumn(model.ColumnLongitude)

	log.Info("geo: resolved locations",
		zap.Int("rows", out.Len()),
		zap.Int("labels", report.Labels),
		zap.Int("resolved", report.Resolved),
		zap.Int("misses", len(report.Misses)),
	)
	return out, report, nil
}

// resolveOne geocodes a single label. Provider failures become misses;
// only context cancellation is returned as an error.
func (r *Resolver) resolveOne(ctx context.Context, label string) (*geocode.Result, *Miss, error) {
	if label == "" {
		return nil, &Miss{Label: label, Reason: "empty label"}, nil
	}

	res, err := r.client.Geocode(ctx, label)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, eris.Wrapf(err, "geo: geocode %q", label)
		}
		return nil, &Miss{Label: label, Reason: err.Error()}, nil
	}
	if res == nil || !res.Matched {
		return nil, &Miss{Label: label, Reason: "no match"}, nil
	}
	return res, nil, nil
}
