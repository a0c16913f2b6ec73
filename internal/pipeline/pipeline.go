// Package pipeline runs the click map phases end to end: fetch, geocode,
// render, capture and publish.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/capture"
	"github.com/sells-group/clickmap/internal/colormap"
	"github.com/sells-group/clickmap/internal/features"
	"github.com/sells-group/clickmap/internal/fetcher"
	"github.com/sells-group/clickmap/internal/geo"
	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/internal/render"
	"github.com/sells-group/clickmap/internal/store"
	"github.com/sells-group/clickmap/pkg/windsor"
)

// Phase names, in execution order.
const (
	PhaseFetch   = "1_fetch"
	PhaseGeocode = "2_geocode"
	PhaseRender  = "3_render"
	PhaseCapture = "4_capture"
	PhasePublish = "5_publish"
)

// LocationResolver attaches coordinates to a dataset.
type LocationResolver interface {
	Resolve(ctx context.Context, ds *model.Dataset, column string) (*model.Dataset, *geo.Report, error)
}

// FeatureBuilder turns a geocoded dataset into map features.
type FeatureBuilder interface {
	Build(ds *model.Dataset, opts features.Options) (*features.Result, error)
}

// MapRenderer writes the map document.
type MapRenderer interface {
	Render(fs []features.Feature, scale *colormap.Linear, htmlPath string) (*render.Map, error)
}

// GIFConverter screenshots the map and encodes the animation.
type GIFConverter interface {
	Convert(ctx context.Context, htmlPath, gifPath string) (*capture.Result, error)
}

// Uploader publishes finished artifacts.
type Uploader interface {
	Upload(ctx context.Context, files ...string) ([]string, error)
}

// Deps are the collaborators of a Pipeline. Converter and Publisher are
// optional; their phases are skipped when nil.
type Deps struct {
	Store     store.Store
	Windsor   windsor.Client
	Resolver  LocationResolver
	Builder   FeatureBuilder
	Renderer  MapRenderer
	Converter GIFConverter
	Publisher Uploader
}

// Pipeline orchestrates one map run.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Output is everything a run produced.
type Output struct {
	RunID   string
	Result  *model.RunResult
	Dataset *model.Dataset
	Map     *render.Map
}

// Run records a new run for params and executes every phase. A failing
// phase aborts the run and marks it failed; unresolved locations do not.
func (p *Pipeline) Run(ctx context.Context, params model.RunParams) (*Output, error) {
	run, err := p.Start(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, run)
}

// Start records a queued run for params without executing it, so callers
// can hand out the run ID before the work begins.
func (p *Pipeline) Start(ctx context.Context, params model.RunParams) (*model.Run, error) {
	if params.RequestedAt.IsZero() {
		params.RequestedAt = time.Now().UTC()
	}
	run, err := p.deps.Store.CreateRun(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

// Execute runs every phase for a run created by Start, using run.Params.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) (*Output, error) {
	params := run.Params
	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("html", params.HTMLPath),
		zap.String("gif", params.GIFPath),
	)
	log.Info("pipeline: starting run")

	out := &Output{RunID: run.ID}
	result := &model.RunResult{HTMLPath: params.HTMLPath}
	out.Result = result

	setStatus := func(status model.RunStatus) {
		if statusErr := p.deps.Store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.deps.Store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		switch {
		case fnErr != nil:
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		case phaseResult.Status == model.PhaseStatusSkipped:
			log.Info("pipeline: phase skipped", zap.String("phase", name))
		default:
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			if completeErr := p.deps.Store.CompletePhase(ctx, phase.ID, phaseResult); completeErr != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(completeErr))
			}
		}
		result.Phases = append(result.Phases, *phaseResult)
		return fnErr
	}

	fail := func(err error) (*Output, error) {
		result.Error = err.Error()
		if saveErr := p.deps.Store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
		}
		return out, err
	}

	schema := SchemaFor(params)

	// ===== Phase 1: Fetch =====
	setStatus(model.RunStatusFetching)
	var ds *model.Dataset
	if err := trackPhase(PhaseFetch, func() (*model.PhaseResult, error) {
		var fetchErr error
		ds, fetchErr = p.Fetch(ctx, params)
		if fetchErr != nil {
			return nil, fetchErr
		}
		source := "windsor"
		if params.InputPath != "" {
			source = params.InputPath
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"rows":   ds.Len(),
			"source": source,
		}}, nil
	}); err != nil {
		return fail(err)
	}
	result.Rows = ds.Len()

	// ===== Phase 2: Geocode =====
	setStatus(model.RunStatusGeocoding)
	if err := trackPhase(PhaseGeocode, func() (*model.PhaseResult, error) {
		if fetcher.HasCoordinates(ds) {
			return &model.PhaseResult{
				Status:   model.PhaseStatusSkipped,
				Metadata: map[string]any{"reason": "dataset already has coordinates"},
			}, nil
		}
		resolved, report, resolveErr := p.deps.Resolver.Resolve(ctx, ds, schema.LocationColumn)
		if resolveErr != nil {
			return nil, resolveErr
		}
		ds = resolved
		result.Locations = report.Labels
		result.Unresolved = report.Unresolved()
		return &model.PhaseResult{Metadata: map[string]any{
			"labels":     report.Labels,
			"resolved":   report.Resolved,
			"unresolved": result.Unresolved,
		}}, nil
	}); err != nil {
		return fail(err)
	}
	out.Dataset = ds

	// ===== Phase 3: Render =====
	setStatus(model.RunStatusRendering)
	if err := trackPhase(PhaseRender, func() (*model.PhaseResult, error) {
		built, buildErr := p.deps.Builder.Build(ds, features.Options{
			Caption:     params.Caption,
			Normalize:   params.Normalize,
			DateColumn:  schema.DateColumn,
			ValueColumn: schema.ValueColumn,
		})
		if buildErr != nil {
			return nil, buildErr
		}
		m, renderErr := p.deps.Renderer.Render(built.Features, built.Scale, params.HTMLPath)
		if renderErr != nil {
			return nil, renderErr
		}
		out.Map = m
		result.Features = len(built.Features)
		if m.Path != "" {
			result.HTMLPath = m.Path
		}
		return &model.PhaseResult{Metadata: map[string]any{
			"features":  len(built.Features),
			"skipped":   m.Skipped,
			"scale_min": built.Scale.Min,
			"scale_max": built.Scale.Max,
			"path":      result.HTMLPath,
		}}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Phase 4: Capture + encode =====
	setStatus(model.RunStatusCapturing)
	if err := trackPhase(PhaseCapture, func() (*model.PhaseResult, error) {
		if params.SkipGIF || p.deps.Converter == nil || params.GIFPath == "" {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		conv, convErr := p.deps.Converter.Convert(ctx, result.HTMLPath, params.GIFPath)
		if convErr != nil {
			return nil, convErr
		}
		result.GIFPath = params.GIFPath
		result.Frames = conv.Frames
		md := map[string]any{"frames": conv.Frames, "path": params.GIFPath}
		if conv.GIF != nil {
			md["bytes"] = conv.GIF.Bytes
		}
		return &model.PhaseResult{Metadata: md}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Phase 5: Publish =====
	if err := trackPhase(PhasePublish, func() (*model.PhaseResult, error) {
		if p.deps.Publisher == nil {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		}
		setStatus(model.RunStatusPublishing)
		urls, pubErr := p.deps.Publisher.Upload(ctx, result.GIFPath, result.HTMLPath)
		if pubErr != nil {
			return nil, pubErr
		}
		result.PublishedURLs = urls
		return &model.PhaseResult{Metadata: map[string]any{"urls": urls}}, nil
	}); err != nil {
		return fail(err)
	}

	if saveErr := p.deps.Store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}

	log.Info("pipeline: run complete",
		zap.Int("rows", result.Rows),
		zap.Int("features", result.Features),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Int("frames", result.Frames),
	)
	return out, nil
}

// Fetch loads the dataset from params.InputPath, or from the Windsor API
// when no input file is given.
func (p *Pipeline) Fetch(ctx context.Context, params model.RunParams) (*model.Dataset, error) {
	schema := SchemaFor(params)
	if params.InputPath != "" {
		return fetcher.LoadDataset(ctx, params.InputPath, schema)
	}
	if p.deps.Windsor == nil {
		return nil, eris.New("pipeline: no windsor client configured")
	}

	resp, err := p.deps.Windsor.Connectors(ctx, windsor.Query{
		Connector: params.Connector,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Fields:    params.Fields,
	})
	if err != nil {
		return nil, err
	}
	return fetcher.FromRecords(resp.Data, params.Fields, schema)
}

// SchemaFor returns the dataset schema named by params, falling back to the
// Google Ads defaults for unset columns.
func SchemaFor(params model.RunParams) model.Schema {
	s := model.DefaultSchema()
	if params.DateColumn != "" {
		s.DateColumn = params.DateColumn
	}
	if params.LocationColumn != "" {
		s.LocationColumn = params.LocationColumn
	}
	if params.ValueColumn != "" {
		s.ValueColumn = params.ValueColumn
	}
	return s
}
