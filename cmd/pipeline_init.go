package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/capture"
	"github.com/sells-group/clickmap/internal/features"
	"github.com/sells-group/clickmap/internal/geo"
	"github.com/sells-group/clickmap/internal/gifenc"
	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/internal/pipeline"
	"github.com/sells-group/clickmap/internal/publish"
	"github.com/sells-group/clickmap/internal/render"
	"github.com/sells-group/clickmap/internal/store"
	"github.com/sells-group/clickmap/pkg/geocode"
	"github.com/sells-group/clickmap/pkg/windsor"
)

// installBrowsers downloads the playwright browsers before the first capture.
var installBrowsers bool

// pipelineEnv holds the store, caches and the pipeline needed by the
// run/render/serve commands.
type pipelineEnv struct {
	Store     store.Store
	Redis     *store.RedisCache // may be nil
	Pipeline  *pipeline.Pipeline
	Renderer  *render.Renderer
	Converter *capture.Converter // nil when capture is disabled
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Redis != nil {
		_ = pe.Redis.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

type pipelineOptions struct {
	mode        string // config validation mode
	withWindsor bool
	withCapture bool
}

// initPipeline sets up the store, geocoder, renderer, converter and
// publisher, and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, po pipelineOptions) (*pipelineEnv, error) {
	if err := cfg.Validate(po.mode); err != nil {
		return nil, err
	}

	st, err := openMigratedStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}
	if cfg.Cache.Enabled {
		env.Redis = initRedisCache(ctx)
	}

	geocoder, err := newGeocoder(geocodeCache(st, env.Redis))
	if err != nil {
		env.Close()
		return nil, err
	}

	renderer, err := newRenderer()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Renderer = renderer

	deps := pipeline.Deps{
		Store:    st,
		Resolver: geo.NewResolver(geocoder),
		Builder:  features.NewBuilder(),
		Renderer: renderer,
	}

	if po.withWindsor {
		deps.Windsor = newWindsorClient()
	}

	if po.withCapture {
		conv, convErr := newConverter()
		if convErr != nil {
			env.Close()
			return nil, convErr
		}
		env.Converter = conv
		deps.Converter = conv
	}

	if cfg.Publish.Bucket != "" {
		pub, pubErr := publish.NewS3(ctx, publish.Config{
			Bucket: cfg.Publish.Bucket,
			Prefix: cfg.Publish.Prefix,
			Region: cfg.Publish.Region,
		})
		if pubErr != nil {
			env.Close()
			return nil, pubErr
		}
		deps.Publisher = pub
	}

	env.Pipeline = pipeline.New(deps)
	return env, nil
}

func newWindsorClient() windsor.Client {
	return windsor.NewClient(cfg.Windsor.Key,
		windsor.WithBaseURL(cfg.Windsor.BaseURL),
		windsor.WithTimeout(time.Duration(cfg.Windsor.TimeoutSecs)*time.Second),
	)
}

// newGeocoder builds the provider cascade: static overrides, Nominatim,
// then Google when a key is configured.
func newGeocoder(cache geocode.Cache) (*geocode.CascadeClient, error) {
	var providers []geocode.Provider

	if cfg.Geocode.OverridesPath != "" {
		static, err := geocode.LoadStatic(cfg.Geocode.OverridesPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("geocode overrides loaded", zap.Int("labels", len(static.Labels())))
		providers = append(providers, static)
	}

	timeout := time.Duration(cfg.Geocode.TimeoutSecs) * time.Second
	providers = append(providers, geocode.NewNominatim(
		geocode.WithBaseURL(cfg.Geocode.NominatimURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithTimeout(timeout),
	))
	if cfg.Geocode.GoogleKey != "" {
		providers = append(providers, geocode.NewGoogle(cfg.Geocode.GoogleKey, geocode.WithTimeout(timeout)))
	}

	return geocode.NewCascadeClient(providers,
		geocode.WithCascadeCache(cache),
		geocode.WithCascadeCacheEnabled(cfg.Cache.Enabled),
		geocode.WithCascadeCacheTTLDays(cfg.Cache.TTLDays),
	), nil
}

func newRenderer() (*render.Renderer, error) {
	opts := render.DefaultOptions()
	opts.Title = cfg.Map.Caption
	opts.Tiles = cfg.Map.Tiles
	opts.CenterLat = cfg.Map.CenterLat
	opts.CenterLon = cfg.Map.CenterLon
	opts.Zoom = cfg.Map.Zoom
	if cfg.Map.TransitionTime > 0 {
		opts.TransitionMS = cfg.Map.TransitionTime
	}
	return render.NewRenderer(opts)
}

// newConverter wires the playwright driver to the GIF encoder.
func newConverter() (*capture.Converter, error) {
	browser, err := capture.ParseBrowser(cfg.Capture.Browser)
	if err != nil {
		return nil, err
	}
	enc := gifenc.NewEncoder(gifenc.Options{
		Delay:       time.Duration(cfg.GIF.FrameMS) * time.Millisecond,
		LoopCount:   cfg.GIF.LoopCount,
		Width:       cfg.GIF.Width,
		Label:       cfg.GIF.Label,
		Concurrency: cfg.GIF.Concurrency,
	})
	return capture.NewConverter(capture.NewPlaywrightDriver(installBrowsers), enc, capture.Options{
		Browser:         browser,
		Frames:          cfg.Capture.Frames,
		Interval:        time.Duration(cfg.Capture.IntervalMS) * time.Millisecond,
		Width:           cfg.Capture.Width,
		Height:          cfg.Capture.Height,
		ScratchRoot:     cfg.Capture.ScratchDir,
		WaitNetworkIdle: cfg.Capture.WaitNetworkIdle,
		Timeout:         time.Duration(cfg.Capture.TimeoutSecs) * time.Second,
		KeepFrames:      cfg.Capture.KeepFrames,
	}), nil
}

// runParamsFromConfig seeds run parameters from configuration. Commands
// override individual fields from their flags.
func runParamsFromConfig() model.RunParams {
	return model.RunParams{
		Connector:      cfg.Windsor.Connector,
		DateFrom:       cfg.Windsor.DateFrom,
		DateTo:         cfg.Windsor.DateTo,
		Fields:         cfg.Windsor.Fields,
		LocationColumn: cfg.Dataset.LocationColumn,
		DateColumn:     cfg.Dataset.DateColumn,
		ValueColumn:    cfg.Dataset.ValueColumn,
		Caption:        cfg.Map.Caption,
		Normalize:      cfg.Map.Normalize,
		HTMLPath:       cfg.Map.HTMLPath,
		GIFPath:        cfg.GIF.Path,
		RequestedAt:    time.Now().UTC(),
	}
}

// requireInput rejects an input file that does not exist before any
// store or browser work starts.
func requireInput(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return eris.Wrapf(err, "input %s", path)
	}
	return nil
}
