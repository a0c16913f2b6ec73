package render

import (
	"errors"
	"html/template"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickmap/internal/colormap"
	"github.com/sells-group/clickmap/internal/features"
	"github.com/sells-group/clickmap/internal/fsutil"
)

// Renderer turns features into a map document.
type Renderer struct {
	opts Options
	tmpl *template.Template
}

// NewRenderer parses the embedded template. Zero-valued options fall back
// to DefaultOptions; a center of (0, 0) counts as unset.
func NewRenderer(opts Options) (*Renderer, error) {
	tmpl, err := template.ParseFS(templates, "templates/map.html.tmpl")
	if err != nil {
		return nil, eris.Wrap(err, "render: parse template")
	}
	return &Renderer{opts: opts.withDefaults(), tmpl: tmpl}, nil
}

// Options returns the effective options.
func (r *Renderer) Options() Options {
	return r.opts
}

// Build assembles the document without writing it.
func (r *Renderer) Build(fs []features.Feature, scale *colormap.Linear) (*Map, error) {
	if scale == nil {
		return nil, &Error{Op: "validate", Err: eris.New("nil color scale")}
	}
	fc, skipped := features.Collection(fs)
	if skipped > 0 {
		zap.L().Warn("render: skipping features without coordinates", zap.Int("skipped", skipped))
	}
	return &Map{
		Options:    r.opts,
		Collection: fc,
		Legend:     newLegend(scale, r.opts.LegendWidth, r.opts.LegendTicks),
		Skipped:    skipped,
		tmpl:       r.tmpl,
	}, nil
}

// Render builds the document and writes it to htmlPath, replacing any
// existing file.
func (r *Renderer) Render(fs []features.Feature, scale *colormap.Linear, htmlPath string) (*Map, error) {
	if htmlPath == "" {
		return nil, &Error{Op: "validate", Err: eris.New("empty output path")}
	}
	m, err := r.Build(fs, scale)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, &Error{Op: "write", Path: htmlPath, Err: err}
	}
	err = fsutil.WriteAtomic(abs, func(w io.Writer) error {
		_, werr := m.WriteTo(w)
		return werr
	})
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			rerr.Path = abs
			return nil, rerr
		}
		return nil, &Error{Op: "write", Path: abs, Err: err}
	}
	m.Path = abs

	zap.L().Info("render: map written",
		zap.String("path", abs),
		zap.Int("features", m.Features()),
		zap.Int("skipped", m.Skipped),
	)
	return m, nil
}
