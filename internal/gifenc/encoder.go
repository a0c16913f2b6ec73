// Package gifenc assembles captured PNG frames into a looping animated GIF.
package gifenc

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/clickmap/internal/fsutil"
)

// Defaults for encoding.
const (
	DefaultDelay     = 500 * time.Millisecond
	DefaultLoopCount = 100
)

// Options configures the encoder.
type Options struct {
	Delay       time.Duration // per-frame display time
	LoopCount   int           // 0 loops forever, -1 plays once
	Width       int           // scale frames to this width; 0 keeps the captured size
	Label       string        // optional caption stamped on every frame
	Concurrency int           // frames quantized in parallel; 0 uses GOMAXPROCS
}

// Result describes a written GIF.
type Result struct {
	Path   string `json:"path"`
	Frames int    `json:"frames"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
}

// Encoder turns ordered PNG frames into an animated GIF.
type Encoder struct {
	opts Options
}

// NewEncoder creates an Encoder. Zero Delay uses DefaultDelay.
func NewEncoder(opts Options) *Encoder {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Encoder{opts: opts}
}

// EncodeDir encodes every PNG in dir, ordered by frame index, to outPath.
func (e *Encoder) EncodeDir(ctx context.Context, dir, outPath string) (*Result, error) {
	paths, err := FramePaths(dir)
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, paths, outPath)
}

// Encode encodes the given frames in order to outPath, replacing any
// existing file only once the whole animation has been written.
func (e *Encoder) Encode(ctx context.Context, paths []string, outPath string) (*Result, error) {
	if len(paths) == 0 {
		return nil, &Error{Op: "encode", Path: outPath, Err: eris.New("no images")}
	}
	if outPath == "" {
		return nil, &Error{Op: "encode", Err: eris.New("empty output path")}
	}

	log := zap.L().With(zap.String("output", outPath), zap.Int("frames", len(paths)))
	start := time.Now()

	frames := make([]*image.Paletted, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := decodePNG(p)
			if err != nil {
				return err
			}
			frames[i] = e.prepare(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var gerr *Error
		if errors.As(err, &gerr) {
			return nil, gerr
		}
		return nil, eris.Wrap(err, "gifenc: prepare frames")
	}

	bounds := frames[0].Bounds()
	anim := &gif.GIF{
		Image:     frames,
		Delay:     make([]int, len(frames)),
		LoopCount: e.opts.LoopCount,
		Config: image.Config{
			ColorModel: color.Palette(palette.Plan9),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		},
	}
	delay := int(e.opts.Delay / (10 * time.Millisecond))
	for i := range anim.Delay {
		anim.Delay[i] = delay
	}

	var written int64
	err := fsutil.WriteAtomic(outPath, func(w io.Writer) error {
		cw := &countingWriter{w: w}
		if err := gif.EncodeAll(cw, anim); err != nil {
			return &Error{Op: "encode", Path: outPath, Err: err}
		}
		written = cw.n
		return nil
	})
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) {
			return nil, gerr
		}
		return nil, &Error{Op: "write", Path: outPath, Err: err}
	}

	log.Info("gifenc: animation written",
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{
		Path:   outPath,
		Frames: len(frames),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Bytes:  written,
	}, nil
}

// prepare scales, labels and quantizes one frame to the Plan9 palette.
func (e *Encoder) prepare(src image.Image) *image.Paletted {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if e.opts.Width > 0 && e.opts.Width != w {
		h = h * e.opts.Width / w
		w = e.opts.Width
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), src, b, xdraw.Src, nil)
	}
	if e.opts.Label != "" {
		drawLabel(rgba, e.opts.Label)
	}

	dst := image.NewPaletted(rgba.Bounds(), palette.Plan9)
	xdraw.FloydSteinberg.Draw(dst, dst.Bounds(), rgba, image.Point{})
	return dst
}

// drawLabel stamps text in the bottom-right corner over a dark box.
func drawLabel(img *image.RGBA, text string) {
	const pad = 6
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	b := img.Bounds()
	x := b.Max.X - width - 2*pad
	y := b.Max.Y - height - 2*pad
	box := image.Rect(x, y, b.Max.X, b.Max.Y).Intersect(b)
	xdraw.Draw(img, box, image.NewUniform(color.RGBA{0, 0, 0, 200}), image.Point{}, xdraw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x + pad), Y: fixed.I(y + pad + face.Metrics().Ascent.Ceil())},
	}
	d.DrawString(text)
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // frame paths come from our scratch dir
	if err != nil {
		return nil, &Error{Op: "decode", Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck

	img, err := png.Decode(f)
	if err != nil {
		return nil, &Error{Op: "decode", Path: path, Err: err}
	}
	return img, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
