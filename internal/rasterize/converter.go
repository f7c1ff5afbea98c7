package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/assetforge/internal/checksum"
	"github.com/starford/assetforge/internal/models"
	"github.com/starford/assetforge/internal/storage"
)

// DefaultPattern selects the vector files converted in a directory.
const DefaultPattern = "*.svg"

// Result describes one converted file. Paths are relative to the
// converter's directory.
type Result struct {
	Source   string
	Output   string
	Width    int
	Height   int
	Checksum string
	Size     int64
}

// Artifacts converts results into manifest rows.
func Artifacts(results []Result) []models.Artifact {
	out := make([]models.Artifact, 0, len(results))
	for _, r := range results {
		out = append(out, models.Artifact{
			Kind:     models.KindRaster,
			Path:     r.Output,
			Source:   r.Source,
			Checksum: r.Checksum,
			Size:     r.Size,
		})
	}
	return out
}

// OutputName maps a vector file name to its raster counterpart.
func OutputName(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".png"
}

// Converter renders every matching vector file in one directory.
type Converter struct {
	dir     storage.Provider
	pattern string
	render  RenderOptions
	logger  *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithPattern sets the glob used to select source files.
func WithPattern(p string) Option {
	return func(c *Converter) {
		if p != "" {
			c.pattern = p
		}
	}
}

// WithScale multiplies viewBox dimensions.
func WithScale(s float64) Option {
	return func(c *Converter) {
		c.render.Scale = s
	}
}

// WithSize fixes the output size. Zero leaves a dimension to the viewBox.
func WithSize(w, h int) Option {
	return func(c *Converter) {
		c.render.Width = w
		c.render.Height = h
	}
}

// WithBackground fills the canvas before drawing. nil keeps it transparent.
func WithBackground(bg color.Color) Option {
	return func(c *Converter) {
		c.render.Background = bg
	}
}

// WithStrict rejects SVG features the renderer does not support.
func WithStrict(strict bool) Option {
	return func(c *Converter) {
		c.render.Strict = strict
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// New creates a Converter for dir, which must exist.
func New(dir string, opts ...Option) (*Converter, error) {
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	c := &Converter{
		dir:     fsys,
		pattern: DefaultPattern,
		render:  RenderOptions{Scale: 1},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := filepath.Match(c.pattern, ""); err != nil {
		return nil, fmt.Errorf("rasterize: pattern %q: %w", c.pattern, err)
	}
	return c, nil
}

// Dir returns the absolute directory being converted.
func (c *Converter) Dir() string {
	return c.dir.Root()
}

// Matches reports whether name is a source file for this converter.
// Dot-files match only a pattern that starts with a dot, as in Sources.
func (c *Converter) Matches(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") && !strings.HasPrefix(c.pattern, ".") {
		return false
	}
	ok, _ := filepath.Match(c.pattern, base)
	return ok
}

// Sources lists the vector files directly inside the directory, sorted.
func (c *Converter) Sources() ([]string, error) {
	return c.dir.Glob(c.pattern)
}

// Run converts every source in order and stops at the first failure.
func (c *Converter) Run(ctx context.Context) ([]Result, error) {
	sources, err := c.Sources()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := c.ConvertFile(src)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	c.logger.Info("conversion finished",
		slog.String("dir", c.dir.Root()),
		slog.Int("converted", len(results)))
	return results, nil
}

// ConvertFile renders one source file to its PNG counterpart, replacing
// any existing output.
func (c *Converter) ConvertFile(name string) (*Result, error) {
	f, err := c.dir.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Render(f, c.render)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("rasterize: encode %s: %w", name, err)
	}
	out := OutputName(name)
	if err := c.dir.Write(out, buf.Bytes()); err != nil {
		return nil, err
	}

	b := img.Bounds()
	c.logger.Debug("rasterize: converted",
		slog.String("source", name),
		slog.String("output", out),
		slog.Int("width", b.Dx()),
		slog.Int("height", b.Dy()))

	return &Result{
		Source:   name,
		Output:   out,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Checksum: checksum.Sum(buf.Bytes()),
		Size:     int64(buf.Len()),
	}, nil
}
