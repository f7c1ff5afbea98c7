// Package archive bundles a directory tree into a single compressed archive.
package archive

import (
	"compress/flate"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"

	"github.com/starford/assetforge/internal/apperr"
	"github.com/starford/assetforge/internal/checksum"
	"github.com/starford/assetforge/internal/models"
	"github.com/starford/assetforge/internal/storage"
)

// DefaultOutput is the archive name used when none is configured.
const DefaultOutput = "Assets1.zip"

// Format selects the archive container.
type Format string

// Supported formats.
const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// writer is the subset of archiver's format types used here.
type writer interface {
	Create(out io.Writer) error
	Write(f archiver.File) error
	Close() error
}

func newWriter(format Format, level int) (writer, error) {
	switch format {
	case FormatZip, "":
		z := archiver.NewZip()
		z.CompressionLevel = level
		z.SelectiveCompression = false
		z.FileMethod = archiver.Deflate
		return z, nil
	case FormatTarGz:
		tgz := archiver.NewTarGz()
		tgz.CompressionLevel = level
		return tgz, nil
	default:
		return nil, fmt.Errorf("archive: format %q: %w", format, apperr.ErrUnsupportedFormat)
	}
}

// Entry is one file written into the archive.
type Entry struct {
	Name     string
	Size     int64
	Checksum string
}

// Result describes a finished archive.
type Result struct {
	Output  string
	Format  Format
	Entries []Entry
}

// Artifacts converts the result into manifest rows: the archive itself
// followed by one row per entry.
func (r *Result) Artifacts() ([]models.Artifact, error) {
	f, err := os.Open(r.Output)
	if err != nil {
		return nil, fmt.Errorf("archive: open output: %w", err)
	}
	defer f.Close()
	cr := checksum.NewReader(f)
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return nil, fmt.Errorf("archive: hash output: %w", err)
	}
	out := make([]models.Artifact, 0, len(r.Entries)+1)
	out = append(out, models.Artifact{
		Kind:     models.KindArchive,
		Path:     filepath.Base(r.Output),
		Checksum: cr.Sum(),
		Size:     cr.Size(),
	})
	for _, e := range r.Entries {
		out = append(out, models.Artifact{
			Kind:     models.KindEntry,
			Path:     e.Name,
			Source:   e.Name,
			Checksum: e.Checksum,
			Size:     e.Size,
		})
	}
	return out, nil
}

// Archiver writes every file under a source directory into one archive.
type Archiver struct {
	src     storage.Provider
	output  string
	format  Format
	level   int
	exclude map[string]struct{}
	logger  *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithOutput sets the archive path. Relative paths resolve against the
// process working directory, not the source directory.
func WithOutput(path string) Option {
	return func(a *Archiver) {
		a.output = path
	}
}

// WithFormat selects the container format.
func WithFormat(f Format) Option {
	return func(a *Archiver) {
		a.format = f
	}
}

// WithCompressionLevel sets the flate level (-1 for the library default).
func WithCompressionLevel(level int) Option {
	return func(a *Archiver) {
		a.level = level
	}
}

// WithExclude adds base names that are skipped at every depth.
func WithExclude(names ...string) Option {
	return func(a *Archiver) {
		for _, n := range names {
			if n != "" {
				a.exclude[n] = struct{}{}
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = l
	}
}

// New creates an Archiver for the source directory. The output archive's
// base name is always excluded.
func New(source string, opts ...Option) (*Archiver, error) {
	src, err := storage.NewFS(source)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	a := &Archiver{
		src:     src,
		output:  DefaultOutput,
		format:  FormatZip,
		level:   flate.DefaultCompression,
		exclude: make(map[string]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	abs, err := filepath.Abs(a.output)
	if err != nil {
		return nil, fmt.Errorf("archive: resolve output: %w", err)
	}
	a.output = abs
	a.exclude[filepath.Base(abs)] = struct{}{}
	if _, err := newWriter(a.format, a.level); err != nil {
		return nil, err
	}
	return a, nil
}

// Source returns the absolute source directory.
func (a *Archiver) Source() string {
	return a.src.Root()
}

// Output returns the absolute archive path.
func (a *Archiver) Output() string {
	return a.output
}

// Excluded reports whether a file with the given path would be left out.
func (a *Archiver) Excluded(path string) bool {
	base := filepath.Base(path)
	if storage.IsTemp(base) {
		return true
	}
	_, ok := a.exclude[base]
	return ok
}

// Build writes the archive. The previous archive, if any, is replaced only
// once the new one is complete.
func (a *Archiver) Build(ctx context.Context) (*Result, error) {
	res := &Result{Output: a.output, Format: a.format}

	err := storage.WriteAtomic(a.output, 0o644, func(out io.Writer) error {
		w, err := newWriter(a.format, a.level)
		if err != nil {
			return err
		}
		if err := w.Create(out); err != nil {
			return fmt.Errorf("archive: create: %w", err)
		}
		walkErr := a.src.Walk(func(rel string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if a.Excluded(rel) {
				a.logger.Debug("archive: excluded", slog.String("path", rel))
				return nil
			}
			entry, err := a.add(w, rel, d)
			if err != nil {
				return err
			}
			res.Entries = append(res.Entries, entry)
			a.logger.Debug("archive: added", slog.String("path", rel), slog.Int64("size", entry.Size))
			return nil
		})
		closeErr := w.Close()
		if walkErr != nil {
			return fmt.Errorf("archive: %w", walkErr)
		}
		if closeErr != nil {
			return fmt.Errorf("archive: close: %w", closeErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("archive written",
		slog.String("output", a.output),
		slog.String("source", a.src.Root()),
		slog.String("format", string(a.format)),
		slog.Int("entries", len(res.Entries)))
	return res, nil
}

func (a *Archiver) add(w writer, rel string, d fs.DirEntry) (Entry, error) {
	info, err := d.Info()
	if err != nil {
		return Entry{}, err
	}
	f, err := a.src.Open(rel)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	cr := checksum.NewReader(f)
	err = w.Write(archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   info,
			CustomName: rel,
		},
		ReadCloser: io.NopCloser(cr),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", rel, err)
	}
	return Entry{Name: rel, Size: cr.Size(), Checksum: cr.Sum()}, nil
}
