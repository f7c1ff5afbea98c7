// Package internal provides the application initialization and runtime logic
// shared by the asset tools.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/assetforge/internal/archive"
	"github.com/starford/assetforge/internal/manifest"
	"github.com/starford/assetforge/internal/models"
	"github.com/starford/assetforge/internal/rasterize"
	"github.com/starford/assetforge/internal/storage"
	"github.com/starford/assetforge/internal/watch"
)

// Tool names, as recorded in the manifest.
const (
	ToolArchive = "zip-archive"
	ToolConvert = "svg-to-png"
)

// RunArchiver builds the archive once, or keeps rebuilding it in watch mode.
func RunArchiver(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	a, err := archive.New(app.dir,
		archive.WithOutput(cfg.Archive.Output),
		archive.WithFormat(archive.Format(cfg.Archive.Format)),
		archive.WithCompressionLevel(cfg.Archive.CompressionLevel),
		archive.WithExclude(cfg.Archive.Exclude...),
		archive.WithExclude(app.exclude...),
		archive.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("tool", ToolArchive),
		slog.String("source", a.Source()),
		slog.String("output", a.Output()),
		slog.String("format", cfg.Archive.Format),
		slog.Bool("watch", app.watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rec, err := app.openManifest()
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	build := func(ctx context.Context) error {
		started := time.Now()
		res, err := a.Build(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		arts, err := res.Artifacts()
		if err != nil {
			return err
		}
		return app.record(ctx, rec, ToolArchive, a.Source(), started, arts)
	}

	return app.run(ctx, build, watch.Options{
		Root:      a.Source(),
		Recursive: true,
		Debounce:  cfg.Watch.Debounce,
		Logger:    logger,
		Filter: func(path string) bool {
			return path != a.Output() && !a.Excluded(path) && !app.isManifestFile(path)
		},
	})
}

// RunConverter renders every matching SVG once, or keeps re-rendering in
// watch mode.
func RunConverter(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	bg, err := rasterize.ParseColor(cfg.Convert.Background)
	if err != nil {
		return err
	}
	c, err := rasterize.New(app.dir,
		rasterize.WithPattern(cfg.Convert.Pattern),
		rasterize.WithScale(cfg.Convert.Scale),
		rasterize.WithSize(cfg.Convert.Width, cfg.Convert.Height),
		rasterize.WithBackground(bg),
		rasterize.WithStrict(cfg.Convert.Strict),
		rasterize.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("tool", ToolConvert),
		slog.String("dir", c.Dir()),
		slog.String("pattern", cfg.Convert.Pattern),
		slog.Float64("scale", cfg.Convert.Scale),
		slog.Bool("watch", app.watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rec, err := app.openManifest()
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
	}

	build := func(ctx context.Context) error {
		started := time.Now()
		results, err := c.Run(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		return app.record(ctx, rec, ToolConvert, c.Dir(), started, rasterize.Artifacts(results))
	}

	return app.run(ctx, build, watch.Options{
		Root:     c.Dir(),
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
		Filter: func(path string) bool {
			return c.Matches(path) && !storage.IsTemp(path)
		},
	})
}

func newApplication(opts []Option) (*application, error) {
	app := &application{dir: ".", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.dir == "" {
		app.dir = "."
	}
	return app, nil
}

// logger installs a structured JSON logger as the default and returns it.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func (a *application) openManifest() (manifest.Recorder, error) {
	if !a.config.Manifest.Enabled() {
		return nil, nil
	}
	db, err := manifest.Open(a.config.Manifest.Path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// isManifestFile reports whether path is the manifest database or one of
// its SQLite sidecar files.
func (a *application) isManifestFile(path string) bool {
	if !a.config.Manifest.Enabled() {
		return false
	}
	abs, err := filepath.Abs(a.config.Manifest.Path)
	if err != nil {
		return false
	}
	return path == abs || strings.HasPrefix(path, abs+"-")
}

func (a *application) record(ctx context.Context, rec manifest.Recorder, tool, source string, started time.Time, arts []models.Artifact) error {
	id, err := rec.Record(ctx, manifest.Run{
		Tool:       tool,
		Source:     source,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, arts)
	if err != nil {
		return err
	}
	slog.Debug("manifest: recorded run", slog.Int64("run_id", id), slog.Int("artifacts", len(arts)))
	return nil
}

// run executes build once and, in watch mode, keeps rebuilding on changes
// until the context is cancelled or a shutdown signal arrives.
func (a *application) run(ctx context.Context, build watch.BuildFunc, wopts watch.Options) error {
	if err := build(ctx); err != nil {
		return err
	}
	if !a.watch {
		return nil
	}

	logger := wopts.Logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := watch.Watch(gCtx, wopts, build); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped")
	return nil
}
