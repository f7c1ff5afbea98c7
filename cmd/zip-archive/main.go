package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/assetforge/internal"
	pkgconfig "github.com/starford/assetforge/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return fmt.Errorf("expected at most one source directory, got %d arguments", cmd.Args().Len())
	}

	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("output") {
		cfg.Archive.Output = cmd.String("output")
	}
	if cmd.IsSet("format") {
		cfg.Archive.Format = cmd.String("format")
	}
	if cmd.IsSet("manifest") {
		cfg.Manifest.Path = cmd.String("manifest")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	source := "."
	if cmd.Args().Len() == 1 {
		source = cmd.Args().First()
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDir(source),
		internal.WithWatch(cmd.Bool("watch")),
		internal.WithExclude(selfName()),
	}

	if err := internal.RunArchiver(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// selfName is the executable's base name, which is never archived.
func selfName() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exe)
}

func main() {
	cmd := &cli.Command{
		Name:      "zip-archive",
		Usage:     "Bundle a directory tree into a compressed asset archive",
		ArgsUsage: "[source-dir]",
		Action:    run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Archive path, relative to the working directory",
				Value:   "Assets1.zip",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Archive format: zip or tar.gz",
				Value: "zip",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Record the run in this SQLite manifest",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Rebuild the archive whenever the source tree changes",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
