package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/assetforge/internal"
	pkgconfig "github.com/starford/assetforge/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return fmt.Errorf("expected at most one directory, got %d arguments", cmd.Args().Len())
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

	if cmd.IsSet("scale") {
		cfg.Convert.Scale = cmd.Float("scale")
	}
	if cmd.IsSet("width") {
		cfg.Convert.Width = int(cmd.Int("width"))
	}
	if cmd.IsSet("height") {
		cfg.Convert.Height = int(cmd.Int("height"))
	}
	if cmd.IsSet("background") {
		cfg.Convert.Background = cmd.String("background")
	}
	if cmd.IsSet("strict") {
		cfg.Convert.Strict = cmd.Bool("strict")
	}
	if cmd.IsSet("manifest") {
		cfg.Manifest.Path = cmd.String("manifest")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	dir := "."
	if cmd.Args().Len() == 1 {
		dir = cmd.Args().First()
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithDir(dir),
		internal.WithWatch(cmd.Bool("watch")),
	}

	if err := internal.RunConverter(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:      "svg-to-png",
		Usage:     "Render every SVG in a directory to a PNG with the same base name",
		ArgsUsage: "[dir]",
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
			&cli.FloatFlag{
				Name:  "scale",
				Usage: "Multiply the viewBox size by this factor",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Output width in pixels (0 follows the viewBox)",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Output height in pixels (0 follows the viewBox)",
			},
			&cli.StringFlag{
				Name:  "background",
				Usage: "Fill colour drawn under the image, e.g. #ffffff",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail on SVG elements the renderer does not support",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Record the run in this SQLite manifest",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Re-render whenever an SVG in the directory changes",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
