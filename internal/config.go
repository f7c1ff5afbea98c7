package internal

import (
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/assetforge/internal/archive"
	"github.com/starford/assetforge/internal/rasterize"
	"github.com/starford/assetforge/internal/watch"
)

// Config represents the application configuration shared by both tools.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Archive  ArchiveConfig     `yaml:"archive"`
	Convert  ConvertConfig     `yaml:"convert"`
	Manifest ManifestConfig    `yaml:"manifest"`
	Watch    WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Convert.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ArchiveConfig controls the archiver.
type ArchiveConfig struct {
	Output           string   `yaml:"output"`
	Format           string   `yaml:"format"`
	CompressionLevel int      `yaml:"compression_level"`
	Exclude          []string `yaml:"exclude"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Format, validation.Required,
			validation.In(string(archive.FormatZip), string(archive.FormatTarGz))),
		validation.Field(&c.CompressionLevel, validation.Min(-1), validation.Max(9)),
	)
}

// ConvertConfig controls the SVG converter.
type ConvertConfig struct {
	Pattern    string  `yaml:"pattern"`
	Scale      float64 `yaml:"scale"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Background string  `yaml:"background"`
	Strict     bool    `yaml:"strict"`
}

// Validate validates the converter configuration.
func (c *ConvertConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Pattern, validation.Required),
		validation.Field(&c.Scale, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.Width, validation.Min(0)),
		validation.Field(&c.Height, validation.Min(0)),
		validation.Field(&c.Background, validation.By(func(v interface{}) error {
			_, err := rasterize.ParseColor(v.(string))
			if err != nil {
				return errors.New("must be a valid SVG colour")
			}
			return nil
		})),
	)
}

// ManifestConfig holds the optional build-ledger location. An empty
// path disables recording.
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs should be recorded.
func (c *ManifestConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Archive: ArchiveConfig{
			Output:           archive.DefaultOutput,
			Format:           string(archive.FormatZip),
			CompressionLevel: -1,
		},
		Convert: ConvertConfig{
			Pattern: rasterize.DefaultPattern,
			Scale:   1,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
	}
}
