package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	dir       string
	watch     bool
	exclude   []string
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDir sets the directory the tool operates on. Defaults to ".".
func WithDir(dir string) Option {
	return func(a *application) {
		a.dir = dir
	}
}

// WithWatch keeps the tool running and rebuilds on changes.
func WithWatch(enabled bool) Option {
	return func(a *application) {
		a.watch = enabled
	}
}

// WithExclude adds base names the archiver always skips, such as the
// running executable.
func WithExclude(names ...string) Option {
	return func(a *application) {
		a.exclude = append(a.exclude, names...)
	}
}

// WithLogOutput redirects structured logs. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
