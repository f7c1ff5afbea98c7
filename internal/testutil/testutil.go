// Package testutil provides shared test helpers for building source trees,
// SVG fixtures, and manifest databases.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/assetforge/internal/manifest"
)

// Tree creates a temporary directory populated with files (slash-separated
// relative path -> content) and returns its path.
func Tree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// SquareSVG returns an SVG document of the given size filled by one rect.
func SquareSVG(size int, fill string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d">`+
		`<rect x="0" y="0" width="%[1]d" height="%[1]d" fill="%[2]s"/></svg>`, size, fill)
}

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// OpenManifest opens the manifest database at path and closes it when the
// test ends.
func OpenManifest(t *testing.T, path string) *manifest.DB {
	t.Helper()
	db, err := manifest.Open(path)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
