package rasterize

import (
	"context"
	"errors"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/starford/assetforge/internal/apperr"
	"github.com/starford/assetforge/internal/models"
	"github.com/starford/assetforge/internal/testutil"
)

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Base(m))
	}
	sort.Strings(out)
	return out
}

func decodePNG(t *testing.T, path string) (w, h int, at func(x, y int) color.RGBA) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), func(x, y int) color.RGBA {
		return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"hero.svg":      "hero.png",
		"hero.idle.svg": "hero.idle.png",
		"noext":         "noext.png",
	}
	for in, want := range cases {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRun_OneRasterPerVector(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"arm.svg":     testutil.SquareSVG(16, "#ff0000"),
		"leg.svg":     testutil.SquareSVG(16, "#00ff00"),
		"torso.svg":   testutil.SquareSVG(16, "#0000ff"),
		"notes.txt":   "not an image",
		"sub/hat.svg": testutil.SquareSVG(16, "#000000"),
	})

	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	want := []string{"arm.png", "leg.png", "torso.png"}
	if got := pngFiles(t, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("png files = %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", "hat.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("subdirectory should not be converted, stat err = %v", err)
	}
	for i, r := range results {
		if r.Output != want[i] {
			t.Errorf("results[%d].Output = %q, want %q", i, r.Output, want[i])
		}
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
	if got := pngFiles(t, dir); len(got) != 0 {
		t.Errorf("png files = %v, want none", got)
	}
}

func TestRun_PatternIsCaseSensitive(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"upper.SVG": testutil.SquareSVG(8, "red"),
	})
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestRun_MalformedStopsRun(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"a.svg": testutil.SquareSVG(8, "red"),
		"b.svg": `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 8 8"><rect`,
		"c.svg": testutil.SquareSVG(8, "red"),
	})
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed svg")
	}
	if !strings.Contains(err.Error(), "b.svg") {
		t.Errorf("error should name the file: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results before failure = %d, want 1", len(results))
	}
	if got := pngFiles(t, dir); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("png files = %v, want [a.png]", got)
	}
}

func TestConvertFile_DimensionsAndPixels(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"red.svg": testutil.SquareSVG(10, "#ff0000"),
	})
	c, err := New(dir, WithScale(2), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.ConvertFile("red.svg")
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	if res.Width != 20 || res.Height != 20 {
		t.Errorf("size = %dx%d, want 20x20", res.Width, res.Height)
	}

	w, h, at := decodePNG(t, filepath.Join(dir, "red.png"))
	if w != 20 || h != 20 {
		t.Errorf("decoded size = %dx%d, want 20x20", w, h)
	}
	if got := at(10, 10); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("center pixel = %+v, want opaque red", got)
	}
}

func TestConvertFile_BackgroundAndOverwrite(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"empty.svg": `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 4 4"></svg>`,
		"empty.png": "stale",
	})
	bg, err := ParseColor("#ffffff")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	c, err := New(dir, WithBackground(bg), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ConvertFile("empty.svg"); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	_, _, at := decodePNG(t, filepath.Join(dir, "empty.png"))
	if got := at(1, 1); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("pixel = %+v, want opaque white", got)
	}
}

func TestConvertFile_TransparentByDefault(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"empty.svg": `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 4 4"></svg>`,
	})
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ConvertFile("empty.svg"); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	_, _, at := decodePNG(t, filepath.Join(dir, "empty.png"))
	if got := at(2, 2); got.A != 0 {
		t.Errorf("alpha = %d, want 0", got.A)
	}
}

func TestConvertFile_NoSize(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"bare.svg": `<svg xmlns="http://www.w3.org/2000/svg"><rect width="1" height="1"/></svg>`,
	})
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ConvertFile("bare.svg"); !errors.Is(err, apperr.ErrEmptyCanvas) {
		t.Errorf("err = %v, want ErrEmptyCanvas", err)
	}

	c, err = New(dir, WithSize(6, 3), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.ConvertFile("bare.svg")
	if err != nil {
		t.Fatalf("ConvertFile with explicit size: %v", err)
	}
	if res.Width != 6 || res.Height != 3 {
		t.Errorf("size = %dx%d, want 6x3", res.Width, res.Height)
	}
}

func TestConvertFile_DeclaredSize(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"attrs.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="32" viewBox="0 0 16 8">` +
			`<rect x="0" y="0" width="16" height="8" fill="#ff0000"/></svg>`,
		"noviewbox.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="10">` +
			`<rect x="0" y="0" width="20" height="10" fill="#ff0000"/></svg>`,
		"widthonly.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="40px" viewBox="0 0 16 8"></svg>`,
	})

	cases := []struct {
		name  string
		scale float64
		wantW int
		wantH int
	}{
		{name: "attrs.svg", scale: 1, wantW: 64, wantH: 32},
		{name: "attrs.svg", scale: 0.5, wantW: 32, wantH: 16},
		{name: "noviewbox.svg", scale: 1, wantW: 20, wantH: 10},
		{name: "widthonly.svg", scale: 1, wantW: 40, wantH: 20},
	}
	for _, tc := range cases {
		c, err := New(dir, WithScale(tc.scale), WithLogger(testutil.Logger()))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		res, err := c.ConvertFile(tc.name)
		if err != nil {
			t.Fatalf("ConvertFile(%s): %v", tc.name, err)
		}
		if res.Width != tc.wantW || res.Height != tc.wantH {
			t.Errorf("%s at scale %v: size = %dx%d, want %dx%d",
				tc.name, tc.scale, res.Width, res.Height, tc.wantW, tc.wantH)
		}
	}

	// The viewBox content stretches over the declared canvas.
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.ConvertFile("attrs.svg"); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	_, _, at := decodePNG(t, filepath.Join(dir, "attrs.png"))
	for _, p := range [][2]int{{1, 1}, {62, 30}} {
		if got := at(p[0], p[1]); got.R != 0xff || got.A != 0xff {
			t.Errorf("pixel %v = %+v, want opaque red", p, got)
		}
	}
}

func TestParseLength(t *testing.T) {
	cases := map[string]float64{
		"64":    64,
		" 12px": 12,
		"10pt":  10,
		"1in":   72,
		"2pc":   24,
		"50%":   0,
		"auto":  0,
		"":      0,
	}
	for in, want := range cases {
		if got := parseLength(in); got != want {
			t.Errorf("parseLength(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSources_FollowsFileSymlinks(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		"real/a.svg": testutil.SquareSVG(4, "#00ff00"),
		"b.svg":      testutil.SquareSVG(4, "#00ff00"),
	})
	if err := os.Symlink(filepath.Join("real", "a.svg"), filepath.Join(dir, "link.svg")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink("real", filepath.Join(dir, "dir.svg")); err != nil {
		t.Fatal(err)
	}

	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	want := []string{"b.svg", "link.svg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Sources = %v, want %v", got, want)
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if w, h, _ := decodePNG(t, filepath.Join(dir, "link.png")); w != 4 || h != 4 {
		t.Errorf("link.png = %dx%d, want 4x4", w, h)
	}
}

func TestSources_SkipsHiddenFiles(t *testing.T) {
	dir := testutil.Tree(t, map[string]string{
		".hidden.svg": testutil.SquareSVG(4, "#00ff00"),
		"shown.svg":   testutil.SquareSVG(4, "#00ff00"),
	})
	c, err := New(dir, WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if want := []string{"shown.svg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sources = %v, want %v", got, want)
	}

	c, err = New(dir, WithPattern(".*.svg"), WithLogger(testutil.Logger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err = c.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if want := []string{".hidden.svg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sources with dot pattern = %v, want %v", got, want)
	}
}

func TestCanvasSize(t *testing.T) {
	cases := []struct {
		name     string
		vbW, vbH float64
		opts     RenderOptions
		wantW    int
		wantH    int
		wantErr  bool
	}{
		{name: "viewbox", vbW: 32, vbH: 16, opts: RenderOptions{Scale: 1}, wantW: 32, wantH: 16},
		{name: "scaled", vbW: 32, vbH: 16, opts: RenderOptions{Scale: 0.5}, wantW: 16, wantH: 8},
		{name: "zero scale means one", vbW: 5, vbH: 5, opts: RenderOptions{}, wantW: 5, wantH: 5},
		{name: "width keeps aspect", vbW: 32, vbH: 16, opts: RenderOptions{Width: 64}, wantW: 64, wantH: 32},
		{name: "height keeps aspect", vbW: 32, vbH: 16, opts: RenderOptions{Height: 4}, wantW: 8, wantH: 4},
		{name: "both fixed", vbW: 32, vbH: 16, opts: RenderOptions{Width: 3, Height: 7}, wantW: 3, wantH: 7},
		{name: "empty", vbW: 0, vbH: 0, opts: RenderOptions{Scale: 1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := canvasSize(tc.vbW, tc.vbH, tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("canvasSize: %v", err)
			}
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("")
	if err != nil || c != nil {
		t.Errorf("ParseColor(\"\") = %v, %v; want nil, nil", c, err)
	}
	c, err = ParseColor("#000000")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	r, g, b, a := c.RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0xffff {
		t.Errorf("black = %d,%d,%d,%d", r, g, b, a)
	}
}

func TestNew_BadPattern(t *testing.T) {
	if _, err := New(t.TempDir(), WithPattern("[")); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestArtifacts(t *testing.T) {
	got := Artifacts([]Result{{Source: "a.svg", Output: "a.png", Checksum: "abc", Size: 3}})
	want := []models.Artifact{{Kind: models.KindRaster, Path: "a.png", Source: "a.svg", Checksum: "abc", Size: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Artifacts = %+v, want %+v", got, want)
	}
}
