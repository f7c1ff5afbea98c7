// Package rasterize renders SVG documents into PNG images.
package rasterize

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/starford/assetforge/internal/apperr"
)

// RenderOptions controls canvas size and fill.
//
// Width and Height override the document size. When only one is set, the
// other follows the document aspect ratio. Scale applies only to the
// document size, which is the root width/height or else the viewBox.
type RenderOptions struct {
	Scale      float64
	Width      int
	Height     int
	Background color.Color
	Strict     bool
}

// Render parses an SVG document and draws it onto a new RGBA canvas.
func Render(r io.Reader, opts RenderOptions) (*image.RGBA, error) {
	mode := oksvg.WarnErrorMode
	if opts.Strict {
		mode = oksvg.StrictErrorMode
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rasterize: read svg: %w", err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), mode)
	if err != nil {
		return nil, fmt.Errorf("rasterize: parse svg: %w", err)
	}

	docW, docH := documentSize(data, icon.ViewBox.W, icon.ViewBox.H)
	w, h, err := canvasSize(docW, docH, opts)
	if err != nil {
		return nil, err
	}

	// Without a viewBox, user units map 1:1 onto the requested canvas.
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if opts.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return img, nil
}

// documentSize returns the intrinsic size of the document: the root
// element's width and height when declared, otherwise the viewBox. A
// single declared dimension takes the other from the viewBox ratio.
func documentSize(data []byte, vbW, vbH float64) (float64, float64) {
	attrW, attrH := rootSize(data)
	hasVB := vbW > 0 && vbH > 0
	switch {
	case attrW > 0 && attrH > 0:
		return attrW, attrH
	case attrW > 0 && hasVB:
		return attrW, attrW * vbH / vbW
	case attrH > 0 && hasVB:
		return attrH * vbW / vbH, attrH
	}
	return vbW, vbH
}

// rootSize reads width and height from the root svg element. Missing or
// relative (percentage) values are reported as zero.
func rootSize(data []byte) (float64, float64) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return 0, 0
		}
		var w, h float64
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "width":
				w = parseLength(a.Value)
			case "height":
				h = parseLength(a.Value)
			}
		}
		return w, h
	}
}

// Length units in output pixels; one user unit is one pixel.
var lengthUnits = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 1,
	"pc": 12,
	"in": 72,
	"cm": 72 / 2.54,
	"mm": 72 / 25.4,
}

func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if f, ok := lengthUnits[s[len(s)-2:]]; ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-2]), 64)
			if err != nil {
				return 0
			}
			return v * f
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func canvasSize(vbW, vbH float64, opts RenderOptions) (int, int, error) {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := opts.Width, opts.Height
	switch {
	case w > 0 && h > 0:
	case w > 0 && vbW > 0 && vbH > 0:
		h = int(math.Round(float64(w) * vbH / vbW))
	case h > 0 && vbW > 0 && vbH > 0:
		w = int(math.Round(float64(h) * vbW / vbH))
	default:
		w = int(math.Round(vbW * scale))
		h = int(math.Round(vbH * scale))
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("rasterize: %dx%d: %w", w, h, apperr.ErrEmptyCanvas)
	}
	return w, h, nil
}

// ParseColor parses any SVG colour value. An empty string or "none"
// yields nil, meaning a transparent background.
func ParseColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	c, err := oksvg.ParseSVGColor(s)
	if err != nil {
		return nil, fmt.Errorf("rasterize: colour %q: %w", s, err)
	}
	return c, nil
}
