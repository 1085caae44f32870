package pdfengine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Generated images are rasterized at rasterScale pixels per point and stamped
// back at 1/rasterScale.
const rasterScale = 4.0

var (
	inkColor    = color.NRGBA{R: 0x0F, G: 0x1E, B: 0x4A, A: 0xFF}
	borderColor = color.NRGBA{R: 0x5B, G: 0x7B, B: 0xC0, A: 0xFF}
	borderWidth = 1.0 // pt
)

func px(pt float64) int {
	return int(math.Max(1, math.Ceil(pt*rasterScale)))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSignatureImage decodes PNG bytes, falling back to JPEG.
func decodeSignatureImage(data []byte) (image.Image, error) {
	img, pngErr := png.Decode(bytes.NewReader(data))
	if pngErr == nil {
		return img, nil
	}
	img, jpgErr := jpeg.Decode(bytes.NewReader(data))
	if jpgErr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("not a png (%v) or jpeg (%v)", pngErr, jpgErr)
}

// fit returns the largest size with the aspect ratio of w:h that fits in maxW x maxH.
func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	s := math.Min(maxW/w, maxH/h)
	return w * s, h * s
}

// resample scales img to the given size in points at raster resolution.
func resample(img image.Image, wPt, hPt float64) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, px(wPt), px(hPt)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func newFace(f *opentype.Font, sizePt, scale float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt * scale,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// measureText returns the advance width of text in points.
func measureText(f *opentype.Font, text string, sizePt float64) (float64, error) {
	face, err := newFace(f, sizePt, 1)
	if err != nil {
		return 0, err
	}
	defer func() { _ = face.Close() }()
	return fixedToFloat(font.MeasureString(face, text)), nil
}

// renderText rasterizes one line of text onto a transparent image.
func renderText(f *opentype.Font, text string, sizePt float64, col color.Color) (image.Image, error) {
	face, err := newFace(f, sizePt, rasterScale)
	if err != nil {
		return nil, err
	}
	defer func() { _ = face.Close() }()

	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	height := ascent + m.Descent.Ceil()
	width := font.MeasureString(face, text).Ceil()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("text %q has no visible extent", text)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)
	return img, nil
}

// borderImage draws a bracket-style frame: a top-left corner, a bottom-left
// corner and a baseline.
func borderImage(wPt, hPt float64) image.Image {
	w, h := px(wPt), px(hPt)
	stroke := px(borderWidth)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	src := image.NewUniform(borderColor)

	arm := w / 8
	rects := []image.Rectangle{
		image.Rect(0, 0, stroke, h),   // left edge
		image.Rect(0, 0, arm, stroke), // top arm
		image.Rect(0, h-stroke, w, h), // baseline
	}
	for _, r := range rects {
		draw.Draw(img, r, src, image.Point{}, draw.Src)
	}
	return img
}

// lineImage draws a solid horizontal rule.
func lineImage(wPt, thicknessPt float64, col color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, px(wPt), px(thicknessPt)))
	draw.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	return img
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// hexColor parses #RRGGBB.
func hexColor(s string) (color.NRGBA, bool) {
	var c color.NRGBA
	if len(s) != 7 || s[0] != '#' {
		return c, false
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, false
	}
	c.A = 0xFF
	return c, true
}
