package pdfengine

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"strings"

	"golang.org/x/image/font/opentype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"signet/internal/domain"
	"signet/internal/geometry"
	"signet/internal/sigpayload"
)

const (
	innerMargin     = 3.0  // pt, keeps script ascenders and descenders inside the border
	imageHeightFrac = 0.55 // max share of the box height an image signature may use
	labelFontSize   = 6
	labelLineHeight = 7.0
	labelFont       = "Helvetica"
	labelColor      = "#374151"
	minTypedSize    = 5.0
	borderAspect    = 3.0 // width:height of the decorative frame
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// signatureArea splits a field box into the area for the signature itself
// and the label strip beneath it.
type signatureArea struct {
	inner  geometry.Box
	sig    geometry.Box
	labelY float64
}

func layoutSignature(box geometry.Box) signatureArea {
	margin := math.Min(innerMargin, math.Min(box.Width, box.Height)/4)
	inner := geometry.Box{
		X:           box.X + margin,
		YFromBottom: box.YFromBottom + margin,
		Width:       math.Max(box.Width-2*margin, 0),
		Height:      math.Max(box.Height-2*margin, 0),
	}
	labels := math.Min(2*labelLineHeight, inner.Height*0.4)
	return signatureArea{
		inner: inner,
		sig: geometry.Box{
			X:           inner.X,
			YFromBottom: inner.YFromBottom + labels,
			Width:       inner.Width,
			Height:      inner.Height - labels,
		},
		labelY: inner.YFromBottom,
	}
}

// drawSignatureField stamps one signature or initial field.
func (e *Engine) drawSignatureField(ctx context.Context, out stamps, f *domain.Field, payload string, box geometry.Box, in *signer) error {
	area := layoutSignature(box)

	if err := e.drawBorder(out, f.Page, area.inner); err != nil {
		return fmt.Errorf("field %s border: %w", f.ID, err)
	}

	drawn := false
	switch sig := sigpayload.Decode(payload).(type) {
	case sigpayload.Image:
		img, err := decodeSignatureImage(sig.Bytes)
		if err != nil {
			log.Printf("pdfengine.Embed: field %s image signature unreadable, using name: %v", f.ID, err)
			break
		}
		if err := e.drawImageSignature(out, f.Page, img, area.sig, box.Height); err != nil {
			return fmt.Errorf("field %s: %w", f.ID, err)
		}
		drawn = true
	case sigpayload.Typed:
		text := sig.DisplayText(f.Type == domain.FieldInitial)
		if text == "" {
			break
		}
		face := e.fonts.Resolve(ctx, sig.Font)
		if err := e.drawTypedSignature(out, f.Page, face, titleCaser.String(text), area.sig); err != nil {
			return fmt.Errorf("field %s: %w", f.ID, err)
		}
		drawn = true
	}

	if !drawn {
		if err := e.drawTypedSignature(out, f.Page, e.fonts.Default(), in.name, area.sig); err != nil {
			return fmt.Errorf("field %s fallback: %w", f.ID, err)
		}
	}

	return e.drawSignedBy(out, f.Page, area, in)
}

func (e *Engine) drawBorder(out stamps, page int, inner geometry.Box) error {
	w, h := fit(borderAspect, 1, inner.Width, inner.Height)
	if w < 1 || h < 1 {
		return nil
	}
	y := inner.YFromBottom + (inner.Height-h)/2
	wm, err := imageStamp(borderImage(w, h), inner.X, y)
	if err != nil {
		return err
	}
	out.add(page, wm)
	return nil
}

func (e *Engine) drawImageSignature(out stamps, page int, img image.Image, area geometry.Box, boxHeight float64) error {
	b := img.Bounds()
	w, h := fit(float64(b.Dx()), float64(b.Dy()), area.Width, math.Min(area.Height, boxHeight*imageHeightFrac))
	if w < 1 || h < 1 {
		return nil
	}
	x := area.X + (area.Width-w)/2
	y := area.YFromBottom + (area.Height-h)/2
	wm, err := imageStamp(resample(img, w, h), x, y)
	if err != nil {
		return err
	}
	out.add(page, wm)
	return nil
}

// typedSize shrinks from a height-derived size in 1pt steps until text fits width.
func typedSize(face *opentype.Font, text string, area geometry.Box) float64 {
	size := math.Max(math.Floor(area.Height*0.7), minTypedSize)
	for size > minTypedSize {
		w, err := measureText(face, text, size)
		if err == nil && w <= area.Width {
			break
		}
		size--
	}
	return math.Max(size, minTypedSize)
}

func (e *Engine) drawTypedSignature(out stamps, page int, face *opentype.Font, text string, area geometry.Box) error {
	text = strings.TrimSpace(text)
	if text == "" || area.Width <= 0 || area.Height <= 0 {
		return nil
	}
	size := typedSize(face, text, area)
	img, err := renderText(face, text, size, inkColor)
	if err != nil {
		return err
	}
	b := img.Bounds()
	w := float64(b.Dx()) / rasterScale
	h := float64(b.Dy()) / rasterScale
	x := area.X
	y := area.YFromBottom + math.Max((area.Height-h)/2, 0)
	if w > area.Width {
		// Still too wide at the floor size: scale down uniformly.
		w, h = fit(w, h, area.Width, area.Height)
		img = resample(img, w, h)
	}
	wm, err := imageStamp(img, x, y)
	if err != nil {
		return err
	}
	out.add(page, wm)
	return nil
}

func (e *Engine) drawSignedBy(out stamps, page int, area signatureArea, in *signer) error {
	lines := []string{"Signed by:", in.identifier()}
	for i, line := range lines {
		y := area.labelY + float64(len(lines)-1-i)*labelLineHeight
		wm, err := textStamp(line, labelFont, labelFontSize, labelColor, area.inner.X, y)
		if err != nil {
			return fmt.Errorf("signed-by label: %w", err)
		}
		out.add(page, wm)
	}
	return nil
}

// signer identifies who is signing in the label printed under signatures.
type signer struct {
	name     string
	recordID string
}

func (s *signer) identifier() string {
	id := s.recordID
	if len(id) > 8 {
		id = id[:8]
	}
	if s.name == "" {
		return id
	}
	if id == "" {
		return s.name
	}
	return fmt.Sprintf("%s (%s)", s.name, id)
}
