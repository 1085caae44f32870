// Package geometry converts field placements between authoring space
// (top-left origin, percent of page or pixels in a fixed render width)
// and PDF space (bottom-left origin, points).
package geometry

import (
	"fmt"
	"math"

	"signet/internal/domain"
)

// LegacyRenderWidth is the render width, in pixels, that legacy pixel
// placements were authored against.
const LegacyRenderWidth = 800.0

// PageSize is a page's visible size in PDF points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box is a rectangle in PDF space.
type Box struct {
	X           float64
	YFromBottom float64
	Width       float64
	Height      float64
}

// Percent is a rectangle in percent of page dimensions, top-left origin.
type Percent struct {
	X float64
	Y float64
	W float64
	H float64
}

// ToPdfBox converts a field placement to an absolute, clamped PDF box on a
// page of the given size, assuming the legacy render width.
func ToPdfBox(f *domain.FieldBase, pageW, pageH float64) Box {
	return ToPdfBoxInRender(f, pageW, pageH, LegacyRenderWidth)
}

// ToPdfBoxInRender is ToPdfBox for legacy placements authored at renderWidth.
// Percentage placements ignore renderWidth.
func ToPdfBoxInRender(f *domain.FieldBase, pageW, pageH, renderWidth float64) Box {
	var x, top, w, h float64
	if f.HasPercent() {
		x = *f.XPct / 100 * pageW
		top = *f.YPct / 100 * pageH
		w = *f.WPct / 100 * pageW
		h = *f.HPct / 100 * pageH
	} else {
		if renderWidth <= 0 {
			renderWidth = LegacyRenderWidth
		}
		// The render kept the page aspect ratio, so both axes share one ratio.
		scale := pageW / renderWidth
		x = f.X * scale
		top = f.Y * scale
		w = f.Width * scale
		h = f.Height * scale
	}
	return clamp(Box{X: x, YFromBottom: pageH - top - h, Width: w, Height: h}, pageW, pageH)
}

// ToDisplayBox is the inverse of ToPdfBox for percentage placements.
func ToDisplayBox(b Box, pageW, pageH float64) Percent {
	if pageW <= 0 || pageH <= 0 {
		return Percent{}
	}
	return Percent{
		X: b.X / pageW * 100,
		Y: (pageH - b.YFromBottom - b.Height) / pageH * 100,
		W: b.Width / pageW * 100,
		H: b.Height / pageH * 100,
	}
}

func clamp(b Box, pageW, pageH float64) Box {
	b.Width = bound(b.Width, 0, math.Max(pageW, 0))
	b.Height = bound(b.Height, 0, math.Max(pageH, 0))
	b.X = bound(b.X, 0, pageW-b.Width)
	b.YFromBottom = bound(b.YFromBottom, 0, pageH-b.Height)
	return b
}

func bound(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if hi < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rect is a page rectangle in render space, top-left origin.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Contains reports whether the point lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

// PageRects lays the pages out vertically at renderWidth, the way the
// authoring UI renders them, and returns one rect per page.
func PageRects(pages []PageSize, renderWidth float64) []Rect {
	if renderWidth <= 0 {
		renderWidth = LegacyRenderWidth
	}
	rects := make([]Rect, 0, len(pages))
	offset := 0.0
	for _, p := range pages {
		h := 0.0
		if p.Width > 0 {
			h = renderWidth * p.Height / p.Width
		}
		rects = append(rects, Rect{Left: 0, Top: offset, Right: renderWidth, Bottom: offset + h})
		offset += h
	}
	return rects
}

// ValidatePlacement rejects a field that does not resolve to an in-page box:
// unknown page numbers, empty sizes, and centers outside every page rect.
func ValidatePlacement(f *domain.FieldBase, pages []PageSize, renderWidth float64) error {
	if f.Page < 1 || f.Page > len(pages) {
		return fmt.Errorf("%w: field %s targets page %d of %d", domain.ErrFieldOutOfPage, f.ID, f.Page, len(pages))
	}
	rects := PageRects(pages, renderWidth)
	page := rects[f.Page-1]
	pageW := page.Right - page.Left
	pageH := page.Bottom - page.Top

	var cx, cy, w, h float64
	if f.HasPercent() {
		w = *f.WPct / 100 * pageW
		h = *f.HPct / 100 * pageH
		cx = page.Left + *f.XPct/100*pageW + w/2
		cy = page.Top + *f.YPct/100*pageH + h/2
	} else {
		w, h = f.Width, f.Height
		cx = page.Left + f.X + w/2
		cy = page.Top + f.Y + h/2
	}
	if !(w > 0) || !(h > 0) {
		return fmt.Errorf("%w: field %s has an empty size", domain.ErrInvalidField, f.ID)
	}
	for _, r := range rects {
		if r.Contains(cx, cy) {
			return nil
		}
	}
	return fmt.Errorf("%w: field %s", domain.ErrFieldOutOfPage, f.ID)
}
