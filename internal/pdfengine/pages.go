package pdfengine

import (
	"bytes"
	"fmt"
	"log"
	"math"

	"github.com/digitorus/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"signet/internal/domain"
	"signet/internal/geometry"
)

var pdfMagic = []byte("%PDF-")

// MeasurePages returns the visible size of every page. It reads page boxes
// directly and falls back to a full pdfcpu parse for files the lightweight
// reader cannot handle.
func (e *Engine) MeasurePages(source []byte) ([]geometry.PageSize, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(source, "\x00\t\r\n "), pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrInvalidPDF)
	}

	pages, err := readPageBoxes(source)
	if err == nil && len(pages) > 0 {
		return pages, nil
	}
	if err != nil {
		log.Printf("pdfengine.MeasurePages: page box read failed, falling back to pdfcpu: %v", err)
	}

	dims, err := api.PageDims(bytes.NewReader(source), e.conf())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", domain.ErrInvalidPDF)
	}
	pages = make([]geometry.PageSize, len(dims))
	for i, d := range dims {
		pages[i] = geometry.PageSize{Width: d.Width, Height: d.Height}
	}
	return pages, nil
}

func readPageBoxes(source []byte) (pages []geometry.PageSize, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("reading PDF: %v", r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(source), int64(len(source)))
	if err != nil {
		return nil, err
	}
	n := rdr.NumPage()
	pages = make([]geometry.PageSize, 0, n)
	for i := 1; i <= n; i++ {
		page := rdr.Page(i)
		if page.V.IsNull() {
			return nil, fmt.Errorf("page %d not found", i)
		}
		box, ok := inheritedBox(page.V, "CropBox")
		if !ok {
			box, ok = inheritedBox(page.V, "MediaBox")
		}
		if !ok {
			return nil, fmt.Errorf("page %d has no media box", i)
		}
		size := geometry.PageSize{
			Width:  math.Abs(box[2] - box[0]),
			Height: math.Abs(box[3] - box[1]),
		}
		if rot := inherited(page.V, "Rotate"); !rot.IsNull() {
			if r := ((rot.Int64() % 360) + 360) % 360; r == 90 || r == 270 {
				size.Width, size.Height = size.Height, size.Width
			}
		}
		if size.Width <= 0 || size.Height <= 0 {
			return nil, fmt.Errorf("page %d has an empty media box", i)
		}
		pages = append(pages, size)
	}
	return pages, nil
}

// inherited walks the page tree upwards for an inheritable attribute.
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < 64; depth++ {
		if attr := v.Key(key); !attr.IsNull() {
			return attr
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func inheritedBox(v pdf.Value, key string) ([4]float64, bool) {
	var box [4]float64
	attr := inherited(v, key)
	if attr.Kind() != pdf.Array || attr.Len() < 4 {
		return box, false
	}
	for i := 0; i < 4; i++ {
		box[i] = attr.Index(i).Float64()
	}
	return box, true
}
