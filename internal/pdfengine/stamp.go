package pdfengine

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// stamps collects on-top watermarks per 1-based page number.
type stamps map[int][]*model.Watermark

func (s stamps) add(page int, wm *model.Watermark) {
	s[page] = append(s[page], wm)
}

func (s stamps) count() int {
	n := 0
	for _, wms := range s {
		n += len(wms)
	}
	return n
}

// imageStamp places a raster generated at rasterScale with its lower-left
// corner at (x, y) in points.
func imageStamp(img image.Image, x, y float64) (*model.Watermark, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%g abs, rotation:0, opacity:1", x, y, 1/rasterScale)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(data), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("image stamp: %w", err)
	}
	return wm, nil
}

// textStamp places one line of text in a standard font with its lower-left
// corner at (x, y) in points.
func textStamp(text, fontName string, sizePt int, fill string, x, y float64) (*model.Watermark, error) {
	desc := fmt.Sprintf(
		"fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:%s, opacity:1",
		fontName, sizePt, x, y, fill,
	)
	wm, err := api.TextWatermark(singleLine(text), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("text stamp: %w", err)
	}
	return wm, nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
