package pdfengine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/font"

	"signet/internal/domain"
	"signet/internal/geometry"
)

const (
	textPadding     = 2.0 // pt
	defaultTextSize = 10
	minTextSize     = 5
	underlineWeight = 0.75 // pt
	defaultColor    = "#000000"
)

// standardFonts maps family, bold, italic to one of the fourteen standard PDF fonts.
var standardFonts = map[string][2][2]string{
	"helvetica": {{"Helvetica", "Helvetica-Oblique"}, {"Helvetica-Bold", "Helvetica-BoldOblique"}},
	"times":     {{"Times-Roman", "Times-Italic"}, {"Times-Bold", "Times-BoldItalic"}},
	"courier":   {{"Courier", "Courier-Oblique"}, {"Courier-Bold", "Courier-BoldOblique"}},
}

var palette = map[string]string{
	"black":    "#000000",
	"blue":     "#1D4ED8",
	"darkblue": "#1E3A8A",
	"navy":     "#000080",
	"red":      "#DC2626",
	"green":    "#15803D",
	"gray":     "#4B5563",
	"grey":     "#4B5563",
	"purple":   "#7E22CE",
	"orange":   "#EA580C",
}

// standardFont resolves a CSS-like family name to a standard PDF font.
func standardFont(family string, bold, italic bool) string {
	f := strings.ToLower(family)
	key := "helvetica"
	switch {
	case strings.Contains(f, "courier"), strings.Contains(f, "mono"):
		key = "courier"
	case strings.Contains(f, "times"), strings.Contains(f, "georgia"), strings.Contains(f, "garamond"),
		strings.Contains(f, "serif") && !strings.Contains(f, "sans"):
		key = "times"
	}
	b, i := 0, 0
	if bold {
		b = 1
	}
	if italic {
		i = 1
	}
	return standardFonts[key][b][i]
}

// resolveColor maps a palette name or #RRGGBB value to #RRGGBB, defaulting to black.
func resolveColor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if hex, ok := palette[strings.ReplaceAll(name, " ", "")]; ok {
		return hex
	}
	if _, ok := hexColor(name); ok {
		return strings.ToUpper(name)
	}
	return defaultColor
}

// fieldText returns the text to burn into a text-like field, or "" to skip it.
func fieldText(f *domain.Field, values map[string]string) string {
	if v := strings.TrimSpace(values[f.ID]); v != "" {
		if f.Type == domain.FieldDate {
			return formatDate(v, formatOf(f).DateFormat)
		}
		return v
	}
	switch v := f.Variant.(type) {
	case domain.TextVariant:
		if v.ReadOnly {
			return strings.TrimSpace(v.DefaultValue)
		}
	case domain.DropdownVariant:
		if v.ReadOnly && v.DefaultValue != "" {
			return strings.TrimSpace(v.DefaultValue)
		}
		return strings.TrimSpace(v.DefaultOption)
	}
	return ""
}

func formatOf(f *domain.Field) domain.TextFormat {
	tf, _ := f.Format()
	return tf
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// formatDate rewrites an ISO date using a pattern such as MM/DD/YYYY.
// Values that are not ISO dates are returned unchanged.
func formatDate(value, pattern string) string {
	if pattern == "" {
		return value
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		r := strings.NewReplacer("YYYY", "2006", "YY", "06", "MMMM", "January", "MMM", "Jan", "MM", "01", "DD", "02", "D", "2")
		return t.Format(r.Replace(pattern))
	}
	return value
}

// drawTextField stamps a text-like field value left-aligned near the bottom
// of its box.
func (e *Engine) drawTextField(out stamps, f *domain.Field, text string, box geometry.Box) error {
	tf := formatOf(f)
	fontName := standardFont(tf.FontFamily, tf.Bold(), tf.Italic())
	fill := resolveColor(tf.Color)
	text = singleLine(text)
	if tf.MaxChars > 0 && len([]rune(text)) > tf.MaxChars {
		text = string([]rune(text)[:tf.MaxChars])
	}

	size := defaultTextSize
	if tf.FontSize > 0 {
		size = int(math.Round(tf.FontSize))
	}
	if maxH := int(box.Height - 2*textPadding); maxH < size {
		size = maxH
	}
	avail := box.Width - 2*textPadding
	for size > minTextSize && font.TextWidth(text, fontName, size) > avail {
		size--
	}
	if size < minTextSize {
		size = minTextSize
	}

	x := box.X + textPadding
	y := box.YFromBottom + textPadding
	wm, err := textStamp(text, fontName, size, fill, x, y)
	if err != nil {
		return fmt.Errorf("field %s: %w", f.ID, err)
	}
	out.add(f.Page, wm)

	if tf.Underline {
		width := math.Min(font.TextWidth(text, fontName, size), avail)
		col, _ := hexColor(fill)
		line, err := imageStamp(lineImage(width, underlineWeight, col), x, math.Max(box.YFromBottom+textPadding-underlineWeight-0.5, 0))
		if err != nil {
			return fmt.Errorf("field %s underline: %w", f.ID, err)
		}
		out.add(f.Page, line)
	}
	return nil
}

// drawCheckbox stamps an X centered in a checked checkbox field.
func (e *Engine) drawCheckbox(out stamps, f *domain.Field, box geometry.Box) error {
	const mark = "X"
	const fontName = "Helvetica-Bold"
	size := int(math.Max(math.Floor(math.Min(box.Width, box.Height)*0.8), minTextSize))
	w := font.TextWidth(mark, fontName, size)
	x := box.X + math.Max((box.Width-w)/2, 0)
	y := box.YFromBottom + math.Max((box.Height-float64(size))/2, 0)
	wm, err := textStamp(mark, fontName, size, defaultColor, x, y)
	if err != nil {
		return fmt.Errorf("field %s: %w", f.ID, err)
	}
	out.add(f.Page, wm)
	return nil
}

// checkboxChecked reports whether a checkbox field should be marked.
func checkboxChecked(f *domain.Field, values map[string]string) bool {
	if v, ok := values[f.ID]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "yes", "checked", "1":
			return true
		}
		return false
	}
	if cb, ok := f.Variant.(domain.CheckboxVariant); ok {
		return cb.Checked
	}
	return false
}
