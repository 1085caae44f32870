// Package sigpayload encodes and decodes signature payload strings.
//
// Grammar:
//
//	payload  = typed | image | legacy
//	typed    = "typed::" name "::" font "::" initials "::" size
//	image    = "data:image/" format ";base64," base64-body
//	legacy   = any other string
//
// Missing typed segments default to empty strings and size 11. The size is
// clamped to [6, 24]; a non-numeric size falls back to 11.
package sigpayload

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
)

const (
	typedPrefix = "typed::"
	imagePrefix = "data:image/"
	separator   = "::"

	DefaultFontSize = 11.0
	MinFontSize     = 6.0
	MaxFontSize     = 24.0
)

// Signature is one of Image, Typed or Absent.
type Signature interface {
	signature()
}

// Image is a raster signature (uploaded or drawn).
type Image struct {
	Format string
	Bytes  []byte
}

// Typed is a typed-name signature rendered with a named font.
type Typed struct {
	Name       string
	Font       string
	Initials   string
	FontSizePt float64
}

// Absent carries no drawable asset. Legacy holds the original payload, if any.
type Absent struct {
	Legacy string
}

func (Image) signature()  {}
func (Typed) signature()  {}
func (Absent) signature() {}

// Decode parses a payload string. It never fails: anything that is not a
// well-formed typed or image payload decodes to Absent.
func Decode(payload string) Signature {
	switch {
	case payload == "":
		return Absent{}
	case strings.HasPrefix(payload, typedPrefix):
		return decodeTyped(strings.TrimPrefix(payload, typedPrefix))
	case strings.HasPrefix(payload, imagePrefix):
		if img, ok := decodeImage(payload); ok {
			return img
		}
	}
	return Absent{Legacy: payload}
}

func decodeTyped(body string) Typed {
	segs := strings.SplitN(body, separator, 4)
	seg := func(i int) string {
		if i < len(segs) {
			return segs[i]
		}
		return ""
	}
	return Typed{
		Name:       seg(0),
		Font:       seg(1),
		Initials:   seg(2),
		FontSizePt: parseSize(seg(3)),
	}
}

func parseSize(s string) float64 {
	size, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(size) {
		return DefaultFontSize
	}
	return ClampFontSize(size)
}

// ClampFontSize bounds a typed signature font size to [6, 24].
func ClampFontSize(size float64) float64 {
	if size < MinFontSize {
		return MinFontSize
	}
	if size > MaxFontSize {
		return MaxFontSize
	}
	return size
}

func decodeImage(payload string) (Image, bool) {
	header, body, ok := strings.Cut(payload, ",")
	if !ok {
		return Image{}, false
	}
	format, enc, ok := strings.Cut(strings.TrimPrefix(header, imagePrefix), ";")
	if !ok || enc != "base64" || format == "" {
		return Image{}, false
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if err != nil {
			return Image{}, false
		}
	}
	if len(data) == 0 {
		return Image{}, false
	}
	return Image{Format: strings.ToLower(format), Bytes: data}, true
}

// Encode serializes a signature. Typed segments cannot contain "::" and are
// sanitized; Absent encodes to its legacy string.
func Encode(sig Signature) string {
	switch s := sig.(type) {
	case Typed:
		size := s.FontSizePt
		if size == 0 {
			size = DefaultFontSize
		}
		return typedPrefix + strings.Join([]string{
			sanitize(s.Name),
			sanitize(s.Font),
			sanitize(s.Initials),
			strconv.FormatFloat(ClampFontSize(size), 'f', -1, 64),
		}, separator)
	case Image:
		format := s.Format
		if format == "" {
			format = "png"
		}
		return imagePrefix + format + ";base64," + base64.StdEncoding.EncodeToString(s.Bytes)
	case Absent:
		return s.Legacy
	}
	return ""
}

func sanitize(s string) string {
	for strings.Contains(s, separator) {
		s = strings.ReplaceAll(s, separator, ":")
	}
	return strings.TrimRight(s, ":")
}

// DisplayText returns the text a typed signature should show on a field:
// initials for initial fields when present, else the full name.
func (t Typed) DisplayText(initialField bool) string {
	if initialField && strings.TrimSpace(t.Initials) != "" {
		return strings.TrimSpace(t.Initials)
	}
	return strings.TrimSpace(t.Name)
}
