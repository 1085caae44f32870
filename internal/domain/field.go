package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldType is the semantic type of a placed field.
type FieldType string

const (
	FieldSignature FieldType = "signature"
	FieldInitial   FieldType = "initial"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
	FieldName      FieldType = "name"
	FieldEmail     FieldType = "email"
	FieldCompany   FieldType = "company"
	FieldTitle     FieldType = "title"
	FieldNumber    FieldType = "number"
	FieldCheckbox  FieldType = "checkbox"
	FieldDropdown  FieldType = "dropdown"
	FieldRadio     FieldType = "radio"
	FieldStamp     FieldType = "stamp"
)

// textFieldTypes are burned into the PDF as formatted text.
var textFieldTypes = map[FieldType]bool{
	FieldName:     true,
	FieldEmail:    true,
	FieldCompany:  true,
	FieldTitle:    true,
	FieldText:     true,
	FieldNumber:   true,
	FieldStamp:    true,
	FieldDate:     true,
	FieldDropdown: true,
}

// IsSignatureLike reports whether fields of this type carry a signature payload.
func (t FieldType) IsSignatureLike() bool {
	return t == FieldSignature || t == FieldInitial
}

// IsTextLike reports whether fields of this type are rendered as text.
func (t FieldType) IsTextLike() bool {
	return textFieldTypes[t]
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldSignature, FieldInitial, FieldCheckbox, FieldRadio:
		return true
	}
	return textFieldTypes[t]
}

// FieldBase holds geometry and metadata shared by every field type.
// Percentage coordinates (XPct..HPct) use a top-left origin and take precedence
// over the legacy pixel coordinates (X..Height) when present.
type FieldBase struct {
	ID        string    `json:"id"`
	Page      int       `json:"page"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	DataLabel string    `json:"dataLabel,omitempty"`
	Tooltip   string    `json:"tooltip,omitempty"`
	Scale     float64   `json:"scale,omitempty"`
	XPct      *float64  `json:"xPct,omitempty"`
	YPct      *float64  `json:"yPct,omitempty"`
	WPct      *float64  `json:"wPct,omitempty"`
	HPct      *float64  `json:"hPct,omitempty"`
}

// HasPercent reports whether all four percentage coordinates are set.
func (b *FieldBase) HasPercent() bool {
	return b.XPct != nil && b.YPct != nil && b.WPct != nil && b.HPct != nil
}

// TextFormat configures how a text-like field value is drawn.
type TextFormat struct {
	FontFamily   string  `json:"fontFamily,omitempty"`
	FontSize     float64 `json:"fontSize,omitempty"`
	FontWeight   string  `json:"fontWeight,omitempty"`
	FontStyle    string  `json:"fontStyle,omitempty"`
	Color        string  `json:"color,omitempty"`
	Underline    bool    `json:"underline,omitempty"`
	MaxChars     int     `json:"maxChars,omitempty"`
	ReadOnly     bool    `json:"readOnly,omitempty"`
	DefaultValue string  `json:"defaultValue,omitempty"`
	DateFormat   string  `json:"dateFormat,omitempty"`
}

// Bold reports whether the weight asks for a bold face.
func (f TextFormat) Bold() bool { return f.FontWeight == "bold" || f.FontWeight == "700" }

// Italic reports whether the style asks for an italic face.
func (f TextFormat) Italic() bool { return f.FontStyle == "italic" || f.FontStyle == "oblique" }

// FieldVariant is the per-type payload of a Field.
type FieldVariant interface {
	fieldVariant()
}

// SignatureVariant is the payload of signature and initial fields.
type SignatureVariant struct{}

// TextVariant is the payload of text-like fields.
type TextVariant struct {
	TextFormat
}

// DropdownVariant is the payload of dropdown fields.
type DropdownVariant struct {
	TextFormat
	Options       []string `json:"options,omitempty"`
	DefaultOption string   `json:"defaultOption,omitempty"`
}

// CheckboxVariant is the payload of checkbox fields.
type CheckboxVariant struct {
	Checked bool `json:"checked,omitempty"`
}

// RadioVariant is the payload of radio fields.
type RadioVariant struct {
	Group   string   `json:"group,omitempty"`
	Options []string `json:"options,omitempty"`
}

func (SignatureVariant) fieldVariant() {}
func (TextVariant) fieldVariant()      {}
func (DropdownVariant) fieldVariant()  {}
func (CheckboxVariant) fieldVariant()  {}
func (RadioVariant) fieldVariant()     {}

// Field is a typed placement on a page, owned by one sign request.
type Field struct {
	FieldBase
	Variant FieldVariant
}

// Label returns a human-readable name for the field.
func (f *Field) Label() string {
	if f.DataLabel != "" {
		return f.DataLabel
	}
	return string(f.Type)
}

// Format returns the text formatting of text-like and dropdown fields.
func (f *Field) Format() (TextFormat, bool) {
	switch v := f.Variant.(type) {
	case TextVariant:
		return v.TextFormat, true
	case DropdownVariant:
		return v.TextFormat, true
	}
	return TextFormat{}, false
}

func newVariant(t FieldType) (FieldVariant, error) {
	switch {
	case t.IsSignatureLike():
		return SignatureVariant{}, nil
	case t == FieldDropdown:
		return DropdownVariant{}, nil
	case t.IsTextLike():
		return TextVariant{}, nil
	case t == FieldCheckbox:
		return CheckboxVariant{}, nil
	case t == FieldRadio:
		return RadioVariant{}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidField, t)
}

// MarshalJSON writes the shared attributes and the variant attributes as one flat object.
func (f Field) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(f.FieldBase)
	if err != nil {
		return nil, err
	}
	if f.Variant == nil {
		return base, nil
	}
	extra, err := json.Marshal(f.Variant)
	if err != nil {
		return nil, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(extra, &merged); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads a flat field object and decodes the variant selected by its type.
func (f *Field) UnmarshalJSON(data []byte) error {
	var base FieldBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	if base.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidField)
	}
	variant, err := newVariant(base.Type)
	if err != nil {
		return err
	}
	switch v := variant.(type) {
	case TextVariant:
		err = json.Unmarshal(data, &v)
		variant = v
	case DropdownVariant:
		err = json.Unmarshal(data, &v)
		variant = v
	case CheckboxVariant:
		err = json.Unmarshal(data, &v)
		variant = v
	case RadioVariant:
		err = json.Unmarshal(data, &v)
		variant = v
	}
	if err != nil {
		return err
	}
	f.FieldBase = base
	f.Variant = variant
	return nil
}

// Fields is a JSONB-backed list of fields.
type Fields []Field

// Find returns the field with the given id.
func (fs Fields) Find(id string) (*Field, bool) {
	for i := range fs {
		if fs[i].ID == id {
			return &fs[i], true
		}
	}
	return nil, false
}

// Value implements driver.Valuer.
func (fs Fields) Value() (driver.Value, error) {
	if fs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(fs)
}

// Scan implements sql.Scanner.
func (fs *Fields) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*fs = Fields{}
		return nil
	}
	return json.Unmarshal(data, fs)
}

// StringMap is a JSONB-backed map from field id to a string value.
type StringMap map[string]string

// Value implements driver.Valuer.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *StringMap) Scan(src interface{}) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	out := StringMap{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("unsupported JSON column type")
}
