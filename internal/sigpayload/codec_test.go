package sigpayload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/sigpayload"
)

func TestDecode_Typed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    sigpayload.Typed
	}{
		{
			name:    "all segments",
			payload: "typed::Jane Doe::Pacifico::JD::11",
			want:    sigpayload.Typed{Name: "Jane Doe", Font: "Pacifico", Initials: "JD", FontSizePt: 11},
		},
		{
			name:    "missing segments default",
			payload: "typed::Jane Doe",
			want:    sigpayload.Typed{Name: "Jane Doe", FontSizePt: 11},
		},
		{
			name:    "empty body",
			payload: "typed::",
			want:    sigpayload.Typed{FontSizePt: 11},
		},
		{
			name:    "size clamped high",
			payload: "typed::A::B::C::99",
			want:    sigpayload.Typed{Name: "A", Font: "B", Initials: "C", FontSizePt: 24},
		},
		{
			name:    "size clamped low",
			payload: "typed::A::B::C::2",
			want:    sigpayload.Typed{Name: "A", Font: "B", Initials: "C", FontSizePt: 6},
		},
		{
			name:    "non-numeric size",
			payload: "typed::A::B::C::big",
			want:    sigpayload.Typed{Name: "A", Font: "B", Initials: "C", FontSizePt: 11},
		},
		{
			name:    "fractional size",
			payload: "typed::A::B::C::12.5",
			want:    sigpayload.Typed{Name: "A", Font: "B", Initials: "C", FontSizePt: 12.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sigpayload.Decode(tt.payload)
			typed, ok := got.(sigpayload.Typed)
			require.True(t, ok, "expected Typed, got %T", got)
			assert.Equal(t, tt.want, typed)
		})
	}
}

func TestDecode_Image(t *testing.T) {
	got := sigpayload.Decode("data:image/png;base64,iVBORw0KGgo=")

	img, ok := got.(sigpayload.Image)
	require.True(t, ok)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, img.Bytes)
}

func TestDecode_Absent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		legacy  string
	}{
		{name: "empty", payload: "", legacy: ""},
		{name: "opaque legacy", payload: "Jane Doe", legacy: "Jane Doe"},
		{name: "bad base64", payload: "data:image/png;base64,@@@", legacy: "data:image/png;base64,@@@"},
		{name: "not base64 encoded", payload: "data:image/svg+xml;utf8,<svg/>", legacy: "data:image/svg+xml;utf8,<svg/>"},
		{name: "no body", payload: "data:image/png;base64", legacy: "data:image/png;base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sigpayload.Decode(tt.payload)
			assert.Equal(t, sigpayload.Absent{Legacy: tt.legacy}, got)
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sigs := []sigpayload.Signature{
		sigpayload.Typed{Name: "Jane Doe", Font: "Pacifico", Initials: "JD", FontSizePt: 11},
		sigpayload.Typed{Name: "José Ñúñez", Font: "Dancing Script", Initials: "", FontSizePt: 18.5},
		sigpayload.Typed{Name: "", Font: "", Initials: "", FontSizePt: 6},
		sigpayload.Image{Format: "jpeg", Bytes: []byte{0xff, 0xd8, 0xff, 0xe0}},
		sigpayload.Absent{Legacy: "scribble"},
	}

	for _, sig := range sigs {
		assert.Equal(t, sig, sigpayload.Decode(sigpayload.Encode(sig)))
	}
}

func TestEncode_Typed(t *testing.T) {
	got := sigpayload.Encode(sigpayload.Typed{Name: "Jane Doe", Font: "Pacifico", Initials: "JD", FontSizePt: 11})
	assert.Equal(t, "typed::Jane Doe::Pacifico::JD::11", got)
}

func TestEncode_StripsSeparator(t *testing.T) {
	encoded := sigpayload.Encode(sigpayload.Typed{Name: "a::b:", Font: "F", Initials: "x", FontSizePt: 12})

	got, ok := sigpayload.Decode(encoded).(sigpayload.Typed)
	require.True(t, ok)
	assert.Equal(t, "a:b", got.Name)
	assert.Equal(t, "F", got.Font)
	assert.Equal(t, "x", got.Initials)
	assert.Equal(t, 12.0, got.FontSizePt)
}

func TestTyped_DisplayText(t *testing.T) {
	typed := sigpayload.Typed{Name: "Jane Doe", Initials: "JD"}

	assert.Equal(t, "JD", typed.DisplayText(true))
	assert.Equal(t, "Jane Doe", typed.DisplayText(false))
	assert.Equal(t, "Jane Doe", sigpayload.Typed{Name: "Jane Doe"}.DisplayText(true))
}
