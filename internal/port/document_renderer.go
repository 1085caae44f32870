package port

import (
	"context"

	"signet/internal/domain"
	"signet/internal/geometry"
)

// EmbedInput carries everything needed to burn one recipient's signatures
// and field values into the working copy of a document.
type EmbedInput struct {
	Source          []byte
	Fields          domain.Fields
	Signatures      map[string]string // field id -> signature payload
	LegacySignature *string
	TextValues      map[string]string // field id -> submitted value
	SignerName      string
	RecordID        string  // sign request id; its prefix is printed under each signature
	RenderWidth     float64 // authoring render width for legacy pixel placements
}

// DocumentRenderer abstracts PDF rewriting.
type DocumentRenderer interface {
	Embed(ctx context.Context, input EmbedInput) ([]byte, error)
	Void(ctx context.Context, source []byte, label string) ([]byte, error)
	MeasurePages(source []byte) ([]geometry.PageSize, error)
}

// FontPrefetcher is implemented by renderers that can resolve the fonts named
// in signature payloads ahead of Embed, outside the document lock.
type FontPrefetcher interface {
	PrefetchFonts(ctx context.Context, payloads []string)
}
