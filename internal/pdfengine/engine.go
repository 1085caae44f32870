// Package pdfengine burns signatures and field values into PDF bytes.
package pdfengine

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"signet/internal/domain"
	"signet/internal/geometry"
	"signet/internal/port"
	"signet/internal/sigpayload"
)

const (
	defaultVoidLabel = "VOID"
	voidColor        = "#D00000"
)

var disableConfigDir sync.Once

// Engine implements port.DocumentRenderer using pdfcpu stamps.
type Engine struct {
	fonts *sigpayload.FontResolver
}

// New creates an embedding engine that resolves typed-signature fonts with fonts.
func New(fonts *sigpayload.FontResolver) *Engine {
	disableConfigDir.Do(api.DisableConfigDir)
	if fonts == nil {
		fonts = sigpayload.NewFontResolver(nil, nil)
	}
	return &Engine{fonts: fonts}
}

var _ port.DocumentRenderer = (*Engine)(nil)

func (e *Engine) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Embed returns a copy of input.Source with the signer's signatures and
// field values stamped on top of the page content.
func (e *Engine) Embed(ctx context.Context, input port.EmbedInput) ([]byte, error) {
	if err := checkPayloads(input); err != nil {
		return nil, err
	}

	pages, err := e.MeasurePages(input.Source)
	if err != nil {
		return nil, err
	}

	in := &signer{name: input.SignerName, recordID: input.RecordID}
	out := stamps{}
	for i := range input.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &input.Fields[i]
		if f.Page < 1 || f.Page > len(pages) {
			log.Printf("pdfengine.Embed: skipping field %s on page %d of %d", f.ID, f.Page, len(pages))
			continue
		}
		page := pages[f.Page-1]
		box := geometry.ToPdfBoxInRender(&f.FieldBase, page.Width, page.Height, input.RenderWidth)

		switch {
		case f.Type.IsSignatureLike():
			payload, ok := resolvePayload(f.ID, input)
			if !ok {
				continue
			}
			if err := e.drawSignatureField(ctx, out, f, payload, box, in); err != nil {
				return nil, err
			}
		case f.Type.IsTextLike():
			text := fieldText(f, input.TextValues)
			if text == "" {
				continue
			}
			if err := e.drawTextField(out, f, text, box); err != nil {
				return nil, err
			}
		case f.Type == domain.FieldCheckbox:
			if !checkboxChecked(f, input.TextValues) {
				continue
			}
			if err := e.drawCheckbox(out, f, box); err != nil {
				return nil, err
			}
		}
	}

	if out.count() == 0 {
		return append([]byte(nil), input.Source...), nil
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(input.Source), &buf, out, e.conf()); err != nil {
		return nil, fmt.Errorf("pdfengine.Embed: writing stamps: %w", err)
	}
	return buf.Bytes(), nil
}

var _ port.FontPrefetcher = (*Engine)(nil)

// PrefetchFonts resolves every typed-signature font so the sources cache it.
func (e *Engine) PrefetchFonts(ctx context.Context, payloads []string) {
	seen := make(map[string]bool)
	for _, p := range payloads {
		typed, ok := sigpayload.Decode(p).(sigpayload.Typed)
		if !ok || typed.Font == "" || seen[typed.Font] {
			continue
		}
		seen[typed.Font] = true
		e.fonts.Resolve(ctx, typed.Font)
	}
}

// checkPayloads fails when a required signature field has no payload at all.
func checkPayloads(input port.EmbedInput) error {
	for i := range input.Fields {
		f := &input.Fields[i]
		if !f.Type.IsSignatureLike() || !f.Required {
			continue
		}
		if _, ok := resolvePayload(f.ID, input); !ok {
			return fmt.Errorf("%w: required field %s has no signature payload", domain.ErrIntegrityViolation, f.ID)
		}
	}
	return nil
}

func resolvePayload(fieldID string, input port.EmbedInput) (string, bool) {
	if p := input.Signatures[fieldID]; p != "" {
		return p, true
	}
	if input.LegacySignature != nil && *input.LegacySignature != "" {
		return *input.LegacySignature, true
	}
	return "", false
}

// Void stamps a large diagonal label across every page.
func (e *Engine) Void(ctx context.Context, source []byte, label string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if label == "" {
		label = defaultVoidLabel
	}
	if _, err := e.MeasurePages(source); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("fontname:Helvetica-Bold, points:96, scalefactor:0.8 rel, diagonal:1, fillcolor:%s, opacity:0.35", voidColor)
	wm, err := api.TextWatermark(singleLine(label), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("pdfengine.Void: %w", err)
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(source), &buf, nil, wm, e.conf()); err != nil {
		return nil, fmt.Errorf("pdfengine.Void: writing stamp: %w", err)
	}
	return buf.Bytes(), nil
}
