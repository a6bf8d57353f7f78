// Package chunkrec validates raw parse-service chunks into strict, self
// contained chunk records at the service boundary. Nothing loosely typed
// leaves this package.
package chunkrec

import (
	"fmt"
	"strings"

	"github.com/pgmiso/sc-landingai/internal/ade"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

// Build turns one raw chunk into a ChunkRecord for the given document and
// generation. The ordinal is the chunk's position within its page of the
// parse output and, together with the document key and generation, fully
// determines the record id: re-running the same parse yields identical ids.
//
// A malformed chunk fails with ErrMalformedChunk; the caller skips it and
// continues with the rest of the document.
func Build(raw ade.Chunk, doc model.Document, ordinal int) (model.ChunkRecord, error) {
	if ordinal < 0 {
		return model.ChunkRecord{}, fmt.Errorf("%w: negative ordinal %d", appErr.ErrMalformedChunk, ordinal)
	}
	if doc.Domain == "" || doc.Document == "" || doc.Generation == "" {
		return model.ChunkRecord{}, fmt.Errorf("%w: incomplete document reference %+v", appErr.ErrMalformedChunk, doc)
	}
	if strings.Contains(doc.Domain, ":") || strings.Contains(doc.Document, ":") {
		return model.ChunkRecord{}, fmt.Errorf("%w: document key may not contain ':'", appErr.ErrMalformedChunk)
	}

	chunkType := model.ParseChunkType(raw.Type)
	text := strings.TrimSpace(raw.Markdown)
	if chunkType == model.ChunkTypeText && text == "" {
		return model.ChunkRecord{}, fmt.Errorf("%w: text chunk without text", appErr.ErrMalformedChunk)
	}

	page, box, err := grounding(raw, chunkType)
	if err != nil {
		return model.ChunkRecord{}, err
	}

	return model.ChunkRecord{
		ChunkID:        model.FormatChunkID(doc.Domain, doc.Document, doc.Generation, page, ordinal),
		ChunkType:      chunkType,
		Text:           text,
		BBox:           box,
		Page:           page,
		SourceDocument: doc.SourceKey,
		Domain:         doc.Domain,
		Document:       doc.Document,
		Generation:     doc.Generation,
	}, nil
}

// PageOf reports the page a raw chunk grounds to, defaulting to 0 when the
// grounding is absent or unusable. Callers use it to assign per-page
// ordinals before validation.
func PageOf(raw ade.Chunk) int {
	if raw.Grounding == nil || raw.Grounding.Page == nil || *raw.Grounding.Page < 0 {
		return 0
	}
	return *raw.Grounding.Page
}

// grounding extracts page and box. Types that require a box fail without
// one; the rest fall back to the full page. Out-of-range coordinates are
// clamped into [0,1] and reordered, never rejected.
func grounding(raw ade.Chunk, chunkType model.ChunkType) (int, model.FractionalBox, error) {
	fullPage := model.FractionalBox{X0: 0, Y0: 0, X1: 1, Y1: 1}
	if raw.Grounding == nil || raw.Grounding.Page == nil {
		if chunkType.RequiresBox() {
			return 0, model.FractionalBox{}, fmt.Errorf("%w: %s chunk without grounding", appErr.ErrMalformedChunk, chunkType)
		}
		return 0, fullPage, nil
	}
	page := *raw.Grounding.Page
	if page < 0 {
		return 0, model.FractionalBox{}, fmt.Errorf("%w: negative page %d", appErr.ErrMalformedChunk, page)
	}
	if raw.Grounding.Box == nil {
		if chunkType.RequiresBox() {
			return 0, model.FractionalBox{}, fmt.Errorf("%w: %s chunk without bounding box", appErr.ErrMalformedChunk, chunkType)
		}
		return page, fullPage, nil
	}
	b := raw.Grounding.Box
	box := model.FractionalBox{X0: b.Left, Y0: b.Top, X1: b.Right, Y1: b.Bottom}.Canonical()
	return page, box, nil
}
