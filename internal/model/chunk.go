package model

import (
	"fmt"
	"strings"
)

type ChunkType string

const (
	ChunkTypeText   ChunkType = "text"
	ChunkTypeTable  ChunkType = "table"
	ChunkTypeFigure ChunkType = "figure"
	ChunkTypeTitle  ChunkType = "title"
	ChunkTypeOther  ChunkType = "other"
)

// ParseChunkType folds the parse service's open-ended type vocabulary into
// the fixed enum. Unknown types map to other instead of failing.
func ParseChunkType(raw string) ChunkType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "paragraph":
		return ChunkTypeText
	case "table", "tablecell":
		return ChunkTypeTable
	case "figure", "image", "logo":
		return ChunkTypeFigure
	case "title", "heading", "section_header":
		return ChunkTypeTitle
	default:
		return ChunkTypeOther
	}
}

// RequiresBox reports whether the chunk type must carry grounding
// information. A text, table or figure chunk without a bounding box is
// malformed; titles and misc chunks fall back to a full-page box.
func (t ChunkType) RequiresBox() bool {
	switch t {
	case ChunkTypeText, ChunkTypeTable, ChunkTypeFigure:
		return true
	}
	return false
}

// FractionalBox is a bounding box in normalized page coordinates:
// [0,1], top-left origin, y growing downward. This is the parse service's
// grounding convention and the only coordinate convention stored in records.
type FractionalBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Canonical clamps every coordinate into [0,1] and reorders the corners so
// that x0<=x1 and y0<=y1. Out-of-range input is repaired, not rejected.
func (b FractionalBox) Canonical() FractionalBox {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	out := FractionalBox{
		X0: clamp(b.X0),
		Y0: clamp(b.Y0),
		X1: clamp(b.X1),
		Y1: clamp(b.Y1),
	}
	if out.X0 > out.X1 {
		out.X0, out.X1 = out.X1, out.X0
	}
	if out.Y0 > out.Y1 {
		out.Y0, out.Y1 = out.Y1, out.Y0
	}
	return out
}

func (b FractionalBox) Slice() [4]float64 {
	return [4]float64{b.X0, b.Y0, b.X1, b.Y1}
}

// PixelBox is a bounding box in absolute pixel coordinates of a rendered
// page image.
type PixelBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func (b PixelBox) Width() int {
	return b.X1 - b.X0
}

func (b PixelBox) Height() int {
	return b.Y1 - b.Y0
}

// ChunkRecord is one extracted content unit, normalized at the parse
// service boundary. Records are immutable once written; reprocessing a
// document produces a new generation instead of updating them.
type ChunkRecord struct {
	ChunkID        string        `json:"chunk_id"`
	ChunkType      ChunkType     `json:"chunk_type"`
	Text           string        `json:"text"`
	BBox           FractionalBox `json:"bbox"`
	Page           int           `json:"page"`
	SourceDocument string        `json:"source_document"`
	Domain         string        `json:"domain"`
	Document       string        `json:"document"`
	Generation     string        `json:"generation"`
}

// ChunkRef is the parsed form of a chunk identifier. Identifiers are
// self-describing so a bare id from a search hit resolves to its record key
// without any lookup table.
type ChunkRef struct {
	Domain     string
	Document   string
	Generation string
	Page       int
	Ordinal    int
}

const chunkIDSep = ":"

// FormatChunkID builds the deterministic chunk identifier
// <domain>:<document>:<generation>:p<page>:c<ordinal>. It is positional,
// never content-derived: identical text on different pages or positions
// gets distinct ids, and re-running the same generation reproduces the
// same ids.
func FormatChunkID(domain, document, generation string, page, ordinal int) string {
	return strings.Join([]string{
		domain,
		document,
		generation,
		fmt.Sprintf("p%d", page),
		fmt.Sprintf("c%d", ordinal),
	}, chunkIDSep)
}

func ParseChunkID(id string) (ChunkRef, error) {
	parts := strings.Split(id, chunkIDSep)
	if len(parts) != 5 {
		return ChunkRef{}, fmt.Errorf("chunk id must have 5 segments, got %d", len(parts))
	}
	ref := ChunkRef{
		Domain:     parts[0],
		Document:   parts[1],
		Generation: parts[2],
	}
	if ref.Domain == "" || ref.Document == "" || ref.Generation == "" {
		return ChunkRef{}, fmt.Errorf("chunk id has empty segment: %s", id)
	}
	if _, err := fmt.Sscanf(parts[3], "p%d", &ref.Page); err != nil || ref.Page < 0 {
		return ChunkRef{}, fmt.Errorf("chunk id has invalid page segment: %s", parts[3])
	}
	if _, err := fmt.Sscanf(parts[4], "c%d", &ref.Ordinal); err != nil || ref.Ordinal < 0 {
		return ChunkRef{}, fmt.Errorf("chunk id has invalid ordinal segment: %s", parts[4])
	}
	return ref, nil
}

func (r ChunkRef) ID() string {
	return FormatChunkID(r.Domain, r.Document, r.Generation, r.Page, r.Ordinal)
}
