package chunkrec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgmiso/sc-landingai/internal/ade"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

func testDoc() model.Document {
	return model.Document{
		SourceKey:  "input/medical/report.pdf",
		Domain:     "medical",
		Document:   "report",
		Generation: "a1b2c3d4e5f6",
	}
}

func textChunk(page int, box *ade.Box) ade.Chunk {
	return ade.Chunk{
		ID:        "chunk_raw",
		Type:      "text",
		Markdown:  "patient history",
		Grounding: &ade.Grounding{Page: &page, Box: box},
	}
}

func TestBuildDeterministicID(t *testing.T) {
	raw := textChunk(2, &ade.Box{Left: 0.1, Top: 0.2, Right: 0.9, Bottom: 0.4})
	first, err := Build(raw, testDoc(), 7)
	require.NoError(t, err)
	second, err := Build(raw, testDoc(), 7)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "medical:report:a1b2c3d4e5f6:p2:c7", first.ChunkID)

	ref, err := model.ParseChunkID(first.ChunkID)
	require.NoError(t, err)
	require.Equal(t, model.ChunkRef{
		Domain: "medical", Document: "report", Generation: "a1b2c3d4e5f6",
		Page: 2, Ordinal: 7,
	}, ref)
}

func TestBuildClampsOutOfRangeBox(t *testing.T) {
	raw := textChunk(0, &ade.Box{Left: -0.1, Top: 0.2, Right: 1.2, Bottom: 0.4})
	rec, err := Build(raw, testDoc(), 0)
	require.NoError(t, err)
	require.Equal(t, model.FractionalBox{X0: 0, Y0: 0.2, X1: 1, Y1: 0.4}, rec.BBox)
}

func TestBuildReordersInvertedBox(t *testing.T) {
	raw := textChunk(0, &ade.Box{Left: 0.8, Top: 0.5, Right: 0.2, Bottom: 0.1})
	rec, err := Build(raw, testDoc(), 0)
	require.NoError(t, err)
	require.Equal(t, model.FractionalBox{X0: 0.2, Y0: 0.1, X1: 0.8, Y1: 0.5}, rec.BBox)
}

func TestBuildMalformed(t *testing.T) {
	page := 1
	tests := []struct {
		name string
		raw  ade.Chunk
	}{
		{name: "text chunk without grounding", raw: ade.Chunk{Type: "text", Markdown: "x"}},
		{name: "table chunk without box", raw: ade.Chunk{Type: "table", Markdown: "x", Grounding: &ade.Grounding{Page: &page}}},
		{name: "figure chunk without grounding", raw: ade.Chunk{Type: "figure"}},
		{name: "text chunk without text", raw: textChunkEmptyText(page)},
		{name: "negative page", raw: negativePageChunk()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.raw, testDoc(), 0)
			require.ErrorIs(t, err, appErr.ErrMalformedChunk)
		})
	}
}

func textChunkEmptyText(page int) ade.Chunk {
	return ade.Chunk{
		Type:      "text",
		Markdown:  "   ",
		Grounding: &ade.Grounding{Page: &page, Box: &ade.Box{Left: 0.1, Top: 0.1, Right: 0.9, Bottom: 0.2}},
	}
}

func negativePageChunk() ade.Chunk {
	page := -1
	return ade.Chunk{
		Type:      "text",
		Markdown:  "x",
		Grounding: &ade.Grounding{Page: &page, Box: &ade.Box{Left: 0.1, Top: 0.1, Right: 0.9, Bottom: 0.2}},
	}
}

func TestBuildTitleWithoutBoxFallsBackToFullPage(t *testing.T) {
	rec, err := Build(ade.Chunk{Type: "title", Markdown: "Findings"}, testDoc(), 3)
	require.NoError(t, err)
	require.Equal(t, model.ChunkTypeTitle, rec.ChunkType)
	require.Equal(t, model.FractionalBox{X0: 0, Y0: 0, X1: 1, Y1: 1}, rec.BBox)
	require.Equal(t, 0, rec.Page)
}

func TestPageOf(t *testing.T) {
	page := 4
	negative := -2
	require.Equal(t, 4, PageOf(ade.Chunk{Grounding: &ade.Grounding{Page: &page}}))
	require.Equal(t, 0, PageOf(ade.Chunk{}))
	require.Equal(t, 0, PageOf(ade.Chunk{Grounding: &ade.Grounding{}}))
	require.Equal(t, 0, PageOf(ade.Chunk{Grounding: &ade.Grounding{Page: &negative}}))
}

func TestBuildUnknownTypeMapsToOther(t *testing.T) {
	page := 0
	rec, err := Build(ade.Chunk{
		Type:      "attestation",
		Markdown:  "",
		Grounding: &ade.Grounding{Page: &page, Box: &ade.Box{Left: 0.1, Top: 0.1, Right: 0.3, Bottom: 0.2}},
	}, testDoc(), 1)
	require.NoError(t, err)
	require.Equal(t, model.ChunkTypeOther, rec.ChunkType)
	require.Equal(t, "", rec.Text)
}
