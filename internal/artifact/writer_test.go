package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/stretchr/testify/require"
)

type faultStore struct {
	*filestore.MemoryStore
	failKeys map[string]bool
}

func (s *faultStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if s.failKeys[key] {
		return fmt.Errorf("injected put failure")
	}
	return s.MemoryStore.Put(ctx, key, body, contentType)
}

func testDocument() model.Document {
	return model.Document{
		SourceKey:  "input/report.pdf",
		Domain:     "medical",
		Document:   "report",
		Generation: "a1b2c3d4e5f6",
		PageCount:  2,
	}
}

func testRecords(doc model.Document, n int) []model.ChunkRecord {
	recs := make([]model.ChunkRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, model.ChunkRecord{
			ChunkID:        model.FormatChunkID(doc.Domain, doc.Document, doc.Generation, 0, i),
			ChunkType:      model.ChunkTypeText,
			Text:           fmt.Sprintf("chunk %d", i),
			BBox:           model.FractionalBox{X0: 0.1, Y0: 0.1, X1: 0.9, Y1: 0.2},
			Page:           0,
			SourceDocument: doc.SourceKey,
			Domain:         doc.Domain,
			Document:       doc.Document,
			Generation:     doc.Generation,
		})
	}
	return recs
}

func TestWriteDocumentArtifacts(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	writer := NewWriter(store, NewKeyspace("output"), 4)
	doc := testDocument()
	recs := testRecords(doc, 3)

	report, err := writer.WriteDocumentArtifacts(ctx, doc, "# report", []byte(`{"chunks":[]}`), recs)
	require.NoError(t, err)
	require.Len(t, report.Succeeded, 5)
	require.Empty(t, report.Failed)

	md, err := store.Get(ctx, "output/medical/report.md")
	require.NoError(t, err)
	require.Equal(t, "# report", string(md))

	body, err := store.Get(ctx, "output/medical_chunks/report/a1b2c3d4e5f6/medical.report.a1b2c3d4e5f6.p0.c1.json")
	require.NoError(t, err)
	var rec model.ChunkRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	require.Equal(t, recs[1].ChunkID, rec.ChunkID)
}

func TestWriteDocumentArtifactsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	writer := NewWriter(store, NewKeyspace("output"), 2)
	doc := testDocument()
	recs := testRecords(doc, 2)

	_, err := writer.WriteDocumentArtifacts(ctx, doc, "body", []byte(`{}`), recs)
	require.NoError(t, err)
	before := store.Len()
	_, err = writer.WriteDocumentArtifacts(ctx, doc, "body", []byte(`{}`), recs)
	require.NoError(t, err)
	require.Equal(t, before, store.Len())
}

func TestWriteDocumentArtifactsPartialFailure(t *testing.T) {
	ctx := context.Background()
	doc := testDocument()
	recs := testRecords(doc, 3)
	keys := NewKeyspace("output")
	store := &faultStore{
		MemoryStore: filestore.NewMemoryStore(),
		failKeys: map[string]bool{
			keys.ChunkRecord(doc.Domain, doc.Document, doc.Generation, recs[0].ChunkID): true,
		},
	}
	writer := NewWriter(store, keys, 2)

	report, err := writer.WriteDocumentArtifacts(ctx, doc, "body", []byte(`{}`), recs)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	require.Len(t, report.Succeeded, 4)
	require.Contains(t, report.Failed[0].Cause, "injected")
}

func TestWriteDocumentArtifactsAllFailed(t *testing.T) {
	ctx := context.Background()
	doc := testDocument()
	keys := NewKeyspace("output")
	store := &faultStore{
		MemoryStore: filestore.NewMemoryStore(),
		failKeys: map[string]bool{
			keys.Markdown(doc.Domain, doc.Document):  true,
			keys.Grounding(doc.Domain, doc.Document): true,
		},
	}
	writer := NewWriter(store, keys, 2)

	report, err := writer.WriteDocumentArtifacts(ctx, doc, "body", []byte(`{}`), nil)
	require.Error(t, err)
	require.True(t, report.AllFailed())
}

func TestChunkIDFromFile(t *testing.T) {
	id := model.FormatChunkID("medical", "report", "a1b2c3d4e5f6", 2, 7)
	safe := FileSafeID(id)
	require.Equal(t, "medical.report.a1b2c3d4e5f6.p2.c7", safe)
	back, err := ChunkIDFromFile(safe)
	require.NoError(t, err)
	require.Equal(t, id, back)

	_, err = ChunkIDFromFile("not-a-chunk-file")
	require.Error(t, err)
}
