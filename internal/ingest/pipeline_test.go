package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pgmiso/sc-landingai/internal/ade"
	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	calls int
	resp  *ade.ParseResponse
	err   error
}

func (f *fakeParser) Parse(ctx context.Context, filename string, document []byte) (*ade.ParseResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeCounter struct {
	pages int
}

func (f *fakeCounter) PageCount(pdf []byte) (int, error) {
	return f.pages, nil
}

type countingStore struct {
	*filestore.MemoryStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets++
	return s.MemoryStore.Get(ctx, key)
}

func intPtr(v int) *int { return &v }

func textChunk(page int, text string, box *ade.Box) ade.Chunk {
	return ade.Chunk{
		Type:      "text",
		Markdown:  text,
		Grounding: &ade.Grounding{Page: intPtr(page), Box: box},
	}
}

func newPipeline(store filestore.Store, parser Parser, pages int, c Config) *Pipeline {
	writer := artifact.NewWriter(store, artifact.NewKeyspace("output"), 4)
	return NewPipeline(store, parser, writer, &fakeCounter{pages: pages}, c)
}

func TestProcessObjectComplete(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "input/medical/report.pdf", []byte("%PDF-1.4 sample"), "application/pdf"))

	parser := &fakeParser{resp: &ade.ParseResponse{
		Markdown: "# Report",
		Chunks: []ade.Chunk{
			textChunk(0, "first", &ade.Box{Left: 0.1, Top: 0.1, Right: 0.5, Bottom: 0.2}),
			textChunk(0, "second", &ade.Box{Left: 0.1, Top: 0.3, Right: 1.2, Bottom: 0.4}),
			textChunk(1, "third", &ade.Box{Left: 0.2, Top: 0.1, Right: 0.8, Bottom: 0.3}),
			{Type: "table", Markdown: "| a | b |", Grounding: &ade.Grounding{Page: intPtr(1), Box: &ade.Box{Left: 0.1, Top: 0.5, Right: 0.9, Bottom: 0.8}}},
			{Type: "title", Markdown: "Report"},
		},
		Metadata: ade.Metadata{PageCount: 2},
	}}
	p := newPipeline(store, parser, 2, Config{})

	outcome, err := p.ProcessObject(ctx, "input/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateComplete, outcome.State)
	require.Equal(t, 5, outcome.ChunksExtracted)
	require.Equal(t, 0, outcome.ChunksSkipped)
	require.Equal(t, 5, outcome.ChunksWritten)
	require.Equal(t, 2, outcome.PageCount)
	require.NotEmpty(t, outcome.Generation)

	md, err := store.Get(ctx, "output/medical/report.md")
	require.NoError(t, err)
	require.Equal(t, "# Report", string(md))

	// the out-of-range box was clamped, not rejected
	gen := outcome.Generation
	key := fmt.Sprintf("output/medical_chunks/report/%s/medical.report.%s.p0.c1.json", gen, gen)
	body, err := store.Get(ctx, key)
	require.NoError(t, err)
	var rec model.ChunkRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	require.Equal(t, 1.0, rec.BBox.X1)

	var persisted model.Outcome
	status, err := store.Get(ctx, "output/medical_status/report.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(status, &persisted))
	require.Equal(t, model.DocumentStateComplete, persisted.State)
}

func TestProcessObjectPartialOnMalformedChunk(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "input/medical/report.pdf", []byte("%PDF-1.4 sample"), "application/pdf"))

	chunks := make([]ade.Chunk, 0, 10)
	for i := 0; i < 9; i++ {
		chunks = append(chunks, textChunk(0, fmt.Sprintf("chunk %d", i), &ade.Box{Left: 0.1, Top: 0.1, Right: 0.5, Bottom: 0.2}))
	}
	chunks = append(chunks, ade.Chunk{Type: "text", Markdown: "no grounding"})

	parser := &fakeParser{resp: &ade.ParseResponse{Markdown: "body", Chunks: chunks}}
	p := newPipeline(store, parser, 1, Config{})

	outcome, err := p.ProcessObject(ctx, "input/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatePartial, outcome.State)
	require.Equal(t, 10, outcome.ChunksExtracted)
	require.Equal(t, 1, outcome.ChunksSkipped)
	require.Equal(t, 9, outcome.ChunksWritten)
}

func TestProcessObjectFetchFailure(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: filestore.NewMemoryStore()}
	parser := &fakeParser{}
	p := newPipeline(store, parser, 0, Config{})

	outcome, err := p.ProcessObject(ctx, "input/medical/missing.pdf")
	require.ErrorIs(t, err, appErr.ErrFetch)
	require.Equal(t, model.DocumentStateFailed, outcome.State)
	require.Equal(t, 0, parser.calls)
	// a missing object is not transient, no retries
	require.Equal(t, 1, store.gets)
}

func TestProcessObjectParseFailure(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "input/medical/report.pdf", []byte("%PDF-1.4"), "application/pdf"))
	parser := &fakeParser{err: fmt.Errorf("service exploded")}
	p := newPipeline(store, parser, 1, Config{})

	outcome, err := p.ProcessObject(ctx, "input/medical/report.pdf")
	require.ErrorIs(t, err, appErr.ErrParse)
	require.Equal(t, model.DocumentStateFailed, outcome.State)

	var persisted model.Outcome
	status, err := store.Get(ctx, "output/medical_status/report.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(status, &persisted))
	require.Equal(t, model.DocumentStateFailed, persisted.State)
	require.Contains(t, persisted.Error, "service exploded")
}

func TestProcessObjectSkips(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	parser := &fakeParser{}
	p := newPipeline(store, parser, 0, Config{})

	outcome, err := p.ProcessObject(ctx, "input/medical/")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateSkipped, outcome.State)

	outcome, err = p.ProcessObject(ctx, "tmp/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateSkipped, outcome.State)
	require.Equal(t, 0, parser.calls)
}

func TestProcessObjectAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "input/medical/report.pdf", []byte("%PDF-1.4"), "application/pdf"))

	parser := &fakeParser{resp: &ade.ParseResponse{
		Markdown: "body",
		Chunks:   []ade.Chunk{textChunk(0, "only", &ade.Box{Left: 0.1, Top: 0.1, Right: 0.5, Bottom: 0.2})},
	}}
	p := newPipeline(store, parser, 1, Config{})

	first, err := p.ProcessObject(ctx, "input/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateComplete, first.State)
	require.Equal(t, 1, parser.calls)

	second, err := p.ProcessObject(ctx, "input/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateSkipped, second.State)
	require.Equal(t, 1, parser.calls)

	// force reprocess reparses and lands on the same generation keys
	forced := newPipeline(store, parser, 1, Config{ForceReprocess: true})
	before := store.Len()
	third, err := forced.ProcessObject(ctx, "input/medical/report.pdf")
	require.NoError(t, err)
	require.Equal(t, model.DocumentStateComplete, third.State)
	require.Equal(t, first.Generation, third.Generation)
	require.Equal(t, before, store.Len())
}

func TestResolveDocument(t *testing.T) {
	p := newPipeline(filestore.NewMemoryStore(), &fakeParser{}, 0, Config{})

	tests := []struct {
		key      string
		domain   string
		document string
		ok       bool
	}{
		{"input/medical/report.pdf", "medical", "report", true},
		{"input/invoice_data/2024/inv-1.pdf", "invoice_data/2024", "inv-1", true},
		{"input/loose.pdf", "general", "loose", true},
		{"input/medical/", "", "", false},
		{"staging/medical/report.pdf", "", "", false},
	}
	for _, tt := range tests {
		domain, document, ok := p.resolveDocument(tt.key)
		require.Equal(t, tt.ok, ok, tt.key)
		require.Equal(t, tt.domain, domain, tt.key)
		require.Equal(t, tt.document, document, tt.key)
	}
}
