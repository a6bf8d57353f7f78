package index

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/pgmiso/sc-landingai/internal/model"
)

const (
	weaviateClass     = "DocumentChunk"
	weaviateBatchSize = 200
)

type weaviateConfig struct {
	Host   string `json:"host"`
	APIKey string `json:"api_key"`
}

type weaviateIndex struct {
	client *weaviate.Client
}

func init() {
	Register("weaviate", createWeaviateIndex)
}

func createWeaviateIndex(dimension int, args interface{}) (Service, error) {
	_ = dimension
	cfg := &weaviateConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	scheme := "http"
	if strings.HasPrefix(cfg.Host, "https") {
		scheme = "https"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	clientCfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	idx := &weaviateIndex{client: client}
	if err := idx.ensureClass(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (w *weaviateIndex) ensureClass(ctx context.Context) error {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("get weaviate schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == weaviateClass {
			return nil
		}
	}
	classObj := &models.Class{
		Class: weaviateClass,
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "domain", DataType: []string{"text"}},
			{Name: "document", DataType: []string{"text"}},
			{Name: "generation", DataType: []string{"text"}},
			{Name: "chunkType", DataType: []string{"text"}},
			{Name: "page", DataType: []string{"int"}},
			{Name: "excerpt", DataType: []string{"text"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}
	if err := w.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("create weaviate class: %w", err)
	}
	return nil
}

// objectID derives a stable weaviate uuid from the chunk id so reindexing a
// chunk replaces its object instead of duplicating it.
func objectID(chunkID string) strfmt.UUID {
	sum := sha1.Sum([]byte(chunkID))
	return strfmt.UUID(fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16]))
}

func classData(data map[string]models.JSONObject) []interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[weaviateClass].([]interface{})
	if !ok {
		return nil
	}
	return items
}

func (w *weaviateIndex) Name() string {
	return "weaviate"
}

func (w *weaviateIndex) Upsert(ctx context.Context, records []model.ChunkRecord, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("record and vector count mismatch: %d != %d", len(records), len(vectors))
	}
	for start := 0; start < len(records); start += weaviateBatchSize {
		end := start + weaviateBatchSize
		if end > len(records) {
			end = len(records)
		}
		batcher := w.client.Batch().ObjectsBatcher()
		for i := start; i < end; i++ {
			rec := records[i]
			batcher = batcher.WithObjects(&models.Object{
				ID:    objectID(rec.ChunkID),
				Class: weaviateClass,
				Properties: map[string]interface{}{
					"chunkId":    rec.ChunkID,
					"domain":     rec.Domain,
					"document":   rec.Document,
					"generation": rec.Generation,
					"chunkType":  string(rec.ChunkType),
					"page":       rec.Page,
					"excerpt":    excerptOf(rec.Text),
				},
				Vector: vectors[i],
			})
		}
		if _, err := batcher.Do(ctx); err != nil {
			return fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (w *weaviateIndex) Search(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "excerpt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	result, err := w.client.GraphQL().Get().
		WithClassName(weaviateClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search failed: %s", result.Errors[0].Message)
	}
	var hits []model.SearchHit
	data := classData(result.Data)
	if data == nil {
		return hits, nil
	}
	for _, item := range data {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hit := model.SearchHit{}
		if v, ok := obj["chunkId"].(string); ok {
			hit.ChunkID = v
		}
		if v, ok := obj["excerpt"].(string); ok {
			hit.Excerpt = v
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				hit.Score = float32(1 - distance)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (w *weaviateIndex) HasMany(ctx context.Context, chunkIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	for _, id := range chunkIDs {
		out[id] = false
	}
	where := filters.Where().
		WithPath([]string{"chunkId"}).
		WithOperator(filters.ContainsAny).
		WithValueText(chunkIDs...)
	result, err := w.client.GraphQL().Get().
		WithClassName(weaviateClass).
		WithFields(graphql.Field{Name: "chunkId"}).
		WithWhere(where).
		WithLimit(len(chunkIDs)).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate lookup failed: %s", result.Errors[0].Message)
	}
	data := classData(result.Data)
	if data == nil {
		return out, nil
	}
	for _, item := range data {
		if obj, ok := item.(map[string]interface{}); ok {
			if id, ok := obj["chunkId"].(string); ok {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (w *weaviateIndex) Delete(ctx context.Context, chunkIDs []string) error {
	for _, id := range chunkIDs {
		err := w.client.Data().Deleter().
			WithClassName(weaviateClass).
			WithID(string(objectID(id))).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	return nil
}
