package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgmiso/sc-landingai/internal/model"
)

// Service is a vector index over chunk records. The index stores the id,
// the embedding and a text excerpt; the store remains the system of record
// and the index can be rebuilt from it at any time.
type Service interface {
	Name() string
	Upsert(ctx context.Context, records []model.ChunkRecord, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error)
	HasMany(ctx context.Context, chunkIDs []string) (map[string]bool, error)
	Delete(ctx context.Context, chunkIDs []string) error
}

type Config struct {
	Provider  string      `json:"provider"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type ServiceFactory func(dimension int, args interface{}) (Service, error)

var registry = map[string]ServiceFactory{}

func Register(name string, factory ServiceFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(c Config) (Service, error) {
	key := strings.ToLower(strings.TrimSpace(c.Provider))
	if key == "" {
		return nil, fmt.Errorf("index.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported index provider: %s", c.Provider)
	}
	if c.Dimension <= 0 {
		return nil, fmt.Errorf("index.dimension is required")
	}
	return factory(c.Dimension, c.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("index provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index provider config: %w", err)
	}
	return nil
}

const maxExcerptLen = 200

// excerptOf flattens record markdown and trims it down to the short preview
// stored in the index.
func excerptOf(markdown string) string {
	text := strings.Join(strings.Fields(PlainText(markdown)), " ")
	if len(text) <= maxExcerptLen {
		return text
	}
	cut := text[:maxExcerptLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
