package grounding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/geometry"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 30 * time.Minute
	defaultURLExpiry = 15 * time.Minute
)

type Config struct {
	CacheSize       int    `json:"cache_size"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes"`
	BorderWidth     int    `json:"border_width"`
	DefaultColor    string `json:"default_color"`
}

// PageSource serves rendered page images for a document.
type PageSource interface {
	Page(ctx context.Context, doc model.Document, page int) (image.Image, error)
}

// Reconstructor turns a chunk id back into its record and a highlighted crop
// of the page region the chunk came from. Crops are derived data: cached in
// memory and in the store, regenerable whenever both caches miss.
type Reconstructor struct {
	store     filestore.Store
	keys      artifact.Keyspace
	pages     PageSource
	cache     *expirable.LRU[string, []byte]
	presigner filestore.Presigner
	style     model.HighlightStyle
}

func New(store filestore.Store, keys artifact.Keyspace, pages PageSource, c Config) *Reconstructor {
	size := c.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := time.Duration(c.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	style := model.DefaultHighlightStyle()
	if c.DefaultColor != "" {
		style.Color = c.DefaultColor
	}
	if c.BorderWidth > 0 {
		style.Width = c.BorderWidth
	}
	r := &Reconstructor{
		store: store,
		keys:  keys,
		pages: pages,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
		style: style,
	}
	if p, ok := store.(filestore.Presigner); ok {
		r.presigner = p
	}
	return r
}

func (r *Reconstructor) DefaultStyle() model.HighlightStyle {
	return r.style
}

// Resolve looks up the record of a chunk id. Unknown or unparseable ids
// surface as ErrChunkNotFound.
func (r *Reconstructor) Resolve(ctx context.Context, chunkID string) (*model.ChunkRecord, error) {
	ref, err := model.ParseChunkID(chunkID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s, err: %v", appErr.ErrChunkNotFound, chunkID, err)
	}
	key := r.keys.ChunkRecord(ref.Domain, ref.Document, ref.Generation, chunkID)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", appErr.ErrChunkNotFound, chunkID)
		}
		return nil, fmt.Errorf("read chunk record: %s, err: %w", chunkID, err)
	}
	var rec model.ChunkRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode chunk record: %s, err: %w", chunkID, err)
	}
	return &rec, nil
}

// Image returns the highlighted crop for a chunk, rendering it on first use
// and serving later requests from the memory cache or the store.
func (r *Reconstructor) Image(ctx context.Context, chunkID string, style model.HighlightStyle) (*model.GroundingImage, error) {
	rec, err := r.Resolve(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	return r.ImageForRecord(ctx, rec, style)
}

func (r *Reconstructor) ImageForRecord(ctx context.Context, rec *model.ChunkRecord, style model.HighlightStyle) (*model.GroundingImage, error) {
	if style.Width <= 0 {
		style.Width = r.style.Width
	}
	if style.Color == "" {
		style.Color = r.style.Color
	}
	key := r.keys.ChunkImage(rec.Domain, rec.Document, rec.Generation, rec.ChunkID, style.Token())

	data, ok := r.cache.Get(key)
	if !ok {
		data, ok = r.fromStore(ctx, key)
	}
	if !ok {
		var err error
		data, err = r.renderCrop(ctx, rec, style)
		if err != nil {
			return nil, err
		}
		if err := r.store.Put(ctx, key, data, "image/png"); err != nil {
			logutil.GetLogger(ctx).Warn("cache grounding image failed",
				zap.String("key", key), zap.Error(err))
		}
		r.cache.Add(key, data)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode grounding image: %s, err: %w", rec.ChunkID, err)
	}
	img := &model.GroundingImage{
		ChunkID: rec.ChunkID,
		Key:     key,
		Width:   cfg.Width,
		Height:  cfg.Height,
		PNG:     data,
	}
	if r.presigner != nil {
		url, err := r.presigner.PresignGet(ctx, key, defaultURLExpiry)
		if err != nil {
			logutil.GetLogger(ctx).Warn("presign grounding image failed",
				zap.String("key", key), zap.Error(err))
		} else {
			img.URL = url
		}
	}
	return img, nil
}

func (r *Reconstructor) fromStore(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	r.cache.Add(key, data)
	return data, true
}

func (r *Reconstructor) renderCrop(ctx context.Context, rec *model.ChunkRecord, style model.HighlightStyle) ([]byte, error) {
	doc := model.Document{
		SourceKey:  rec.SourceDocument,
		Domain:     rec.Domain,
		Document:   rec.Document,
		Generation: rec.Generation,
	}
	page, err := r.pages.Page(ctx, doc, rec.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d of %s, err: %v",
			appErr.ErrPageRender, rec.Page, rec.Document, err)
	}
	bounds := page.Bounds()
	box, err := geometry.ToPixelBox(rec.BBox, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", rec.ChunkID, err)
	}
	out := drawHighlight(page, box, colorFor(style, rec.ChunkType), style.Width)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode grounding image: %s, err: %w", rec.ChunkID, err)
	}
	return buf.Bytes(), nil
}
