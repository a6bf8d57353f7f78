package pagerender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultDPI         = 150
	defaultPdftoppmBin = "pdftoppm"
)

type Config struct {
	DPI         int    `json:"dpi"`
	PdftoppmBin string `json:"pdftoppm_bin"`
}

// Renderer rasterizes PDF pages to PNG and caches the result in the object
// store under the document's pages namespace, so a page is rendered at most
// once per generation no matter how many chunks it grounds.
type Renderer struct {
	store filestore.Store
	keys  artifact.Keyspace
	dpi   int
	bin   string
}

func New(store filestore.Store, keys artifact.Keyspace, c Config) *Renderer {
	dpi := c.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}
	bin := c.PdftoppmBin
	if bin == "" {
		bin = defaultPdftoppmBin
	}
	return &Renderer{store: store, keys: keys, dpi: dpi, bin: bin}
}

// PageCount validates the document and reports its page count.
func (r *Renderer) PageCount(pdf []byte) (int, error) {
	conf := pdfcpumodel.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: validate pdf, err: %v", appErr.ErrParse, err)
	}
	return pdfCtx.PageCount, nil
}

// Page returns the rendered PNG image of one zero-based page, reading from
// the store cache before falling back to rasterization.
func (r *Renderer) Page(ctx context.Context, doc model.Document, pdf []byte, page int) (image.Image, error) {
	key := r.keys.Page(doc.Domain, doc.Document, doc.Generation, page)
	if data, err := r.store.Get(ctx, key); err == nil {
		img, err := png.Decode(bytes.NewReader(data))
		if err == nil {
			return img, nil
		}
		logutil.GetLogger(ctx).Warn("cached page image is corrupt, rerendering",
			zap.String("key", key), zap.Error(err))
	}
	data, err := r.render(ctx, pdf, page)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, key, data, "image/png"); err != nil {
		logutil.GetLogger(ctx).Warn("cache page image failed", zap.String("key", key), zap.Error(err))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode rendered page %d, err: %v", appErr.ErrPageRender, page, err)
	}
	return img, nil
}

// render shells out to pdftoppm for a single page. page is zero-based,
// pdftoppm counts from 1.
func (r *Renderer) render(ctx context.Context, pdf []byte, page int) ([]byte, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: negative page %d", appErr.ErrPageRender, page)
	}
	dir, err := os.MkdirTemp("", "pagerender-*")
	if err != nil {
		return nil, fmt.Errorf("%w: tempdir, err: %v", appErr.ErrPageRender, err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write temp pdf, err: %v", appErr.ErrPageRender, err)
	}
	out := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.bin,
		"-f", fmt.Sprintf("%d", page+1),
		"-l", fmt.Sprintf("%d", page+1),
		"-r", fmt.Sprintf("%d", r.dpi),
		"-png", src, out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm page %d, err: %v, stderr: %s",
			appErr.ErrPageRender, page, err, stderr.String())
	}
	matches, err := filepath.Glob(out + "-*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no output for page %d", appErr.ErrPageRender, page)
	}
	sort.Strings(matches)
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rendered page %d, err: %v", appErr.ErrPageRender, page, err)
	}
	return data, nil
}

func (r *Renderer) DPI() int {
	return r.dpi
}

// CachedPage returns a page image only if it is already in the store cache.
// Misses surface as ErrNotFound so callers can decide whether to rerender.
func (r *Renderer) CachedPage(ctx context.Context, doc model.Document, page int) (image.Image, error) {
	key := r.keys.Page(doc.Domain, doc.Document, doc.Generation, page)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode cached page %d, err: %v", appErr.ErrPageRender, page, err)
	}
	return img, nil
}

// Source serves page images for grounding reconstruction: cached pages come
// straight from the store, misses refetch the original document and render.
type Source struct {
	renderer *Renderer
	source   filestore.Store
}

func NewSource(renderer *Renderer, source filestore.Store) *Source {
	return &Source{renderer: renderer, source: source}
}

func (s *Source) Page(ctx context.Context, doc model.Document, page int) (image.Image, error) {
	img, err := s.renderer.CachedPage(ctx, doc, page)
	if err == nil {
		return img, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	pdf, err := s.source.Get(ctx, doc.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch source document %s, err: %v",
			appErr.ErrPageRender, doc.SourceKey, err)
	}
	return s.renderer.Page(ctx, doc, pdf, page)
}
