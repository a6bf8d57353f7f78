package grounding

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	calls  int
	width  int
	height int
	fill   color.RGBA
}

func (f *fakePages) Page(ctx context.Context, doc model.Document, page int) (image.Image, error) {
	f.calls++
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.SetRGBA(x, y, f.fill)
		}
	}
	return img, nil
}

func seedRecord(t *testing.T, store filestore.Store, keys artifact.Keyspace) model.ChunkRecord {
	t.Helper()
	rec := model.ChunkRecord{
		ChunkID:        model.FormatChunkID("medical", "report", "a1b2c3d4e5f6", 0, 0),
		ChunkType:      model.ChunkTypeText,
		Text:           "finding",
		BBox:           model.FractionalBox{X0: 0.25, Y0: 0.25, X1: 0.75, Y1: 0.5},
		Page:           0,
		SourceDocument: "input/report.pdf",
		Domain:         "medical",
		Document:       "report",
		Generation:     "a1b2c3d4e5f6",
	}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	key := keys.ChunkRecord(rec.Domain, rec.Document, rec.Generation, rec.ChunkID)
	require.NoError(t, store.Put(context.Background(), key, body, "application/json"))
	return rec
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	keys := artifact.NewKeyspace("output")
	rec := seedRecord(t, store, keys)
	r := New(store, keys, &fakePages{width: 100, height: 200}, Config{})

	got, err := r.Resolve(ctx, rec.ChunkID)
	require.NoError(t, err)
	require.Equal(t, rec, *got)

	_, err = r.Resolve(ctx, "medical:report:a1b2c3d4e5f6:p9:c9")
	require.ErrorIs(t, err, appErr.ErrChunkNotFound)

	_, err = r.Resolve(ctx, "garbage")
	require.ErrorIs(t, err, appErr.ErrChunkNotFound)
}

func TestImageDimensions(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	keys := artifact.NewKeyspace("output")
	rec := seedRecord(t, store, keys)
	pages := &fakePages{width: 400, height: 600, fill: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}
	r := New(store, keys, pages, Config{BorderWidth: 3})

	img, err := r.Image(ctx, rec.ChunkID, model.HighlightStyle{Width: 3})
	require.NoError(t, err)
	// crop is 200x150, border adds 3px on every side
	require.Equal(t, 206, img.Width)
	require.Equal(t, 156, img.Height)
	require.NotEmpty(t, img.PNG)

	decoded, err := png.Decode(bytes.NewReader(img.PNG))
	require.NoError(t, err)
	border := color.RGBAModel.Convert(decoded.At(0, 0)).(color.RGBA)
	require.Equal(t, namedColors["green"], border)
	interior := color.RGBAModel.Convert(decoded.At(103, 78)).(color.RGBA)
	require.Equal(t, pages.fill, interior)
}

func TestImageCached(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	keys := artifact.NewKeyspace("output")
	rec := seedRecord(t, store, keys)
	pages := &fakePages{width: 400, height: 600}
	r := New(store, keys, pages, Config{})

	style := model.HighlightStyle{Color: "red", Width: 2}
	_, err := r.Image(ctx, rec.ChunkID, style)
	require.NoError(t, err)
	require.Equal(t, 1, pages.calls)

	_, err = r.Image(ctx, rec.ChunkID, style)
	require.NoError(t, err)
	require.Equal(t, 1, pages.calls)

	// a different style renders again
	_, err = r.Image(ctx, rec.ChunkID, model.HighlightStyle{Color: "blue", Width: 2})
	require.NoError(t, err)
	require.Equal(t, 2, pages.calls)
}

func TestImageStoreFallback(t *testing.T) {
	ctx := context.Background()
	store := filestore.NewMemoryStore()
	keys := artifact.NewKeyspace("output")
	rec := seedRecord(t, store, keys)
	pages := &fakePages{width: 400, height: 600}

	first := New(store, keys, pages, Config{})
	_, err := first.Image(ctx, rec.ChunkID, model.HighlightStyle{Color: "red", Width: 3})
	require.NoError(t, err)
	require.Equal(t, 1, pages.calls)

	// a fresh reconstructor with a cold memory cache finds the stored png
	second := New(store, keys, pages, Config{})
	img, err := second.Image(ctx, rec.ChunkID, model.HighlightStyle{Color: "red", Width: 3})
	require.NoError(t, err)
	require.Equal(t, 1, pages.calls)
	require.Equal(t, keys.ChunkImage(rec.Domain, rec.Document, rec.Generation, rec.ChunkID, "red3"), img.Key)
}

func TestColorFor(t *testing.T) {
	require.Equal(t, namedColors["blue"], colorFor(model.HighlightStyle{Color: "auto"}, model.ChunkTypeTable))
	require.Equal(t, namedColors["gray"], colorFor(model.HighlightStyle{}, model.ChunkTypeOther))
	require.Equal(t, namedColors["red"], colorFor(model.HighlightStyle{Color: "red"}, model.ChunkTypeTable))
	require.Equal(t, namedColors["red"], colorFor(model.HighlightStyle{Color: "chartreuse"}, model.ChunkTypeText))
}
