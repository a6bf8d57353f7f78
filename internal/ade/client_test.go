package ade

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "dpt-2-latest",
		RPS:      1000,
	})
	require.NoError(t, err)
	return client
}

func TestParseSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "dpt-2-latest", r.FormValue("model"))
		_, hdr, err := r.FormFile("document")
		require.NoError(t, err)
		require.Equal(t, "report.pdf", hdr.Filename)

		page := 0
		json.NewEncoder(w).Encode(ParseResponse{
			Markdown: "# Report",
			Chunks: []Chunk{{
				ID:       "chunk_0",
				Type:     "text",
				Markdown: "hello",
				Grounding: &Grounding{
					Page: &page,
					Box:  &Box{Left: 0.1, Top: 0.1, Right: 0.9, Bottom: 0.2},
				},
			}},
			Metadata: Metadata{PageCount: 1},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Parse(t.Context(), "report.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "# Report", resp.Markdown)
	require.Len(t, resp.Chunks, 1)
	require.Equal(t, 1, resp.Metadata.PageCount)
}

func TestParseRetriesOnceOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(ParseResponse{Markdown: "ok"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Parse(t.Context(), "a.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Markdown)
	require.EqualValues(t, 2, calls.Load())
}

func TestParseGivesUpAfterSecondRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Parse(t.Context(), "a.pdf", []byte("%PDF"))
	require.Error(t, err)
	require.True(t, appErr.IsRateLimited(err))
	require.EqualValues(t, 2, calls.Load())
}

func TestParseServerErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Parse(t.Context(), "a.pdf", []byte("%PDF"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
	require.EqualValues(t, 1, calls.Load())
}

func TestParseRetryAfterHeader(t *testing.T) {
	require.Equal(t, 5*time.Second, parseRetryAfter("5"))
	require.Equal(t, time.Duration(0), parseRetryAfter(""))
	require.Equal(t, maxRetryAfter, parseRetryAfter("100000"))
}
