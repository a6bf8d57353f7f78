package ade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

const (
	defaultEndpoint  = "https://api.va.landing.ai/v1/ade/parse"
	defaultModel     = "dpt-2-latest"
	defaultTimeout   = 5 * time.Minute
	maxErrorBodySize = 2048

	// Fallback wait when a 429 response carries no Retry-After header.
	defaultRetryAfter = 10 * time.Second
	maxRetryAfter     = 2 * time.Minute
)

type Config struct {
	Endpoint       string  `json:"endpoint"`
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RPS            float64 `json:"rps"`
}

// Client calls the document parse API. The service is slow and
// rate-limited: a client-side limiter spaces requests out, and a 429
// response is retried exactly once after the advertised Retry-After.
// Any other failure is terminal for the invocation.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ade api_key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	mdl := cfg.Model
	if mdl == "" {
		mdl = defaultModel
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    mdl,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Parse uploads the document and requests markdown, grounding and chunk
// output modes.
func (c *Client) Parse(ctx context.Context, filename string, document []byte) (*ParseResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.doParse(ctx, filename, document)
	if !appErr.IsRateLimited(err) {
		return resp, err
	}

	wait := retryAfterOf(err)
	logutil.GetLogger(ctx).Info("parse rate limited, retrying once",
		zap.String("filename", filename), zap.Duration("wait", wait))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}
	return c.doParse(ctx, filename, document)
}

func (c *Client) doParse(ctx context.Context, filename string, document []byte) (*ParseResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(document); err != nil {
		return nil, err
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &rateLimitError{after: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("parse service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ParseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}
	return &parsed, nil
}

type rateLimitError struct {
	after time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("parse service rate limited, retry after %s", e.after)
}

func (e *rateLimitError) Unwrap() error {
	return appErr.ErrRateLimited
}

func retryAfterOf(err error) time.Duration {
	var rl *rateLimitError
	if errors.As(err, &rl) && rl.after > 0 {
		return rl.after
	}
	return defaultRetryAfter
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	if when, err := http.ParseTime(header); err == nil {
		d := time.Until(when)
		if d <= 0 {
			return 0
		}
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	return 0
}
