package errors

import "errors"

var (
	// Pipeline failures, scoped to one document.
	ErrFetch = errors.New("fetch failed")
	ErrParse = errors.New("parse failed")
	ErrWrite = errors.New("write failed")

	// Per-chunk / per-request failures. These never abort a document or a
	// search; they are skipped or degrade the single result.
	ErrMalformedChunk  = errors.New("malformed chunk")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrChunkNotFound   = errors.New("chunk not found")
	ErrPageRender      = errors.New("page render failed")

	ErrRateLimited  = errors.New("rate limited")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsChunkNotFound(err error) bool {
	return errors.Is(err, ErrChunkNotFound)
}

func IsMalformedChunk(err error) bool {
	return errors.Is(err, ErrMalformedChunk)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
