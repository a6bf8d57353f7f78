package errcode

const (
	ErrUnknown = 20000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrInternal
	ErrChunkNotFound
	ErrGroundingFailed
	ErrSearchFailed
	ErrIngestFailed
)
