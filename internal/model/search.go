package model

import (
	"fmt"
	"strings"
)

// SearchHit is one ranked result from the index service. Hits carry only
// the chunk id plus an excerpt; the full record is resolved from the store.
type SearchHit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

// SearchResult pairs a resolved chunk record with its grounding image when
// reconstruction succeeded. Degraded carries the reason when it did not;
// the hit itself is never dropped.
type SearchResult struct {
	ChunkID  string          `json:"chunk_id"`
	Score    float32         `json:"score"`
	Excerpt  string          `json:"excerpt"`
	Record   *ChunkRecord    `json:"record,omitempty"`
	Image    *GroundingImage `json:"image,omitempty"`
	Degraded string          `json:"degraded,omitempty"`
}

// GroundingImage is a derived cache entry, regenerable at any time from the
// record and the source document. PNG holds the encoded crop; URL is set
// when the store can mint a presigned link instead.
type GroundingImage struct {
	ChunkID string `json:"chunk_id"`
	Key     string `json:"key"`
	URL     string `json:"url,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	PNG     []byte `json:"-"`
}

// HighlightStyle selects the border drawn around a grounding crop. An empty
// color means "pick by chunk type".
type HighlightStyle struct {
	Color string
	Width int
}

func DefaultHighlightStyle() HighlightStyle {
	return HighlightStyle{Width: 3}
}

// Token is the style's stable key component used in cache keys, e.g.
// "red3" or "auto3".
func (s HighlightStyle) Token() string {
	color := strings.ToLower(strings.TrimSpace(s.Color))
	if color == "" {
		color = "auto"
	}
	width := s.Width
	if width <= 0 {
		width = 3
	}
	return fmt.Sprintf("%s%d", color, width)
}
