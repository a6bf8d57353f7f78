package handler

import (
	"context"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/pgmiso/sc-landingai/internal/pkg/errcode"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
)

const maxConcurrentRecords = 4

// ObjectProcessor is the ingest pipeline boundary.
type ObjectProcessor interface {
	ProcessObject(ctx context.Context, key string) (*model.Outcome, error)
}

type EventHandler struct {
	pipeline ObjectProcessor
}

func NewEventHandler(pipeline ObjectProcessor) *EventHandler {
	return &EventHandler{pipeline: pipeline}
}

// s3Event mirrors the object-created notification payload. Only the object
// keys matter; bucket selection is fixed by the store configuration.
type s3Event struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

type recordResult struct {
	Key     string         `json:"key"`
	State   string         `json:"state"`
	Outcome *model.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// HandleS3 accepts one notification batch and processes every record.
// Records are independent documents, so they run concurrently; one failed
// record never blocks the rest of the batch.
func (h *EventHandler) HandleS3(c *gin.Context) {
	var event s3Event
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, errcode.ErrInvalid, "malformed event payload")
		return
	}
	ctx := c.Request.Context()
	results := make([]recordResult, len(event.Records))
	sem := make(chan struct{}, maxConcurrentRecords)
	var wg sync.WaitGroup
	for i, record := range event.Records {
		// object keys arrive url-encoded with '+' for spaces
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcome, err := h.pipeline.ProcessObject(ctx, key)
			result := recordResult{Key: key, Outcome: outcome}
			if outcome != nil {
				result.State = string(outcome.State)
			}
			if err != nil {
				result.Error = err.Error()
				logutil.GetLogger(ctx).Error("event record failed",
					zap.String("key", key), zap.Error(err))
			}
			results[i] = result
		}(i, key)
	}
	wg.Wait()
	response.Success(c, gin.H{"results": results})
}
