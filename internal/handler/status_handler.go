package handler

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/job"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/pgmiso/sc-landingai/internal/pkg/errcode"
	"github.com/pgmiso/sc-landingai/internal/pkg/response"
)

type StatusHandler struct {
	store   filestore.Store
	keys    artifact.Keyspace
	syncJob *job.IndexSyncJob
}

func NewStatusHandler(store filestore.Store, keys artifact.Keyspace, syncJob *job.IndexSyncJob) *StatusHandler {
	return &StatusHandler{store: store, keys: keys, syncJob: syncJob}
}

// Document returns the outcome record of one document, or of every document
// in a domain when only domain is given.
func (h *StatusHandler) Document(c *gin.Context) {
	domain := strings.TrimSpace(c.Query("domain"))
	document := strings.TrimSpace(c.Query("document"))
	if domain == "" {
		response.Error(c, errcode.ErrInvalid, "domain is required")
		return
	}
	ctx := c.Request.Context()
	if document != "" {
		data, err := h.store.Get(ctx, h.keys.Status(domain, document))
		if err != nil {
			handleError(c, err)
			return
		}
		var outcome model.Outcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, outcome)
		return
	}

	keys, err := h.store.List(ctx, h.keys.StatusPrefix(domain))
	if err != nil {
		handleError(c, err)
		return
	}
	outcomes := make([]model.Outcome, 0, len(keys))
	for _, key := range keys {
		data, err := h.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var outcome model.Outcome
		if err := json.Unmarshal(data, &outcome); err != nil {
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	response.Success(c, gin.H{"documents": outcomes})
}

// IndexJob reports the state of the last index synchronization pass.
func (h *StatusHandler) IndexJob(c *gin.Context) {
	if h.syncJob == nil {
		response.Error(c, errcode.ErrNotFound, "index sync is not enabled")
		return
	}
	response.Success(c, h.syncJob.Status())
}
