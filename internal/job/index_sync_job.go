package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pgmiso/sc-landingai/internal/ai"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/index"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const syncBatchSize = 64

// SyncStatus is the operator-visible state of the last index pass.
type SyncStatus struct {
	State     string `json:"state"`
	LastRun   int64  `json:"last_run"`
	LastError string `json:"last_error,omitempty"`
	Scanned   int    `json:"scanned"`
	Indexed   int    `json:"indexed"`
	Failed    int    `json:"failed"`
}

// IndexSyncJob walks the chunk-record namespace and pushes every record the
// index does not know yet. The store stays the system of record; dropping
// the index and letting this job repopulate it is a supported operation.
type IndexSyncJob struct {
	store        filestore.Store
	outputPrefix string
	embedder     ai.IEmbedder
	index        index.Service

	mu     sync.Mutex
	status SyncStatus
}

func NewIndexSyncJob(store filestore.Store, outputPrefix string, embedder ai.IEmbedder, idx index.Service) *IndexSyncJob {
	return &IndexSyncJob{
		store:        store,
		outputPrefix: outputPrefix,
		embedder:     embedder,
		index:        idx,
		status:       SyncStatus{State: "idle"},
	}
}

func (j *IndexSyncJob) Name() string {
	return "index_sync"
}

func (j *IndexSyncJob) Status() SyncStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *IndexSyncJob) setStatus(mutate func(*SyncStatus)) {
	j.mu.Lock()
	mutate(&j.status)
	j.mu.Unlock()
}

func (j *IndexSyncJob) Run(ctx context.Context) error {
	j.setStatus(func(s *SyncStatus) {
		*s = SyncStatus{State: "running", LastRun: time.Now().Unix()}
	})
	err := j.run(ctx)
	j.setStatus(func(s *SyncStatus) {
		s.State = "idle"
		if err != nil {
			s.State = "failed"
			s.LastError = err.Error()
		}
	})
	return err
}

func (j *IndexSyncJob) run(ctx context.Context) error {
	keys, err := j.store.List(ctx, j.outputPrefix)
	if err != nil {
		return fmt.Errorf("list chunk records: %w", err)
	}
	var recordKeys []string
	for _, key := range keys {
		if strings.Contains(key, "_chunks/") && strings.HasSuffix(key, ".json") {
			recordKeys = append(recordKeys, key)
		}
	}
	j.setStatus(func(s *SyncStatus) { s.Scanned = len(recordKeys) })

	var batch []model.ChunkRecord
	var vectors [][]float32
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := j.index.Upsert(ctx, batch, vectors); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		j.setStatus(func(s *SyncStatus) { s.Indexed += len(batch) })
		batch = batch[:0]
		vectors = vectors[:0]
		return nil
	}

	for start := 0; start < len(recordKeys); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(recordKeys) {
			end = len(recordKeys)
		}
		records, err := j.loadRecords(ctx, recordKeys[start:end])
		if err != nil {
			return err
		}
		missing, err := j.missingRecords(ctx, records)
		if err != nil {
			return err
		}
		for _, rec := range missing {
			vector, err := j.embedder.Embed(ctx, index.PlainText(rec.Text), ai.TaskRetrievalDocument)
			if err != nil {
				j.setStatus(func(s *SyncStatus) { s.Failed++ })
				logutil.GetLogger(ctx).Warn("embed chunk failed",
					zap.String("chunk_id", rec.ChunkID), zap.Error(err))
				continue
			}
			batch = append(batch, rec)
			vectors = append(vectors, vector)
			if len(batch) >= syncBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

func (j *IndexSyncJob) loadRecords(ctx context.Context, keys []string) ([]model.ChunkRecord, error) {
	records := make([]model.ChunkRecord, 0, len(keys))
	for _, key := range keys {
		data, err := j.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read record %s: %w", key, err)
		}
		var rec model.ChunkRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			j.setStatus(func(s *SyncStatus) { s.Failed++ })
			logutil.GetLogger(ctx).Warn("skip undecodable record", zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (j *IndexSyncJob) missingRecords(ctx context.Context, records []model.ChunkRecord) ([]model.ChunkRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ChunkID)
	}
	known, err := j.index.HasMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("probe index: %w", err)
	}
	var missing []model.ChunkRecord
	for _, rec := range records {
		if !known[rec.ChunkID] {
			missing = append(missing, rec)
		}
	}
	return missing, nil
}
