package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultWriteWorkers = 8

// Writer persists the artifacts of a parsed document. Each object is written
// independently so one failed put never blocks the rest.
type Writer struct {
	store   filestore.Store
	keys    Keyspace
	workers int
}

func NewWriter(store filestore.Store, keys Keyspace, workers int) *Writer {
	if workers <= 0 {
		workers = defaultWriteWorkers
	}
	return &Writer{store: store, keys: keys, workers: workers}
}

func (w *Writer) Keys() Keyspace {
	return w.keys
}

type writeTask struct {
	key         string
	body        []byte
	contentType string
}

// WriteDocumentArtifacts writes the markdown, the raw grounding payload and
// one record object per chunk. The report lists every key that succeeded and
// every key that failed with its cause.
func (w *Writer) WriteDocumentArtifacts(ctx context.Context, doc model.Document, markdown string, grounding []byte, records []model.ChunkRecord) (*model.WriteReport, error) {
	tasks := make([]writeTask, 0, len(records)+2)
	tasks = append(tasks, writeTask{
		key:         w.keys.Markdown(doc.Domain, doc.Document),
		body:        []byte(markdown),
		contentType: "text/markdown",
	})
	tasks = append(tasks, writeTask{
		key:         w.keys.Grounding(doc.Domain, doc.Document),
		body:        grounding,
		contentType: "application/json",
	})
	for _, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode chunk record: %s, err: %w", rec.ChunkID, err)
		}
		tasks = append(tasks, writeTask{
			key:         w.keys.ChunkRecord(doc.Domain, doc.Document, doc.Generation, rec.ChunkID),
			body:        body,
			contentType: "application/json",
		})
	}

	report := &model.WriteReport{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	taskCh := make(chan writeTask)

	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if err := w.store.Put(ctx, task.key, task.body, task.contentType); err != nil {
					logutil.GetLogger(ctx).Error("write artifact failed",
						zap.String("key", task.key), zap.Error(err))
					mu.Lock()
					report.Failed = append(report.Failed, model.WriteFailure{
						Key:   task.key,
						Cause: fmt.Sprintf("%v", err),
					})
					mu.Unlock()
					continue
				}
				mu.Lock()
				report.Succeeded = append(report.Succeeded, task.key)
				mu.Unlock()
			}
		}()
	}
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()

	if report.AllFailed() {
		return report, fmt.Errorf("%w: no artifact of document %s could be stored", appErr.ErrWrite, doc.Document)
	}
	return report, nil
}

// WriteOutcome stores the processing outcome of a document, overwriting any
// previous state for the same source document.
func (w *Writer) WriteOutcome(ctx context.Context, outcome model.Outcome) error {
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	key := w.keys.Status(outcome.Domain, outcome.Document)
	if err := w.store.Put(ctx, key, body, "application/json"); err != nil {
		return fmt.Errorf("%w: outcome of %s, err: %v", appErr.ErrWrite, outcome.Document, err)
	}
	return nil
}
