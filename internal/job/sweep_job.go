package job

import (
	"context"

	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/ingest"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// SweepJob walks the input prefix and processes any document whose upload
// notification was lost. Already processed documents are skipped by the
// pipeline itself, so the sweep is safe to run at any frequency.
type SweepJob struct {
	store       filestore.Store
	pipeline    *ingest.Pipeline
	inputPrefix string
}

func NewSweepJob(store filestore.Store, pipeline *ingest.Pipeline, inputPrefix string) *SweepJob {
	return &SweepJob{store: store, pipeline: pipeline, inputPrefix: inputPrefix}
}

func (j *SweepJob) Name() string {
	return "input_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	keys, err := j.store.List(ctx, j.inputPrefix)
	if err != nil {
		return err
	}
	var processed, skipped, failed int
	for _, key := range keys {
		outcome, err := j.pipeline.ProcessObject(ctx, key)
		if err != nil {
			failed++
			continue
		}
		if outcome.State == model.DocumentStateSkipped {
			skipped++
			continue
		}
		processed++
	}
	logutil.GetLogger(ctx).Info("input sweep done",
		zap.Int("total", len(keys)),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
