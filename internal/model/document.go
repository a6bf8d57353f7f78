package model

type DocumentState string

const (
	DocumentStatePending    DocumentState = "pending"
	DocumentStateProcessing DocumentState = "processing"
	DocumentStateComplete   DocumentState = "complete"
	DocumentStatePartial    DocumentState = "partial"
	DocumentStateFailed     DocumentState = "failed"
	DocumentStateSkipped    DocumentState = "skipped"
)

// Document identifies one uploaded source file and the derived naming used
// for its artifacts. Domain is the first path element under the input
// prefix, Document the remaining relative path without extension.
type Document struct {
	SourceKey  string `json:"source_key"`
	Domain     string `json:"domain"`
	Document   string `json:"document"`
	Generation string `json:"generation"`
	PageCount  int    `json:"page_count"`
}

// Outcome is the structured per-document processing record. It is logged
// and persisted to the status namespace so external monitoring can read it
// back.
type Outcome struct {
	SourceKey       string        `json:"source_key"`
	Domain          string        `json:"domain"`
	Document        string        `json:"document"`
	Generation      string        `json:"generation"`
	State           DocumentState `json:"state"`
	ChunksExtracted int           `json:"chunks_extracted"`
	ChunksSkipped   int           `json:"chunks_skipped"`
	ChunksWritten   int           `json:"chunks_written"`
	PageCount       int           `json:"page_count"`
	Error           string        `json:"error,omitempty"`
	UpdatedAt       int64         `json:"updated_at"`
}

// WriteFailure records one artifact key that could not be written and why.
type WriteFailure struct {
	Key   string `json:"key"`
	Cause string `json:"cause"`
}

// WriteReport aggregates per-key write results. Partial success is a
// valid, reportable outcome; the writer never aborts on first failure.
type WriteReport struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []WriteFailure `json:"failed"`
}

func (r WriteReport) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}
