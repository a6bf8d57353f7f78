package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pgmiso/sc-landingai/internal/ade"
	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/chunkrec"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultInputPrefix   = "input/"
	defaultDomain        = "general"
	defaultFetchAttempts = 3
	fetchBackoffBase     = 500 * time.Millisecond
	generationHexLen     = 12
)

type Config struct {
	InputPrefix    string `json:"input_prefix"`
	DefaultDomain  string `json:"default_domain"`
	ForceReprocess bool   `json:"force_reprocess"`
	FetchAttempts  int    `json:"fetch_attempts"`
}

// Parser is the external parse service boundary.
type Parser interface {
	Parse(ctx context.Context, filename string, document []byte) (*ade.ParseResponse, error)
}

// PageCounter reports the page count of a pdf, used for the outcome record.
type PageCounter interface {
	PageCount(pdf []byte) (int, error)
}

// Pipeline drives one document from upload notification to written
// artifacts. Invocations are independent: the pipeline holds no mutable
// state, so concurrent documents and duplicate deliveries of the same
// document are both safe.
type Pipeline struct {
	source  filestore.Store
	parser  Parser
	writer  *artifact.Writer
	counter PageCounter
	c       Config
}

func NewPipeline(source filestore.Store, parser Parser, writer *artifact.Writer, counter PageCounter, c Config) *Pipeline {
	if c.InputPrefix == "" {
		c.InputPrefix = defaultInputPrefix
	}
	if c.DefaultDomain == "" {
		c.DefaultDomain = defaultDomain
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = defaultFetchAttempts
	}
	return &Pipeline{source: source, parser: parser, writer: writer, counter: counter, c: c}
}

// generationOf derives the generation tag from the document bytes, so a
// duplicate delivery of the same content lands on identical keys.
func generationOf(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])[:generationHexLen]
}

// segment folds a key path element into a chunk id segment.
var segmentReplacer = strings.NewReplacer(":", "_")

// resolveDocument maps an object key onto its domain and document name. The
// first path element under the input prefix is the domain, the file stem is
// the document; deeper folders stay part of the domain so the output tree
// mirrors the input tree.
func (p *Pipeline) resolveDocument(key string) (domain string, document string, ok bool) {
	if !strings.HasPrefix(key, p.c.InputPrefix) {
		return "", "", false
	}
	relative := strings.TrimPrefix(key, p.c.InputPrefix)
	dir, file := path.Split(relative)
	if file == "" {
		return "", "", false
	}
	domain = strings.Trim(dir, "/")
	if domain == "" {
		domain = p.c.DefaultDomain
	}
	document = strings.TrimSuffix(file, path.Ext(file))
	if document == "" {
		document = file
	}
	return segmentReplacer.Replace(domain), segmentReplacer.Replace(document), true
}

// ProcessObject handles one upload notification. It always returns an
// outcome; the error is non-nil only when the document ends in failed state.
func (p *Pipeline) ProcessObject(ctx context.Context, key string) (*model.Outcome, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	if strings.HasSuffix(key, "/") {
		logger.Debug("skip folder key")
		return &model.Outcome{SourceKey: key, State: model.DocumentStateSkipped}, nil
	}
	domain, document, ok := p.resolveDocument(key)
	if !ok {
		logger.Debug("skip object outside input prefix")
		return &model.Outcome{SourceKey: key, State: model.DocumentStateSkipped}, nil
	}
	outcome := &model.Outcome{
		SourceKey: key,
		Domain:    domain,
		Document:  document,
		State:     model.DocumentStatePending,
	}

	if !p.c.ForceReprocess {
		exists, err := p.source.Exists(ctx, p.writer.Keys().Markdown(domain, document))
		if err != nil {
			logger.Warn("processed check failed, continuing", zap.Error(err))
		} else if exists {
			logger.Info("skip already processed document")
			outcome.State = model.DocumentStateSkipped
			return outcome, nil
		}
	}

	data, err := p.fetch(ctx, key)
	if err != nil {
		return p.finish(ctx, outcome, model.DocumentStateFailed, err)
	}
	outcome.Generation = generationOf(data)
	if p.counter != nil {
		count, err := p.counter.PageCount(data)
		if err != nil {
			logger.Warn("page count failed", zap.Error(err))
		} else {
			outcome.PageCount = count
		}
	}
	outcome.State = model.DocumentStateProcessing
	outcome.UpdatedAt = time.Now().Unix()
	if err := p.writer.WriteOutcome(ctx, *outcome); err != nil {
		logger.Warn("persist processing state failed", zap.Error(err))
	}

	resp, err := p.parser.Parse(ctx, path.Base(key), data)
	if err != nil {
		return p.finish(ctx, outcome, model.DocumentStateFailed,
			fmt.Errorf("%w: %v", appErr.ErrParse, err))
	}

	doc := model.Document{
		SourceKey:  key,
		Domain:     domain,
		Document:   document,
		Generation: outcome.Generation,
		PageCount:  outcome.PageCount,
	}
	records := p.buildRecords(ctx, doc, resp.Chunks, outcome)

	groundingPayload, err := json.Marshal(struct {
		Chunks   []ade.Chunk  `json:"chunks"`
		Metadata ade.Metadata `json:"metadata"`
	}{Chunks: resp.Chunks, Metadata: resp.Metadata})
	if err != nil {
		return p.finish(ctx, outcome, model.DocumentStateFailed,
			fmt.Errorf("%w: encode grounding payload, err: %v", appErr.ErrWrite, err))
	}

	report, err := p.writer.WriteDocumentArtifacts(ctx, doc, resp.Markdown, groundingPayload, records)
	if err != nil {
		return p.finish(ctx, outcome, model.DocumentStateFailed, err)
	}
	outcome.ChunksWritten = p.countChunkWrites(doc, report)

	state := model.DocumentStateComplete
	if len(report.Failed) > 0 || outcome.ChunksSkipped > 0 {
		state = model.DocumentStatePartial
	}
	return p.finish(ctx, outcome, state, nil)
}

func (p *Pipeline) fetch(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= p.c.FetchAttempts; attempt++ {
		data, err := p.source.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if appErr.IsNotFound(err) {
			break
		}
		logutil.GetLogger(ctx).Warn("fetch attempt failed",
			zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < p.c.FetchAttempts {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, ctx.Err())
			case <-time.After(fetchBackoffBase * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("%w: %s, err: %v", appErr.ErrFetch, key, lastErr)
}

func (p *Pipeline) buildRecords(ctx context.Context, doc model.Document, raw []ade.Chunk, outcome *model.Outcome) []model.ChunkRecord {
	outcome.ChunksExtracted = len(raw)
	records := make([]model.ChunkRecord, 0, len(raw))
	perPage := make(map[int]int)
	for i, chunk := range raw {
		page := chunkrec.PageOf(chunk)
		ordinal := perPage[page]
		perPage[page]++
		rec, err := chunkrec.Build(chunk, doc, ordinal)
		if err != nil {
			outcome.ChunksSkipped++
			logutil.GetLogger(ctx).Warn("skip malformed chunk",
				zap.String("document", doc.Document), zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (p *Pipeline) countChunkWrites(doc model.Document, report *model.WriteReport) int {
	prefix := p.writer.Keys().ChunksPrefix(doc.Domain, doc.Document, doc.Generation)
	count := 0
	for _, key := range report.Succeeded {
		if strings.HasPrefix(key, prefix) {
			count++
		}
	}
	return count
}

func (p *Pipeline) finish(ctx context.Context, outcome *model.Outcome, state model.DocumentState, cause error) (*model.Outcome, error) {
	outcome.State = state
	outcome.UpdatedAt = time.Now().Unix()
	if cause != nil {
		outcome.Error = cause.Error()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("key", outcome.SourceKey),
		zap.String("state", string(state)),
		zap.Int("extracted", outcome.ChunksExtracted),
		zap.Int("skipped", outcome.ChunksSkipped),
		zap.Int("written", outcome.ChunksWritten),
	)
	if outcome.Domain != "" && outcome.Document != "" {
		if err := p.writer.WriteOutcome(ctx, *outcome); err != nil {
			logger.Error("persist outcome failed", zap.Error(err))
		}
	}
	if cause != nil {
		logger.Error("document processing failed", zap.Error(cause))
		return outcome, cause
	}
	logger.Info("document processed")
	return outcome, nil
}
