package importers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source acquires raw content for one import job.
type Source interface {
	// CanFetch reports whether Fetch has a chance to succeed. It performs no I/O.
	CanFetch() bool

	// Fetch acquires the content. Failures are returned as *SourceError.
	Fetch(ctx context.Context) (RawContent, error)
}

// Extractor turns RawContent into ExtractedData.
//
// Implementations:
//   - extractors.HTMLExtractor - heuristic segmentation of HTML and plain text
//   - extractors.PDFExtractor - PDF text layer
//   - extractors.AIExtractor - multimodal JSON completion
//   - extractors.FallbackExtractor - minimal record, always applicable
type Extractor interface {
	// Name identifies the extractor in results, logs and metrics.
	Name() string

	// CanExtract is a pure predicate over the content type and the
	// extractor's own capabilities.
	CanExtract(content RawContent) bool

	// Extract builds a record or returns an error (usually *ExtractorError).
	Extract(ctx context.Context, content RawContent, hints Hints) (*ExtractedData, error)
}

// Target persists extracted records. Ordinary failures are reported through
// ImportResult.Success; a returned error means something unexpected happened.
type Target interface {
	TargetType() string
	Create(ctx context.Context, data *ExtractedData) (ImportResult, error)
}

// Stage is a pipeline state. Runs move forward only:
// init → fetch → extract → persist → done, with failed reachable from
// fetch and extract (and from persist when the target blows up).
type Stage string

const (
	StageInit    Stage = "init"
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StagePersist Stage = "persist"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// Pipeline orchestrates Source → Extractor chain → Target for one job at a time.
// A Pipeline holds no per-run state and may be shared by concurrent runs.
type Pipeline struct {
	target     Target
	extractors []Extractor
	tracer     Tracer
	logger     *zap.Logger
	maxImages  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTracer installs a checkpoint hook.
func WithTracer(t Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMaxImages caps the gallery length of finalized records.
func WithMaxImages(n int) Option {
	return func(p *Pipeline) { p.maxImages = n }
}

// NewPipeline creates a pipeline with the given target and ordered extractors.
func NewPipeline(target Target, extractors []Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		target:     target,
		extractors: append([]Extractor(nil), extractors...),
		tracer:     nopTracer{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extractors returns the registered chain in order.
func (p *Pipeline) Extractors() []Extractor {
	return append([]Extractor(nil), p.extractors...)
}

// Run executes one import job. It always returns a result and never panics
// because of the target.
func (p *Pipeline) Run(ctx context.Context, source Source, hints Hints) ImportResult {
	runID := uuid.NewString()
	started := time.Now()
	log := p.logger.With(zap.String("run_id", runID))

	fail := func(stage Stage, event string, errs []string, payload map[string]any) ImportResult {
		res := Failed(errs...)
		res.RunID = runID
		payload["stage"] = string(stage)
		payload["duration_seconds"] = time.Since(started).Seconds()
		p.tracer.Checkpoint(ctx, event, payload)
		log.Warn("import failed", zap.String("stage", string(stage)), zap.Strings("errors", errs))
		return res
	}

	// FETCH
	if source == nil || !source.CanFetch() {
		return fail(StageFetch, EventFetchFailed, []string{"source cannot be fetched"}, map[string]any{})
	}
	content, err := source.Fetch(ctx)
	if err != nil {
		return fail(StageFetch, EventFetchFailed, []string{err.Error()}, map[string]any{})
	}
	p.tracer.Checkpoint(ctx, EventFetchDone, map[string]any{
		"content_type": string(content.Type),
		"bytes":        len(content.Data) + len(content.Text),
		"origin":       content.Origin(),
	})
	log.Info("content fetched",
		zap.String("origin", content.Origin()),
		zap.String("content_type", string(content.Type)))

	// EXTRACT
	data, extractor, warnings, errs := p.extract(ctx, content, hints, log)
	if data == nil {
		return fail(StageExtract, EventExtractFailed, errs, map[string]any{
			"content_type": string(content.Type),
		})
	}
	data.ApplyHints(hints)
	if data.Link == "" {
		data.Link = content.SourceURL
	}
	data.Finalize(p.maxImages)
	p.tracer.Checkpoint(ctx, EventExtractDone, map[string]any{
		"extractor": extractor,
		"steps":     len(data.Steps),
		"images":    len(data.ImageURLs),
	})

	// PERSIST
	result := p.persist(ctx, data)
	result.RunID = runID
	result.Extractor = extractor
	result.Warnings = append(warnings, result.Warnings...)

	event := EventPersistDone
	if !result.Success {
		event = EventPersistFailed
	}
	p.tracer.Checkpoint(ctx, event, map[string]any{
		"success":          result.Success,
		"entity_id":        result.EntityID,
		"images_imported":  result.ImagesImported,
		"images_skipped":   result.ImagesSkipped,
		"duration_seconds": time.Since(started).Seconds(),
	})
	log.Info("import finished",
		zap.Bool("success", result.Success),
		zap.String("extractor", extractor),
		zap.Uint("entity_id", result.EntityID),
		zap.Int("steps", result.StepsImported),
		zap.Int("images", result.ImagesImported))
	return result
}

// extract walks the chain in order. It returns the first successful record,
// the extractor that produced it, messages from earlier failed attempts, and
// (when nothing succeeded) the full list of error messages.
func (p *Pipeline) extract(ctx context.Context, content RawContent, hints Hints, log *zap.Logger) (*ExtractedData, string, []string, []string) {
	var failures []string
	attempted := 0

	for _, ex := range p.extractors {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Sprintf("extraction cancelled: %v", err))
			return nil, "", nil, failures
		}
		if !ex.CanExtract(content) {
			continue
		}
		attempted++

		data, err := ex.Extract(ctx, content, hints)
		if err == nil && data == nil {
			err = errors.New("returned no data")
		}
		if err == nil {
			p.tracer.Checkpoint(ctx, EventExtractTry, map[string]any{"extractor": ex.Name(), "outcome": "success"})
			warnings := make([]string, 0, len(failures))
			for _, f := range failures {
				warnings = append(warnings, "extractor failed: "+f)
			}
			return data, ex.Name(), warnings, nil
		}

		msg := describeExtractorError(ex.Name(), err)
		failures = append(failures, msg)
		p.tracer.Checkpoint(ctx, EventExtractTry, map[string]any{"extractor": ex.Name(), "outcome": "error"})
		log.Info("extractor failed, trying next", zap.String("extractor", ex.Name()), zap.Error(err))
	}

	if attempted == 0 {
		failures = append(failures, fmt.Sprintf("no extractor can handle %s content", content.Type))
	}
	return nil, "", nil, failures
}

func describeExtractorError(name string, err error) string {
	var exErr *ExtractorError
	if errors.As(err, &exErr) {
		return exErr.Error()
	}
	return fmt.Sprintf("%s: %v", name, err)
}

// persist calls the target, converting errors and panics into failed results.
func (p *Pipeline) persist(ctx context.Context, data *ExtractedData) (result ImportResult) {
	if p.target == nil {
		return Failed("no target configured")
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("target panicked", zap.Any("panic", r))
			result = Failed(fmt.Sprintf("%s target: unexpected failure: %v", p.target.TargetType(), r))
		}
	}()

	res, err := p.target.Create(ctx, data)
	if err != nil {
		return Failed(fmt.Sprintf("%s target: %v", p.target.TargetType(), err))
	}
	if res.EntityType == "" {
		res.EntityType = p.target.TargetType()
	}
	return res
}
