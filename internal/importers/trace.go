package importers

import (
	"context"

	"go.uber.org/zap"
)

// Checkpoint event names emitted by the pipeline.
const (
	EventFetchDone     = "fetch_done"
	EventFetchFailed   = "fetch_failed"
	EventExtractDone   = "extract_done"
	EventExtractFailed = "extract_failed"
	EventExtractTry    = "extract_attempt"
	EventPersistDone   = "persist_done"
	EventPersistFailed = "persist_failed"
)

// Tracer receives checkpoint events. Implementations must not block; the
// pipeline behaves identically with or without one.
type Tracer interface {
	Checkpoint(ctx context.Context, event string, payload map[string]any)
}

type nopTracer struct{}

func (nopTracer) Checkpoint(context.Context, string, map[string]any) {}

// MultiTracer fans events out to several tracers.
type MultiTracer []Tracer

func (m MultiTracer) Checkpoint(ctx context.Context, event string, payload map[string]any) {
	for _, t := range m {
		if t != nil {
			t.Checkpoint(ctx, event, payload)
		}
	}
}

// LogTracer writes checkpoint events to a zap logger at debug level.
type LogTracer struct {
	Logger *zap.Logger
}

func (t LogTracer) Checkpoint(_ context.Context, event string, payload map[string]any) {
	if t.Logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(payload)+1)
	fields = append(fields, zap.String("event", event))
	for k, v := range payload {
		fields = append(fields, zap.Any(k, v))
	}
	t.Logger.Debug("import checkpoint", fields...)
}
