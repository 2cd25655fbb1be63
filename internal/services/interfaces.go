package services

import (
	"context"
	"time"

	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/importers"
)

// Runner executes one import against a source.
type Runner interface {
	Run(ctx context.Context, source importers.Source, hints importers.Hints) importers.ImportResult
}

// RunRecorder stores the outcome of an import.
type RunRecorder interface {
	Record(ctx context.Context, origin string, startedAt time.Time, result importers.ImportResult) (*entities.ImportRun, error)
}

// SourceFactory builds the source used for a web address.
type SourceFactory func(rawURL string) importers.Source
