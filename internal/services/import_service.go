package services

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/importers/sources"
)

// ImportService turns user input into pipeline runs and records every run.
type ImportService struct {
	runner    Runner
	recorder  RunRecorder
	newSource SourceFactory
	maxBytes  int64
	logger    *zap.Logger
}

// NewImportService creates an ImportService. A nil recorder skips run
// persistence; a nil factory fetches URLs with a plain HTTP source.
func NewImportService(runner Runner, recorder RunRecorder, newSource SourceFactory, maxBytes int64, logger *zap.Logger) *ImportService {
	if newSource == nil {
		newSource = func(rawURL string) importers.Source {
			return sources.NewURLSource(rawURL, sources.URLOptions{MaxBytes: maxBytes})
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		runner:    runner,
		recorder:  recorder,
		newSource: newSource,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// ImportURL imports the document at rawURL.
func (s *ImportService) ImportURL(ctx context.Context, rawURL string, hints importers.Hints) importers.ImportResult {
	rawURL = strings.TrimSpace(rawURL)
	return s.run(ctx, rawURL, s.newSource(rawURL), hints)
}

// ImportFile imports a local file.
func (s *ImportService) ImportFile(ctx context.Context, path string, hints importers.Hints) importers.ImportResult {
	return s.run(ctx, path, sources.NewFileSource(path, s.maxBytes), hints)
}

// ImportFiles imports several local files as one pattern. The first file
// is the primary document.
func (s *ImportService) ImportFiles(ctx context.Context, paths []string, hints importers.Hints) importers.ImportResult {
	if len(paths) == 1 {
		return s.ImportFile(ctx, paths[0], hints)
	}
	origin := strings.Join(paths, ", ")
	return s.run(ctx, origin, sources.NewMultiFileSource(paths, s.maxBytes, s.logger), hints)
}

// ImportBytes imports an in-memory upload.
func (s *ImportService) ImportBytes(ctx context.Context, name string, data []byte, hints importers.Hints) importers.ImportResult {
	return s.run(ctx, filepath.Base(name), sources.NewBytesSource(name, data), hints)
}

// Import picks a URL or file import from the shape of target.
func (s *ImportService) Import(ctx context.Context, target string, hints importers.Hints) importers.ImportResult {
	if IsURL(target) {
		return s.ImportURL(ctx, target, hints)
	}
	return s.ImportFile(ctx, target, hints)
}

func (s *ImportService) run(ctx context.Context, origin string, source importers.Source, hints importers.Hints) importers.ImportResult {
	started := time.Now()
	result := s.runner.Run(ctx, source, hints)

	log := s.logger.With(zap.String("origin", origin), zap.String("run_id", result.RunID))
	if result.Success {
		log.Info("import finished",
			zap.String("extractor", result.Extractor),
			zap.Uint("pattern_id", result.EntityID),
			zap.Int("warnings", len(result.Warnings)))
	} else {
		log.Warn("import failed", zap.Strings("errors", result.Errors))
	}

	if s.recorder != nil {
		// The run outlives a cancelled request context.
		recordCtx := context.WithoutCancel(ctx)
		if _, err := s.recorder.Record(recordCtx, origin, started, result); err != nil {
			log.Error("failed to record import run", zap.Error(err))
		}
	}
	return result
}

// IsURL reports whether target looks like an http(s) address.
func IsURL(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}
