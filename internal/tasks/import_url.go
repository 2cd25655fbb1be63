package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
)

// URLImporter runs one import for a web address.
type URLImporter interface {
	ImportURL(ctx context.Context, rawURL string, hints importers.Hints) importers.ImportResult
}

// ImportURLTask imports a pattern from a web page in the background.
type ImportURLTask struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// Hints returns the caller-supplied values for the pipeline.
func (t ImportURLTask) Hints() importers.Hints {
	return importers.Hints{Name: t.Name, Category: t.Category, Brand: t.Brand}
}

// Config returns the queue configuration for URL imports. Failed imports
// are not retried: the run record already carries the errors.
func (t ImportURLTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_url",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ImportURLProcessor creates a processor function for ImportURLTask.
func ImportURLProcessor(importer URLImporter, logger *zap.Logger) backlite.QueueProcessor[ImportURLTask] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task ImportURLTask) error {
		if importer == nil {
			return errors.New("importer not configured")
		}
		if strings.TrimSpace(task.URL) == "" {
			return errors.New("import task without url")
		}

		result := importer.ImportURL(ctx, task.URL, task.Hints())
		if !result.Success {
			return fmt.Errorf("import %s: %s", task.URL, strings.Join(result.Errors, "; "))
		}

		logger.Info("imported pattern",
			zap.String("url", task.URL),
			zap.Uint("pattern_id", result.EntityID),
			zap.String("extractor", result.Extractor))
		return nil
	}
}

// NewImportURLQueue creates a backlite queue for URL imports.
func NewImportURLQueue(importer URLImporter, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(ImportURLProcessor(importer, logger))
}
