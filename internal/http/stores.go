package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/tasks"
)

// PatternStore provides the pattern operations used by PatternsController.
type PatternStore interface {
	GetByID(ctx context.Context, id uint) (*entities.Pattern, error)
	List(ctx context.Context, limit, offset int) ([]entities.Pattern, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uint) error
}

// ImageAttacher adds images to stored patterns.
type ImageAttacher interface {
	AttachImages(ctx context.Context, patternID uint, urls []string) (importers.ImportResult, error)
}

// MediaRemover deletes the image files of a pattern.
type MediaRemover interface {
	RemovePattern(patternID uint) error
}

// RunStore provides read access to import run records.
type RunStore interface {
	Recent(ctx context.Context, limit int) ([]entities.ImportRun, error)
	GetByRunID(ctx context.Context, runID string) (*entities.ImportRun, error)
}

// TaskQueue enqueues background imports and reports their status.
type TaskQueue interface {
	EnqueueImports(imports ...tasks.ImportURLTask) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}
