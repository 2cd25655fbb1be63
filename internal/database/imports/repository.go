// Package imports records the outcome of pipeline runs.
package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/importers"
)

var ErrNotFound = errors.New("import run not found")

// Repository handles import run records.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new import run repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Start creates a running record for origin and returns it. The run id is
// replaced by the pipeline's id when the run completes.
func (r *Repository) Start(ctx context.Context, runID, origin string) (*entities.ImportRun, error) {
	run := &entities.ImportRun{
		RunID:     runID,
		Origin:    origin,
		Status:    entities.ImportStatusRunning,
		StartedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	return run, nil
}

// Complete stores the final result on a started run.
func (r *Repository) Complete(ctx context.Context, id uint, result importers.ImportResult) (*entities.ImportRun, error) {
	var run entities.ImportRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	apply(&run, result)
	if err := r.db.WithContext(ctx).Save(&run).Error; err != nil {
		return nil, fmt.Errorf("update import run: %w", err)
	}
	return &run, nil
}

// Record stores a finished run in one step.
func (r *Repository) Record(ctx context.Context, origin string, startedAt time.Time, result importers.ImportResult) (*entities.ImportRun, error) {
	run := entities.ImportRun{Origin: origin, StartedAt: startedAt}
	apply(&run, result)
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("create import run: %w", err)
	}
	return &run, nil
}

// GetByRunID returns the record for a pipeline run id.
func (r *Repository) GetByRunID(ctx context.Context, runID string) (*entities.ImportRun, error) {
	var run entities.ImportRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Recent returns the latest runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]entities.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []entities.ImportRun
	err := r.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func apply(run *entities.ImportRun, result importers.ImportResult) {
	now := time.Now()
	if result.RunID != "" {
		run.RunID = result.RunID
	}
	run.Status = entities.ImportStatusCompleted
	if !result.Success {
		run.Status = entities.ImportStatusFailed
	}
	run.Extractor = result.Extractor
	if result.EntityID != 0 {
		id := result.EntityID
		run.PatternID = &id
	}
	run.StepsImported = result.StepsImported
	run.ImagesImported = result.ImagesImported
	run.ImagesSkipped = result.ImagesSkipped
	run.CompletedAt = &now

	run.Errors = result.Errors
	run.Warnings = result.Warnings
}
