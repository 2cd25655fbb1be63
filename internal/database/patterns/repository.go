// Package patterns stores imported pattern records and implements the
// import pipeline target on top of them.
package patterns

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/patterns/internal/entities"
)

// ErrNotFound is returned when a pattern does not exist.
var ErrNotFound = errors.New("pattern not found")

// Repository handles pattern database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new patterns repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn with a repository bound to one transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// Create inserts a pattern together with its steps, yarns and images.
func (r *Repository) Create(ctx context.Context, p *entities.Pattern) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// AddImages inserts image rows for an existing pattern.
func (r *Repository) AddImages(ctx context.Context, patternID uint, imgs []entities.PatternImage) error {
	if len(imgs) == 0 {
		return nil
	}
	for i := range imgs {
		imgs[i].PatternID = patternID
	}
	return r.db.WithContext(ctx).Create(&imgs).Error
}

// GetByID loads a pattern with steps in order and images by position.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Pattern, error) {
	var p entities.Pattern
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Preload("Yarns").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByLink returns the most recent pattern imported from link.
func (r *Repository) FindByLink(ctx context.Context, link string) (*entities.Pattern, error) {
	var p entities.Pattern
	err := r.db.WithContext(ctx).Where("link = ?", link).Order("id DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns patterns newest first, without associations.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]entities.Pattern, error) {
	var out []entities.Pattern
	query := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&out).Error
	return out, err
}

// Images returns the stored images of a pattern by position.
func (r *Repository) Images(ctx context.Context, patternID uint) ([]entities.PatternImage, error) {
	var imgs []entities.PatternImage
	err := r.db.WithContext(ctx).Where("pattern_id = ?", patternID).Order("position ASC").Find(&imgs).Error
	return imgs, err
}

// Checksums returns the checksums of every stored image.
func (r *Repository) Checksums(ctx context.Context) ([]string, error) {
	var sums []string
	err := r.db.WithContext(ctx).Model(&entities.PatternImage{}).
		Where("checksum <> ''").
		Distinct("checksum").
		Pluck("checksum", &sums).Error
	return sums, err
}

// Delete removes a pattern and everything attached to it.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{&entities.PatternStep{}, &entities.PatternYarn{}, &entities.PatternImage{}} {
			if err := tx.Where("pattern_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&entities.Pattern{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Count returns the number of patterns.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Pattern{}).Count(&n).Error
	return n, err
}
