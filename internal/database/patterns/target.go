package patterns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/entities"
	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/media"
)

// TargetType is reported in import results.
const TargetType = "pattern"

var _ importers.Target = (*Target)(nil)

// ImageFetcher downloads and deduplicates candidate images.
type ImageFetcher interface {
	Download(ctx context.Context, batch images.Batch) *images.BatchResult
	Inspect(ctx context.Context, data []byte) (images.Inspection, error)
}

// Target persists extracted records as patterns.
type Target struct {
	repo       *Repository
	downloader ImageFetcher
	store      *media.Store
	logger     *zap.Logger
}

// NewTarget creates a target. A nil downloader or store skips image download.
func NewTarget(repo *Repository, downloader ImageFetcher, store *media.Store, logger *zap.Logger) *Target {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Target{repo: repo, downloader: downloader, store: store, logger: logger}
}

func (t *Target) TargetType() string { return TargetType }

// Create stores data as a new pattern. Gallery images are downloaded before
// the transaction starts; files are written only for accepted images.
// Validation problems are reported in the result, not as an error.
func (t *Target) Create(ctx context.Context, data *importers.ExtractedData) (importers.ImportResult, error) {
	if data == nil || strings.TrimSpace(data.Name) == "" {
		return importers.Failed("pattern name is required"), nil
	}
	pattern, err := toEntity(data)
	if err != nil {
		return importers.ImportResult{}, err
	}

	var batch *images.BatchResult
	if t.canDownload() && len(data.ImageURLs) > 0 {
		existing, err := t.repo.Checksums(ctx)
		if err != nil {
			return importers.ImportResult{}, fmt.Errorf("load checksums: %w", err)
		}
		batch = t.downloader.Download(ctx, images.Batch{
			URLs:              data.ImageURLs,
			ExistingChecksums: existing,
			Referer:           data.Link,
		})
	}

	var saved []string
	err = t.repo.Transaction(ctx, func(tx *Repository) error {
		if err := tx.Create(ctx, pattern); err != nil {
			return fmt.Errorf("create pattern: %w", err)
		}
		rows, paths, err := t.saveFiles(pattern.ID, 0, batch)
		saved = paths
		if err != nil {
			return err
		}
		return tx.AddImages(ctx, pattern.ID, rows)
	})
	if err != nil {
		t.cleanup(saved)
		return importers.ImportResult{}, err
	}

	result := importers.ImportResult{
		Success:       true,
		EntityID:      pattern.ID,
		EntityType:    TargetType,
		StepsImported: len(pattern.Steps),
	}
	addBatch(&result, batch)
	t.logger.Info("pattern stored",
		zap.Uint("pattern_id", pattern.ID),
		zap.Int("steps", result.StepsImported),
		zap.Int("images", result.ImagesImported),
		zap.Int("images_skipped", result.ImagesSkipped))
	return result, nil
}

// AttachImages downloads urls and adds the accepted ones to an existing
// pattern. Stored images of the pattern take part in deduplication.
func (t *Target) AttachImages(ctx context.Context, patternID uint, urls []string) (importers.ImportResult, error) {
	if !t.canDownload() {
		return importers.Failed("image download is not configured"), nil
	}
	pattern, err := t.repo.GetByID(ctx, patternID)
	if errors.Is(err, ErrNotFound) {
		return importers.Failed(fmt.Sprintf("pattern %d not found", patternID)), nil
	}
	if err != nil {
		return importers.ImportResult{}, err
	}

	checksums := make([]string, 0, len(pattern.Images))
	signatures := make([]images.Signature, 0, len(pattern.Images))
	for _, img := range pattern.Images {
		checksums = append(checksums, img.Checksum)
		data, err := t.store.Read(img.Path)
		if err != nil {
			t.logger.Warn("stored image unreadable", zap.String("path", img.Path), zap.Error(err))
			continue
		}
		insp, err := t.downloader.Inspect(ctx, data)
		if err != nil {
			t.logger.Warn("stored image undecodable", zap.String("path", img.Path), zap.Error(err))
			continue
		}
		signatures = append(signatures, insp.Signature)
	}

	batch := t.downloader.Download(ctx, images.Batch{
		URLs:               urls,
		ExistingChecksums:  checksums,
		ExistingSignatures: signatures,
		Referer:            pattern.Link,
	})

	var saved []string
	err = t.repo.Transaction(ctx, func(tx *Repository) error {
		rows, paths, err := t.saveFiles(patternID, len(pattern.Images), batch)
		saved = paths
		if err != nil {
			return err
		}
		return tx.AddImages(ctx, patternID, rows)
	})
	if err != nil {
		t.cleanup(saved)
		return importers.ImportResult{}, err
	}

	result := importers.ImportResult{Success: true, EntityID: patternID, EntityType: TargetType}
	addBatch(&result, batch)
	return result, nil
}

func (t *Target) canDownload() bool {
	return t.downloader != nil && t.store != nil
}

// saveFiles writes accepted images and returns their rows and written paths.
func (t *Target) saveFiles(patternID uint, offset int, batch *images.BatchResult) ([]entities.PatternImage, []string, error) {
	if batch == nil {
		return nil, nil, nil
	}
	rows := make([]entities.PatternImage, 0, len(batch.Accepted))
	var paths []string
	for i, img := range batch.Accepted {
		rel, err := t.store.Save(patternID, img.Checksum, extension(img), img.Data)
		if err != nil {
			return nil, paths, fmt.Errorf("save image %s: %w", img.URL, err)
		}
		paths = append(paths, rel)
		rows = append(rows, entities.PatternImage{
			PatternID:   patternID,
			Position:    offset + i,
			SourceURL:   img.URL,
			Path:        rel,
			Checksum:    img.Checksum,
			ContentType: img.ContentType,
			Width:       img.Width,
			Height:      img.Height,
			Bytes:       len(img.Data),
		})
	}
	return rows, paths, nil
}

func (t *Target) cleanup(paths []string) {
	for _, p := range paths {
		if err := t.store.Remove(p); err != nil {
			t.logger.Warn("failed to remove image after rollback", zap.String("path", p), zap.Error(err))
		}
	}
}

func addBatch(result *importers.ImportResult, batch *images.BatchResult) {
	if batch == nil {
		return
	}
	result.ImagesImported = len(batch.Accepted)
	result.ImagesSkipped = len(batch.Skipped) + len(batch.Errors)
	for _, s := range batch.Skipped {
		result.AddWarning("image skipped (%s): %s", s.Reason, s.URL)
	}
	for _, f := range batch.Errors {
		result.AddWarning("image failed: %s: %v", f.URL, f.Err)
	}
}

func extension(img images.DownloadedImage) string {
	if img.Format == "jpeg" {
		return "jpg"
	}
	if img.Format != "" {
		return img.Format
	}
	return strings.TrimPrefix(img.ContentType, "image/")
}

func toEntity(d *importers.ExtractedData) (*entities.Pattern, error) {
	p := &entities.Pattern{
		Name:          strings.TrimSpace(d.Name),
		Description:   d.Description,
		Category:      d.Category,
		Yarn:          d.Yarn,
		Needles:       d.Needles,
		Gauge:         d.Gauge,
		GaugeStitches: d.GaugeStitches,
		GaugeRows:     d.GaugeRows,
		Size:          d.Size,
		Link:          d.Link,
		Brand:         d.Brand,
	}
	if len(d.Extras) > 0 {
		raw, err := json.Marshal(d.Extras)
		if err != nil {
			return nil, fmt.Errorf("encode extras: %w", err)
		}
		p.Extras = string(raw)
	}
	for _, s := range d.Steps {
		kind := entities.StepKindInstruction
		if s.Kind == importers.StepKindLegend {
			kind = entities.StepKindLegend
		}
		p.Steps = append(p.Steps, entities.PatternStep{
			StepNumber:  s.StepNumber,
			Title:       s.Title,
			Description: s.Description,
			Kind:        kind,
			ImageURLs:   strings.Join(s.Images, "\n"),
		})
	}
	for _, y := range d.Yarns {
		p.Yarns = append(p.Yarns, entities.PatternYarn{
			Name:           y.Name,
			Brand:          y.Brand,
			Colorway:       y.Colorway,
			Weight:         y.Weight,
			Length:         y.Length,
			WeightCategory: y.WeightCategory,
			FiberContent:   y.FiberContent,
			Link:           y.Link,
			ImageURL:       y.ImageURL,
		})
	}
	return p, nil
}

// DecodeExtras reads a stored extras column back into typed form.
func DecodeExtras(p *entities.Pattern) (importers.Extras, error) {
	var extras importers.Extras
	if p.Extras == "" {
		return extras, nil
	}
	if err := json.Unmarshal([]byte(p.Extras), &extras); err != nil {
		return nil, fmt.Errorf("decode extras: %w", err)
	}
	return extras, nil
}
