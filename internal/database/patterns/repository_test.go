package patterns

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/patterns/internal/database"
	"github.com/mrlokans/patterns/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "patterns.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func samplePattern() *entities.Pattern {
	return &entities.Pattern{
		Name: "Simple Hat",
		Link: "https://example.com/hat",
		Steps: []entities.PatternStep{
			{StepNumber: 2, Title: "Crown", Description: "Decrease."},
			{StepNumber: 1, Title: "Cast On", Description: "Cast on 80 sts."},
		},
		Yarns: []entities.PatternYarn{{Name: "Worsted wool", WeightCategory: "worsted"}},
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	p := samplePattern()
	require.NoError(t, repo.Create(ctx, p))
	assert.NotZero(t, p.ID)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Simple Hat", got.Name)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "Cast On", got.Steps[0].Title)
	assert.Equal(t, entities.StepKindInstruction, got.Steps[0].Kind)
	require.Len(t, got.Yarns, 1)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ImagesAndChecksums(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := samplePattern()
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.AddImages(ctx, p.ID, []entities.PatternImage{
		{Position: 1, Checksum: "bbb", Path: "b.jpg"},
		{Position: 0, Checksum: "aaa", Path: "a.jpg"},
	}))
	require.NoError(t, repo.AddImages(ctx, p.ID, nil))

	imgs, err := repo.Images(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "aaa", imgs[0].Checksum)

	sums, err := repo.Checksums(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, sums)
}

func TestRepository_FindByLinkAndList(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	first, second := samplePattern(), samplePattern()
	second.Name = "Simple Hat v2"
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.FindByLink(ctx, "https://example.com/hat")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = repo.FindByLink(ctx, "https://example.com/other")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := samplePattern()
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err := repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var steps int64
	require.NoError(t, repo.DB().Model(&entities.PatternStep{}).Count(&steps).Error)
	assert.Zero(t, steps)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
}
