package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_MigratesModels(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "patterns.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	for _, model := range Models {
		assert.True(t, db.DB.Migrator().HasTable(model), "%T not migrated", model)
	}
}

func TestNewDatabase_InvalidPath(t *testing.T) {
	_, err := NewDatabase(filepath.Join(t.TempDir(), "missing", "dir", "patterns.db"), nil)
	assert.Error(t, err)
}
