package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/patterns/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// Models lists every migrated entity.
var Models = []any{
	&entities.Pattern{},
	&entities.PatternStep{},
	&entities.PatternYarn{},
	&entities.PatternImage{},
	&entities.ImportRun{},
}

func NewDatabase(dbPath string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized", zap.String("path", dbPath))
	return &Database{DB: db}, nil
}

// Open connects to the sqlite file at dbPath and migrates all models.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
