// Package database provides the data access layer for imported patterns.
//
// # Architecture
//
//	database/
//	├── database.go  # Connection setup and migrations
//	├── patterns/    # Pattern records and the import pipeline target
//	└── imports/     # Import run history
//
// # Usage
//
//	db, err := database.NewDatabase("./patterns.db", logger)
//
//	repo := patterns.NewRepository(db.DB)
//	target := patterns.NewTarget(repo, downloader, store, logger)
//
// Each sub-package exposes a Repository with a *gorm.DB field, created with
// NewRepository(db), and compile-time interface checks where it implements
// an interface from another package.
package database
