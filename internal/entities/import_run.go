package entities

import "time"

type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRun records the outcome of one pipeline run.
type ImportRun struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	RunID          string       `gorm:"uniqueIndex;size:36" json:"run_id"`
	Origin         string       `gorm:"size:2048" json:"origin"`
	Status         ImportStatus `gorm:"size:20;default:'pending'" json:"status"`
	Extractor      string       `gorm:"size:50" json:"extractor,omitempty"`
	PatternID      *uint        `gorm:"index" json:"pattern_id,omitempty"`
	StepsImported  int          `json:"steps_imported"`
	ImagesImported int          `json:"images_imported"`
	ImagesSkipped  int          `json:"images_skipped"`
	Errors         []string     `gorm:"type:text;serializer:json" json:"errors,omitempty"`
	Warnings       []string     `gorm:"type:text;serializer:json" json:"warnings,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}
