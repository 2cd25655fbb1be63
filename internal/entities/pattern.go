package entities

import (
	"time"

	"gorm.io/gorm"
)

type StepKind string

const (
	StepKindInstruction StepKind = "instruction"
	StepKindLegend      StepKind = "legend"
)

type Pattern struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"index;size:512" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      string         `gorm:"index;size:100" json:"category,omitempty"`
	Yarn          string         `gorm:"type:text" json:"yarn,omitempty"` // materials as written on the source
	Needles       string         `gorm:"size:512" json:"needles,omitempty"`
	Gauge         string         `gorm:"size:512" json:"gauge,omitempty"`
	GaugeStitches float64        `json:"gauge_stitches,omitempty"`
	GaugeRows     float64        `json:"gauge_rows,omitempty"`
	Size          string         `gorm:"size:512" json:"size,omitempty"`
	Link          string         `gorm:"index;size:2048" json:"link,omitempty"`
	Brand         string         `gorm:"size:256" json:"brand,omitempty"`
	Extras        string         `gorm:"type:text" json:"extras,omitempty"` // JSON object of unparsed fields
	Steps         []PatternStep  `gorm:"foreignKey:PatternID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	Yarns         []PatternYarn  `gorm:"foreignKey:PatternID;constraint:OnDelete:CASCADE" json:"yarns,omitempty"`
	Images        []PatternImage `gorm:"foreignKey:PatternID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type PatternStep struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	PatternID   uint     `gorm:"index;not null" json:"pattern_id"`
	StepNumber  int      `gorm:"not null" json:"step_number"`
	Title       string   `gorm:"size:512" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Kind        StepKind `gorm:"size:20;default:'instruction'" json:"kind"`
	ImageURLs   string   `gorm:"type:text" json:"image_urls,omitempty"` // newline separated
}

type PatternYarn struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	PatternID      uint   `gorm:"index;not null" json:"pattern_id"`
	Name           string `gorm:"size:256" json:"name"`
	Brand          string `gorm:"size:256" json:"brand,omitempty"`
	Colorway       string `gorm:"size:256" json:"colorway,omitempty"`
	Weight         string `gorm:"size:50" json:"weight,omitempty"`
	Length         string `gorm:"size:50" json:"length,omitempty"`
	WeightCategory string `gorm:"size:50" json:"weight_category,omitempty"`
	FiberContent   string `gorm:"size:256" json:"fiber_content,omitempty"`
	Link           string `gorm:"size:2048" json:"link,omitempty"`
	ImageURL       string `gorm:"size:2048" json:"image_url,omitempty"`
}

type PatternImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PatternID   uint      `gorm:"index;not null" json:"pattern_id"`
	Position    int       `json:"position"`
	SourceURL   string    `gorm:"size:2048" json:"source_url"`
	Path        string    `gorm:"size:1024" json:"path"` // relative to the media directory
	Checksum    string    `gorm:"index;size:64" json:"checksum"`
	ContentType string    `gorm:"size:50" json:"content_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Bytes       int       `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
