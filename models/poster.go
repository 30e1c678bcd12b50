package models

import (
	"time"

	"gorm.io/datatypes"
)

// Poster repräsentiert ein Konferenz-Poster (PDF). Strukturell wie Paper,
// aber mit eigener Tabelle und eigenem Analyse-Prompt.
type Poster struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FilePath string `json:"file_path" gorm:"uniqueIndex;not null"`
	FileName string `json:"file_name" gorm:"not null"`
	FileSize int64  `json:"file_size"`

	ContentHash string     `json:"content_hash" gorm:"index"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	PageCount   int        `json:"page_count,omitempty"`

	Title        string         `json:"title,omitempty"`
	Authors      string         `json:"authors,omitempty"`
	Abstract     *string        `json:"abstract,omitempty" gorm:"type:text"`
	Keywords     datatypes.JSON `json:"keywords,omitempty" gorm:"type:jsonb"`
	AnalysisJSON datatypes.JSON `json:"analysis_json,omitempty" gorm:"type:jsonb"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Poster) TableName() string {
	return "posters"
}
