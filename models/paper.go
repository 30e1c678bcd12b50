package models

import (
	"time"

	"gorm.io/datatypes"
)

// Paper repräsentiert eine wissenschaftliche Publikation (PDF) im
// Datenverzeichnis samt der von der KI extrahierten Metadaten.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FilePath string `json:"file_path" gorm:"uniqueIndex;not null"`
	FileName string `json:"file_name" gorm:"not null"`
	FileSize int64  `json:"file_size"`

	ContentHash string     `json:"content_hash" gorm:"index"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	PageCount   int        `json:"page_count,omitempty"`

	// KI-Analyse: NULL-Abstract bedeutet "Analyse ausstehend".
	Title        string         `json:"title,omitempty"`
	Authors      string         `json:"authors,omitempty"`
	Abstract     *string        `json:"abstract,omitempty" gorm:"type:text"`
	Keywords     datatypes.JSON `json:"keywords,omitempty" gorm:"type:jsonb"`
	AnalysisJSON datatypes.JSON `json:"analysis_json,omitempty" gorm:"type:jsonb"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Paper) TableName() string {
	return "papers"
}
