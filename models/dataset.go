package models

import (
	"time"

	"gorm.io/datatypes"
)

// Dataset repräsentiert eine logische Sammlung von Datendateien unterhalb
// eines Verzeichnisses data/datasets/<name>/.
type Dataset struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	// Abgeleitete Aggregate; werden nach jedem Scan aus den
	// DatasetFile-Zeilen neu berechnet, nie inkrementell fortgeschrieben.
	FileCount int   `json:"file_count"`
	TotalSize int64 `json:"total_size"`

	// LLM-Zusammenfassung des gesamten Datasets. NULL bedeutet
	// "Analyse ausstehend", kein Fehlerzustand.
	Summary *string `json:"summary,omitempty" gorm:"type:text"`

	Files []DatasetFile `json:"files,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Dataset) TableName() string {
	return "datasets"
}

// DatasetFile ist eine einzelne Datei eines Datasets. Eine Datei gehört
// immer zu genau einem Dataset und wird mit diesem kaskadiert gelöscht.
type DatasetFile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DatasetID uint   `json:"dataset_id" gorm:"index;not null"`
	FilePath  string `json:"file_path" gorm:"uniqueIndex;not null"`
	FileName  string `json:"file_name" gorm:"not null"`
	FileType  string `json:"file_type" gorm:"index"`
	FileSize  int64  `json:"file_size"`

	ContentHash string     `json:"content_hash" gorm:"index"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`

	// Strukturelle Analyse der Einzeldatei (Spalten, Zeilenzahl, ...).
	AnalysisJSON datatypes.JSON `json:"analysis_json,omitempty" gorm:"type:jsonb"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (DatasetFile) TableName() string {
	return "dataset_files"
}
