package sources

import (
	"context"
	"time"

	"research-agent/models"
)

// FileInfo beschreibt eine gefundene Datei, unabhängig davon, ob sie von
// der lokalen Platte oder aus einem Drive-Sync stammt.
type FileInfo struct {
	Path        string
	Name        string
	Size        int64
	ModTime     time.Time
	Category    models.Category
	DatasetName string // nur für Category == CategoryDataset
}

// Source ist das Interface, das jede Dateiquelle (lokales Verzeichnis,
// Google Drive) implementieren muss.
type Source interface {
	// List liefert alle unterstützten Dateien der Quelle, bereits
	// klassifiziert und lokal lesbar.
	List(ctx context.Context) ([]FileInfo, error)

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "local").
	Name() string
}
