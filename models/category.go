package models

import (
	"path/filepath"
	"strings"
)

// Category bestimmt Tabelle und Analyse-Prompt eines Dokuments.
type Category string

const (
	CategoryDataset Category = "dataset"
	CategoryPaper   Category = "paper"
	CategoryPoster  Category = "poster"
)

// SupportedExtensions sind die Dateitypen, die der Indexer verarbeitet.
var SupportedExtensions = map[string]bool{
	".pdf":   true,
	".csv":   true,
	".json":  true,
	".jsonl": true,
}

// ClassifyPath leitet die Kategorie aus der Verzeichnisstruktur ab:
// datasets/<name>/... gehört zu einem Dataset, paper/ und poster/ sind
// eigenständige Dokumente. Ohne passendes Verzeichnis entscheidet der
// Dateityp (PDF -> Paper bzw. Poster nach Dateinamen, sonst Dataset).
func ClassifyPath(path string) Category {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch strings.ToLower(part) {
		case "paper", "papers":
			return CategoryPaper
		case "poster", "posters":
			return CategoryPoster
		case "dataset", "datasets":
			return CategoryDataset
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if strings.Contains(strings.ToLower(filepath.Base(path)), "poster") {
			return CategoryPoster
		}
		return CategoryPaper
	}
	return CategoryDataset
}

// DatasetNameFromPath liest den Dataset-Namen aus einem Pfad der Form
// .../datasets/<name>/file.ext. Leerer String, wenn kein Name ableitbar ist.
func DatasetNameFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if strings.EqualFold(part, "datasets") || strings.EqualFold(part, "dataset") {
			if i+2 < len(parts) {
				return parts[i+1]
			}
		}
	}
	return ""
}

// ParseCategory validiert einen Kategorie-String aus der API.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dataset", "datasets":
		return CategoryDataset, true
	case "paper", "papers":
		return CategoryPaper, true
	case "poster", "posters":
		return CategoryPoster, true
	}
	return "", false
}
