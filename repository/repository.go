package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound wird zurückgegeben, wenn kein Datensatz zum Schlüssel existiert.
var ErrNotFound = errors.New("record not found")

// ListFilter begrenzt FindAll-Abfragen.
type ListFilter struct {
	Limit       int
	Offset      int
	PendingOnly bool // nur Datensätze ohne Analyse
}

func applyFilter(q *gorm.DB, f ListFilter) *gorm.DB {
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return q
}

// likePattern baut das Muster für die case-insensitive Stichwortsuche.
func likePattern(term string) string {
	return "%" + term + "%"
}

// termPatterns zerlegt die Anfrage an Leerzeichen und baut pro Einzelbegriff
// ein LIKE-Muster. Ein Treffer muss mindestens einen Begriff enthalten.
func termPatterns(term string) []string {
	fields := strings.Fields(strings.ToLower(term))
	if len(fields) == 0 {
		return []string{likePattern(strings.ToLower(strings.TrimSpace(term)))}
	}
	patterns := make([]string, len(fields))
	for i, f := range fields {
		patterns[i] = likePattern(f)
	}
	return patterns
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
