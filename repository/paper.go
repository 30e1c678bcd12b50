package repository

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"research-agent/models"
)

// PaperRepository verwaltet die papers-Tabelle. Eindeutig ist der Dateipfad.
type PaperRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaperRepository erstellt ein Repository über der gegebenen DB.
func NewPaperRepository(db *gorm.DB, logger *zap.Logger) *PaperRepository {
	return &PaperRepository{db: db, logger: logger}
}

// Upsert legt ein Paper an oder aktualisiert die veränderlichen Felder.
// Atomar pro Aufruf (ON CONFLICT auf file_path).
func (r *PaperRepository) Upsert(p *models.Paper) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"file_name":     p.FileName,
			"file_size":     p.FileSize,
			"content_hash":  p.ContentHash,
			"indexed_at":    p.IndexedAt,
			"page_count":    p.PageCount,
			"title":         p.Title,
			"authors":       p.Authors,
			"abstract":      p.Abstract,
			"keywords":      p.Keywords,
			"analysis_json": p.AnalysisJSON,
			"updated_at":    time.Now(),
		}),
	}).Create(p).Error
	if err != nil {
		return err
	}
	if p.ID == 0 {
		existing, ferr := r.FindByPath(p.FilePath)
		if ferr != nil {
			return ferr
		}
		p.ID = existing.ID
	}
	return nil
}

// FindByPath sucht ein Paper über seinen eindeutigen Pfad.
func (r *PaperRepository) FindByPath(path string) (*models.Paper, error) {
	var p models.Paper
	if err := r.db.Where("file_path = ?", path).First(&p).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// FindByID sucht ein Paper über seine ID.
func (r *PaperRepository) FindByID(id uint) (*models.Paper, error) {
	var p models.Paper
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// FindAll liefert Papers, neueste zuerst.
func (r *PaperRepository) FindAll(f ListFilter) ([]models.Paper, error) {
	var out []models.Paper
	q := r.db.Order("updated_at DESC")
	if f.PendingOnly {
		q = q.Where("abstract IS NULL")
	}
	if err := applyFilter(q, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchByKeyword sucht case-insensitiv über Dateiname, Titel, Abstract und
// Keywords, neueste zuerst. Mehrwortanfragen treffen, sobald mindestens ein
// Begriff in einem der Felder vorkommt.
func (r *PaperRepository) SearchByKeyword(term string) ([]models.Paper, error) {
	const fieldClause = "LOWER(file_name) LIKE ? OR LOWER(title) LIKE ? OR LOWER(abstract) LIKE ? OR LOWER(CAST(keywords AS TEXT)) LIKE ?"
	var conds []string
	var args []any
	for _, pattern := range termPatterns(term) {
		conds = append(conds, "("+fieldClause+")")
		args = append(args, pattern, pattern, pattern, pattern)
	}
	var out []models.Paper
	err := r.db.
		Where(strings.Join(conds, " OR "), args...).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountAll zählt die Papers.
func (r *PaperRepository) CountAll() (int64, error) {
	var n int64
	err := r.db.Model(&models.Paper{}).Count(&n).Error
	return n, err
}

// CountPending zählt Papers ohne Analyse.
func (r *PaperRepository) CountPending() (int64, error) {
	var n int64
	err := r.db.Model(&models.Paper{}).Where("abstract IS NULL").Count(&n).Error
	return n, err
}

// DeleteByPath entfernt ein Paper.
func (r *PaperRepository) DeleteByPath(path string) error {
	res := r.db.Where("file_path = ?", path).Delete(&models.Paper{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
