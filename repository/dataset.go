package repository

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"research-agent/models"
)

// DatasetRepository verwaltet Datasets und deren Dateien. Die Eindeutigkeit
// läuft über den Dataset-Namen bzw. den Dateipfad.
type DatasetRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDatasetRepository erstellt ein Repository über der gegebenen DB.
func NewDatasetRepository(db *gorm.DB, logger *zap.Logger) *DatasetRepository {
	return &DatasetRepository{db: db, logger: logger}
}

// Upsert legt das Dataset an oder aktualisiert die veränderlichen Felder.
// Die Operation ist pro Aufruf atomar (ON CONFLICT auf name). Eine leere
// Beschreibung überschreibt eine bereits gespeicherte nicht.
func (r *DatasetRepository) Upsert(ds *models.Dataset) error {
	assignments := map[string]any{
		"file_count": ds.FileCount,
		"total_size": ds.TotalSize,
		"updated_at": time.Now(),
	}
	if ds.Description != "" {
		assignments["description"] = ds.Description
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(ds).Error
	if err != nil {
		return err
	}
	// GORM füllt die ID auch im Konfliktfall. Immer nachladen, damit
	// Summary und Beschreibung des bestehenden Datensatzes erhalten bleiben.
	existing, ferr := r.FindByName(ds.Name)
	if ferr != nil {
		return ferr
	}
	ds.ID = existing.ID
	if existing.Summary != nil {
		ds.Summary = existing.Summary
	}
	if ds.Description == "" {
		ds.Description = existing.Description
	}
	return nil
}

// UpsertFile legt eine Dataset-Datei an oder aktualisiert sie (ON CONFLICT
// auf file_path).
func (r *DatasetRepository) UpsertFile(df *models.DatasetFile) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.Assignments(map[string]any{
			"dataset_id":    df.DatasetID,
			"file_name":     df.FileName,
			"file_type":     df.FileType,
			"file_size":     df.FileSize,
			"content_hash":  df.ContentHash,
			"indexed_at":    df.IndexedAt,
			"analysis_json": df.AnalysisJSON,
			"updated_at":    time.Now(),
		}),
	}).Create(df).Error
	if err != nil {
		return err
	}
	if df.ID == 0 {
		existing, ferr := r.FindFileByPath(df.FilePath)
		if ferr != nil {
			return ferr
		}
		df.ID = existing.ID
	}
	return nil
}

// FindByName sucht ein Dataset über seinen eindeutigen Namen.
func (r *DatasetRepository) FindByName(name string) (*models.Dataset, error) {
	var ds models.Dataset
	if err := r.db.Where("name = ?", name).First(&ds).Error; err != nil {
		return nil, translateErr(err)
	}
	return &ds, nil
}

// FindByID sucht ein Dataset über seine ID.
func (r *DatasetRepository) FindByID(id uint) (*models.Dataset, error) {
	var ds models.Dataset
	if err := r.db.First(&ds, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &ds, nil
}

// FindFileByPath sucht eine Dataset-Datei über ihren eindeutigen Pfad.
func (r *DatasetRepository) FindFileByPath(path string) (*models.DatasetFile, error) {
	var df models.DatasetFile
	if err := r.db.Where("file_path = ?", path).First(&df).Error; err != nil {
		return nil, translateErr(err)
	}
	return &df, nil
}

// FindAll liefert Datasets, neueste zuerst.
func (r *DatasetRepository) FindAll(f ListFilter) ([]models.Dataset, error) {
	var out []models.Dataset
	q := r.db.Order("updated_at DESC")
	if f.PendingOnly {
		q = q.Where("summary IS NULL")
	}
	if err := applyFilter(q, f).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FilesOf liefert alle Dateien eines Datasets.
func (r *DatasetRepository) FilesOf(datasetID uint) ([]models.DatasetFile, error) {
	var files []models.DatasetFile
	if err := r.db.Where("dataset_id = ?", datasetID).Order("file_path").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// SearchByKeyword sucht case-insensitiv über Name, Beschreibung und
// Zusammenfassung, neueste zuerst. Mehrwortanfragen treffen, sobald
// mindestens ein Begriff in einem der Felder vorkommt.
func (r *DatasetRepository) SearchByKeyword(term string) ([]models.Dataset, error) {
	const fieldClause = "LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(summary) LIKE ?"
	var conds []string
	var args []any
	for _, pattern := range termPatterns(term) {
		conds = append(conds, "("+fieldClause+")")
		args = append(args, pattern, pattern, pattern)
	}
	var out []models.Dataset
	err := r.db.
		Where(strings.Join(conds, " OR "), args...).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountAll zählt die Datasets.
func (r *DatasetRepository) CountAll() (int64, error) {
	var n int64
	err := r.db.Model(&models.Dataset{}).Count(&n).Error
	return n, err
}

// CountFiles zählt alle Dataset-Dateien.
func (r *DatasetRepository) CountFiles() (int64, error) {
	var n int64
	err := r.db.Model(&models.DatasetFile{}).Count(&n).Error
	return n, err
}

// SetSummary speichert die LLM-Zusammenfassung eines Datasets.
func (r *DatasetRepository) SetSummary(datasetID uint, summary string) error {
	return r.db.Model(&models.Dataset{}).Where("id = ?", datasetID).
		Update("summary", summary).Error
}

// RecomputeAggregates berechnet file_count und total_size eines Datasets
// aus den tatsächlich gespeicherten Dateien neu.
func (r *DatasetRepository) RecomputeAggregates(datasetID uint) error {
	var agg struct {
		Count int
		Size  int64
	}
	err := r.db.Model(&models.DatasetFile{}).
		Select("COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS size").
		Where("dataset_id = ?", datasetID).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return r.db.Model(&models.Dataset{}).Where("id = ?", datasetID).
		Updates(map[string]any{
			"file_count": agg.Count,
			"total_size": agg.Size,
		}).Error
}

// DeleteByName entfernt ein Dataset samt seiner Dateien.
func (r *DatasetRepository) DeleteByName(name string) error {
	ds, err := r.FindByName(name)
	if err != nil {
		return err
	}
	// Kinder zuerst; nicht jede DB erzwingt das CASCADE-Constraint.
	if err := r.db.Where("dataset_id = ?", ds.ID).Delete(&models.DatasetFile{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Dataset{}, ds.ID).Error
}

// FindHashDuplicates liefert Dataset-Dateien, deren Inhalt unter mehr als
// einem Pfad registriert ist. Sie werden gemeldet, nie automatisch vereinigt.
func (r *DatasetRepository) FindHashDuplicates() (map[string][]string, error) {
	var rows []struct {
		ContentHash string
		FilePath    string
	}
	err := r.db.Model(&models.DatasetFile{}).
		Select("content_hash, file_path").
		Where("content_hash <> ''").
		Order("content_hash, file_path").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	byHash := make(map[string][]string)
	for _, row := range rows {
		byHash[row.ContentHash] = append(byHash[row.ContentHash], row.FilePath)
	}
	dups := make(map[string][]string)
	for hash, paths := range byHash {
		if len(paths) > 1 {
			dups[hash] = paths
		}
	}
	return dups, nil
}
