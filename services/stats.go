package services

import (
	"go.uber.org/zap"

	"research-agent/repository"
)

// CategoryStats sind Kennzahlen einer einzelnen Kategorie.
type CategoryStats struct {
	Count   int64 `json:"count"`
	Pending int64 `json:"pending_analysis,omitempty"`
}

// OverallStats ist die Gesamtstatistik der Bibliothek.
type OverallStats struct {
	Datasets          CategoryStats `json:"datasets"`
	Papers            CategoryStats `json:"papers"`
	Posters           CategoryStats `json:"posters"`
	TotalDatasetFiles int64         `json:"total_dataset_files"`
	TotalDatasetBytes int64         `json:"total_dataset_bytes"`
	TotalDocuments    int64         `json:"total_documents"`
}

// Statistics berechnet Kennzahlen über alle Repositories.
type Statistics struct {
	Datasets *repository.DatasetRepository
	Papers   *repository.PaperRepository
	Posters  *repository.PosterRepository
	Logger   *zap.Logger
}

// NewStatistics erstellt den Statistik-Service.
func NewStatistics(datasets *repository.DatasetRepository, papers *repository.PaperRepository,
	posters *repository.PosterRepository, logger *zap.Logger) *Statistics {
	return &Statistics{Datasets: datasets, Papers: papers, Posters: posters, Logger: logger}
}

// Overall liefert die Gesamtstatistik.
func (s *Statistics) Overall() (*OverallStats, error) {
	stats := &OverallStats{}

	var err error
	if stats.Datasets.Count, err = s.Datasets.CountAll(); err != nil {
		return nil, err
	}
	if stats.Papers.Count, err = s.Papers.CountAll(); err != nil {
		return nil, err
	}
	if stats.Papers.Pending, err = s.Papers.CountPending(); err != nil {
		return nil, err
	}
	if stats.Posters.Count, err = s.Posters.CountAll(); err != nil {
		return nil, err
	}
	if stats.Posters.Pending, err = s.Posters.CountPending(); err != nil {
		return nil, err
	}
	if stats.TotalDatasetFiles, err = s.Datasets.CountFiles(); err != nil {
		return nil, err
	}

	datasets, err := s.Datasets.FindAll(repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, ds := range datasets {
		stats.TotalDatasetBytes += ds.TotalSize
		if ds.Summary == nil {
			stats.Datasets.Pending++
		}
	}

	stats.TotalDocuments = stats.Datasets.Count + stats.Papers.Count + stats.Posters.Count
	return stats, nil
}
