package services

import (
	"testing"

	"go.uber.org/zap"

	"research-agent/models"
)

func TestOverallStats(t *testing.T) {
	env := newTestEnv(t)

	ds := &models.Dataset{Name: "cells"}
	if err := env.datasets.Upsert(ds); err != nil {
		t.Fatal(err)
	}
	for _, f := range []*models.DatasetFile{
		{DatasetID: ds.ID, FilePath: "/d/a.csv", FileName: "a.csv", FileSize: 100},
		{DatasetID: ds.ID, FilePath: "/d/b.csv", FileName: "b.csv", FileSize: 150},
	} {
		if err := env.datasets.UpsertFile(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.datasets.RecomputeAggregates(ds.ID); err != nil {
		t.Fatal(err)
	}

	for _, p := range []*models.Paper{
		{FilePath: "/p/a.pdf", FileName: "a.pdf", Abstract: strPtr("done")},
		{FilePath: "/p/b.pdf", FileName: "b.pdf"},
	} {
		if err := env.papers.Upsert(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := env.posters.Upsert(&models.Poster{FilePath: "/po/x.pdf", FileName: "x.pdf"}); err != nil {
		t.Fatal(err)
	}

	stats, err := NewStatistics(env.datasets, env.papers, env.posters, zap.NewNop()).Overall()
	if err != nil {
		t.Fatal(err)
	}

	if stats.Datasets.Count != 1 {
		t.Errorf("Datasets.Count = %d", stats.Datasets.Count)
	}
	if stats.Datasets.Pending != 1 {
		t.Errorf("Datasets.Pending = %d, want 1 (no summary yet)", stats.Datasets.Pending)
	}
	if stats.Papers.Count != 2 || stats.Papers.Pending != 1 {
		t.Errorf("Papers = %+v", stats.Papers)
	}
	if stats.Posters.Count != 1 || stats.Posters.Pending != 1 {
		t.Errorf("Posters = %+v", stats.Posters)
	}
	if stats.TotalDatasetFiles != 2 {
		t.Errorf("TotalDatasetFiles = %d", stats.TotalDatasetFiles)
	}
	if stats.TotalDatasetBytes != 250 {
		t.Errorf("TotalDatasetBytes = %d, want 250", stats.TotalDatasetBytes)
	}
	if stats.TotalDocuments != 4 {
		t.Errorf("TotalDocuments = %d, want 4", stats.TotalDocuments)
	}
}
