package repository

import (
	"errors"
	"testing"

	"research-agent/models"
)

func TestDatasetUpsertIsIdempotent(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	first := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(first); err != nil {
		t.Fatal(err)
	}
	if first.ID == 0 {
		t.Fatal("ID not set after insert")
	}

	second := &models.Dataset{Name: "cells", Description: "updated"}
	if err := repo.Upsert(second); err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("conflict upsert changed identity: %d vs %d", second.ID, first.ID)
	}

	n, err := repo.CountAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountAll = %d, want 1", n)
	}

	reloaded, err := repo.FindByName("cells")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Description != "updated" {
		t.Errorf("Description = %q", reloaded.Description)
	}
}

func TestDatasetUpsertPreservesSummary(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	ds := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(ds); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetSummary(ds.ID, "This dataset contains cell counts."); err != nil {
		t.Fatal(err)
	}

	// Ein erneuter Scan darf die vorhandene Zusammenfassung nicht löschen.
	again := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(again); err != nil {
		t.Fatal(err)
	}
	if again.Summary == nil {
		t.Fatal("Summary not recovered on conflict upsert")
	}

	reloaded, err := repo.FindByName("cells")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Summary == nil || *reloaded.Summary == "" {
		t.Error("stored summary lost after re-upsert")
	}
}

func TestDatasetUpsertPreservesDescription(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	ds := &models.Dataset{Name: "cells", Description: "curated cell counts"}
	if err := repo.Upsert(ds); err != nil {
		t.Fatal(err)
	}

	// Ein Scan-Upsert ohne Beschreibung darf die gespeicherte nicht leeren.
	again := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(again); err != nil {
		t.Fatal(err)
	}
	if again.Description != "curated cell counts" {
		t.Errorf("Description = %q after bare upsert", again.Description)
	}

	reloaded, err := repo.FindByName("cells")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Description != "curated cell counts" {
		t.Errorf("stored description = %q", reloaded.Description)
	}
}

func TestDatasetFileUpsertAndAggregates(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	ds := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(ds); err != nil {
		t.Fatal(err)
	}

	files := []*models.DatasetFile{
		{DatasetID: ds.ID, FilePath: "/data/datasets/cells/a.csv", FileName: "a.csv", FileType: "csv", FileSize: 100, ContentHash: "h1"},
		{DatasetID: ds.ID, FilePath: "/data/datasets/cells/b.csv", FileName: "b.csv", FileType: "csv", FileSize: 250, ContentHash: "h2"},
	}
	for _, f := range files {
		if err := repo.UpsertFile(f); err != nil {
			t.Fatal(err)
		}
	}
	// Gleicher Pfad noch einmal, mit neuer Größe: kein Duplikat.
	if err := repo.UpsertFile(&models.DatasetFile{
		DatasetID: ds.ID, FilePath: "/data/datasets/cells/a.csv",
		FileName: "a.csv", FileType: "csv", FileSize: 120, ContentHash: "h1b",
	}); err != nil {
		t.Fatal(err)
	}

	if err := repo.RecomputeAggregates(ds.ID); err != nil {
		t.Fatal(err)
	}
	reloaded, err := repo.FindByName("cells")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", reloaded.FileCount)
	}
	if reloaded.TotalSize != 370 {
		t.Errorf("TotalSize = %d, want 370", reloaded.TotalSize)
	}
}

func TestDatasetSearchByKeyword(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	for _, ds := range []*models.Dataset{
		{Name: "zebrafish-imaging", Summary: strPtr("This dataset contains confocal images.")},
		{Name: "weather-stations", Summary: strPtr("This dataset contains hourly sensor readings.")},
	} {
		if err := repo.Upsert(ds); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := repo.SearchByKeyword("Zebrafish")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "zebrafish-imaging" {
		t.Errorf("unexpected hits: %+v", hits)
	}

	hits, err = repo.SearchByKeyword("sensor")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "weather-stations" {
		t.Errorf("summary search failed: %+v", hits)
	}

	// Mehrwortanfragen treffen pro Begriff, nicht nur als Gesamtphrase.
	hits, err = repo.SearchByKeyword("zebrafish sensor")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("multi-term search returned %d hits, want 2", len(hits))
	}
}

func TestDatasetDeleteByNameCascades(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	ds := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(ds); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertFile(&models.DatasetFile{
		DatasetID: ds.ID, FilePath: "/d/a.csv", FileName: "a.csv",
	}); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteByName("cells"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.FindByName("cells"); !errors.Is(err, ErrNotFound) {
		t.Errorf("dataset still present: %v", err)
	}
	n, err := repo.CountFiles()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("dataset files not cascaded, %d left", n)
	}

	if err := repo.DeleteByName("cells"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestDatasetFindHashDuplicates(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	ds := &models.Dataset{Name: "cells"}
	if err := repo.Upsert(ds); err != nil {
		t.Fatal(err)
	}
	for _, f := range []*models.DatasetFile{
		{DatasetID: ds.ID, FilePath: "/d/a.csv", FileName: "a.csv", ContentHash: "same"},
		{DatasetID: ds.ID, FilePath: "/d/copy-of-a.csv", FileName: "copy-of-a.csv", ContentHash: "same"},
		{DatasetID: ds.ID, FilePath: "/d/b.csv", FileName: "b.csv", ContentHash: "other"},
	} {
		if err := repo.UpsertFile(f); err != nil {
			t.Fatal(err)
		}
	}

	dups, err := repo.FindHashDuplicates()
	if err != nil {
		t.Fatal(err)
	}
	if len(dups) != 1 {
		t.Fatalf("duplicates = %v, want exactly one group", dups)
	}
	if paths := dups["same"]; len(paths) != 2 {
		t.Errorf("duplicate group = %v", paths)
	}
}

func TestDatasetPendingFilter(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t), testLogger())

	analyzed := &models.Dataset{Name: "done", Summary: strPtr("This dataset is analyzed.")}
	pending := &models.Dataset{Name: "todo"}
	for _, ds := range []*models.Dataset{analyzed, pending} {
		if err := repo.Upsert(ds); err != nil {
			t.Fatal(err)
		}
	}

	out, err := repo.FindAll(ListFilter{PendingOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "todo" {
		t.Errorf("pending filter returned %+v", out)
	}
}
