package repository

import (
	"errors"
	"testing"

	"gorm.io/datatypes"

	"research-agent/models"
)

func TestPaperUpsertIsIdempotent(t *testing.T) {
	repo := NewPaperRepository(newTestDB(t), testLogger())

	p := &models.Paper{FilePath: "/data/paper/a.pdf", FileName: "a.pdf", ContentHash: "h1"}
	if err := repo.Upsert(p); err != nil {
		t.Fatal(err)
	}
	firstID := p.ID

	changed := &models.Paper{
		FilePath: "/data/paper/a.pdf", FileName: "a.pdf", ContentHash: "h2",
		Title: "Updated Title", Abstract: strPtr("New abstract."),
	}
	if err := repo.Upsert(changed); err != nil {
		t.Fatal(err)
	}
	if changed.ID != firstID {
		t.Errorf("conflict upsert changed identity: %d vs %d", changed.ID, firstID)
	}

	n, err := repo.CountAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountAll = %d, want 1", n)
	}

	reloaded, err := repo.FindByPath("/data/paper/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.ContentHash != "h2" || reloaded.Title != "Updated Title" {
		t.Errorf("mutable fields not updated: %+v", reloaded)
	}
}

func TestPaperFindByPath(t *testing.T) {
	repo := NewPaperRepository(newTestDB(t), testLogger())

	if _, err := repo.FindByPath("/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPaperSearchByKeyword(t *testing.T) {
	repo := NewPaperRepository(newTestDB(t), testLogger())

	papers := []*models.Paper{
		{FilePath: "/p/transformers.pdf", FileName: "transformers.pdf",
			Title: "Attention Mechanisms", Abstract: strPtr("A survey of attention.")},
		{FilePath: "/p/gan.pdf", FileName: "gan.pdf",
			Title:    "Generative Networks",
			Keywords: datatypes.JSON([]byte(`["adversarial","images"]`))},
	}
	for _, p := range papers {
		if err := repo.Upsert(p); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := repo.SearchByKeyword("ATTENTION")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].FileName != "transformers.pdf" {
		t.Errorf("title search: %+v", hits)
	}

	// Keywords liegen als JSON-Spalte vor und sind trotzdem durchsuchbar.
	hits, err = repo.SearchByKeyword("adversarial")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].FileName != "gan.pdf" {
		t.Errorf("keyword search: %+v", hits)
	}

	// "adversarial attention" steht nirgends als Gesamtphrase; beide
	// Dokumente müssen über ihre Einzelbegriffe gefunden werden.
	hits, err = repo.SearchByKeyword("adversarial attention")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("multi-term search returned %d hits, want 2", len(hits))
	}
}

func TestPaperPendingCount(t *testing.T) {
	repo := NewPaperRepository(newTestDB(t), testLogger())

	for _, p := range []*models.Paper{
		{FilePath: "/p/a.pdf", FileName: "a.pdf", Abstract: strPtr("done")},
		{FilePath: "/p/b.pdf", FileName: "b.pdf"},
		{FilePath: "/p/c.pdf", FileName: "c.pdf"},
	} {
		if err := repo.Upsert(p); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := repo.CountPending()
	if err != nil {
		t.Fatal(err)
	}
	if pending != 2 {
		t.Errorf("CountPending = %d, want 2", pending)
	}

	out, err := repo.FindAll(ListFilter{PendingOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("PendingOnly returned %d papers", len(out))
	}
}

func TestPaperDeleteByPath(t *testing.T) {
	repo := NewPaperRepository(newTestDB(t), testLogger())

	p := &models.Paper{FilePath: "/p/a.pdf", FileName: "a.pdf"}
	if err := repo.Upsert(p); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteByPath("/p/a.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteByPath("/p/a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestPosterUpsertAndSearch(t *testing.T) {
	repo := NewPosterRepository(newTestDB(t), testLogger())

	po := &models.Poster{FilePath: "/po/expo.pdf", FileName: "expo.pdf", Title: "Microscopy at Scale"}
	if err := repo.Upsert(po); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(&models.Poster{FilePath: "/po/expo.pdf", FileName: "expo.pdf", Title: "Microscopy at Scale"}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.CountAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountAll = %d, want 1", n)
	}

	hits, err := repo.SearchByKeyword("microscopy")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("poster search: %+v", hits)
	}
}
