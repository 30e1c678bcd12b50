package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"research-agent/config"
	"research-agent/models"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListClassifiesAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "datasets/cells/a.csv", "id\n1\n")
	writeFile(t, dir, "datasets/cells/b.jsonl", "{\"x\":1}\n")
	writeFile(t, dir, "paper/study.pdf", "%PDF-1.4 fake")
	writeFile(t, dir, "poster/expo.pdf", "%PDF-1.4 fake")
	writeFile(t, dir, "paper/readme.txt", "not supported")
	writeFile(t, dir, ".git/config", "[core]")
	writeFile(t, dir, "datasets/cells/.hidden.csv", "id\n1\n")

	w := NewWalker(&config.Config{DataDir: dir, MaxFileSizeMB: 10}, zap.NewNop())
	files, err := w.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 4 {
		t.Fatalf("List returned %d files, want 4: %+v", len(files), files)
	}

	byName := make(map[string]models.Category)
	for _, fi := range files {
		byName[fi.Name] = fi.Category
		if !filepath.IsAbs(fi.Path) {
			t.Errorf("path not absolute: %q", fi.Path)
		}
		if fi.Category == models.CategoryDataset && fi.DatasetName != "cells" {
			t.Errorf("dataset name = %q for %q", fi.DatasetName, fi.Path)
		}
	}
	if byName["a.csv"] != models.CategoryDataset {
		t.Error("a.csv not classified as dataset")
	}
	if byName["study.pdf"] != models.CategoryPaper {
		t.Error("study.pdf not classified as paper")
	}
	if byName["expo.pdf"] != models.CategoryPoster {
		t.Error("expo.pdf not classified as poster")
	}
	for name := range byName {
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".txt") {
			t.Errorf("filtered file leaked through: %q", name)
		}
	}
}

func TestListSkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "datasets/big/huge.csv", strings.Repeat("x", 2*1024*1024))
	writeFile(t, dir, "datasets/big/small.csv", "id\n1\n")

	w := NewWalker(&config.Config{DataDir: dir, MaxFileSizeMB: 1}, zap.NewNop())
	files, err := w.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "small.csv" {
		t.Errorf("oversize filter failed: %+v", files)
	}
}

func TestListMissingDirectory(t *testing.T) {
	w := NewWalker(&config.Config{DataDir: filepath.Join(t.TempDir(), "nope")}, zap.NewNop())
	if _, err := w.List(context.Background()); err == nil {
		t.Fatal("expected error for missing data directory")
	}
}

func TestListHonorsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "datasets/cells/a.csv", "id\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWalker(&config.Config{DataDir: dir, MaxFileSizeMB: 10}, zap.NewNop())
	if _, err := w.List(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
