package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"research-agent/config"
	"research-agent/models"
	"research-agent/repository"
	"research-agent/vectorstore"
)

// testEnv bündelt die DB-gestützten Abhängigkeiten der Service-Tests.
type testEnv struct {
	db       *gorm.DB
	datasets *repository.DatasetRepository
	papers   *repository.PaperRepository
	posters  *repository.PosterRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("cannot open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Dataset{}, &models.DatasetFile{}, &models.Paper{}, &models.Poster{}); err != nil {
		t.Fatalf("auto-migration failed: %v", err)
	}
	log := zap.NewNop()
	return &testEnv{
		db:       db,
		datasets: repository.NewDatasetRepository(db, log),
		papers:   repository.NewPaperRepository(db, log),
		posters:  repository.NewPosterRepository(db, log),
	}
}

// fakeLLM liefert deterministische Analysen und zählt seine Aufrufe.
type fakeLLM struct {
	mu            sync.Mutex
	generateCalls int
	embedCalls    int
	generateErr   error
	embedErr      error
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return map[string]any{
		"summary":  "This dataset contains synthetic test records.",
		"title":    "Synthetic Records",
		"authors":  "T. Tester",
		"keywords": []any{"synthetic", "records"},
	}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}

// fakeVector zeichnet Upserts auf und liefert vorbereitete Treffer.
type fakeVector struct {
	mu       sync.Mutex
	upserts  map[string][]float32
	hits     []vectorstore.Scored
	queryErr error
}

func newFakeVector() *fakeVector {
	return &fakeVector{upserts: make(map[string][]float32)}
}

func (f *fakeVector) UpsertDocument(ctx context.Context, docID string, vector []float32, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[docID] = vector
	return nil
}

func (f *fakeVector) Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Scored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.hits) > topK {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}

func (f *fakeVector) hasPrefix(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for docID := range f.upserts {
		if strings.HasPrefix(docID, prefix) {
			return true
		}
	}
	return false
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		DataDir:         dataDir,
		MaxFileSizeMB:   10,
		ScanWorkers:     2,
		MaxContentChars: 12000,
		AutoAnalyze:     true,
		LLMTimeoutSec:   5,
		RRFConstant:     60,
	}
}

func strPtr(s string) *string { return &s }
