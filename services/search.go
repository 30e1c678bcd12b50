package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"research-agent/config"
	"research-agent/llm"
	"research-agent/models"
	"research-agent/repository"
	"research-agent/vectorstore"
)

// SearchDocument ist ein einzelner Treffer, kategorieübergreifend
// vereinheitlicht.
type SearchDocument struct {
	DocID     string          `json:"doc_id"`
	Category  models.Category `json:"category"`
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Title     string          `json:"title,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Keywords  []string        `json:"keywords,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Score     float64         `json:"score"`
}

// RankedResults ist das Ergebnis einer Suche. Degraded ist gesetzt, wenn die
// Vektorsuche aktiviert, aber nicht verfügbar war.
type RankedResults struct {
	Documents  []SearchDocument `json:"documents"`
	TotalCount int              `json:"total_count"`
	Degraded   bool             `json:"degraded"`
}

// Gewichte der Stichwort-Relevanz pro Feld. Exakte Werte sind Tuning-
// Parameter, kein Vertrag.
const (
	weightTitle    = 3.0
	weightName     = 2.0
	weightKeywords = 2.0
	weightSummary  = 1.0
)

// SearchEngine fächert Stichwortsuchen über die Kategorie-Repositories auf
// und mischt optional Vektor-Treffer per Reciprocal Rank Fusion dazu.
type SearchEngine struct {
	Config   *config.Config
	Logger   *zap.Logger
	Datasets *repository.DatasetRepository
	Papers   *repository.PaperRepository
	Posters  *repository.PosterRepository
	Embedder llm.Client        // nil, wenn Vektorsuche deaktiviert ist
	Vector   vectorstore.Store // nil, wenn Vektorsuche deaktiviert ist
}

// NewSearchEngine erstellt die Suche. Embedder und Vector dürfen nil sein.
func NewSearchEngine(cfg *config.Config, logger *zap.Logger,
	datasets *repository.DatasetRepository, papers *repository.PaperRepository,
	posters *repository.PosterRepository, embedder llm.Client, vector vectorstore.Store) *SearchEngine {
	return &SearchEngine{
		Config:   cfg,
		Logger:   logger,
		Datasets: datasets,
		Papers:   papers,
		Posters:  posters,
		Embedder: embedder,
		Vector:   vector,
	}
}

// Search führt die Suche aus. Fällt die Vektorsuche aus, kommen trotzdem
// Stichwort-Treffer zurück, markiert mit Degraded=true.
func (se *SearchEngine) Search(ctx context.Context, query string, category *models.Category, limit, offset int) (*RankedResults, error) {
	if limit <= 0 {
		limit = 20
	}
	query = strings.TrimSpace(query)

	keyword, err := se.keywordSearch(query, category)
	if err != nil {
		return nil, err
	}

	results := &RankedResults{}
	docs := keyword

	if se.Vector != nil && se.Embedder != nil {
		vectorHits, err := se.vectorSearch(ctx, query, category, limit+offset)
		if err != nil {
			se.Logger.Warn("Vector search unavailable, keyword-only results", zap.Error(err))
			results.Degraded = true
		} else {
			docs = se.fuse(keyword, vectorHits)
		}
	}

	results.TotalCount = len(docs)
	if offset >= len(docs) {
		results.Documents = []SearchDocument{}
		return results, nil
	}
	docs = docs[offset:]
	if len(docs) > limit {
		docs = docs[:limit]
	}
	results.Documents = docs
	return results, nil
}

// keywordSearch fragt die relevanten Repositories ab und sortiert nach
// Termfrequenz-Score, bei Gleichstand neueste zuerst.
func (se *SearchEngine) keywordSearch(query string, category *models.Category) ([]SearchDocument, error) {
	var docs []SearchDocument

	include := func(c models.Category) bool {
		return category == nil || *category == c
	}

	if include(models.CategoryDataset) {
		datasets, err := se.Datasets.SearchByKeyword(query)
		if err != nil {
			return nil, fmt.Errorf("dataset search failed: %w", err)
		}
		for _, ds := range datasets {
			docs = append(docs, datasetDocument(&ds))
		}
	}
	if include(models.CategoryPaper) {
		papers, err := se.Papers.SearchByKeyword(query)
		if err != nil {
			return nil, fmt.Errorf("paper search failed: %w", err)
		}
		for _, p := range papers {
			docs = append(docs, paperDocument(&p))
		}
	}
	if include(models.CategoryPoster) {
		posters, err := se.Posters.SearchByKeyword(query)
		if err != nil {
			return nil, fmt.Errorf("poster search failed: %w", err)
		}
		for _, p := range posters {
			docs = append(docs, posterDocument(&p))
		}
	}

	for i := range docs {
		docs[i].Score = relevanceScore(query, &docs[i])
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	return docs, nil
}

// relevanceScore zählt Vorkommen des Suchbegriffs, gewichtet pro Feld.
func relevanceScore(query string, doc *SearchDocument) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(doc.Title)
	name := strings.ToLower(doc.Name)
	summary := strings.ToLower(doc.Summary)
	keywords := strings.ToLower(strings.Join(doc.Keywords, " "))

	score := 0.0
	for _, term := range terms {
		score += float64(strings.Count(title, term)) * weightTitle
		score += float64(strings.Count(name, term)) * weightName
		score += float64(strings.Count(keywords, term)) * weightKeywords
		score += float64(strings.Count(summary, term)) * weightSummary
	}
	return score
}

// vectorSearch bettet die Anfrage ein und fragt den Vektorindex ab.
func (se *SearchEngine) vectorSearch(ctx context.Context, query string, category *models.Category, topK int) ([]vectorstore.Scored, error) {
	vector, err := se.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := se.Vector.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return hits, nil
	}
	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Category == string(*category) {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}

// fuse mischt Stichwort- und Vektor-Rangliste per Reciprocal Rank Fusion:
// fused(d) = sum über Listen von 1/(k + rank). Das verhindert, dass eine
// Methode allein wegen anderer Score-Skalen dominiert.
func (se *SearchEngine) fuse(keyword []SearchDocument, vector []vectorstore.Scored) []SearchDocument {
	k := float64(se.Config.RRFConstant)
	if k <= 0 {
		k = 60
	}

	fused := make(map[string]float64)
	byID := make(map[string]SearchDocument, len(keyword))

	for rank, doc := range keyword {
		fused[doc.DocID] += 1.0 / (k + float64(rank+1))
		byID[doc.DocID] = doc
	}
	for rank, hit := range vector {
		fused[hit.DocID] += 1.0 / (k + float64(rank+1))
		if _, known := byID[hit.DocID]; !known {
			if doc, err := se.resolveDocID(hit.DocID); err == nil {
				byID[hit.DocID] = *doc
			} else {
				// Verwaister Vektor-Treffer (Dokument inzwischen gelöscht).
				delete(fused, hit.DocID)
			}
		}
	}

	out := make([]SearchDocument, 0, len(fused))
	for docID, score := range fused {
		doc := byID[docID]
		doc.Score = score
		out = append(out, doc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// resolveDocID lädt ein Dokument anhand seiner Vektor-ID ("paper:3").
func (se *SearchEngine) resolveDocID(docID string) (*SearchDocument, error) {
	parts := strings.SplitN(docID, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid doc id: %q", docID)
	}
	id64, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid doc id: %q", docID)
	}
	id := uint(id64)

	switch parts[0] {
	case "paper":
		p, err := se.Papers.FindByID(id)
		if err != nil {
			return nil, err
		}
		doc := paperDocument(p)
		return &doc, nil
	case "poster":
		p, err := se.Posters.FindByID(id)
		if err != nil {
			return nil, err
		}
		doc := posterDocument(p)
		return &doc, nil
	case "dataset":
		ds, err := se.Datasets.FindByID(id)
		if err != nil {
			return nil, err
		}
		doc := datasetDocument(ds)
		return &doc, nil
	}
	return nil, fmt.Errorf("unknown category in doc id: %q", docID)
}

func datasetDocument(ds *models.Dataset) SearchDocument {
	doc := SearchDocument{
		DocID:     fmt.Sprintf("dataset:%d", ds.ID),
		Category:  models.CategoryDataset,
		ID:        ds.ID,
		Name:      ds.Name,
		UpdatedAt: ds.UpdatedAt,
	}
	if ds.Summary != nil {
		doc.Summary = *ds.Summary
	}
	return doc
}

func paperDocument(p *models.Paper) SearchDocument {
	doc := SearchDocument{
		DocID:     fmt.Sprintf("paper:%d", p.ID),
		Category:  models.CategoryPaper,
		ID:        p.ID,
		Name:      p.FileName,
		Title:     p.Title,
		UpdatedAt: p.UpdatedAt,
		Keywords:  decodeKeywords(p.Keywords),
	}
	if p.Abstract != nil {
		doc.Summary = *p.Abstract
	}
	return doc
}

func posterDocument(p *models.Poster) SearchDocument {
	doc := SearchDocument{
		DocID:     fmt.Sprintf("poster:%d", p.ID),
		Category:  models.CategoryPoster,
		ID:        p.ID,
		Name:      p.FileName,
		Title:     p.Title,
		UpdatedAt: p.UpdatedAt,
		Keywords:  decodeKeywords(p.Keywords),
	}
	if p.Abstract != nil {
		doc.Summary = *p.Abstract
	}
	return doc
}

func decodeKeywords(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil
	}
	return keywords
}
