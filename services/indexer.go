package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"research-agent/analyzer"
	"research-agent/config"
	"research-agent/llm"
	"research-agent/models"
	"research-agent/repository"
	"research-agent/sources"
	"research-agent/storage"
	"research-agent/vectorstore"
)

// ScanError beschreibt einen fehlgeschlagenen Einzelschritt eines Scans.
type ScanError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanReport fasst einen Scan-Lauf zusammen. Dateifehler brechen den Lauf
// nie ab, sie landen hier.
type ScanReport struct {
	Scanned    int                 `json:"scanned"`
	Registered int                 `json:"registered"`
	Updated    int                 `json:"updated"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
	Errors     []ScanError         `json:"errors"`
	Duplicates map[string][]string `json:"duplicates,omitempty"`
	Duration   time.Duration       `json:"-"`

	mu sync.Mutex
}

func (r *ScanReport) addError(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	r.Errors = append(r.Errors, ScanError{Path: path, Reason: err.Error()})
}

func (r *ScanReport) count(outcome fileOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case outcomeRegistered:
		r.Registered++
	case outcomeUpdated:
		r.Updated++
	case outcomeSkipped:
		r.Skipped++
	}
}

type fileOutcome int

const (
	outcomeRegistered fileOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

// ErrScanInProgress wird zurückgegeben, wenn bereits ein Scan läuft. Es
// läuft immer höchstens ein Scan gleichzeitig, egal ob per API oder Cron
// ausgelöst.
var ErrScanInProgress = errors.New("scan already in progress")

// Indexer orchestriert den gesamten Scan: Quellen abfragen, Dateien hashen,
// Strukturdaten extrahieren, per LLM analysieren und über die Repositories
// idempotent committen.
type Indexer struct {
	Config     *config.Config
	Logger     *zap.Logger
	Sources    []sources.Source
	Datasets   *repository.DatasetRepository
	Papers     *repository.PaperRepository
	Posters    *repository.PosterRepository
	Summarizer *llm.Summarizer
	Embedder   llm.Client        // nil, wenn Vektorsuche deaktiviert ist
	Vector     vectorstore.Store // nil, wenn Vektorsuche deaktiviert ist
	S3Client   *s3.Client        // nil, wenn die S3-Spiegelung deaktiviert ist

	running atomic.Bool
}

// NewIndexer erstellt einen Indexer. Vector, Embedder und S3Client dürfen
// nil sein; die zugehörigen Schritte werden dann übersprungen.
func NewIndexer(cfg *config.Config, logger *zap.Logger, srcs []sources.Source,
	datasets *repository.DatasetRepository, papers *repository.PaperRepository,
	posters *repository.PosterRepository, summarizer *llm.Summarizer,
	embedder llm.Client, vector vectorstore.Store, s3Client *s3.Client) *Indexer {
	return &Indexer{
		Config:     cfg,
		Logger:     logger,
		Sources:    srcs,
		Datasets:   datasets,
		Papers:     papers,
		Posters:    posters,
		Summarizer: summarizer,
		Embedder:   embedder,
		Vector:     vector,
		S3Client:   s3Client,
	}
}

// Run führt einen vollständigen Scan über alle Quellen aus. Pro Datei läuft
// die Pipeline hashen -> Änderungserkennung -> extrahieren -> analysieren ->
// committen; ein Semaphor begrenzt die Parallelität. Die Aggregate eines
// Datasets werden erst nach dem Commit aller seiner Dateien neu berechnet.
// Läuft bereits ein Scan, kommt ErrScanInProgress zurück.
func (ix *Indexer) Run(ctx context.Context) (*ScanReport, error) {
	if !ix.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer ix.running.Store(false)

	start := time.Now()
	report := &ScanReport{}

	var files []sources.FileInfo
	for _, src := range ix.Sources {
		found, err := src.List(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			ix.Logger.Error("Source listing failed",
				zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		files = append(files, found...)
	}
	report.Scanned = len(files)

	// Kategorisieren: Dataset-Dateien nach Dataset-Namen gruppieren.
	datasetFiles := make(map[string][]sources.FileInfo)
	var papers, posters []sources.FileInfo
	for _, fi := range files {
		switch fi.Category {
		case models.CategoryDataset:
			if fi.DatasetName == "" {
				ix.Logger.Warn("Dataset file outside datasets/<name>/, skipping",
					zap.String("path", fi.Path))
				report.count(outcomeSkipped)
				continue
			}
			datasetFiles[fi.DatasetName] = append(datasetFiles[fi.DatasetName], fi)
		case models.CategoryPaper:
			papers = append(papers, fi)
		case models.CategoryPoster:
			posters = append(posters, fi)
		}
	}

	workers := ix.Config.ScanWorkers
	if workers <= 0 {
		workers = 4
	}
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	// Papers und Poster sind unabhängig voneinander.
	for _, fi := range papers {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(fi sources.FileInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()
			ix.processPaper(ctx, fi, report)
		}(fi)
	}
	for _, fi := range posters {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(fi sources.FileInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()
			ix.processPoster(ctx, fi, report)
		}(fi)
	}

	// Pro Dataset: alle Dateien verarbeiten, dann (Barriere) Aggregate und
	// Gesamtzusammenfassung.
	for name, dsFiles := range datasetFiles {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(name string, dsFiles []sources.FileInfo) {
			defer wg.Done()
			ix.processDataset(ctx, name, dsFiles, semaphore, report)
		}(name, dsFiles)
	}

	wg.Wait()

	if dups, err := ix.Datasets.FindHashDuplicates(); err == nil && len(dups) > 0 {
		// Gleicher Inhalt unter mehreren Pfaden wird gemeldet, nie
		// automatisch zusammengeführt.
		report.Duplicates = dups
		for hash, paths := range dups {
			ix.Logger.Warn("Duplicate content registered under multiple paths",
				zap.String("hash", hash), zap.Strings("paths", paths))
		}
	}

	report.Duration = time.Since(start)
	ix.Logger.Info("Scan finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("registered", report.Registered),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// processPaper verarbeitet eine einzelne Paper-Datei.
func (ix *Indexer) processPaper(ctx context.Context, fi sources.FileInfo, report *ScanReport) {
	log := ix.Logger.With(zap.String("path", fi.Path))

	hash, err := analyzer.HashFile(fi.Path)
	if err != nil {
		log.Warn("Cannot hash file", zap.Error(err))
		report.addError(fi.Path, err)
		return
	}

	now := time.Now()
	existing, err := ix.Papers.FindByPath(fi.Path)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		report.addError(fi.Path, err)
		return
	}

	if existing != nil && existing.ContentHash == hash && existing.Abstract != nil {
		// Unverändert und analysiert: nur den Zeitstempel auffrischen.
		existing.IndexedAt = &now
		if err := ix.Papers.Upsert(existing); err != nil {
			report.addError(fi.Path, err)
			return
		}
		report.count(outcomeSkipped)
		return
	}

	paper := &models.Paper{
		FilePath:    fi.Path,
		FileName:    fi.Name,
		FileSize:    fi.Size,
		ContentHash: hash,
		IndexedAt:   &now,
	}
	if existing != nil {
		paper.ID = existing.ID
		paper.Title = existing.Title
		paper.Authors = existing.Authors
		paper.Abstract = existing.Abstract
		paper.Keywords = existing.Keywords
		paper.AnalysisJSON = existing.AnalysisJSON
		paper.PageCount = existing.PageCount
	}

	meta, result, analysisErr := ix.analyzeFile(ctx, fi, models.CategoryPaper)
	if meta != nil {
		paper.PageCount = meta.PageCount
	}
	if result != nil {
		paper.Title = result.Title
		paper.Authors = result.Authors
		paper.Abstract = &result.Summary
		paper.Keywords = keywordsJSON(result.Keywords)
		paper.AnalysisJSON = datatypes.JSON(result.RawJSON())
	}

	if err := ix.Papers.Upsert(paper); err != nil {
		report.addError(fi.Path, err)
		return
	}

	if analysisErr != nil {
		// Registriert, aber ohne Analyse ("Analyse ausstehend").
		log.Warn("File committed without analysis", zap.Error(analysisErr))
		report.addError(fi.Path, analysisErr)
		return
	}

	if existing == nil {
		report.count(outcomeRegistered)
		ix.mirror(ctx, fi.Path, log)
	} else {
		report.count(outcomeUpdated)
	}
	if result != nil {
		ix.indexVector(ctx, fmt.Sprintf("paper:%d", paper.ID), models.CategoryPaper,
			paper.Title, result.Summary, log)
	}
}

// processPoster verarbeitet eine einzelne Poster-Datei.
func (ix *Indexer) processPoster(ctx context.Context, fi sources.FileInfo, report *ScanReport) {
	log := ix.Logger.With(zap.String("path", fi.Path))

	hash, err := analyzer.HashFile(fi.Path)
	if err != nil {
		log.Warn("Cannot hash file", zap.Error(err))
		report.addError(fi.Path, err)
		return
	}

	now := time.Now()
	existing, err := ix.Posters.FindByPath(fi.Path)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		report.addError(fi.Path, err)
		return
	}

	if existing != nil && existing.ContentHash == hash && existing.Abstract != nil {
		existing.IndexedAt = &now
		if err := ix.Posters.Upsert(existing); err != nil {
			report.addError(fi.Path, err)
			return
		}
		report.count(outcomeSkipped)
		return
	}

	poster := &models.Poster{
		FilePath:    fi.Path,
		FileName:    fi.Name,
		FileSize:    fi.Size,
		ContentHash: hash,
		IndexedAt:   &now,
	}
	if existing != nil {
		poster.ID = existing.ID
		poster.Title = existing.Title
		poster.Authors = existing.Authors
		poster.Abstract = existing.Abstract
		poster.Keywords = existing.Keywords
		poster.AnalysisJSON = existing.AnalysisJSON
		poster.PageCount = existing.PageCount
	}

	meta, result, analysisErr := ix.analyzeFile(ctx, fi, models.CategoryPoster)
	if meta != nil {
		poster.PageCount = meta.PageCount
	}
	if result != nil {
		poster.Title = result.Title
		poster.Authors = result.Authors
		poster.Abstract = &result.Summary
		poster.Keywords = keywordsJSON(result.Keywords)
		poster.AnalysisJSON = datatypes.JSON(result.RawJSON())
	}

	if err := ix.Posters.Upsert(poster); err != nil {
		report.addError(fi.Path, err)
		return
	}

	if analysisErr != nil {
		log.Warn("File committed without analysis", zap.Error(analysisErr))
		report.addError(fi.Path, analysisErr)
		return
	}

	if existing == nil {
		report.count(outcomeRegistered)
		ix.mirror(ctx, fi.Path, log)
	} else {
		report.count(outcomeUpdated)
	}
	if result != nil {
		ix.indexVector(ctx, fmt.Sprintf("poster:%d", poster.ID), models.CategoryPoster,
			poster.Title, result.Summary, log)
	}
}

// processDataset verarbeitet alle Dateien eines Datasets und berechnet
// danach dessen Aggregate neu. Die Gesamtzusammenfassung wird nur erzeugt,
// wenn das Dataset noch keine hat.
func (ix *Indexer) processDataset(ctx context.Context, name string, dsFiles []sources.FileInfo,
	semaphore chan struct{}, report *ScanReport) {
	log := ix.Logger.With(zap.String("dataset", name))

	ds := &models.Dataset{Name: name}
	if err := ix.Datasets.Upsert(ds); err != nil {
		log.Error("Dataset upsert failed", zap.Error(err))
		for _, fi := range dsFiles {
			report.addError(fi.Path, err)
		}
		return
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries []string
	)
	for _, fi := range dsFiles {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}
		go func(fi sources.FileInfo) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if summary := ix.processDatasetFile(ctx, ds.ID, fi, report); summary != "" {
				mu.Lock()
				summaries = append(summaries, fmt.Sprintf("%s: %s", fi.Name, summary))
				mu.Unlock()
			}
		}(fi)
	}
	wg.Wait()

	// Barriere: Aggregate erst nach dem Commit aller Dateien.
	if err := ix.Datasets.RecomputeAggregates(ds.ID); err != nil {
		log.Error("Aggregate recompute failed", zap.Error(err))
	}

	current, err := ix.Datasets.FindByName(name)
	if err != nil {
		log.Error("Dataset reload failed", zap.Error(err))
		return
	}
	if current.Summary == nil && ix.Config.AutoAnalyze {
		if len(summaries) == 0 {
			// Alle Dateien unverändert, aber die Synthese steht noch aus:
			// Dateizusammenfassungen aus den gespeicherten Analysen lesen.
			summaries = ix.storedFileSummaries(ds.ID)
		}
		if len(summaries) == 0 {
			return
		}
		result, err := ix.withRetry(ctx, func(ctx context.Context) (*llm.AnalysisResult, error) {
			return ix.Summarizer.SummarizeDataset(ctx, name, summaries)
		})
		if err != nil {
			log.Warn("Dataset summary generation failed", zap.Error(err))
		} else {
			if err := ix.Datasets.SetSummary(ds.ID, result.Summary); err != nil {
				log.Error("Dataset summary save failed", zap.Error(err))
			} else {
				ix.indexVector(ctx, fmt.Sprintf("dataset:%d", ds.ID), models.CategoryDataset,
					name, result.Summary, log)
			}
		}
	}
}

// storedFileSummaries rekonstruiert die Dateizusammenfassungen eines
// Datasets aus den gespeicherten Analysen. Dateien ohne Analyse fehlen in
// der Liste.
func (ix *Indexer) storedFileSummaries(datasetID uint) []string {
	files, err := ix.Datasets.FilesOf(datasetID)
	if err != nil {
		ix.Logger.Warn("Cannot load dataset files for summary synthesis", zap.Error(err))
		return nil
	}
	var summaries []string
	for _, df := range files {
		if len(df.AnalysisJSON) == 0 {
			continue
		}
		var analysis struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(df.AnalysisJSON), &analysis); err != nil || analysis.Summary == "" {
			continue
		}
		summaries = append(summaries, fmt.Sprintf("%s: %s", df.FileName, analysis.Summary))
	}
	return summaries
}

// processDatasetFile verarbeitet eine Einzeldatei eines Datasets und gibt
// deren Zusammenfassung für die Dataset-Synthese zurück.
func (ix *Indexer) processDatasetFile(ctx context.Context, datasetID uint, fi sources.FileInfo, report *ScanReport) string {
	log := ix.Logger.With(zap.String("path", fi.Path))

	hash, err := analyzer.HashFile(fi.Path)
	if err != nil {
		log.Warn("Cannot hash file", zap.Error(err))
		report.addError(fi.Path, err)
		return ""
	}

	now := time.Now()
	existing, err := ix.Datasets.FindFileByPath(fi.Path)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		report.addError(fi.Path, err)
		return ""
	}

	if existing != nil && existing.ContentHash == hash && len(existing.AnalysisJSON) > 0 {
		existing.IndexedAt = &now
		existing.DatasetID = datasetID
		if err := ix.Datasets.UpsertFile(existing); err != nil {
			report.addError(fi.Path, err)
			return ""
		}
		report.count(outcomeSkipped)
		return ""
	}

	df := &models.DatasetFile{
		DatasetID:   datasetID,
		FilePath:    fi.Path,
		FileName:    fi.Name,
		FileType:    fileType(fi.Name),
		FileSize:    fi.Size,
		ContentHash: hash,
		IndexedAt:   &now,
	}
	if existing != nil {
		df.ID = existing.ID
		df.AnalysisJSON = existing.AnalysisJSON
	}

	_, result, analysisErr := ix.analyzeFile(ctx, fi, models.CategoryDataset)
	summary := ""
	if result != nil {
		df.AnalysisJSON = datatypes.JSON(result.RawJSON())
		summary = result.Summary
	}

	if err := ix.Datasets.UpsertFile(df); err != nil {
		report.addError(fi.Path, err)
		return ""
	}

	if analysisErr != nil {
		log.Warn("File committed without analysis", zap.Error(analysisErr))
		report.addError(fi.Path, analysisErr)
		return ""
	}

	if existing == nil {
		report.count(outcomeRegistered)
		ix.mirror(ctx, fi.Path, log)
	} else {
		report.count(outcomeUpdated)
	}
	return summary
}

// analyzeFile extrahiert die Strukturdaten und ruft, falls aktiviert, die
// LLM-Analyse auf. Fehler betreffen immer nur diese eine Datei.
func (ix *Indexer) analyzeFile(ctx context.Context, fi sources.FileInfo, category models.Category) (*analyzer.StructuralMetadata, *llm.AnalysisResult, error) {
	meta, err := analyzer.Extract(fi.Path, category, ix.Config.MaxContentChars)
	if err != nil {
		return nil, nil, err
	}
	if !ix.Config.AutoAnalyze {
		return meta, nil, nil
	}

	result, err := ix.withRetry(ctx, func(ctx context.Context) (*llm.AnalysisResult, error) {
		return ix.Summarizer.Summarize(ctx, category, meta)
	})
	if err != nil {
		return meta, nil, err
	}
	return meta, result, nil
}

// withRetry führt einen LLM-Aufruf mit Timeout aus und wiederholt genau
// einmal, wenn der Dienst nicht erreichbar war. Keine Endlosschleifen.
func (ix *Indexer) withRetry(ctx context.Context, call func(context.Context) (*llm.AnalysisResult, error)) (*llm.AnalysisResult, error) {
	timeout := time.Duration(ix.Config.LLMTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	attempt := func() (*llm.AnalysisResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return call(callCtx)
	}

	result, err := attempt()
	if errors.Is(err, llm.ErrServiceUnavailable) && ctx.Err() == nil {
		ix.Logger.Warn("LLM unavailable, retrying once", zap.Error(err))
		result, err = attempt()
	}
	return result, err
}

// indexVector legt das Dokument im Vektorindex ab, sofern aktiviert.
// Fehler degradieren nur, sie brechen nie den Scan ab.
func (ix *Indexer) indexVector(ctx context.Context, docID string, category models.Category, title, summary string, log *zap.Logger) {
	if ix.Vector == nil || ix.Embedder == nil {
		return
	}
	text := title + "\n" + summary
	vector, err := ix.Embedder.Embed(ctx, text)
	if err != nil {
		log.Warn("Embedding failed, document not vector-indexed", zap.Error(err))
		return
	}
	payload := map[string]any{
		"category": string(category),
		"title":    title,
	}
	if err := ix.Vector.UpsertDocument(ctx, docID, vector, payload); err != nil {
		log.Warn("Vector upsert failed", zap.Error(err))
	}
}

// mirror lädt neu registrierte Dateien ins S3, sofern aktiviert.
func (ix *Indexer) mirror(ctx context.Context, path string, log *zap.Logger) {
	if ix.S3Client == nil {
		return
	}
	link, err := storage.MirrorFile(ctx, ix.S3Client, ix.Config, path, ix.Config.DataDir)
	if err != nil {
		log.Warn("S3 mirror failed", zap.Error(err))
		return
	}
	log.Info("File mirrored to S3", zap.String("s3_link", link))
}

func keywordsJSON(keywords []string) datatypes.JSON {
	if len(keywords) == 0 {
		return nil
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func fileType(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return ""
}
