package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"research-agent/config"
	"research-agent/llm"
	"research-agent/models"
	"research-agent/repository"
	"research-agent/services"
	"research-agent/sources"
	"research-agent/sources/drive"
	"research-agent/sources/local"
	"research-agent/storage"
	"research-agent/vectorstore"
)

var (
	documentsRegisteredCounter prometheus.Counter
	analysisFailedCounter      prometheus.Counter
)

func init() {
	documentsRegisteredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_registered_total",
			Help: "Total number of new documents registered by scans.",
		},
	)
	analysisFailedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_failures_total",
			Help: "Total number of per-file failures during scans.",
		},
	)
	prometheus.MustRegister(documentsRegisteredCounter, analysisFailedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Dataset{}, &models.DatasetFile{}, &models.Paper{}, &models.Poster{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Repositories
	datasetRepo := repository.NewDatasetRepository(db, logging)
	paperRepo := repository.NewPaperRepository(db, logging)
	posterRepo := repository.NewPosterRepository(db, logging)

	// Setup LLM
	geminiClient := llm.NewGeminiClient(cfg, logging)
	summarizer := llm.NewSummarizer(geminiClient, logging)

	// Setup Sources
	var enabledSources []sources.Source
	if cfg.SourceEnabled("local") {
		enabledSources = append(enabledSources, local.NewWalker(cfg, logging))
	}
	if cfg.SourceEnabled("drive") {
		driveFetcher, err := drive.NewFetcher(context.Background(), cfg, logging)
		if err != nil {
			logging.Fatal("Drive source creation failed", zap.Error(err))
		}
		enabledSources = append(enabledSources, driveFetcher)
	}
	if len(enabledSources) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}

	// Optionale Subsysteme: Vektorsuche und S3-Spiegelung
	var vectorStore vectorstore.Store
	var embedder llm.Client
	if cfg.VectorSearchEnabled {
		qdrantStore, err := vectorstore.NewQdrantStore(context.Background(), cfg, logging)
		if err != nil {
			// Degradieren statt abbrechen: Stichwortsuche bleibt verfügbar.
			logging.Warn("Vector store unavailable, running keyword-only", zap.Error(err))
		} else {
			vectorStore = qdrantStore
			embedder = geminiClient
		}
	}
	indexer := services.NewIndexer(cfg, logging, enabledSources,
		datasetRepo, paperRepo, posterRepo, summarizer, embedder, vectorStore, nil)
	if cfg.MirrorEnabled {
		client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		indexer.S3Client = client
	}

	searchEngine := services.NewSearchEngine(cfg, logging,
		datasetRepo, paperRepo, posterRepo, embedder, vectorStore)
	consultant := services.NewConsultant(searchEngine, geminiClient, logging)
	statistics := services.NewStatistics(datasetRepo, paperRepo, posterRepo, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupHealthRoutes(router, db)
	setupScanRoutes(router, indexer, logging)
	setupSearchRoutes(router, searchEngine, logging)
	setupDocumentRoutes(router, datasetRepo, paperRepo, posterRepo, logging)
	setupStatisticsRoutes(router, statistics, logging)
	setupConsultRoutes(router, consultant, logging)

	// Setup Cron: regelmäßiger Rescan des Datenverzeichnisses
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled scan...")
		report, err := indexer.Run(context.Background())
		if err != nil {
			if errors.Is(err, services.ErrScanInProgress) {
				logging.Warn("Skipping scheduled scan, another scan is running")
				return
			}
			logging.Error("Scheduled scan failed", zap.Error(err))
			return
		}
		documentsRegisteredCounter.Add(float64(report.Registered))
		analysisFailedCounter.Add(float64(report.Failed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupHealthRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func setupScanRoutes(router *gin.Engine, indexer *services.Indexer, log *zap.Logger) {
	router.POST("/scan", func(c *gin.Context) {
		report, err := indexer.Run(c.Request.Context())
		if err != nil {
			if errors.Is(err, services.ErrScanInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Scan failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
			return
		}
		documentsRegisteredCounter.Add(float64(report.Registered))
		analysisFailedCounter.Add(float64(report.Failed))
		c.JSON(http.StatusOK, report)
	})
}

func setupSearchRoutes(router *gin.Engine, engine *services.SearchEngine, log *zap.Logger) {
	router.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
			return
		}

		var category *models.Category
		if raw := c.Query("category"); raw != "" {
			parsed, ok := models.ParseCategory(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + raw})
				return
			}
			category = &parsed
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		results, err := engine.Search(c.Request.Context(), query, category, limit, offset)
		if err != nil {
			log.Error("Search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, results)
	})
}

func setupDocumentRoutes(router *gin.Engine, datasets *repository.DatasetRepository,
	papers *repository.PaperRepository, posters *repository.PosterRepository, log *zap.Logger) {
	rg := router.Group("/documents")

	rg.GET("/:category", func(c *gin.Context) {
		category, ok := models.ParseCategory(c.Param("category"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		pending := c.Query("pending") == "true"
		filter := repository.ListFilter{Limit: limit, Offset: offset, PendingOnly: pending}

		var (
			payload any
			err     error
		)
		switch category {
		case models.CategoryDataset:
			payload, err = datasets.FindAll(filter)
		case models.CategoryPaper:
			payload, err = papers.FindAll(filter)
		case models.CategoryPoster:
			payload, err = posters.FindAll(filter)
		}
		if err != nil {
			log.Error("Document listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, payload)
	})

	rg.GET("/:category/:id", func(c *gin.Context) {
		category, ok := models.ParseCategory(c.Param("category"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var payload any
		switch category {
		case models.CategoryPaper:
			payload, err = papers.FindByID(uint(id))
		case models.CategoryPoster:
			payload, err = posters.FindByID(uint(id))
		case models.CategoryDataset:
			var ds *models.Dataset
			if ds, err = datasets.FindByID(uint(id)); err == nil {
				var files []models.DatasetFile
				if files, err = datasets.FilesOf(ds.ID); err == nil {
					ds.Files = files
					payload = ds
				}
			}
		}
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			log.Error("Document lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, payload)
	})

	// Explizite Verwaltungsaktion: Löschen eines Dokuments. Datasets
	// kaskadieren auf ihre Dateien.
	rg.DELETE("/:category/:id", func(c *gin.Context) {
		category, ok := models.ParseCategory(c.Param("category"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		switch category {
		case models.CategoryDataset:
			var ds *models.Dataset
			if ds, err = datasets.FindByID(uint(id)); err == nil {
				err = datasets.DeleteByName(ds.Name)
			}
		case models.CategoryPaper:
			var p *models.Paper
			if p, err = papers.FindByID(uint(id)); err == nil {
				err = papers.DeleteByPath(p.FilePath)
			}
		case models.CategoryPoster:
			var p *models.Poster
			if p, err = posters.FindByID(uint(id)); err == nil {
				err = posters.DeleteByPath(p.FilePath)
			}
		}
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			log.Error("Document deletion failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
}

func setupStatisticsRoutes(router *gin.Engine, stats *services.Statistics, log *zap.Logger) {
	router.GET("/statistics", func(c *gin.Context) {
		overall, err := stats.Overall()
		if err != nil {
			log.Error("Statistics failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, overall)
	})
}

func setupConsultRoutes(router *gin.Engine, consultant *services.Consultant, log *zap.Logger) {
	router.POST("/consult", func(c *gin.Context) {
		var req struct {
			Query string `json:"query" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}

		result, err := consultant.Advise(c.Request.Context(), req.Query)
		if err != nil {
			log.Error("Consultation failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "consultation failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}
