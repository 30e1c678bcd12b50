package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4280"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Datenquelle: lokales Datenverzeichnis mit datasets/, paper/, poster/
	DataDir         string `envconfig:"DATA_DIR" default:"./data"`
	EnabledSources  string `envconfig:"ENABLED_SOURCES" default:"local"`
	MaxFileSizeMB   int    `envconfig:"MAX_FILE_SIZE_MB" default:"100"`
	ScanWorkers     int    `envconfig:"SCAN_WORKERS" default:"4"`
	MaxContentChars int    `envconfig:"MAX_CONTENT_CHARS" default:"12000"`
	CronSchedule    string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	AutoAnalyze     bool   `envconfig:"AUTO_ANALYZE" default:"true"`

	// Gemini-API für die Inhaltsanalyse
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	LLMTimeoutSec int    `envconfig:"LLM_TIMEOUT_SEC" default:"60"`

	// Google-Drive-Quelle (optional)
	DriveFolderID        string `envconfig:"DRIVE_FOLDER_ID"`
	DriveCredentialsFile string `envconfig:"DRIVE_CREDENTIALS_FILE"`
	DriveCacheDir        string `envconfig:"DRIVE_CACHE_DIR" default:"./data/.drive-cache"`

	// Vektorsuche über Qdrant (optional)
	VectorSearchEnabled bool   `envconfig:"VECTOR_SEARCH_ENABLED" default:"false"`
	QdrantAddr          string `envconfig:"QDRANT_ADDR" default:"localhost:6334"`
	QdrantCollection    string `envconfig:"QDRANT_COLLECTION" default:"research_docs"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingDim        int    `envconfig:"EMBEDDING_DIM" default:"768"`
	RRFConstant         int    `envconfig:"RRF_CONSTANT" default:"60"`

	// S3-Spiegelung der aufgenommenen Dateien (optional)
	MirrorEnabled  bool   `envconfig:"MIRROR_ENABLED" default:"false"`
	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// SourceEnabled prüft, ob eine Datenquelle in ENABLED_SOURCES aktiviert ist.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range strings.Split(c.EnabledSources, ",") {
		if strings.TrimSpace(strings.ToLower(s)) == name {
			return true
		}
	}
	return false
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
