package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"research-agent/config"
	"research-agent/models"
	"research-agent/sources"
)

// Walker scannt das lokale Datenverzeichnis rekursiv.
type Walker struct {
	dataDir     string
	maxFileSize int64
	logger      *zap.Logger
}

// NewWalker erstellt eine lokale Dateiquelle aus der Konfiguration.
func NewWalker(cfg *config.Config, logger *zap.Logger) *Walker {
	return &Walker{
		dataDir:     cfg.DataDir,
		maxFileSize: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		logger:      logger,
	}
}

// Name gibt den Namen der Quelle zurück.
func (w *Walker) Name() string {
	return "local"
}

// List durchläuft das Datenverzeichnis. Versteckte Dateien, nicht
// unterstützte Endungen und überlange Dateien werden übersprungen, nie als
// Fehler gemeldet.
func (w *Walker) List(ctx context.Context) ([]sources.FileInfo, error) {
	if _, err := os.Stat(w.dataDir); err != nil {
		return nil, err
	}

	var files []sources.FileInfo
	err := filepath.WalkDir(w.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Cannot access path during scan", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !models.SupportedExtensions[strings.ToLower(filepath.Ext(name))] {
			w.logger.Debug("Skipping unsupported file type", zap.String("path", path))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.logger.Warn("Cannot stat file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			w.logger.Warn("Skipping oversized file",
				zap.String("path", path), zap.Int64("size", info.Size()))
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		category := models.ClassifyPath(path)
		files = append(files, sources.FileInfo{
			Path:        abs,
			Name:        name,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Category:    category,
			DatasetName: models.DatasetNameFromPath(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("Local scan finished",
		zap.String("dir", w.dataDir), zap.Int("files", len(files)))
	return files, nil
}
