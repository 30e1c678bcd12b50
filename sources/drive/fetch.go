package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"research-agent/config"
	"research-agent/models"
	"research-agent/sources"
)

// Fetcher synchronisiert einen Google-Drive-Ordner in ein lokales
// Cache-Verzeichnis und liefert die Dateien wie eine lokale Quelle.
type Fetcher struct {
	folderID string
	cacheDir string
	logger   *zap.Logger
	service  *drive.Service
}

// NewFetcher erstellt eine Drive-Quelle. Erwartet ein Service-Account-
// Credentials-File und die ID des Wurzelordners.
func NewFetcher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.DriveFolderID == "" {
		return nil, fmt.Errorf("DRIVE_FOLDER_ID is not configured")
	}
	srv, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.DriveCredentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service init failed: %w", err)
	}
	return &Fetcher{
		folderID: cfg.DriveFolderID,
		cacheDir: cfg.DriveCacheDir,
		logger:   logger,
		service:  srv,
	}, nil
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "drive"
}

// List lädt alle unterstützten Dateien des Drive-Ordners in den Cache und
// klassifiziert sie anhand ihres Drive-Pfads (datasets/..., paper/, poster/).
func (f *Fetcher) List(ctx context.Context) ([]sources.FileInfo, error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return nil, err
	}
	return f.listFolder(ctx, f.folderID, "")
}

func (f *Fetcher) listFolder(ctx context.Context, folderID, relPath string) ([]sources.FileInfo, error) {
	var out []sources.FileInfo
	pageToken := ""
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		call := f.service.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime)").
			PageSize(1000).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("drive list failed: %w", err)
		}

		for _, file := range resp.Files {
			childPath := filepath.Join(relPath, file.Name)
			if file.MimeType == "application/vnd.google-apps.folder" {
				children, err := f.listFolder(ctx, file.Id, childPath)
				if err != nil {
					return nil, err
				}
				out = append(out, children...)
				continue
			}
			if !models.SupportedExtensions[strings.ToLower(filepath.Ext(file.Name))] {
				continue
			}

			localPath, err := f.download(ctx, file, childPath)
			if err != nil {
				f.logger.Warn("Drive download failed",
					zap.String("file", childPath), zap.Error(err))
				continue
			}

			modTime, _ := time.Parse(time.RFC3339, file.ModifiedTime)
			out = append(out, sources.FileInfo{
				Path:        localPath,
				Name:        file.Name,
				Size:        file.Size,
				ModTime:     modTime,
				Category:    models.ClassifyPath(childPath),
				DatasetName: models.DatasetNameFromPath(childPath),
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

// download holt eine Datei in den Cache, sofern die gecachte Kopie nicht
// bereits aktuell ist (Größe und Änderungszeit).
func (f *Fetcher) download(ctx context.Context, file *drive.File, relPath string) (string, error) {
	localPath := filepath.Join(f.cacheDir, relPath)
	modTime, _ := time.Parse(time.RFC3339, file.ModifiedTime)

	if st, err := os.Stat(localPath); err == nil {
		if st.Size() == file.Size && !modTime.After(st.ModTime()) {
			return localPath, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", err
	}

	resp, err := f.service.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp := localPath + ".part"
	dst, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		dst.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, localPath); err != nil {
		return "", err
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(localPath, modTime, modTime)
	}

	f.logger.Info("Downloaded file from Drive", zap.String("file", relPath))
	return localPath, nil
}
