package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"research-agent/config"
)

// NewS3Client erstellt einen S3-Client für Strato HiDrive.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.StratoS3URL,
				SigningRegion:     cfg.StratoS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.StratoS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.StratoS3Key, cfg.StratoS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// mirrorKey leitet den S3-Schlüssel aus dem Pfad relativ zum
// Datenverzeichnis ab. Beide Pfade werden absolut aufgelöst; ein relativ
// konfiguriertes Datenverzeichnis erhält so denselben Schlüssel wie ein
// absolutes. Nur für Dateien außerhalb des Datenverzeichnisses fällt der
// Schlüssel auf den Dateinamen zurück.
func mirrorKey(dataDir, localPath string) string {
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	if abs, err := filepath.Abs(localPath); err == nil {
		localPath = abs
	}
	key, err := filepath.Rel(dataDir, localPath)
	if err != nil || strings.HasPrefix(key, "..") {
		key = filepath.Base(localPath)
	}
	return strings.TrimPrefix(filepath.ToSlash(key), "./")
}

// MirrorFile lädt eine lokale Datei unter ihrem relativen Pfad ins S3 hoch
// und gibt den Link zurück. Der Inhalt wird gestreamt.
func MirrorFile(ctx context.Context, client *s3.Client, cfg *config.Config, localPath, dataDir string) (string, error) {
	key := mirrorKey(dataDir, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &cfg.StratoS3Bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", cfg.StratoS3URL, cfg.StratoS3Bucket, key), nil
}
