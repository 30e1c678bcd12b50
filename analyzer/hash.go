package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashFile berechnet den SHA256-Hash einer Datei. Der Inhalt wird gestreamt,
// große Dateien landen nie vollständig im Speicher.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
