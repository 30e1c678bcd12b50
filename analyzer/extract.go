package analyzer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"research-agent/models"
)

// ErrUnreadableContent signalisiert eine korrupte oder verschlüsselte Datei.
// Der Indexer registriert solche Dateien ohne Analyse, bricht aber nicht ab.
var ErrUnreadableContent = errors.New("file content is unreadable")

// StructuralMetadata sind die ohne LLM extrahierbaren Strukturdaten einer
// Datei. Text bzw. Sample sind auf maxChars begrenzt, damit die
// LLM-Payload beschränkt bleibt.
type StructuralMetadata struct {
	FileName  string   `json:"file_name"`
	FileType  string   `json:"file_type"`
	PageCount int      `json:"page_count,omitempty"`
	RowCount  int      `json:"row_count,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Sample    string   `json:"sample,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// maximale Zeilen, die aus CSV/JSONL gelesen werden
const sampleRowLimit = 100

// Extract liest die Strukturdaten einer Datei kategoriespezifisch aus:
// PDF -> Seitenzahl + normalisierter Text, CSV/JSON/JSONL -> Zeilenzahl,
// Spalten und ein kleines Inhalts-Sample.
func Extract(path string, category models.Category, maxChars int) (*StructuralMetadata, error) {
	if maxChars <= 0 {
		maxChars = 12000
	}
	ext := strings.ToLower(filepath.Ext(path))
	meta := &StructuralMetadata{
		FileName: filepath.Base(path),
		FileType: strings.TrimPrefix(ext, "."),
	}

	switch ext {
	case ".pdf":
		if err := extractPDF(path, meta, maxChars); err != nil {
			return nil, err
		}
	case ".csv":
		if err := extractCSV(path, meta, maxChars); err != nil {
			return nil, err
		}
	case ".json":
		if err := extractJSON(path, meta, maxChars); err != nil {
			return nil, err
		}
	case ".jsonl":
		if err := extractJSONL(path, meta, maxChars); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	return meta, nil
}

// extractPDF liest Seitenzahl und Text. Kaputte oder verschlüsselte PDFs
// werden als ErrUnreadableContent gemeldet.
func extractPDF(path string, meta *StructuralMetadata, maxChars int) error {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}
	defer f.Close()

	meta.PageCount = reader.NumPage()

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if sb.Len() >= maxChars {
			break
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Einzelne Seiten dürfen scheitern, solange etwas Text bleibt.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := NormalizeText(sb.String())
	if text == "" {
		return fmt.Errorf("%w: no extractable text", ErrUnreadableContent)
	}
	meta.Text = truncate(text, maxChars)
	return nil
}

// extractCSV liest Header und zählt Zeilen; die ersten Zeilen werden als
// Sample mitgegeben.
func extractCSV(path string, meta *StructuralMetadata, maxChars int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}
	meta.Columns = header

	var sample bytes.Buffer
	sample.WriteString(strings.Join(header, ", "))
	sample.WriteString("\n")

	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnreadableContent, err)
		}
		rows++
		if rows <= 10 {
			sample.WriteString(strings.Join(record, ", "))
			sample.WriteString("\n")
		}
	}
	meta.RowCount = rows
	meta.Sample = truncate(sample.String(), maxChars)
	return nil
}

// extractJSON liest ein einzelnes JSON-Dokument und beschreibt die
// oberste Strukturebene.
func extractJSON(path string, meta *StructuralMetadata, maxChars int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}

	switch v := parsed.(type) {
	case []any:
		meta.RowCount = len(v)
		if len(v) > 0 {
			if obj, ok := v[0].(map[string]any); ok {
				meta.Columns = sortedKeys(obj)
			}
			first, _ := json.MarshalIndent(v[0], "", "  ")
			meta.Sample = truncate(string(first), maxChars)
		}
	case map[string]any:
		meta.RowCount = 1
		meta.Columns = sortedKeys(v)
		meta.Sample = truncate(string(data), maxChars)
	default:
		meta.RowCount = 1
		meta.Sample = truncate(string(data), maxChars)
	}
	return nil
}

// extractJSONL zählt Zeilen (jede Zeile ein JSON-Objekt) und sammelt die
// ersten Datensätze als Sample.
func extractJSONL(path string, meta *StructuralMetadata, maxChars int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var sample bytes.Buffer
	rows := 0
	valid := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rows++
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		valid++
		if meta.Columns == nil {
			meta.Columns = sortedKeys(obj)
		}
		if valid <= 5 {
			sample.WriteString(line)
			sample.WriteString("\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}
	if rows > 0 && valid == 0 {
		return fmt.Errorf("%w: no valid JSON lines", ErrUnreadableContent)
	}
	meta.RowCount = rows
	meta.Sample = truncate(sample.String(), maxChars)
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
