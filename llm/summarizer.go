package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"research-agent/analyzer"
	"research-agent/models"
)

// AnalysisResult ist das validierte Ergebnis einer LLM-Analyse. Welche
// Felder gefüllt sind, hängt von der Kategorie ab.
type AnalysisResult struct {
	Summary  string         `json:"summary"`
	Title    string         `json:"title,omitempty"`
	Authors  string         `json:"authors,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
	Raw      map[string]any `json:"-"`
}

// Summarizer baut kategoriespezifische Prompts und validiert die Antworten.
type Summarizer struct {
	client Client
	logger *zap.Logger
}

// NewSummarizer erstellt einen Summarizer über dem gegebenen Client.
func NewSummarizer(client Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, logger: logger}
}

const datasetFilePrompt = `Analyze the following data file and respond with a JSON object.

File: %s (%s)
Columns: %s
Row count: %d
Sample:
%s

Respond exactly in this shape:
{
  "summary": "This dataset contains ... (max 200 words, must start with 'This dataset')",
  "data_structure": "description of the structure",
  "columns": ["..."],
  "potential_use_cases": ["..."]
}`

const documentPrompt = `Analyze the following research %s and respond with a JSON object.

Document text (truncated):
%s

Respond exactly in this shape:
{
  "summary": "summary of the document (max 200 words)",
  "title": "document title",
  "authors": "comma separated author list",
  "keywords": ["keyword1", "keyword2"],
  "research_field": "field of research"
}`

const datasetCollectionPrompt = `Analyze the following dataset as a whole and respond with a JSON object.

Dataset name: %s
Files:
%s

Respond exactly in this shape:
{
  "summary": "This dataset ... (max 300 words, must start with 'This dataset')",
  "main_purpose": "primary purpose",
  "key_features": ["..."],
  "potential_applications": ["..."]
}`

const strictSuffix = "\n\nIMPORTANT: Respond with the raw JSON object only. No markdown, no prose, no code fences."

// Summarize analysiert eine einzelne Datei. Bei einer nicht parsebaren
// oder schema-widrigen Antwort wird genau einmal mit strengerer Anweisung
// wiederholt; danach bleibt der Datensatz im Zustand "Analyse ausstehend".
func (s *Summarizer) Summarize(ctx context.Context, category models.Category, meta *analyzer.StructuralMetadata) (*AnalysisResult, error) {
	var prompt string
	switch category {
	case models.CategoryDataset:
		prompt = fmt.Sprintf(datasetFilePrompt,
			meta.FileName, meta.FileType, strings.Join(meta.Columns, ", "), meta.RowCount, meta.Sample)
	case models.CategoryPaper:
		prompt = fmt.Sprintf(documentPrompt, "paper", meta.Text)
	case models.CategoryPoster:
		prompt = fmt.Sprintf(documentPrompt, "poster", meta.Text)
	default:
		return nil, fmt.Errorf("unknown category: %s", category)
	}
	return s.generateValidated(ctx, category, prompt)
}

// SummarizeDataset erzeugt die Gesamtzusammenfassung eines Datasets aus den
// Analysen seiner Einzeldateien.
func (s *Summarizer) SummarizeDataset(ctx context.Context, name string, fileSummaries []string) (*AnalysisResult, error) {
	var sb strings.Builder
	for i, fs := range fileSummaries {
		fmt.Fprintf(&sb, "File %d: %s\n", i+1, fs)
	}
	prompt := fmt.Sprintf(datasetCollectionPrompt, name, sb.String())
	return s.generateValidated(ctx, models.CategoryDataset, prompt)
}

func (s *Summarizer) generateValidated(ctx context.Context, category models.Category, prompt string) (*AnalysisResult, error) {
	result, err := s.generateOnce(ctx, category, prompt)
	if errors.Is(err, ErrMalformedResponse) {
		// Deckt unparsebares JSON und Schema-Fehler gleichermaßen ab.
		s.logger.Warn("Malformed LLM response, retrying with strict instruction", zap.Error(err))
		result, err = s.generateOnce(ctx, category, prompt+strictSuffix)
	}
	if err != nil {
		s.logger.Warn("LLM response rejected", zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *Summarizer) generateOnce(ctx context.Context, category models.Category, prompt string) (*AnalysisResult, error) {
	raw, err := s.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseResult(category, raw)
}

// parseResult prüft die Pflichtfelder der Antwort. Ein fehlendes oder
// leeres summary ist ein Schema-Fehler.
func parseResult(category models.Category, raw map[string]any) (*AnalysisResult, error) {
	summary, _ := raw["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("%w: missing summary field", ErrMalformedResponse)
	}

	result := &AnalysisResult{Summary: summary, Raw: raw}
	if title, ok := raw["title"].(string); ok {
		result.Title = title
	}
	if authors, ok := raw["authors"].(string); ok {
		result.Authors = authors
	}
	if kws, ok := raw["keywords"].([]any); ok {
		for _, kw := range kws {
			if s, ok := kw.(string); ok {
				result.Keywords = append(result.Keywords, s)
			}
		}
	}

	if category != models.CategoryDataset && result.Title == "" {
		return nil, fmt.Errorf("%w: missing title field", ErrMalformedResponse)
	}
	return result, nil
}

// RawJSON serialisiert die vollständige Antwort für die jsonb-Spalte.
func (r *AnalysisResult) RawJSON() []byte {
	if r.Raw == nil {
		return nil
	}
	data, err := json.Marshal(r.Raw)
	if err != nil {
		return nil
	}
	return data
}
