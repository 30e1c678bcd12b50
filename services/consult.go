package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"research-agent/llm"
)

// ConsultResult ist eine KI-generierte Forschungsempfehlung auf Basis der
// gefundenen Dokumente.
type ConsultResult struct {
	Advice         string           `json:"advice"`
	Approaches     []string         `json:"recommended_approaches,omitempty"`
	Keywords       []string         `json:"relevant_keywords,omitempty"`
	NextSteps      []string         `json:"next_steps,omitempty"`
	UsedDocuments  []SearchDocument `json:"used_documents"`
	SearchDegraded bool             `json:"search_degraded"`
}

// Consultant kombiniert Suche und LLM zu einer Forschungsberatung.
type Consultant struct {
	Search *SearchEngine
	Client llm.Client
	Logger *zap.Logger
}

// NewConsultant erstellt den Beratungs-Service.
func NewConsultant(search *SearchEngine, client llm.Client, logger *zap.Logger) *Consultant {
	return &Consultant{Search: search, Client: client, Logger: logger}
}

const advicePrompt = `A researcher asks:
%s

Relevant documents in the local library:
%s

Respond with a JSON object exactly in this shape:
{
  "advice": "research advice based on the documents (max 400 words)",
  "recommended_approaches": ["..."],
  "relevant_keywords": ["..."],
  "next_steps": ["..."]
}`

// Advise sucht passende Dokumente und lässt das LLM eine Empfehlung
// formulieren. Ohne Treffer wird trotzdem geantwortet, nur ohne Kontext.
func (c *Consultant) Advise(ctx context.Context, query string) (*ConsultResult, error) {
	results, err := c.Search.Search(ctx, query, nil, 5, 0)
	if err != nil {
		return nil, fmt.Errorf("search for consultation failed: %w", err)
	}

	var sb strings.Builder
	for i, doc := range results.Documents {
		title := doc.Title
		if title == "" {
			title = doc.Name
		}
		fmt.Fprintf(&sb, "Document %d (%s): %s\nSummary: %s\nKeywords: %s\n\n",
			i+1, doc.Category, title, doc.Summary, strings.Join(doc.Keywords, ", "))
	}
	if sb.Len() == 0 {
		sb.WriteString("(no matching documents found)")
	}

	raw, err := c.Client.GenerateJSON(ctx, fmt.Sprintf(advicePrompt, query, sb.String()))
	if err != nil {
		return nil, err
	}

	result := &ConsultResult{
		UsedDocuments:  results.Documents,
		SearchDegraded: results.Degraded,
	}
	result.Advice, _ = raw["advice"].(string)
	if result.Advice == "" {
		return nil, llm.ErrMalformedResponse
	}
	result.Approaches = stringSlice(raw["recommended_approaches"])
	result.Keywords = stringSlice(raw["relevant_keywords"])
	result.NextSteps = stringSlice(raw["next_steps"])

	c.Logger.Info("Consultation generated",
		zap.Int("documents_used", len(results.Documents)),
		zap.Bool("degraded", results.Degraded))
	return result, nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
