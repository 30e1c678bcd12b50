package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"research-agent/config"
)

// ErrMalformedResponse signalisiert eine Antwort, die nicht dem erwarteten
// JSON-Schema entspricht. Der Aufrufer darf genau einmal strenger nachfragen.
var ErrMalformedResponse = errors.New("llm response is not valid JSON")

// ErrServiceUnavailable signalisiert, dass die LLM-API nicht erreichbar ist.
var ErrServiceUnavailable = errors.New("llm service unavailable")

// Client ist die Schnittstelle zur gehosteten LLM-API. Tests ersetzen sie
// durch eine deterministische Fake-Implementierung.
type Client interface {
	// GenerateJSON schickt einen Prompt und parst die Antwort als JSON-Objekt.
	GenerateJSON(ctx context.Context, prompt string) (map[string]any, error)

	// Embed berechnet den Embedding-Vektor eines Textes.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiClient spricht die Gemini-REST-API direkt über net/http an.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	logger     *zap.Logger
	httpClient *http.Client
}

// NewGeminiClient erstellt einen Client aus der Konfiguration.
func NewGeminiClient(cfg *config.Config, logger *zap.Logger) *GeminiClient {
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		apiKey:     cfg.GeminiAPIKey,
		model:      cfg.GeminiModel,
		embedModel: cfg.EmbeddingModel,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateJSON ruft generateContent mit JSON-Antwortformat auf.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (map[string]any, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      0.7,
			MaxOutputTokens:  8192,
			ResponseMimeType: "application/json",
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	var resp geminiResponse
	if err := c.postJSON(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrMalformedResponse
	}

	raw := resp.Candidates[0].Content.Parts[0].Text
	var result map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		c.logger.Warn("LLM response is not parseable JSON", zap.String("model", c.model))
		return nil, ErrMalformedResponse
	}
	return result, nil
}

// Embed ruft embedContent auf und gibt den Vektor zurück.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"content": map[string]any{
			"parts": []map[string]any{{"text": text}},
		},
	}
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, c.embedModel, c.apiKey)

	var resp struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := c.postJSON(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, ErrMalformedResponse
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %s", ErrServiceUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gemini request failed: %s: %s", resp.Status, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stripCodeFence entfernt ```json ... ``` Zäune, die manche Modelle trotz
// JSON-Antwortformat mitschicken.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
