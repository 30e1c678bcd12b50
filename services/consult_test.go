package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"research-agent/llm"
)

// adviceClient beantwortet Beratungs-Prompts und merkt sich den letzten Prompt.
type adviceClient struct {
	mu         sync.Mutex
	lastPrompt string
	response   map[string]any
	err        error
}

func (c *adviceClient) GenerateJSON(ctx context.Context, prompt string) (map[string]any, error) {
	c.mu.Lock()
	c.lastPrompt = prompt
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func (c *adviceClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1}, nil
}

func TestAdviseUsesTopSearchResults(t *testing.T) {
	env := newTestEnv(t)
	seedSearchCorpus(t, env)
	engine := newSearchEngine(env, nil, nil)

	client := &adviceClient{response: map[string]any{
		"advice":                 "Start with the attention survey.",
		"recommended_approaches": []any{"replicate the baseline"},
		"relevant_keywords":      []any{"attention"},
		"next_steps":             []any{"read the survey"},
	}}
	consultant := NewConsultant(engine, client, zap.NewNop())

	result, err := consultant.Advise(context.Background(), "attention mechanisms")
	if err != nil {
		t.Fatal(err)
	}
	if result.Advice == "" {
		t.Error("empty advice")
	}
	if len(result.UsedDocuments) == 0 {
		t.Error("no documents attached to the consultation")
	}
	if len(result.Approaches) != 1 || len(result.NextSteps) != 1 {
		t.Errorf("structured fields not parsed: %+v", result)
	}
	if !strings.Contains(client.lastPrompt, "Attention Is What You Need") {
		t.Error("top search hit missing from prompt")
	}
	if !strings.Contains(client.lastPrompt, "attention mechanisms") {
		t.Error("researcher question missing from prompt")
	}
}

func TestAdviseWithoutMatchingDocuments(t *testing.T) {
	env := newTestEnv(t)
	engine := newSearchEngine(env, nil, nil)

	client := &adviceClient{response: map[string]any{
		"advice": "No local material, consider a literature search.",
	}}
	consultant := NewConsultant(engine, client, zap.NewNop())

	result, err := consultant.Advise(context.Background(), "quantum chemistry")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.UsedDocuments) != 0 {
		t.Errorf("unexpected documents: %+v", result.UsedDocuments)
	}
	if !strings.Contains(client.lastPrompt, "no matching documents") {
		t.Error("empty-library marker missing from prompt")
	}
}

func TestAdviseRejectsEmptyAdvice(t *testing.T) {
	env := newTestEnv(t)
	engine := newSearchEngine(env, nil, nil)

	client := &adviceClient{response: map[string]any{"advice": ""}}
	consultant := NewConsultant(engine, client, zap.NewNop())

	if _, err := consultant.Advise(context.Background(), "anything"); !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}
