package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}

func newGenerator(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	return g
}

func chatResponse(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return body
}

func TestGenerateSendsZeroTemperature(t *testing.T) {
	var payload map[string]any
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write(chatResponse("SELECT COUNT(*) FROM matches m WHERE m.tour = 'ATP'"))
	})

	result, err := g.Generate(context.Background(), Request{Question: "how many matches", Schema: "matches(...)"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL == "" || result.Clarification != "" {
		t.Fatalf("result = %+v", result)
	}
	if temp, ok := payload["temperature"].(float64); !ok || temp != 0 {
		t.Fatalf("temperature = %v, want fixed 0", payload["temperature"])
	}
}

func TestGenerateDetectsClarificationSignal(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse("CLARIFY: which metric defines best?"))
	})

	result, err := g.Generate(context.Background(), Request{Question: "who is best"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.SQL != "" || result.Clarification != "which metric defines best?" {
		t.Fatalf("result = %+v", result)
	}
}

func TestGenerateUpstreamFailureIsTyped(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := g.Generate(context.Background(), Request{Question: "anything"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
