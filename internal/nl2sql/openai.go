package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint with a
// fixed zero-temperature configuration, so the same question always yields
// the same candidate.
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAIGenerator{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// clarificationPrefix is the sentinel the system prompt instructs the model
// to use when the question cannot be answered from the schema.
const clarificationPrefix = "CLARIFY:"

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(buildPayload(g.model, req))
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s: %w", resp.StatusCode, string(rawRespBody), ErrUnavailable)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices: %w", ErrUnavailable)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if strings.HasPrefix(content, clarificationPrefix) {
		return Result{
			Clarification: strings.TrimSpace(strings.TrimPrefix(content, clarificationPrefix)),
			Provider:      "openai-compatible",
			Model:         g.model,
		}, nil
	}

	sql := stripMarkdownSQL(content)
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: "openai-compatible",
		Model:    g.model,
	}, nil
}

func buildPayload(model string, req Request) map[string]any {
	systemPrompt := "You convert natural language tennis questions into a single DuckDB SQL SELECT statement. " +
		"Use only the tables and columns listed. Return ONLY SQL. No markdown, no explanation. " +
		"If the question cannot be answered from the schema, reply with '" + clarificationPrefix + " <question for the user>'."
	userPrompt := fmt.Sprintf(
		"Schema:\n%s\nQuestion:\n%s\n\nRules:\n- A single SELECT statement only.\n- Filter matches.tour and players/rankings gender to 'ATP' unless the question names the women's tour.\n- When comparing a player's rank at a match date, correlate the latest rankings snapshot with ranking_date <= match_date.",
		req.Schema,
		strings.TrimSpace(req.Question),
	)

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": 0,
	}
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
