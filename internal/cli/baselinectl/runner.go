// Package baselinectl implements the CLI client for the baseline API.
package baselinectl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Session    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("baselinectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "baseline API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	session := fs.String("session", firstNonEmpty(defaults.Session, "cli"), "conversation session id")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	run := &runner{
		client:  client,
		baseURL: strings.TrimRight(*baseURL, "/"),
		apiKey:  *apiKey,
		session: *session,
		stdin:   defaults.Stdin,
		stdout:  stdout,
		stderr:  stderr,
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "health":
		return run.simple(ctx, http.MethodGet, "/v1/health")
	case "ready":
		return run.simple(ctx, http.MethodGet, "/v1/ready")
	case "schema":
		return run.simple(ctx, http.MethodGet, "/v1/schema")
	case "reset":
		return run.simple(ctx, http.MethodPost, "/v1/session/"+url.PathEscape(run.session)+"/reset")
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question argument")
			return 2
		}
		return run.ask(ctx, question)
	case "repl":
		return run.repl(ctx)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type runner struct {
	client  *http.Client
	baseURL string
	apiKey  string
	session string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func (r *runner) simple(ctx context.Context, method, path string) int {
	code, body, err := r.do(ctx, method, path, nil)
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
		return 1
	}
	return r.print(code, body)
}

func (r *runner) ask(ctx context.Context, question string) int {
	payload, err := json.Marshal(map[string]string{"session_id": r.session, "question": question})
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "encode request: %v\n", err)
		return 1
	}
	code, body, err := r.do(ctx, http.MethodPost, "/v1/ask", payload)
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
		return 1
	}
	return r.print(code, body)
}

// repl reads one question per line and keeps the session across turns. A
// failed turn prints the error body and continues.
func (r *runner) repl(ctx context.Context) int {
	if r.stdin == nil {
		_, _ = fmt.Fprintln(r.stderr, "interactive mode needs a stdin")
		return 2
	}
	scanner := bufio.NewScanner(r.stdin)
	_, _ = fmt.Fprintf(r.stdout, "session %s; type a question, or exit\n", r.session)
	for {
		_, _ = fmt.Fprint(r.stdout, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}
		r.ask(ctx, question)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(r.stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

func (r *runner) print(code int, body []byte) int {
	if code >= 400 {
		_, _ = fmt.Fprintf(r.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(r.stdout, string(body))
	}
	return 0
}

func (r *runner) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(r.apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(r.apiKey))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: baselinectl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health            GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready             GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema            GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <question>    POST /v1/ask for the -session conversation")
	_, _ = fmt.Fprintln(w, "  reset             POST /v1/session/<session>/reset")
	_, _ = fmt.Fprintln(w, "  repl              interactive questions, one per line")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
