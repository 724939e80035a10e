package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dirigent/internal/logging"
	"dirigent/internal/sanitize"
)

// DefaultOllamaURL is the local server default.
const DefaultOllamaURL = "http://localhost:11434"

const maxAdminResponse = 8000

// Ollama is a client for the Ollama HTTP API. Besides chat it exposes
// the management endpoints behind the ollama-api command.
type Ollama struct {
	http        *http.Client
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	numCtx      int
}

// NewOllama creates a client. A nil httpClient falls back to
// http.DefaultClient; request deadlines come from the caller's context.
func NewOllama(baseURL, model, apiKey string, temperature float64, numCtx int, httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		apiKey:      apiKey,
		temperature: temperature,
		numCtx:      numCtx,
	}
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      *int     `json:"num_ctx,omitempty"`
}

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  *chatOptions `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat sends the conversation to /api/chat, streaming disabled, and
// returns the assistant text.
func (o *Ollama) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := chatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}

	temperature := o.temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	numCtx := o.numCtx
	if opts.NumCtx != 0 {
		numCtx = opts.NumCtx
	}
	if temperature != 0 || numCtx != 0 {
		req.Options = &chatOptions{}
		if temperature != 0 {
			req.Options.Temperature = &temperature
		}
		if numCtx != 0 {
			req.Options.NumCtx = &numCtx
		}
	}

	start := time.Now()
	body, err := o.post(ctx, "/api/chat", req)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	logging.Get(logging.CategoryModel).Debugw("chat completed",
		"model", req.Model, "messages", len(messages),
		"chars", len(resp.Message.Content), "elapsed", time.Since(start))
	return resp.Message.Content, nil
}

// NumCtx returns the configured context window, 0 when unset.
func (o *Ollama) NumCtx() int { return o.numCtx }

func (o *Ollama) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return o.do(ctx, http.MethodPost, path, data)
}

func (o *Ollama) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(data), URL: o.baseURL + path}
	}
	return data, nil
}

// Admin runs one management action. The argument has the form
// "<action> [args]" with actions list_models, version, running, pull,
// delete, embed, load and unload.
func (o *Ollama) Admin(ctx context.Context, args string) (string, error) {
	action, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	action = strings.ToLower(action)
	rest = strings.TrimSpace(rest)

	logging.Get(logging.CategoryModel).Debugw("admin action", "action", action, "args", len(rest))

	switch action {
	case "list_models":
		return o.listModels(ctx)
	case "version":
		return o.version(ctx)
	case "running":
		return o.running(ctx)
	case "pull":
		model, _, _ := strings.Cut(rest, " ")
		if model == "" {
			return "", fmt.Errorf("pull requires a model name")
		}
		if err := o.pull(ctx, model); err != nil {
			return "", err
		}
		return "Pull completed.", nil
	case "delete":
		if rest == "" {
			return "", fmt.Errorf("delete requires a model name")
		}
		if err := o.delete(ctx, rest); err != nil {
			return "", err
		}
		return "Model deleted.", nil
	case "embed":
		model, text, found := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !found || text == "" {
			return "", fmt.Errorf("embed requires: embed <model> <text>")
		}
		return o.embed(ctx, model, text)
	case "load":
		model, keepAlive, _ := strings.Cut(rest, " ")
		if model == "" {
			return "", fmt.Errorf("load requires a model name")
		}
		if err := o.load(ctx, model, strings.TrimSpace(keepAlive)); err != nil {
			return "", err
		}
		return "Model loaded.", nil
	case "unload":
		if rest == "" {
			return "", fmt.Errorf("unload requires a model name")
		}
		if err := o.unload(ctx, rest); err != nil {
			return "", err
		}
		return "Model unloaded.", nil
	default:
		return "", fmt.Errorf("unknown action: %s (use list_models, version, running, pull, delete, embed, load, or unload)", action)
	}
}

func (o *Ollama) listModels(ctx context.Context) (string, error) {
	body, err := o.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Models []struct {
			Name       string `json:"name"`
			Size       int64  `json:"size"`
			ModifiedAt string `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse /api/tags response: %w", err)
	}
	if len(resp.Models) == 0 {
		return "No models installed.", nil
	}
	var b strings.Builder
	for _, m := range resp.Models {
		fmt.Fprintf(&b, "- %s (%.1f GB)\n", m.Name, float64(m.Size)/(1<<30))
	}
	return capAdmin(strings.TrimRight(b.String(), "\n")), nil
}

func (o *Ollama) version(ctx context.Context) (string, error) {
	body, err := o.do(ctx, http.MethodGet, "/api/version", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse /api/version response: %w", err)
	}
	return resp.Version, nil
}

func (o *Ollama) running(ctx context.Context) (string, error) {
	body, err := o.do(ctx, http.MethodGet, "/api/ps", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Models []struct {
			Name      string `json:"name"`
			SizeVRAM  int64  `json:"size_vram"`
			ExpiresAt string `json:"expires_at"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse /api/ps response: %w", err)
	}
	if len(resp.Models) == 0 {
		return "No models loaded.", nil
	}
	var b strings.Builder
	for _, m := range resp.Models {
		fmt.Fprintf(&b, "- %s (%.1f GB VRAM, expires %s)\n", m.Name, float64(m.SizeVRAM)/(1<<30), m.ExpiresAt)
	}
	return capAdmin(strings.TrimRight(b.String(), "\n")), nil
}

func (o *Ollama) pull(ctx context.Context, model string) error {
	_, err := o.post(ctx, "/api/pull", map[string]any{"model": model, "stream": false})
	return err
}

func (o *Ollama) delete(ctx context.Context, model string) error {
	payload, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return err
	}
	_, err = o.do(ctx, http.MethodDelete, "/api/delete", payload)
	return err
}

func (o *Ollama) embed(ctx context.Context, model, text string) (string, error) {
	body, err := o.post(ctx, "/api/embed", map[string]any{"model": model, "input": text})
	if err != nil {
		return "", err
	}
	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse /api/embed response: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return "No embedding returned.", nil
	}
	vec := resp.Embeddings[0]
	preview := vec
	if len(preview) > 8 {
		preview = preview[:8]
	}
	return capAdmin(fmt.Sprintf("%d dimensions, first values %v", len(vec), preview)), nil
}

// load warms a model via /api/generate with an empty prompt.
func (o *Ollama) load(ctx context.Context, model, keepAlive string) error {
	payload := map[string]any{"model": model, "prompt": "", "stream": false}
	if keepAlive != "" {
		payload["keep_alive"] = keepAlive
	}
	_, err := o.post(ctx, "/api/generate", payload)
	return err
}

// unload evicts a model by sending keep_alive 0 with no messages.
func (o *Ollama) unload(ctx context.Context, model string) error {
	_, err := o.post(ctx, "/api/chat", map[string]any{
		"model": model, "messages": []Message{}, "stream": false, "keep_alive": 0,
	})
	return err
}

func capAdmin(s string) string {
	return logging.Ellipse(s, maxAdminResponse)
}
