// Package mcp speaks JSON-RPC 2.0 to a Model Context Protocol server,
// over HTTP or a stdio subprocess, and exposes the tools/list and
// tools/call methods the agent loop needs.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dirigent/internal/logging"
)

const (
	protocolVersion = "2024-11-05"
	maxRPCResponse  = 4 << 20
)

// ErrNotConfigured is returned when neither an HTTP URL nor a stdio spec
// is set.
var ErrNotConfigured = errors.New("mcp server is not configured")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// Tool is one entry from tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type callResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Transport runs a single JSON-RPC method against the server and returns
// its result payload.
type Transport interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Client wraps a transport with the tool operations.
type Client struct {
	transport Transport
}

// New builds a client from the configured endpoints. A stdio spec takes
// precedence over an HTTP URL, matching the config lookup order.
func New(url, stdio string, httpClient *http.Client) *Client {
	c := &Client{}
	switch {
	case strings.TrimSpace(stdio) != "":
		c.transport = NewStdioTransport(stdio)
	case strings.TrimSpace(url) != "":
		c.transport = NewHTTPTransport(strings.TrimSpace(url), httpClient)
	}
	return c
}

// Configured reports whether a server endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.transport != nil
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	raw, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse tools list: %w", err)
	}
	logging.Get(logging.CategoryMCP).Debugw("listed tools", "count", len(out.Tools))
	return out.Tools, nil
}

// CallTool invokes one tool and returns its text content. Content items
// are joined with newlines; a result flagged as an error comes back as a
// Go error carrying the first text item.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if args == nil {
		args = map[string]any{}
	}
	raw, err := c.transport.Call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}
	var res callResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("parse tool result: %w", err)
	}
	if res.IsError {
		msg := "unknown error"
		for _, item := range res.Content {
			if item.Text != "" {
				msg = item.Text
				break
			}
		}
		return "", fmt.Errorf("tool %s: %s", name, msg)
	}
	var parts []string
	for _, item := range res.Content {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		text = "(no output)"
	}
	logging.Get(logging.CategoryMCP).Debugw("tool completed", "tool", name, "chars", len(text))
	return text, nil
}

// ParseArgs splits a directive argument into a tool name and arguments.
// Text after the name is decoded as JSON when it starts with '{',
// otherwise wrapped as {"input": text}. A bare name has no arguments.
func ParseArgs(raw string) (string, map[string]any) {
	raw = strings.TrimSpace(raw)
	name, rest, found := strings.Cut(raw, " ")
	if !found {
		return raw, nil
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return name, nil
	}
	if strings.HasPrefix(rest, "{") {
		var args map[string]any
		if err := json.Unmarshal([]byte(rest), &args); err == nil {
			return name, args
		}
		return name, nil
	}
	return name, map[string]any{"input": rest}
}

// Catalog renders tools as a bullet list for prompt text.
func Catalog(tools []Tool) string {
	var b strings.Builder
	for _, t := range tools {
		desc := t.Description
		if desc == "" {
			desc = "(no description)"
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", t.Name, desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "dirigent",
			"version": "1.0.0",
		},
	}
}
