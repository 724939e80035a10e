package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"dirigent/internal/sanitize"
)

// HTTPTransport posts JSON-RPC requests to a single MCP endpoint. The
// initialize handshake runs once, on first use.
type HTTPTransport struct {
	mu          sync.Mutex
	url         string
	client      *http.Client
	nextID      int
	initialized bool
}

// NewHTTPTransport creates a transport for the given endpoint. A nil
// client falls back to http.DefaultClient.
func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{url: url, client: client, nextID: 1}
}

// Call runs one JSON-RPC method and returns its result payload.
func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		if _, err := t.roundTrip(ctx, "initialize", initializeParams()); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
		if err := t.notify(ctx, "notifications/initialized"); err != nil {
			return nil, fmt.Errorf("initialized notification: %w", err)
		}
		t.initialized = true
	}
	return t.roundTrip(ctx, method, params)
}

func (t *HTTPTransport) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.nextID
	t.nextID++
	body, err := t.post(ctx, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// notify sends a request without an id and ignores the response body.
func (t *HTTPTransport) notify(ctx context.Context, method string) error {
	_, err := t.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method})
	return err
}

func (t *HTTPTransport) post(ctx context.Context, req rpcRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCResponse))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(body), URL: t.url}
	}
	return body, nil
}
