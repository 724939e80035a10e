package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirigent/internal/sanitize"
)

type rawRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// newRPCServer serves initialize and notifications itself and hands the
// remaining methods to handle. It counts initialize calls.
func newRPCServer(t *testing.T, inits *int, handle func(req rawRequest) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rawRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Method {
		case "initialize":
			*inits++
			var params struct {
				ProtocolVersion string `json:"protocolVersion"`
			}
			require.NoError(t, json.Unmarshal(req.Params, &params))
			assert.Equal(t, protocolVersion, params.ProtocolVersion)
			writeRPC(t, w, req.ID, map[string]any{"protocolVersion": protocolVersion}, nil)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		default:
			result, rpcErr := handle(req)
			writeRPC(t, w, req.ID, result, rpcErr)
		}
	}))
}

func writeRPC(t *testing.T, w http.ResponseWriter, id int, result any, rpcErr *rpcError) {
	t.Helper()
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestHTTPListTools(t *testing.T) {
	inits := 0
	srv := newRPCServer(t, &inits, func(req rawRequest) (any, *rpcError) {
		require.Equal(t, "tools/list", req.Method)
		return map[string]any{
			"tools": []map[string]any{
				{"name": "get_weather", "description": "Weather lookup", "inputSchema": map[string]any{"type": "object"}},
				{"name": "fetch_page", "description": "Fetch a page"},
			},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	require.True(t, c.Configured())

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "get_weather", tools[0].Name)
	assert.Equal(t, "Weather lookup", tools[0].Description)
	assert.NotEmpty(t, tools[0].InputSchema)

	// Handshake runs once for the transport, not per call.
	_, err = c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inits)
}

func TestHTTPCallTool(t *testing.T) {
	inits := 0
	var gotArgs map[string]any
	srv := newRPCServer(t, &inits, func(req rawRequest) (any, *rpcError) {
		require.Equal(t, "tools/call", req.Method)
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &params))
		require.Equal(t, "get_weather", params.Name)
		gotArgs = params.Arguments
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "sunny"},
				{"type": "text", "text": "22C"},
			},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	out, err := c.CallTool(context.Background(), "get_weather", map[string]any{"location": "NYC"})
	require.NoError(t, err)
	assert.Equal(t, "sunny\n22C", out)
	assert.Equal(t, map[string]any{"location": "NYC"}, gotArgs)

	// Nil arguments still reach the server as an empty object.
	out, err = c.CallTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.Equal(t, "sunny\n22C", out)
	assert.Equal(t, map[string]any{}, gotArgs)
}

func TestHTTPCallToolErrors(t *testing.T) {
	inits := 0
	mode := "rpc-error"
	srv := newRPCServer(t, &inits, func(req rawRequest) (any, *rpcError) {
		switch mode {
		case "rpc-error":
			return nil, &rpcError{Code: -32602, Message: "unknown tool"}
		case "is-error":
			return map[string]any{
				"content": []map[string]any{{"type": "text", "text": "rate limited"}},
				"isError": true,
			}, nil
		default:
			return map[string]any{"content": []map[string]any{}}, nil
		}
	})
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())

	_, err := c.CallTool(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")

	mode = "is-error"
	_, err = c.CallTool(context.Background(), "get_weather", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	mode = "empty"
	out, err := c.CallTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.Equal(t, "(no output)", out)
}

func TestHTTPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	_, err := c.ListTools(context.Background())
	require.Error(t, err)

	var he *sanitize.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusInternalServerError, he.StatusCode)
}

func TestStdioTransport(t *testing.T) {
	script := `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
  *notifications/initialized*) ;;
  *initialize*) printf '%s\n' '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05"}}' ;;
  *tools/list*) printf '%s\n' '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"lookup","description":"Find things"}]}}' ;;
  *tools/call*) printf '%s\n' '{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"found it"}]}}' ;;
  esac
done`
	path := filepath.Join(t.TempDir(), "server.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	c := New("", path, nil)
	require.True(t, c.Configured())

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "lookup", tools[0].Name)

	out, err := c.CallTool(context.Background(), "lookup", map[string]any{"input": "keys"})
	require.NoError(t, err)
	assert.Equal(t, "found it", out)
}

func TestStdioSpec(t *testing.T) {
	tr := NewStdioTransport("npx|-y|@openbnb/mcp-server-airbnb")
	assert.Equal(t, "npx", tr.command)
	assert.Equal(t, []string{"-y", "@openbnb/mcp-server-airbnb"}, tr.args)

	// Stdio wins over an HTTP URL when both are configured.
	c := New("http://localhost:1234", "server|--flag", nil)
	_, ok := c.transport.(*StdioTransport)
	assert.True(t, ok)

	_, err := NewStdioTransport("  ").Call(context.Background(), "tools/list", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNotConfigured(t *testing.T) {
	c := New("", "", nil)
	assert.False(t, c.Configured())

	_, err := c.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.CallTool(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		raw      string
		wantName string
		wantArgs map[string]any
	}{
		{"get_weather", "get_weather", nil},
		{"get_weather {\"location\": \"NYC\"}", "get_weather", map[string]any{"location": "NYC"}},
		{"fetch_url https://example.com", "fetch_url", map[string]any{"input": "https://example.com"}},
		{"search big brown fox", "search", map[string]any{"input": "big brown fox"}},
		{"broken {not json", "broken", nil},
		{"  padded  ", "padded", nil},
	}
	for _, tt := range tests {
		name, args := ParseArgs(tt.raw)
		if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
			t.Errorf("ParseArgs(%q) = %q, %v; want %q, %v", tt.raw, name, args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestCatalog(t *testing.T) {
	tools := []Tool{
		{Name: "get_weather", Description: "Weather lookup"},
		{Name: "mystery"},
	}
	got := Catalog(tools)
	assert.Equal(t, "- **get_weather**: Weather lookup\n- **mystery**: (no description)", got)
	assert.Empty(t, Catalog(nil))
}
