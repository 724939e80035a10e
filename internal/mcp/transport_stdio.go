package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"dirigent/internal/logging"
)

// StdioTransport spawns the configured command for each call and speaks
// line-delimited JSON-RPC over its stdin/stdout. The spec has the form
// "cmd|arg1|arg2", the same shape MCP_SERVER_STDIO takes.
type StdioTransport struct {
	mu      sync.Mutex
	command string
	args    []string
}

// NewStdioTransport parses a stdio spec into command and arguments.
func NewStdioTransport(spec string) *StdioTransport {
	parts := strings.Split(spec, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	t := &StdioTransport{}
	if parts[0] != "" {
		t.command = parts[0]
		t.args = parts[1:]
	}
	return t
}

// Call spawns the server, runs the initialize handshake and the given
// method, then tears the process down. Requests within one call use
// fixed ids: 1 for initialize, 2 for the method.
func (t *StdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.command == "" {
		return nil, ErrNotConfigured
	}
	logging.Get(logging.CategoryMCP).Debugw("spawning stdio server", "command", t.command, "method", method)

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", t.command, err)
	}
	defer func() {
		stdin.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRPCResponse)

	if _, err := roundTripLines(ctx, stdin, scanner, 1, "initialize", initializeParams()); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := writeLine(stdin, rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); err != nil {
		return nil, err
	}
	return roundTripLines(ctx, stdin, scanner, 2, method, params)
}

// roundTripLines writes one request and scans stdout until the response
// with the matching id arrives, skipping notifications and noise.
func roundTripLines(ctx context.Context, w io.Writer, scanner *bufio.Scanner, id int, method string, params any) (json.RawMessage, error) {
	if err := writeLine(w, rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	return nil, fmt.Errorf("server exited before %s response", method)
}

func writeLine(w io.Writer, req rpcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}
