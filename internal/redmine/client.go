// Package redmine is the issue-tracker collaborator. Reads may hit any
// API path; writes are limited to updating a single issue.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"dirigent/internal/logging"
	"dirigent/internal/sanitize"
)

// maxAPIResponse caps raw tracker payloads handed back to the model.
const maxAPIResponse = 12000

// issuePath matches the only paths Update will touch.
var issuePath = regexp.MustCompile(`^/issues/\d+\.(json|xml)$`)

// Client talks to a Redmine instance.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// New builds a client for the instance at baseURL.
func New(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// Configured reports whether a tracker instance is set up.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redmine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(data), URL: c.baseURL + path}
	}
	return data, nil
}

// Get performs a read against any API path and returns the raw
// payload, capped so it stays promptable.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	logging.Get(logging.CategoryDispatch).Debugw("redmine get", "path", path, "bytes", len(data))
	return logging.Ellipse(string(data), maxAPIResponse), nil
}

// Update PUTs a JSON body to a single issue. Any other path is refused
// before the request is made.
func (c *Client) Update(ctx context.Context, path string, body []byte) error {
	if !issuePath.MatchString(path) {
		return fmt.Errorf("refusing update outside /issues/<id>: %s", path)
	}
	_, err := c.do(ctx, http.MethodPut, path, body)
	return err
}

// AddNote appends a journal note to an issue.
func (c *Client) AddNote(ctx context.Context, issueID int, note string) error {
	body, err := json.Marshal(map[string]map[string]string{
		"issue": {"notes": note},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}
	return c.Update(ctx, fmt.Sprintf("/issues/%d.json", issueID), body)
}
