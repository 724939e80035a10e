// Package brave is the web-search collaborator.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dirigent/internal/sanitize"
)

// DefaultBaseURL is the Brave search API endpoint.
const DefaultBaseURL = "https://api.search.brave.com/res/v1"

// Client queries the Brave web search API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	count   int
}

// New builds a client returning up to count results per query.
func New(httpClient *http.Client, baseURL, apiKey string, count int) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if count <= 0 {
		count = 5
	}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey, count: count}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a web search and renders the results as a compact
// numbered list the model can quote or follow up on.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	q := url.Values{
		"q":     {query},
		"count": {strconv.Itoa(c.count)},
	}
	endpoint := c.baseURL + "/web/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(data), URL: endpoint}
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode results: %w", err)
	}

	if len(parsed.Web.Results) == 0 {
		return "No results found for: " + query, nil
	}

	var sb strings.Builder
	for i, r := range parsed.Web.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
