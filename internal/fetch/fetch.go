// Package fetch implements the fetch-url collaborator: plain HTTP GET
// plus an HTML-to-text reduction so page content fits into a model
// prompt instead of arriving as markup soup.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dirigent/internal/logging"
	"dirigent/internal/sanitize"
)

const (
	// maxBodyBytes bounds how much of a response is read at all.
	maxBodyBytes = 2 << 20

	// charsPerToken is the rough prompt-budget estimate; reserveTokens
	// is held back for the model's own instructions and reply.
	charsPerToken = 4
	reserveTokens = 512

	userAgent = "Mozilla/5.0 (compatible; dirigent/1.0)"

	truncationMarker = "\n\n[...truncated...]"
)

// Client fetches and reduces web pages.
type Client struct {
	http     *http.Client
	maxChars int
}

// New builds a client. maxChars bounds the reduced text; zero applies
// the 50000 default.
func New(httpClient *http.Client, maxChars int) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if maxChars <= 0 {
		maxChars = 50000
	}
	return &Client{http: httpClient, maxChars: maxChars}
}

// BudgetChars converts a model context size into a character budget for
// fetched content.
func BudgetChars(numCtx int) int {
	if numCtx <= reserveTokens {
		return 0
	}
	return (numCtx - reserveTokens) * charsPerToken
}

// Fetch GETs the URL and returns page content reduced to plain
// markdown-ish text, truncated to the configured budget. Non-2xx
// responses come back as *sanitize.HTTPError.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	log := logging.Get(logging.CategoryDispatch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(body), URL: url}
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	if strings.Contains(contentType, "text/html") || looksLikeHTML(body) {
		text, err = Reduce(string(body))
		if err != nil {
			return "", fmt.Errorf("failed to reduce page: %w", err)
		}
	} else {
		text = string(body)
	}

	if len(text) > c.maxChars {
		text = text[:c.maxChars] + truncationMarker
	}

	log.Debugw("fetched", "url", url, "chars", len(text), "content_type", contentType)
	return text, nil
}

// FetchImage GETs an image URL and returns the raw bytes plus the
// reported content type. Client errors come back as *sanitize.HTTPError
// so the image-fetch rule can drop them quietly.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &sanitize.HTTPError{StatusCode: resp.StatusCode, Body: string(body), URL: url}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 256)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
