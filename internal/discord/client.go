// Package discord is the team-chat collaborator: a small REST client
// over the Discord HTTP API. Reads may hit any path; the only write
// this system ever performs is posting a message to a channel.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"dirigent/internal/logging"
	"dirigent/internal/sanitize"
)

// DefaultBaseURL is the Discord REST endpoint.
const DefaultBaseURL = "https://discord.com/api/v10"

// maxAPIResponse caps raw API payloads handed back to the model.
const maxAPIResponse = 8000

// User is a Discord user as far as this system cares.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// Message is one channel message.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Author      User         `json:"author"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"`
	Mentions    []User       `json:"mentions"`
	Attachments []Attachment `json:"attachments"`
}

// Client talks to the Discord REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New builds a client with the given bot token. baseURL is overridable
// for tests; empty uses the real API.
func New(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL, token: token}
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
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord request failed: %w", err)
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

// Get performs a read against any API path and returns the raw JSON,
// capped so it stays promptable.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return logging.Ellipse(string(data), maxAPIResponse), nil
}

// SendMessage posts content to a channel. Callers split long content
// beforehand; Discord rejects messages over 2000 characters.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload)
	if err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}

// Messages fetches up to limit channel messages newer than afterID.
// An empty afterID returns the most recent ones.
func (c *Client) Messages(ctx context.Context, channelID, afterID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if afterID != "" {
		q.Set("after", afterID)
	}

	data, err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	// Discord returns newest first; flip into reading order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Me returns the bot's own user, used to detect mentions and self
// messages.
func (c *Client) Me(ctx context.Context) (User, error) {
	data, err := c.do(ctx, http.MethodGet, "/users/@me", nil)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("failed to decode user: %w", err)
	}
	return u, nil
}
