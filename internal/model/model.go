// Package model talks to the chat backend. Two providers implement the
// same Client interface: a local Ollama server and Gemini via the genai
// SDK. Reply parsing (directive vs code vs plain answer) is provider
// independent and lives in reply.go.
package model

import (
	"context"
	"fmt"

	"dirigent/internal/config"
)

// Roles on the chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn as the providers see it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options carries per-turn overrides. Zero values mean "use the
// configured default".
type Options struct {
	Model       string
	Temperature float64
	NumCtx      int
}

// Client sends a conversation to the backend and returns the raw reply
// text.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// AdminAPI is the optional management surface behind the ollama-api
// command. Only the Ollama provider implements it.
type AdminAPI interface {
	Admin(ctx context.Context, args string) (string, error)
}

// NewClient builds the configured provider.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.Model.Provider {
	case config.ProviderOllama:
		return NewOllama(cfg.Model.BaseURL, cfg.Model.Model, cfg.Model.APIKey, cfg.Model.Temperature, cfg.Model.NumCtx, nil), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.Model.APIKey, cfg.Model.Model, cfg.Model.Temperature)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Model.Provider)
	}
}
