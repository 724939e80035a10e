package model

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"dirigent/internal/logging"
)

// DefaultGeminiModel is used when the config names no model for the
// gemini provider.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implements Client on the Google genai SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float64
}

// NewGemini creates a Gemini-backed client.
func NewGemini(ctx context.Context, apiKey, modelName string, temperature float64) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: modelName, temperature: temperature}, nil
}

// Chat maps the conversation onto GenerateContent. System messages fold
// into the system instruction; user/assistant turns become contents.
func (g *Gemini) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	var system string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no user content to send")
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	temperature := g.temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	if temperature != 0 {
		t := float32(temperature)
		cfg.Temperature = &t
	}

	modelName := g.model
	if opts.Model != "" {
		modelName = opts.Model
	}

	res, err := g.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	logging.Get(logging.CategoryModel).Debugw("chat completed",
		"model", modelName, "messages", len(messages), "chars", len(text))
	return text, nil
}
