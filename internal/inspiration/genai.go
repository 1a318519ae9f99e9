package inspiration

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini model asked for the mission.
	DefaultModel = "gemini-2.5-flash"

	// DefaultPrompt asks for one short, concrete action for a young Christian.
	DefaultPrompt = `Crie uma missão urbana curta e impactante para um jovem cristão hoje. ` +
		`Máximo 10 palavras. Ex: "Doe um agasalho para alguém no sinal".`
)

// GenAI asks a Gemini model for a mission.
type GenAI struct {
	client *genai.Client
	model  string
	prompt string
}

// GenAIOption configures NewGenAI.
type GenAIOption func(*genai.ClientConfig)

// WithBaseURL points the client at another endpoint (tests, proxies).
func WithBaseURL(url string) GenAIOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// NewGenAI creates the provider. Empty model or prompt fall back to the
// defaults above.
func NewGenAI(ctx context.Context, apiKey, model, prompt string, opts ...GenAIOption) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("inspiration: Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("inspiration: creating GenAI client: %w", err)
	}
	return &GenAI{client: client, model: model, prompt: prompt}, nil
}

// Fetch implements Provider. One attempt, no retry.
func (g *GenAI) Fetch(ctx context.Context) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(g.prompt), nil)
	if err != nil {
		return "", fmt.Errorf("inspiration: GenAI generate failed: %w", err)
	}
	text := Clean(resp.Text())
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
