// Package gemini backs field proposal and text embeddings with the
// Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/AdielsonMedeiros/POC-PDF/internal/common"
	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/propose"
)

// Client talks to Gemini for both field proposal and embeddings. A nil
// Client is valid and reports itself unavailable, so callers can wire
// it unconditionally and let missing credentials degrade at runtime.
type Client struct {
	client         *genai.Client
	model          string
	embeddingModel string
	temperature    float32
	logger         *slog.Logger
}

// NewClient connects to the Gemini API. An empty API key returns a nil
// Client without error.
func NewClient(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:         gc,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		logger:         logger,
	}, nil
}

func (c *Client) Available() bool {
	return c != nil && c.client != nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Propose asks the model for the variable fields of text.
func (c *Client) Propose(ctx context.Context, text string) ([]entity.CandidateField, error) {
	if !c.Available() {
		return nil, fmt.Errorf("gemini client not configured")
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(propose.SystemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(propose.UserPrompt(text)))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty gemini response")
	}
	content, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected gemini response part %T", resp.Candidates[0].Content.Parts[0])
	}

	fields, err := propose.ParseCandidates(string(content))
	if err != nil {
		return nil, err
	}
	c.logger.Info("propose.llm.ok", "model", c.model, "fields", len(fields))
	return fields, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.Available() {
		return nil, fmt.Errorf("gemini client not configured")
	}
	em := c.client.EmbeddingModel(c.embeddingModel)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty gemini embedding")
	}
	return resp.Embedding.Values, nil
}
