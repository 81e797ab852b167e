package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/tracing"
)

const tracerName = "github.com/AGtheOG/ikarus3d-advisorBot/internal/generator"

// Model completes a text prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the hosted Gemini model.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Model on the Gemini API.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGemini builds a Gemini API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models contentGenerator, cfg GeminiConfig) *Gemini {
	return &Gemini{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

// Name returns the model name.
func (g *Gemini) Name() string { return g.model }

// Generate sends prompt as a single user turn and returns the response text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (text string, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "gemini.GenerateContent")
	defer func() { tracing.End(span, err) }()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	return resp.Text(), nil
}

// Unavailable is the Model used when no LLM client could be built.
type Unavailable struct {
	Reason string
}

// Generate always fails with a connection-kind error.
func (u Unavailable) Generate(context.Context, string) (string, error) {
	reason := u.Reason
	if reason == "" {
		reason = "LLM model is not initialized."
	}
	return "", apperrors.Unavailable("llm", reason)
}
