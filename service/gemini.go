package service

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/Rishie123/billprocessor/config"
)

// ModelClient is the single capability the pipeline needs from the vision
// model: one instruction plus one image in, free text out.
type ModelClient interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// GeminiService calls the Gemini API for multimodal generation. It holds no
// per-request state and is safe for concurrent use.
type GeminiService struct {
	client *genai.Client
	model  string
}

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing gemini api key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiService{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Generate sends the prompt and image to Gemini and returns the response
// text. The text is assumed, not guaranteed, to be JSON-shaped; decoding is
// the parser's job.
func (s *GeminiService) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty gemini response")
	}
	return text, nil
}
