package service

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/model"
)

// GeminiExtractor runs extraction through the Gemini API.
type GeminiExtractor struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
}

func NewGeminiExtractor(ctx context.Context, cfg *config.AIConfig) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiExtractor{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.SamplingTemperature()),
		maxTokens:   int32(cfg.MaxTokens),
		timeout:     timeout,
	}, nil
}

func (e *GeminiExtractor) ExtractText(ctx context.Context, text string) (model.FieldBag, error) {
	return e.generate(ctx, []*genai.Part{genai.NewPartFromText(TextPrompt(text))})
}

func (e *GeminiExtractor) ExtractImage(ctx context.Context, image []byte, mimeType string) (model.FieldBag, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return e.generate(ctx, []*genai.Part{
		genai.NewPartFromText(ImagePrompt()),
		genai.NewPartFromBytes(image, mimeType),
	})
}

func (e *GeminiExtractor) generate(ctx context.Context, parts []*genai.Part) (model.FieldBag, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	temperature := e.temperature
	resp, err := e.client.Models.GenerateContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: e.maxTokens,
		},
	)
	if err != nil {
		return model.FieldBag{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return ParseFieldBag(resp.Text())
}
