package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/model"
)

// AIExtractor turns chat content into a FieldBag. Implementations report
// transport and parse failures as errors; the pipeline treats either as an
// extraction failure and falls back or rejects.
type AIExtractor interface {
	ExtractText(ctx context.Context, text string) (model.FieldBag, error)
	ExtractImage(ctx context.Context, image []byte, mimeType string) (model.FieldBag, error)
}

const fieldInstructions = `Извлеки следующие данные:
- ФИО клиента (полное имя)
- Номер телефона
- Адрес доставки
- Название товара
- Сумма заказа
- Никнейм (если есть)

Если какие-то данные отсутствуют, напиши "null".

Верни ТОЛЬКО JSON формат:
{"name": "...", "phone": "...", "address": "...", "product": "...", "amount": "...", "username": "..."}`

// TextPrompt is the instruction sent with pasted chat text.
func TextPrompt(text string) string {
	return "Проанализируй этот текст из чата Kufar и извлеки информацию:\n\n" + text + "\n\n" + fieldInstructions
}

// ImagePrompt is the instruction sent alongside a screenshot.
func ImagePrompt() string {
	return "Проанализируй этот скриншот переписки Kufar и извлеки информацию.\n\n" + fieldInstructions
}

// NewAIExtractor builds the extractor named by cfg.Provider. Provider "none"
// (or empty) yields a nil extractor and the pipeline runs on heuristics only.
func NewAIExtractor(ctx context.Context, cfg *config.AIConfig) (AIExtractor, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIExtractor(cfg), nil
	case "gemini":
		ext, err := NewGeminiExtractor(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return ext, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

type OpenAIExtractor struct {
	config     *config.AIConfig
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatMessage content is either a string or a list of content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIExtractor(cfg *config.AIConfig) *OpenAIExtractor {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIExtractor{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExtractText asks the model to pull order fields out of pasted chat text.
func (s *OpenAIExtractor) ExtractText(ctx context.Context, text string) (model.FieldBag, error) {
	reply, err := s.complete(ctx, TextPrompt(text))
	if err != nil {
		return model.FieldBag{}, err
	}
	return ParseFieldBag(reply)
}

// ExtractImage sends the screenshot inline as a data URL.
func (s *OpenAIExtractor) ExtractImage(ctx context.Context, image []byte, mimeType string) (model.FieldBag, error) {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	reply, err := s.complete(ctx, []contentPart{
		{Type: "text", Text: ImagePrompt()},
		{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
	})
	if err != nil {
		return model.FieldBag{}, err
	}
	return ParseFieldBag(reply)
}

func (s *OpenAIExtractor) complete(ctx context.Context, content any) (string, error) {
	reqBody := chatRequest{
		Model:       s.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.SamplingTemperature(),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(s.config.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI API returned no choices")
	}

	reply := result.Choices[0].Message.Content
	slog.Debug("AI reply received", "model", s.config.Model, "chars", len(reply))
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
