// Package openai implements page recognition with an OpenAI vision model.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/garyjia/invoice-booking/internal/application/port"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds the connection settings of the recognizer
type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	Language string
}

// Recognizer implements port.RecognitionProvider using a vision chat model
type Recognizer struct {
	client   *openai.Client
	model    string
	language string
	prompts  *PromptConfig
	logger   *zap.Logger
}

// NewRecognizer creates a new OpenAI recognizer. A nil prompts uses DefaultPrompts.
func NewRecognizer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Recognizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Recognizer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		language: cfg.Language,
		prompts:  prompts,
		logger:   logger,
	}
}

type recognitionResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Tokens     []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"tokens"`
}

// Recognize transcribes one page image. A failed API call is an error; a
// response that cannot be read yields empty text with zero confidence.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, mimeType string) (string, entity.PageConfidence, error) {
	prompt, err := renderTemplate(r.prompts.Recognition.UserTemplate, map[string]string{"Language": r.language})
	if err != nil {
		return "", entity.PageConfidence{}, err
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   r.prompts.Recognition.MaxTokens,
		Temperature: r.prompts.Recognition.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: r.prompts.Recognition.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("Vision API call failed", zap.Error(err))
		return "", entity.PageConfidence{}, fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		r.logger.Warn("Vision API returned no choices")
		return "", entity.PageConfidence{}, nil
	}

	parsed, ok := parseResponse(resp.Choices[0].Message.Content)
	if !ok {
		r.logger.Warn("Unreadable vision response, treating page as empty",
			zap.String("content", truncate(resp.Choices[0].Message.Content, 200)))
		return "", entity.PageConfidence{}, nil
	}

	conf := entity.PageConfidence{Overall: normalizeConfidence(parsed.Confidence)}
	for _, tok := range parsed.Tokens {
		word := strings.TrimSpace(tok.Text)
		if word == "" {
			continue
		}
		if conf.PerToken == nil {
			conf.PerToken = make(map[string]float64, len(parsed.Tokens))
		}
		if _, seen := conf.PerToken[word]; !seen {
			conf.PerToken[word] = normalizeConfidence(tok.Confidence)
		}
	}
	if strings.TrimSpace(parsed.Text) == "" {
		conf.Overall = 0
	}

	r.logger.Debug("Page recognised",
		zap.Int("chars", len(parsed.Text)),
		zap.Float64("confidence", conf.Overall),
		zap.Int("tokens", len(conf.PerToken)))
	return parsed.Text, conf, nil
}

// parseResponse decodes the model output, tolerating ```json fences and prose around the object
func parseResponse(content string) (*recognitionResponse, bool) {
	var result recognitionResponse
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return &result, true
	}
	if jsonStr := extractJSON(content); jsonStr != "" {
		if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
			return &result, true
		}
	}
	return nil, false
}

// normalizeConfidence maps a fraction below 1 or a 0-100 score onto 0-100.
// A value of exactly 1 is read as a score.
func normalizeConfidence(c float64) float64 {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c < 1 {
		c *= 100
	}
	return math.Min(c, 100)
}

// extractJSON extracts the first balanced JSON object from content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd finds the end of JSON content starting at a given position
func findJSONEnd(content string, start int) int {
	if start < 0 || start >= len(content) || content[start] != '{' {
		return -1
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Verify interface compliance
var _ port.RecognitionProvider = (*Recognizer)(nil)
