package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompts and model parameters of the vision recognizer
type PromptConfig struct {
	Recognition struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"recognition"`
}

// DefaultPrompts returns the built-in prompts used when no prompts file is configured
func DefaultPrompts() *PromptConfig {
	var p PromptConfig
	p.Recognition.Temperature = 0
	p.Recognition.MaxTokens = 4096
	p.Recognition.System = "You transcribe scanned invoices exactly as printed. " +
		"You never translate, summarise or correct the text. Always respond with valid JSON."
	p.Recognition.UserTemplate = `Transcribe all text on this invoice page. Expected languages: {{.Language}}.
Keep the original line breaks and reading order.
Respond with a JSON object of this shape:
{"text": "<full page text>", "confidence": <0-100>, "tokens": [{"text": "<word>", "confidence": <0-100>}]}
List every word that carries a number, date, amount, IBAN or company name in "tokens".
If the page is unreadable, respond with {"text": "", "confidence": 0, "tokens": []}.`
	return &p
}

// LoadPrompts loads prompt configuration from YAML file. Empty sections keep the defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if _, err := template.New("prompt").Parse(prompts.Recognition.UserTemplate); err != nil {
		return nil, fmt.Errorf("invalid recognition user_template: %w", err)
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
