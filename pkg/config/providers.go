package config

import (
	"fmt"
	"log/slog"

	"github.com/medintake/formpipe/pkg/provider"
	"github.com/medintake/formpipe/pkg/provider/docai"
	"github.com/medintake/formpipe/pkg/provider/gemini"
	"github.com/medintake/formpipe/pkg/provider/mistral"
	"github.com/medintake/formpipe/pkg/provider/openai"
)

// OCR builds the configured OCR provider.
func (c *Config) OCR(log *slog.Logger) (provider.OCR, error) {
	switch c.OCRProvider {
	case provider.ProviderMistral:
		return c.mistral(log)
	case provider.ProviderGemini:
		return c.gemini(log)
	case provider.ProviderDocAI:
		return c.docai(log)
	default:
		return nil, fmt.Errorf("unknown ocr provider %q", c.OCRProvider)
	}
}

// Parser builds the configured parsing provider.
func (c *Config) Parser(log *slog.Logger) (provider.Parser, error) {
	switch c.LLMProvider {
	case provider.ProviderGemini:
		return c.gemini(log)
	case provider.ProviderOpenAI:
		options := []openai.Option{
			openai.WithToken(c.OpenAI.APIKey),
			openai.WithLogger(log),
		}
		if c.OpenAI.Model != "" {
			options = append(options, openai.WithModel(c.OpenAI.Model))
		}
		if c.OpenAI.BaseURL != "" {
			options = append(options, openai.WithURL(c.OpenAI.BaseURL))
		}
		return openai.New(options...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
}

// PositionExtractor builds the provider used to locate field values for
// the overlay fallback. Document AI is preferred when the OCR side already
// uses it; otherwise Mistral vision serves.
func (c *Config) PositionExtractor(log *slog.Logger) (provider.PositionExtractor, error) {
	if c.OCRProvider == provider.ProviderDocAI {
		return c.docai(log)
	}
	if c.Mistral.APIKey == "" {
		return nil, fmt.Errorf("position extraction requires mistral api_key")
	}
	return c.mistral(log)
}

// DocumentOCR builds the single-call document provider for the fast path.
func (c *Config) DocumentOCR(log *slog.Logger) (provider.DocumentOCR, error) {
	if c.OCRProvider == provider.ProviderDocAI {
		return c.docai(log)
	}
	if c.Mistral.APIKey == "" {
		return nil, fmt.Errorf("document ocr requires mistral api_key")
	}
	return c.mistral(log)
}

func (c *Config) mistral(log *slog.Logger) (*mistral.Client, error) {
	options := []mistral.Option{
		mistral.WithToken(c.Mistral.APIKey),
		mistral.WithLogger(log),
	}
	if c.Mistral.OCRModel != "" {
		options = append(options, mistral.WithOCRModel(c.Mistral.OCRModel))
	}
	if c.Mistral.VisionModel != "" {
		options = append(options, mistral.WithVisionModel(c.Mistral.VisionModel))
	}
	return mistral.New(options...)
}

func (c *Config) gemini(log *slog.Logger) (*gemini.Client, error) {
	options := []gemini.Option{
		gemini.WithToken(c.Gemini.APIKey),
		gemini.WithLogger(log),
	}
	if c.Gemini.Model != "" {
		options = append(options, gemini.WithModel(c.Gemini.Model))
	}
	return gemini.New(options...)
}

func (c *Config) docai(log *slog.Logger) (*docai.Client, error) {
	return docai.New(docai.Config{
		ProjectID:       c.DocAI.ProjectID,
		Location:        c.DocAI.Location,
		ProcessorID:     c.DocAI.ProcessorID,
		CredentialsFile: c.DocAI.CredentialsFile,
	}, log)
}
