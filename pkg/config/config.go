// Package config loads pipeline configuration from a YAML file with
// environment overrides, and builds the configured extraction providers.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medintake/formpipe/pkg/provider"
)

// Config selects the extraction providers and carries their credentials.
type Config struct {
	OCRProvider string `yaml:"ocr_provider"`
	LLMProvider string `yaml:"llm_provider"`

	FieldHints []string `yaml:"field_hints"`

	Mistral MistralConfig `yaml:"mistral"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	DocAI   DocAIConfig   `yaml:"google_docai"`
}

type MistralConfig struct {
	APIKey      string `yaml:"api_key"`
	OCRModel    string `yaml:"ocr_model"`
	VisionModel string `yaml:"vision_model"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type DocAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Default returns a config with the default provider selection.
func Default() *Config {
	return &Config{
		OCRProvider: provider.ProviderMistral,
		LLMProvider: provider.ProviderGemini,
	}
}

// Load reads a YAML config file and applies environment overrides. An
// empty path yields the defaults with environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.OCRProvider == "" {
		cfg.OCRProvider = provider.ProviderMistral
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = provider.ProviderGemini
	}

	return cfg, nil
}

// applyEnv lets environment variables supply or override credentials and
// provider selection.
func (c *Config) applyEnv() {
	if v := os.Getenv("FORMPIPE_OCR_PROVIDER"); v != "" {
		c.OCRProvider = v
	}
	if v := os.Getenv("FORMPIPE_LLM_PROVIDER"); v != "" {
		c.LLMProvider = v
	}
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		c.Mistral.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.DocAI.CredentialsFile == "" {
		c.DocAI.CredentialsFile = v
	}
}

// Validate checks that the selected providers have the credentials they
// need.
func (c *Config) Validate() error {
	switch c.OCRProvider {
	case provider.ProviderMistral:
		if c.Mistral.APIKey == "" {
			return fmt.Errorf("ocr provider %q requires mistral api_key", c.OCRProvider)
		}
	case provider.ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("ocr provider %q requires gemini api_key", c.OCRProvider)
		}
	case provider.ProviderDocAI:
		if c.DocAI.ProjectID == "" || c.DocAI.Location == "" || c.DocAI.ProcessorID == "" {
			return fmt.Errorf("ocr provider %q requires google_docai project_id, location and processor_id", c.OCRProvider)
		}
	default:
		return fmt.Errorf("unknown ocr provider %q", c.OCRProvider)
	}

	switch c.LLMProvider {
	case provider.ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("llm provider %q requires gemini api_key", c.LLMProvider)
		}
	case provider.ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("llm provider %q requires openai api_key", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}

	return nil
}
