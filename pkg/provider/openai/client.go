// Package openai structures OCR text into named fields using an OpenAI
// chat model with JSON output mode.
package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/medintake/formpipe/pkg/provider"
)

var _ provider.Parser = &Client{}

const defaultModel = "gpt-4o-mini"

type Config struct {
	url string

	token string
	model string

	client *http.Client
	log    *slog.Logger
}

type Option func(*Config)

func WithClient(client *http.Client) Option {
	return func(c *Config) {
		c.client = client
	}
}

func WithToken(token string) Option {
	return func(c *Config) {
		c.token = token
	}
}

func WithURL(url string) Option {
	return func(c *Config) {
		c.url = url
	}
}

func WithModel(model string) Option {
	return func(c *Config) {
		c.model = model
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Config) {
		c.log = log
	}
}

func (c *Config) options() []option.RequestOption {
	if c.url == "" {
		c.url = "https://api.openai.com/v1/"
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	c.url = strings.TrimRight(c.url, "/") + "/"

	options := []option.RequestOption{
		option.WithBaseURL(c.url),
		option.WithHTTPClient(c.client),
	}
	if c.token != "" {
		options = append(options, option.WithAPIKey(c.token))
	}
	return options
}

type Client struct {
	completions openai.ChatCompletionService

	model string
	log   *slog.Logger
}

func New(options ...Option) (*Client, error) {
	cfg := &Config{
		model: defaultModel,
	}

	for _, option := range options {
		option(cfg)
	}

	if cfg.log == nil {
		cfg.log = slog.Default()
	}

	return &Client{
		completions: openai.NewChatCompletionService(cfg.options()...),

		model: cfg.model,
		log:   cfg.log,
	}, nil
}

func (c *Client) Name() string {
	return provider.ProviderOpenAI
}

// ParseToJSON structures OCR text into named fields. Per-field confidences
// come from the model's reserved _field_confidences entry; when the model
// omits them, the overall confidence falls back to a completeness estimate.
func (c *Client) ParseToJSON(ctx context.Context, text string, hints []string) (*provider.ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &provider.Error{Provider: c.Name(), Message: "no text provided"}
	}

	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(provider.ExtractionSystemPrompt),
			openai.UserMessage(provider.ExtractionPrompt(text, hints)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.1),
	}

	completion, err := c.completions.New(ctx, req)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "completion failed", Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "empty completion response"}
	}

	content := provider.CleanJSON(completion.Choices[0].Message.Content)

	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "invalid JSON response", Err: err}
	}

	confidences := provider.PopFieldConfidences(fields)

	overall := provider.EstimateDataConfidence(fields)
	if len(confidences) > 0 {
		var sum float64
		for _, conf := range confidences {
			sum += conf
		}
		overall = sum / float64(len(confidences))
	}

	c.log.Info("parsed fields from text", "fields", len(fields), "model", c.model)

	return &provider.ParseResult{
		Fields:      fields,
		Confidences: confidences,
		Confidence:  provider.ClampConfidence(overall),
		Model:       c.model,
	}, nil
}
