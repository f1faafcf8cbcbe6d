// Package gemini provides OCR and structured parsing backed by Google's
// Gemini models.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

var (
	_ provider.OCR    = &Client{}
	_ provider.Parser = &Client{}
)

// baseTextConfidence seeds the text heuristic for Gemini OCR output.
const baseTextConfidence = 0.75

const defaultModel = "gemini-2.0-flash"

type Config struct {
	token string
	model string

	client *http.Client
	log    *slog.Logger

	pageTimeout time.Duration
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

// WithPageTimeout overrides the per-page extraction deadline.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.pageTimeout = d
	}
}

type Client struct {
	*Config
}

func New(options ...Option) (*Client, error) {
	cfg := &Config{
		model:       defaultModel,
		pageTimeout: 60 * time.Second,
	}

	for _, option := range options {
		option(cfg)
	}

	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	if cfg.token == "" {
		return nil, errors.New("gemini api key is required")
	}

	return &Client{Config: cfg}, nil
}

func (c *Client) newClient(ctx context.Context) (*genai.Client, error) {
	config := &genai.ClientConfig{
		APIKey:  c.token,
		Backend: genai.BackendGeminiAPI,

		HTTPClient: c.client,
	}

	return genai.NewClient(ctx, config)
}

func (c *Client) Name() string {
	return provider.ProviderGemini
}

// ExtractText extracts text page by page, degrading failed or timed-out
// pages to marker text instead of failing the whole document.
func (c *Client) ExtractText(ctx context.Context, pages []pagesplit.Page) (*provider.OCRResult, error) {
	if len(pages) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no pages provided"}
	}

	client, err := c.newClient(ctx)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "client init failed", Err: err}
	}

	texts := make([]string, 0, len(pages))
	confidences := make([]float64, 0, len(pages))

	for i, page := range pages {
		text, conf, err := c.extractPage(ctx, client, page)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.log.Warn("page timed out", "page", i+1, "timeout", c.pageTimeout)
			text, conf = fmt.Sprintf("[Page %d timed out]", i+1), 0.1
		case err != nil:
			if ctx.Err() != nil {
				return nil, &provider.Error{Provider: c.Name(), Message: "extraction canceled", Err: ctx.Err()}
			}
			c.log.Warn("page extraction failed", "page", i+1, "error", err)
			text, conf = fmt.Sprintf("[Page %d extraction failed]", i+1), 0.2
		}
		texts = append(texts, text)
		confidences = append(confidences, conf)
	}

	var sum float64
	for _, conf := range confidences {
		sum += conf
	}

	return &provider.OCRResult{
		Text:       strings.Join(texts, provider.PageBreak),
		Confidence: sum / float64(len(confidences)),
		Pages:      len(pages),
		Model:      c.model,
	}, nil
}

func (c *Client) extractPage(ctx context.Context, client *genai.Client, page pagesplit.Page) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	parts := []*genai.Part{
		{
			InlineData: &genai.Blob{
				MIMEType: page.Type.MimeType(),
				Data:     page.Content,
			},
		},
		genai.NewPartFromText("Extract all text from this document. " +
			"Include all handwritten and printed text. " +
			"Preserve the document structure and formatting. " +
			"Return only the extracted text, no commentary."),
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", 0, err
	}

	text := responseText(resp)
	return text, provider.EstimateTextConfidence(text, baseTextConfidence), nil
}

// ParseToJSON structures OCR text into named fields using JSON output mode.
func (c *Client) ParseToJSON(ctx context.Context, text string, hints []string) (*provider.ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &provider.Error{Provider: c.Name(), Message: "no text provided"}
	}

	client, err := c.newClient(ctx)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "client init failed", Err: err}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(provider.ExtractionPrompt(text, hints)),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(provider.ExtractionSystemPrompt),
		}, genai.RoleUser),

		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "generation failed", Err: err}
	}

	content := provider.CleanJSON(responseText(resp))

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

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
