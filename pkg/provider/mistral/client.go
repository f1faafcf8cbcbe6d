// Package mistral provides OCR and position-aware field extraction backed
// by the Mistral platform: the pixtral vision model for per-page work and
// the dedicated OCR API for whole documents.
package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

var (
	_ provider.OCR               = &Client{}
	_ provider.PositionExtractor = &Client{}
	_ provider.DocumentOCR       = &Client{}
)

// baseTextConfidence seeds the text heuristic for pixtral output.
const baseTextConfidence = 0.7

type Client struct {
	client *http.Client
	log    *slog.Logger

	url   string
	token string

	ocrModel    string
	visionModel string

	pageTimeout time.Duration
}

func New(options ...Option) (*Client, error) {
	c := &Client{
		client: http.DefaultClient,

		url: "https://api.mistral.ai/v1/",

		ocrModel:    "mistral-ocr-latest",
		visionModel: "pixtral-12b-2409",

		pageTimeout: 60 * time.Second,
	}

	for _, option := range options {
		option(c)
	}

	if c.log == nil {
		c.log = slog.Default()
	}
	if c.token == "" {
		return nil, errors.New("mistral api key is required")
	}

	return c, nil
}

func (c *Client) Name() string {
	return provider.ProviderMistral
}

// ExtractText extracts text page by page. Each page gets its own deadline;
// a page that times out or fails is replaced by a marker with a floor
// confidence, and the overall confidence is the per-page average.
func (c *Client) ExtractText(ctx context.Context, pages []pagesplit.Page) (*provider.OCRResult, error) {
	if len(pages) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no pages provided"}
	}

	texts := make([]string, 0, len(pages))
	confidences := make([]float64, 0, len(pages))

	for i, page := range pages {
		text, conf, err := c.extractPage(ctx, page)
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
		Model:      c.visionModel,
	}, nil
}

func (c *Client) extractPage(ctx context.Context, page pagesplit.Page) (string, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	// The OCR endpoint handles PDF pages natively; the vision model takes
	// image pages.
	if page.Type == pagesplit.TypePDF {
		resp, err := c.ocr(ctx, page.Content, page.Type.MimeType(), nil)
		if err != nil {
			return "", 0, err
		}
		parts := make([]string, 0, len(resp.Pages))
		for _, p := range resp.Pages {
			parts = append(parts, p.Markdown)
		}
		text := strings.Join(parts, provider.PageBreak)
		return text, provider.EstimateTextConfidence(text, baseTextConfidence), nil
	}

	req := ChatRequest{
		Model: c.visionModel,
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ContentPart{
				{Type: "image_url", ImageURL: dataURL(page.Content, page.Type.MimeType())},
				{Type: "text", Text: "Extract all text from this document image. " +
					"Include all handwritten and printed text. " +
					"Preserve the document structure and formatting. " +
					"Return only the extracted text, no commentary."},
			},
		}},
	}

	var resp ChatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, errors.New("empty completion response")
	}

	text := resp.Choices[0].Message.Content
	return text, provider.EstimateTextConfidence(text, baseTextConfidence), nil
}

// ExtractWithPositions asks the vision model for field values and their
// bounding boxes on a single page image.
func (c *Client) ExtractWithPositions(ctx context.Context, content []byte, mimeType string) (*provider.PositionResult, error) {
	if len(content) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no content provided"}
	}

	temperature := 0.1
	maxTokens := 8192
	req := ChatRequest{
		Model: c.visionModel,
		Messages: []ChatMessage{
			{Role: "system", Content: provider.PositionSystemPrompt},
			{Role: "user", Content: []ContentPart{
				{Type: "image_url", ImageURL: dataURL(content, mimeType)},
				{Type: "text", Text: provider.PositionPrompt()},
			}},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
	}

	var resp ChatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "position extraction failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "empty completion response"}
	}

	var payload struct {
		Fields []struct {
			Name     string  `json:"name"`
			Value    *string `json:"value"`
			Position struct {
				X      float64 `json:"x"`
				Y      float64 `json:"y"`
				Width  float64 `json:"width"`
				Height float64 `json:"height"`
			} `json:"position"`
			Confidence *float64 `json:"confidence"`
		} `json:"fields"`
	}
	cleaned := provider.CleanJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "invalid position response", Err: err}
	}

	fields := make([]provider.PositionedField, 0, len(payload.Fields))
	for _, f := range payload.Fields {
		name := f.Name
		if name == "" {
			name = "unknown"
		}
		field := provider.PositionedField{
			Name:          name,
			XPercent:      f.Position.X,
			YPercent:      f.Position.Y,
			WidthPercent:  f.Position.Width,
			HeightPercent: f.Position.Height,
			Confidence:    0.8,
		}
		if f.Value != nil {
			field.Value = *f.Value
		}
		if f.Confidence != nil {
			field.Confidence = provider.ClampConfidence(*f.Confidence)
		}
		if field.WidthPercent == 0 {
			field.WidthPercent = 20
		}
		if field.HeightPercent == 0 {
			field.HeightPercent = 3
		}
		fields = append(fields, field)
	}

	return &provider.PositionResult{Fields: fields, Model: c.visionModel}, nil
}

// ProcessDocument runs the dedicated OCR API over a whole document in one
// call, returning text, structured fields and positions together.
func (c *Client) ProcessDocument(ctx context.Context, content []byte, mimeType string) (*provider.DocumentResult, error) {
	if len(content) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no content provided"}
	}

	resp, err := c.ocr(ctx, content, mimeType, annotationFormat)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "document processing failed", Err: err}
	}

	texts := make([]string, 0, len(resp.Pages))
	dims := make([]provider.PageDimension, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		texts = append(texts, p.Markdown)
		if p.Dimensions != nil {
			dims = append(dims, provider.PageDimension{
				Width:  float64(p.Dimensions.Width),
				Height: float64(p.Dimensions.Height),
			})
		}
	}

	result := &provider.DocumentResult{
		Text:       strings.Join(texts, provider.PageBreak),
		Fields:     make(map[string]any),
		Confidence: 0.9,
		PageCount:  len(resp.Pages),
		Dimensions: dims,
		Model:      c.ocrModel,
	}

	if resp.DocumentAnnotation != "" {
		var ann annotation
		if err := json.Unmarshal([]byte(resp.DocumentAnnotation), &ann); err != nil {
			c.log.Warn("could not parse document annotation", "error", err)
		} else {
			for _, f := range ann.Fields {
				name := f.FieldName
				if name == "" {
					name = "unknown"
				}
				result.Positioned = append(result.Positioned, provider.PositionedField{
					Name:          name,
					Value:         f.FieldValue,
					XPercent:      f.XPercent,
					YPercent:      f.YPercent,
					WidthPercent:  20,
					HeightPercent: 3,
					Confidence:    0.9,
					Page:          f.PageNumber,
				})
				if f.FieldValue != "" {
					result.Fields[f.FieldName] = f.FieldValue
				}
			}
		}
	}

	return result, nil
}

func (c *Client) ocr(ctx context.Context, content []byte, mimeType string, annotationFormat any) (*OCRResponse, error) {
	req := OCRRequest{
		Model: c.ocrModel,
		Document: OCRDocument{
			Type:        "document_url",
			DocumentURL: dataURL(content, mimeType),
		},
		DocumentAnnotationFormat: annotationFormat,
	}

	var resp OCRResponse
	if err := c.post(ctx, "/ocr", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", strings.TrimRight(c.url, "/")+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return convertError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	if len(data) == 0 {
		return errors.New(http.StatusText(resp.StatusCode))
	}
	return errors.New(string(data))
}

func dataURL(content []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
}
