// Package docai provides OCR and position-aware field extraction backed by
// Google Document AI form parser processors.
package docai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/medintake/formpipe/pkg/pagesplit"
	"github.com/medintake/formpipe/pkg/provider"
)

var (
	_ provider.OCR               = &Client{}
	_ provider.PositionExtractor = &Client{}
	_ provider.DocumentOCR       = &Client{}
)

// baseTextConfidence seeds the text heuristic when a page reports no
// confidence of its own.
const baseTextConfidence = 0.75

// Config identifies the Document AI processor to call.
type Config struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

type Client struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return nil, errors.New("document ai requires project id, location and processor id")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log}, nil
}

func (c *Client) Name() string {
	return provider.ProviderDocAI
}

// process sends document bytes to the processor and returns the Document
// proto.
func (c *Client) process(ctx context.Context, content []byte, mimeType string) (*documentaipb.Document, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", c.cfg.Location)

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if c.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	defer client.Close()

	name := fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		c.cfg.ProjectID, c.cfg.Location, c.cfg.ProcessorID,
	)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return resp.Document, nil
}

// ExtractText extracts text page by page, degrading failed pages to marker
// text instead of failing the whole document.
func (c *Client) ExtractText(ctx context.Context, pages []pagesplit.Page) (*provider.OCRResult, error) {
	if len(pages) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no pages provided"}
	}

	texts := make([]string, 0, len(pages))
	confidences := make([]float64, 0, len(pages))

	for i, page := range pages {
		doc, err := c.process(ctx, page.Content, page.Type.MimeType())
		if err != nil {
			if ctx.Err() != nil {
				return nil, &provider.Error{Provider: c.Name(), Message: "extraction canceled", Err: ctx.Err()}
			}
			c.log.Warn("page extraction failed", "page", i+1, "error", err)
			texts = append(texts, fmt.Sprintf("[Page %d extraction failed]", i+1))
			confidences = append(confidences, 0.2)
			continue
		}

		text := doc.GetText()
		texts = append(texts, text)
		confidences = append(confidences, provider.EstimateTextConfidence(text, baseTextConfidence))
	}

	var sum float64
	for _, conf := range confidences {
		sum += conf
	}

	return &provider.OCRResult{
		Text:       strings.Join(texts, provider.PageBreak),
		Confidence: sum / float64(len(confidences)),
		Pages:      len(pages),
		Model:      c.cfg.ProcessorID,
	}, nil
}

// ExtractWithPositions runs the form parser over the document and converts
// the detected form fields with their bounding boxes to percent positions.
func (c *Client) ExtractWithPositions(ctx context.Context, content []byte, mimeType string) (*provider.PositionResult, error) {
	if len(content) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no content provided"}
	}

	doc, err := c.process(ctx, content, mimeType)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "position extraction failed", Err: err}
	}

	return &provider.PositionResult{
		Fields: positionedFields(doc),
		Model:  c.cfg.ProcessorID,
	}, nil
}

// ProcessDocument runs the form parser once and returns text, structured
// fields and positions together.
func (c *Client) ProcessDocument(ctx context.Context, content []byte, mimeType string) (*provider.DocumentResult, error) {
	if len(content) == 0 {
		return nil, &provider.Error{Provider: c.Name(), Message: "no content provided"}
	}

	doc, err := c.process(ctx, content, mimeType)
	if err != nil {
		return nil, &provider.Error{Provider: c.Name(), Message: "document processing failed", Err: err}
	}

	positioned := positionedFields(doc)

	fields := FormFields(doc)
	dims := make([]provider.PageDimension, 0, len(doc.GetPages()))
	for _, page := range doc.GetPages() {
		if dim := page.GetDimension(); dim != nil {
			dims = append(dims, provider.PageDimension{
				Width:  float64(dim.GetWidth()),
				Height: float64(dim.GetHeight()),
			})
		}
	}

	var confSum float64
	for _, f := range positioned {
		confSum += f.Confidence
	}
	confidence := provider.EstimateTextConfidence(doc.GetText(), baseTextConfidence)
	if len(positioned) > 0 {
		confidence = confSum / float64(len(positioned))
	}

	return &provider.DocumentResult{
		Text:       doc.GetText(),
		Fields:     fields,
		Positioned: positioned,
		Confidence: provider.ClampConfidence(confidence),
		PageCount:  len(doc.GetPages()),
		Dimensions: dims,
		Model:      c.cfg.ProcessorID,
	}, nil
}
