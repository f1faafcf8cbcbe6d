package mistral

// ChatRequest is the request body for /chat/completions.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

// ChatMessage carries either a plain string or multimodal content parts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ResponseFormat selects structured output from the chat API.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse is the response body for /chat/completions.
type ChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OCRRequest is the request body for the dedicated /ocr endpoint.
type OCRRequest struct {
	Model                    string      `json:"model"`
	Document                 OCRDocument `json:"document"`
	DocumentAnnotationFormat any         `json:"document_annotation_format,omitempty"`
	IncludeImageBase64       bool        `json:"include_image_base64"`
}

// OCRDocument references the document to process as a data URL.
type OCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// OCRResponse is the response body for the /ocr endpoint.
type OCRResponse struct {
	Model              string    `json:"model"`
	Pages              []OCRPage `json:"pages"`
	DocumentAnnotation string    `json:"document_annotation"`
}

// OCRPage is one page of an OCR response.
type OCRPage struct {
	Index      int         `json:"index"`
	Markdown   string      `json:"markdown"`
	Dimensions *Dimensions `json:"dimensions"`
}

// Dimensions are a page's pixel dimensions.
type Dimensions struct {
	DPI    int `json:"dpi"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// annotationFormat is the structured-output schema the OCR endpoint fills
// per document: every form field with its value and position.
var annotationFormat = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "form_extraction_result",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fields": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"field_name":  map[string]any{"type": "string", "description": "Name of the form field in snake_case"},
							"field_value": map[string]any{"type": "string", "description": "The handwritten or filled value"},
							"x_percent":   map[string]any{"type": "number", "description": "X position as percentage 0-100 from left"},
							"y_percent":   map[string]any{"type": "number", "description": "Y position as percentage 0-100 from top"},
							"page_number": map[string]any{"type": "integer", "description": "Page number starting from 0"},
						},
						"required": []string{"field_name", "field_value", "x_percent", "y_percent", "page_number"},
					},
				},
			},
			"required": []string{"fields"},
		},
	},
}

// annotation is the decoded document_annotation payload.
type annotation struct {
	Fields []annotationField `json:"fields"`
}

type annotationField struct {
	FieldName  string  `json:"field_name"`
	FieldValue string  `json:"field_value"`
	XPercent   float64 `json:"x_percent"`
	YPercent   float64 `json:"y_percent"`
	PageNumber int     `json:"page_number"`
}
