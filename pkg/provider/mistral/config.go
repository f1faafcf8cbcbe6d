package mistral

import (
	"log/slog"
	"net/http"
	"time"
)

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithOCRModel(model string) Option {
	return func(c *Client) {
		c.ocrModel = model
	}
}

func WithVisionModel(model string) Option {
	return func(c *Client) {
		c.visionModel = model
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithPageTimeout overrides the per-page extraction deadline.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.pageTimeout = d
	}
}
