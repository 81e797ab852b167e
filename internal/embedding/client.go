package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/httpclient"
)

// maxResponseBytes caps an /embed response; a 512-dim vector is ~10KB.
const maxResponseBytes = 1 << 20

// Doer sends HTTP requests. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ClientConfig describes one model hosted by a text-embeddings-inference
// compatible server.
type ClientConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Normalize  bool
}

// Client calls POST {BaseURL}/embed.
type Client struct {
	cfg  ClientConfig
	http Doer
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

// NewClient returns a client for the model in cfg.
func NewClient(cfg ClientConfig, doer Doer) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: doer}
}

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int { return c.cfg.Dimensions }

// Model returns the hosted model name.
func (c *Client) Model() string { return c.cfg.Model }

// Embed returns the embedding of text. Transport failures, overload answers
// and an open breaker are connection-kind errors.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := httpclient.NewJSONRequest(ctx, c.cfg.BaseURL+"/embed", embedRequest{
		Inputs:    []string{text},
		Normalize: c.cfg.Normalize,
		Truncate:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", c.cfg.Model, err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, c.service())
	}

	var vectors [][]float32
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("embed %s: decode response: %w", c.cfg.Model, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed %s: expected 1 vector, got %d", c.cfg.Model, len(vectors))
	}
	if c.cfg.Dimensions > 0 && len(vectors[0]) != c.cfg.Dimensions {
		return nil, fmt.Errorf("embed %s: expected %d dimensions, got %d", c.cfg.Model, c.cfg.Dimensions, len(vectors[0]))
	}
	return vectors[0], nil
}

func (c *Client) service() string {
	return "embedding " + c.cfg.Model
}

func (c *Client) classify(ctx context.Context, err error) error {
	var se *httpclient.StatusError
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("embed %s: %w", c.cfg.Model, ctx.Err())
	case httpclient.IsRejected(err):
		return apperrors.Unavailable(c.service(), "circuit breaker open")
	case errors.As(err, &se):
		return httpclient.Classify(se, c.service())
	default:
		return apperrors.Unavailable(c.service(), err.Error())
	}
}
