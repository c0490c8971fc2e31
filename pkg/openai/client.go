// Package openai is a minimal client for the OpenAI embeddings and responses
// APIs, covering exactly what the handbook pipeline needs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel = "text-embedding-3-small"

	// defaultTemperature is sent only to models that accept the parameter;
	// newer reasoning models hard-fail requests carrying it.
	defaultTemperature = 0.2
)

// Client performs embedding and text generation calls against the OpenAI API.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithEmbedModel overrides the default embedding model.
func WithEmbedModel(model string) Option {
	return func(c *httpClient) {
		c.embedModel = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithGenerateTimeout overrides the per-call generation budget.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.genTimeout = d
	}
}

// WithLimiter overrides the outbound request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	embedModel string
	genTimeout time.Duration
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an OpenAI API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		embedModel: defaultEmbedModel,
		genTimeout: 20 * time.Second,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *httpClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := c.post(ctx, "/embeddings", embedRequest{Model: c.embedModel, Input: text}, &resp)
	if err != nil {
		return nil, eris.Wrap(err, "openai: embed")
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}

type generateRequest struct {
	Model           string   `json:"model"`
	Input           string   `json:"input"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// supportsTemperature reports whether a model accepts the temperature
// parameter. Encoded as an allow-list because sending the parameter to a
// model that rejects it fails the whole call.
func supportsTemperature(model string) bool {
	return strings.Contains(model, "gpt-4") || strings.Contains(model, "mini")
}

// Generate asks the named model to complete prompt, bounded by maxTokens and
// the client-side generation timeout.
func (c *httpClient) Generate(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	req := generateRequest{Model: model, Input: prompt, MaxOutputTokens: maxTokens}
	if supportsTemperature(model) {
		temp := defaultTemperature
		req.Temperature = &temp
	}

	var resp generateResponse
	if err := c.post(ctx, "/responses", req, &resp); err != nil {
		return "", eris.Wrapf(err, "openai: generate with %s", model)
	}
	return extractText(resp), nil
}

// extractText pulls answer text out of a responses API payload: the direct
// output_text field when present, otherwise the concatenated content blocks.
func extractText(resp generateResponse) string {
	if direct := strings.TrimSpace(resp.OutputText); direct != "" {
		return direct
	}
	var pieces []string
	for _, item := range resp.Output {
		for _, content := range item.Content {
			if content.Text != "" {
				pieces = append(pieces, content.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(pieces, "\n"))
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limit wait")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return eris.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
