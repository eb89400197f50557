package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultMaxRetries = 3
	defaultMaxTokens  = 8192
	errorBodyLimit    = 200
)

// ErrEmptyResponse is returned for a 200 with no usable candidate.
var ErrEmptyResponse = errors.New("empty response content")

// ErrRetriesExhausted wraps the last transient failure once every attempt
// has been used.
var ErrRetriesExhausted = errors.New("completion retries exhausted")

// HTTPError is a non-200 response from the completion endpoint.
type HTTPError struct {
	StatusCode int
	Body       string // first 200 characters of the response body
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini api error %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is a rate limit or server failure.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxRetries  int
	temperature float64
	maxTokens   int
	client      *http.Client
	backoff     func(attempt int) time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

func WithMaxOutputTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithBackoff replaces the wait between attempts. Tests use it to avoid sleeping.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       model,
		baseURL:     defaultBaseURL,
		maxRetries:  defaultMaxRetries,
		temperature: 0.2,
		maxTokens:   defaultMaxTokens,
		client:      &http.Client{Timeout: 120 * time.Second},
		backoff:     exponentialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// exponentialBackoff waits 2^(attempt+1) seconds plus up to one second of jitter.
func exponentialBackoff(attempt int) time.Duration {
	base := time.Duration(1<<(attempt+1)) * time.Second
	return base + time.Duration(rand.Int64N(int64(time.Second)))
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type request struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Complete sends a JSON-mode generation request and returns the first text
// part of the first candidate. Rate limits and 5xx responses are retried with
// exponential backoff; any other non-200 status fails immediately.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(c.buildRequest(system, user))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		text, retry, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retry {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == c.maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxRetries, lastErr)
}

func (c *Client) buildRequest(system, user string) request {
	req := request{
		Contents: []content{{Role: "user", Parts: []part{{Text: user}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
			ResponseMimeType: "application/json",
		},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	return req
}

// attempt performs one HTTP round trip. retry reports whether a failure is
// transient (transport error, 429 or 5xx).
func (c *Client) attempt(ctx context.Context, body []byte) (text string, retry bool, err error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), errorBodyLimit)}
		return "", httpErr.Retryable(), httpErr
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", false, ErrEmptyResponse
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, false, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
