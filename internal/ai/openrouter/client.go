// Package openrouter implements ai.Client against an OpenRouter-compatible API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"photoshoot-backend/internal/ai"
	"photoshoot-backend/internal/shared/metrics"
	"photoshoot-backend/internal/shared/telemetry"
)

const (
	describeInstruction = "Analyze this product image and describe it in detail for photoshoot generation."
	maxResponseBytes    = 32 << 20
)

// Config carries provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	PromptModel string
	ImageModel  string
	SiteURL     string
	Timeout     time.Duration
	Concurrency int
	// Base is the transport under the bearer-token layer; nil uses http.DefaultTransport.
	Base http.RoundTripper
}

// Client calls the chat-completions and image-generation endpoints.
type Client struct {
	baseURL     string
	promptModel string
	imageModel  string
	siteURL     string
	timeout     time.Duration
	concurrency int
	httpClient  *http.Client
}

// NewClient validates cfg and builds a client whose requests carry the API key
// as a bearer token.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if strings.TrimSpace(cfg.PromptModel) == "" || strings.TrimSpace(cfg.ImageModel) == "" {
		return nil, fmt.Errorf("PROMPT_MODEL and IMAGE_MODEL are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	return &Client{
		baseURL:     baseURL,
		promptModel: cfg.PromptModel,
		imageModel:  cfg.ImageModel,
		siteURL:     cfg.SiteURL,
		timeout:     timeout,
		concurrency: concurrency,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: cfg.Base},
		},
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type imageRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	N           int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// DescribeImage asks the prompt model for a product description. Any failure
// returns ai.DescribeFallback.
func (c *Client) DescribeImage(ctx context.Context, image []byte) string {
	start := time.Now()
	text, err := c.describe(ctx, image)
	if err != nil {
		telemetry.Warn("ai.describe_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"model":       c.promptModel,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		metrics.IncAIFallback("describe")
		return ai.DescribeFallback
	}
	telemetry.Info("ai.describe_ok", map[string]any{
		"request_id":  telemetry.RequestIDFrom(ctx),
		"model":       c.promptModel,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return text
}

func (c *Client) describe(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	dataURL := "data:" + mimetype.Detect(image).String() + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := chatRequest{
		Model: c.promptModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: describeInstruction},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	}
	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response missing choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("response empty content")
	}
	return content, nil
}

// SynthesizeImages issues count independent single-image requests, at most
// Concurrency at a time. Results keep request order; failed requests are
// omitted, so the result holds between 0 and count references.
func (c *Client) SynthesizeImages(ctx context.Context, prompt, aspectRatio string, count int) []string {
	if count <= 0 {
		return nil
	}
	slots := make([]string, count)
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			ref, err := c.synthesizeOne(ctx, prompt, aspectRatio)
			if err != nil {
				telemetry.Warn("ai.synthesize_failed", map[string]any{
					"request_id": telemetry.RequestIDFrom(ctx),
					"model":      c.imageModel,
					"index":      i,
					"error":      err.Error(),
				})
				metrics.IncAIFallback("synthesize")
				return nil
			}
			slots[i] = ref
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, count)
	for _, ref := range slots {
		if ref != "" {
			out = append(out, ref)
		}
	}
	metrics.AddImagesSynthesized(len(out))
	return out
}

func (c *Client) synthesizeOne(ctx context.Context, prompt, aspectRatio string) (string, error) {
	req := imageRequest{
		Model:       c.imageModel,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		N:           1,
	}
	var resp imageResponse
	if err := c.post(ctx, "/images/generations", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("response missing data")
	}
	switch first := resp.Data[0]; {
	case first.URL != "":
		return first.URL, nil
	case first.B64JSON != "":
		return "data:image/png;base64," + first.B64JSON, nil
	default:
		return "", errors.New("response missing image reference")
	}
}

// post sends one JSON request bounded by the per-call timeout.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("response parse: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var _ ai.Client = (*Client)(nil)
