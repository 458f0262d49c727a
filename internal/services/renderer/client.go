// Package renderer provides a client for the Creatomate video rendering API.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
)

const (
	// DefaultBaseURL is the base URL for the Creatomate API.
	DefaultBaseURL = "https://api.creatomate.com/v1"

	// DefaultTimeout is the default HTTP timeout for API calls.
	DefaultTimeout = 30 * time.Second

	// DefaultDownloadTimeout is the timeout for artifact downloads, which
	// are full video files.
	DefaultDownloadTimeout = 2 * time.Minute

	// DefaultRateLimit is the default submission rate (requests per second).
	// Creatomate allows roughly 30 requests per 10 seconds.
	DefaultRateLimit = 3
)

// ErrRateLimited signals the provider rejected a request for throttling
// reasons. The dispatcher stops the current invocation when it sees this.
var ErrRateLimited = errors.New("renderer rate limit exceeded")

// Client is a Creatomate API client.
type Client struct {
	baseURL        string
	apiKey         string
	webhookURL     string
	httpClient     *http.Client
	downloadClient *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithWebhookURL sets the callback URL passed on every render submission.
func WithWebhookURL(webhookURL string) ClientOption {
	return func(c *Client) {
		c.webhookURL = webhookURL
	}
}

// WithHTTPClient sets a custom HTTP client for API calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithDownloadClient sets a custom HTTP client for artifact downloads.
func WithDownloadClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.downloadClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom submission rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new Creatomate API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		downloadClient: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the Creatomate API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("creatomate API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// renderResource mirrors the provider's render object
type renderResource struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	URL          string  `json:"url"`
	ErrorMessage string  `json:"error_message"`
	Duration     float64 `json:"duration"`
}

// Submit requests an async render. Creatomate answers 202 Accepted with an
// array containing one render per requested output.
func (c *Client) Submit(ctx context.Context, templateID string, modifications map[string]string) (*interfaces.RenderSubmission, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	payload := map[string]interface{}{
		"template_id":   templateID,
		"modifications": modifications,
	}
	if c.webhookURL != "" {
		payload["webhook_url"] = c.webhookURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/renders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if c.logger != nil {
		c.logger.Debug().Str("template_id", templateID).Msg("Creatomate render submission")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   "/renders",
		}
	}

	var renders []renderResource
	if err := json.NewDecoder(resp.Body).Decode(&renders); err != nil {
		return nil, fmt.Errorf("failed to decode render response: %w", err)
	}
	if len(renders) == 0 {
		return nil, fmt.Errorf("creatomate returned an empty render list")
	}

	return &interfaces.RenderSubmission{
		RenderID: renders[0].ID,
		Status:   renders[0].Status,
	}, nil
}

// GetStatus polls a render by its provider identifier.
func (c *Client) GetStatus(ctx context.Context, renderID string) (*interfaces.RenderStatus, error) {
	endpoint := "/renders/" + renderID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   endpoint,
		}
	}

	var render renderResource
	if err := json.NewDecoder(resp.Body).Decode(&render); err != nil {
		return nil, fmt.Errorf("failed to decode render status: %w", err)
	}

	return &interfaces.RenderStatus{
		Status: render.Status,
		URL:    render.URL,
		Error:  render.ErrorMessage,
	}, nil
}

// Download fetches the finished artifact from the provider CDN.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact body: %w", err)
	}
	return data, nil
}
