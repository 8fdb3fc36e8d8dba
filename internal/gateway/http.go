package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mutirao/castracao-backend/pkg/config"
)

const (
	defaultTimeout        = 15 * time.Second
	responseBodyReadLimit = 1024
	defaultSendsPerSecond = 1.0
	messagesPath          = "/messages"
)

var errBaseURLRequired = errors.New("gateway base url is required")

// HTTPClient posts messages to the provider REST API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithTimeout bounds every send.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLimiter replaces the process-wide send pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *HTTPClient) {
		if l != nil {
			c.limiter = l
		}
	}
}

func NewHTTPClient(cfg config.GatewayConfig, opts ...Option) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	perSecond := cfg.MaxPerSecond
	if perSecond <= 0 {
		perSecond = defaultSendsPerSecond
	}
	client := &HTTPClient{
		httpClient: &http.Client{},
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		timeout:    defaultTimeout,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendRequest struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	Reference string `json:"reference"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers one message within the configured timeout.
func (c *HTTPClient) Send(ctx context.Context, msg Outbound) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return failure(0, false, fmt.Errorf("waiting for send slot: %w", err))
	}

	payload, err := json.Marshal(sendRequest{To: msg.Recipient, Body: msg.Body, Reference: msg.ID.String()})
	if err != nil {
		return failure(0, true, fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(payload))
	if err != nil {
		return failure(0, true, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.ID.String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(0, false, fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return failure(resp.StatusCode, isPermanentStatus(resp.StatusCode),
			fmt.Errorf("provider responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&decoded); err != nil && !errors.Is(err, io.EOF) {
		// Accepted by the provider; a malformed receipt must not trigger a resend.
		return Result{OK: true}
	}
	return Result{OK: true, ProviderID: decoded.ID}
}

func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
