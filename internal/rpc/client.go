// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/palaverhq/palaver-tui/internal/commands"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the default timeout for gateway requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// transient errors.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay is the maximum delay for exponential backoff.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 1 * 1024 * 1024 // 1MB limit

	// defaultCallsPerSecond bounds outgoing gateway calls. Command dispatch
	// is user-driven, so this only matters when input repeats pathologically.
	defaultCallsPerSecond = 5

	userAgent = "palaver/0.3.0"
)

// PERFORMANCE: Shared HTTP client with connection pooling for all gateway
// requests. SECURITY: TLS verification required, TLS 1.2 minimum.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: false,
		},
	},
	Timeout: DefaultTimeout,
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the gateway URL or token is not set.
	ErrNotConfigured = errors.New("gateway not configured")

	// ErrAuthFailed indicates the gateway rejected the auth token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the gateway returned 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrResponseTooLarge indicates the response body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// GatewayError represents an error response from the gateway.
type GatewayError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// callRequest is the envelope for a session method call.
type callRequest struct {
	SessionID string            `json:"sessionId"`
	Method    string            `json:"method"`
	Params    map[string]string `json:"params,omitempty"`
}

// callResponse is the envelope for a session method call result.
type callResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// sendRequest is the envelope for the message-send path.
type sendRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// apiErrorResponse represents a structured error body from the gateway.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the palaver session gateway. It implements
// commands.Caller; its SendMessage method backs the commands.Sender path.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
}

// NewClient creates a gateway client for the given base URL and auth token.
// An empty URL or token produces a client whose calls fail with
// ErrNotConfigured.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: sharedHTTPClient,
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(defaultCallsPerSecond), defaultCallsPerSecond),
	}
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	// Copy the shared client so the pool's transport is reused but the
	// timeout applies only here.
	hc := *c.httpClient
	hc.Timeout = timeout
	c.httpClient = &hc
	return c
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	c.maxRetries = maxRetries
	return c
}

// WithRateLimit sets the outgoing call rate limit in calls per second.
func (c *Client) WithRateLimit(callsPerSecond float64) *Client {
	burst := int(callsPerSecond)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
	return c
}

// WithHTTPClient sets a custom HTTP client (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// IsConfigured reports whether the client has a gateway URL and token.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

// Call invokes a method on the given remote session and returns the
// interpreted result. Transient failures (5xx, rate limiting) are retried
// with exponential backoff; everything else returns on the first attempt.
func (c *Client) Call(ctx context.Context, sessionID, method string, params map[string]string) (commands.CallResult, error) {
	if !c.IsConfigured() {
		return commands.CallResult{}, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return commands.CallResult{}, err
	}

	body, err := json.Marshal(callRequest{SessionID: sessionID, Method: method, Params: params})
	if err != nil {
		return commands.CallResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.doWithRetry(ctx, c.baseURL+"/v1/sessions/call", body)
	if err != nil {
		return commands.CallResult{}, err
	}

	var out callResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return commands.CallResult{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return commands.CallResult{OK: out.OK, Message: out.Message}, nil
}

// SendMessage forwards text through the ordinary message-send path of the
// given session.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(sendRequest{SessionID: sessionID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = c.doWithRetry(ctx, c.baseURL+"/v1/sessions/send", body)
	return err
}

// Ping checks gateway reachability. Used at startup and by the session
// manager's liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return &GatewayError{Message: "ping failed", Status: resp.StatusCode}
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// doWithRetry posts the body and returns the response payload, retrying
// transient failures with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		respBody, err := c.doRequest(ctx, url, body)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return respBody, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return nil, errors.New("max retries exceeded")
}

// doRequest performs a single POST and returns the size-capped body.
// SECURITY: Clears the Authorization header after the request.
func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// setHeaders sets the required headers for gateway requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		gwErr := &GatewayError{
			Code:    apiErr.Error.Code,
			Message: apiErr.Error.Message,
			Status:  statusCode,
		}
		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, gwErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrSessionNotFound, gwErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, gwErr.Message)
		default:
			return gwErr
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrSessionNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &GatewayError{Message: string(body), Status: statusCode}
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Status >= 500 && gwErr.Status < 600
	}
	return false
}

// calculateBackoff returns the delay before the next retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}
