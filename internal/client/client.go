// Package client talks to the Elite Track access API.
package client

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

	"github.com/erickerk/elitetrack/internal/api"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/middleware"
	"golang.org/x/mod/semver"
)

const (
	// MaxResponseSize caps how much of a response body is read
	MaxResponseSize int64 = 1 << 20

	// DefaultTimeout bounds one HTTP exchange
	DefaultTimeout = 10 * time.Second

	maxAttempts = 3
)

var (
	// ErrResponseTooLarge is returned when a response exceeds MaxResponseSize
	ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")

	// ErrIncompatibleVersion is returned when the server requires a newer client
	ErrIncompatibleVersion = errors.New("client version is not supported by the server")
)

// HealthResponse represents the server health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	MinClientVersion string `json:"min_client_version"`
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode        int
	Message           string
	Reason            string
	RetryAfterMinutes int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the response to the matching auth error so callers can use
// errors.Is(err, auth.ErrSessionExpired) and friends
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		switch e.Reason {
		case "expired":
			return auth.ErrSessionExpired
		case "device_mismatch":
			return auth.ErrDeviceMismatch
		case "no_session", "invalid_token":
			return auth.ErrNoSession
		}
	}
	switch e.Reason {
	case api.ReasonRateLimited:
		return &auth.RateLimitedError{RemainingMinutes: e.RetryAfterMinutes}
	case api.ReasonInvalidCredentials:
		return auth.ErrInvalidCredentials
	case api.ReasonRegistrationConflict:
		return auth.ErrRegistrationConflict
	case api.ReasonStoreUnavailable:
		return auth.ErrStoreUnavailable
	case middleware.ReasonPasswordChangeRequired:
		return auth.ErrPasswordChangeRequired
	case invite.ResultNotFound.String():
		return auth.ErrNotFound
	case invite.ResultAlreadyUsed.String():
		return auth.ErrAlreadyUsed
	case invite.ResultRevoked.String():
		return auth.ErrRevoked
	case invite.ResultExpired.String():
		return auth.ErrExpired
	}
	return nil
}

// Client handles communication with the Elite Track server
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retryDelay: 500 * time.Millisecond,
	}
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks if the server is healthy
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.call(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// CheckCompatibility fails with ErrIncompatibleVersion when the server's
// min_client_version is newer than clientVersion. Non-semver versions such
// as development builds are not checked.
func (c *Client) CheckCompatibility(ctx context.Context, clientVersion string) error {
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	return compatible(clientVersion, health.MinClientVersion)
}

func compatible(clientVersion, minVersion string) error {
	cv, mv := canonical(clientVersion), canonical(minVersion)
	if !semver.IsValid(cv) || !semver.IsValid(mv) {
		return nil
	}
	if semver.Compare(cv, mv) < 0 {
		return fmt.Errorf("%w: have %s, server requires %s or newer", ErrIncompatibleVersion, cv, mv)
	}
	return nil
}

func canonical(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// call sends in as JSON and decodes the response into out when the status
// is want. Other statuses become *APIError.
func (c *Client) call(ctx context.Context, method, path string, header http.Header, in interface{}, want int, out interface{}) error {
	var data []byte
	if in != nil {
		var err error
		data, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.retryableRequest(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readLimitedResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er api.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		apiErr.Message = er.Error
		apiErr.Reason = er.Reason
		apiErr.RetryAfterMinutes = er.RetryAfterMinutes
	}
	return apiErr
}

// retryableRequest sends req, retrying GET requests on network errors and
// 502/503/504 responses. Other methods are sent exactly once since logins,
// registrations and invite changes must not be replayed.
func (c *Client) retryableRequest(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.httpClient.Do(req)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			if attempt < maxAttempts-1 {
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				continue
			}
		}
		return resp, nil
	}
	return nil, lastErr
}

// readLimitedResponse reads at most maxSize bytes, failing with
// ErrResponseTooLarge if there is more
func readLimitedResponse(r io.Reader, maxSize int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}
