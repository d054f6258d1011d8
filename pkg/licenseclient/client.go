// Package licenseclient is the embeddable SDK side of the entitlement
// protocol: activation, validation, an offline cache for network outages, and
// a bounded reconciler that re-checks entitlement at startup.
package licenseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	headerAppKey    = "x-app-key"
	headerAppSecret = "x-app-secret"

	activatePath = "/api/v1/licenses/activate"
	validatePath = "/api/v1/licenses/validate"

	defaultTimeout = 10 * time.Second
)

// ErrUnauthorized covers rejected application credentials or an expired
// bearer token. It is terminal; retrying does not help.
var ErrUnauthorized = errors.New("licenseclient: unauthorized")

// TransportError wraps network and server-side failures. These are the cases
// where the offline cache is consulted.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("licenseclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the network or a 5xx, as
// opposed to a definitive protocol answer.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Config configures a Client. AppKey and AppSecret identify the embedding
// application; the per-user bearer token is supplied per call.
type Config struct {
	BaseURL    string
	AppKey     string
	AppSecret  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client talks to the entitlement server.
type Client struct {
	baseURL   string
	appKey    string
	appSecret string
	http      *http.Client
}

// New builds a Client from the given config.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("licenseclient: base URL required")
	}
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, errors.New("licenseclient: application credentials required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   baseURL,
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		http:      httpClient,
	}, nil
}

// ActivationResponse mirrors the server's flat activation reply.
type ActivationResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// LicenseInfo is the license portion of a validation reply.
type LicenseInfo struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	DurationDays int    `json:"durationDays"`
}

// ApplicationInfo is the application portion of a validation reply.
type ApplicationInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ValidationResponse mirrors the server's flat validation reply.
type ValidationResponse struct {
	IsValid       bool             `json:"isValid"`
	Message       string           `json:"message,omitempty"`
	Error         string           `json:"error,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
	DaysRemaining int              `json:"daysRemaining,omitempty"`
	License       *LicenseInfo     `json:"license,omitempty"`
	Application   *ApplicationInfo `json:"application,omitempty"`
}

// Activate binds a license key to the bearer's account. A 400 carries a
// definitive refusal (bad key, cap reached) and is returned as a response,
// not an error.
func (c *Client) Activate(ctx context.Context, accessToken, licenseKey string) (*ActivationResponse, error) {
	body, err := json.Marshal(map[string]string{"licenseKey": licenseKey})
	if err != nil {
		return nil, fmt.Errorf("licenseclient: encode request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, activatePath, accessToken, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, &TransportError{Op: "activate", Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	var out ActivationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: "activate", Err: err}
	}
	return &out, nil
}

// Validate asks the server for the bearer's current entitlement.
func (c *Client) Validate(ctx context.Context, accessToken string) (*ValidationResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, validatePath, accessToken, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, &TransportError{Op: "validate", Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	var out ValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: "validate", Err: err}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body []byte) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("licenseclient: build request: %w", err)
	}
	req.Header.Set(headerAppKey, c.appKey)
	req.Header.Set(headerAppSecret, c.appSecret)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}
