package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNetwork is matched by every *NetworkError.
var ErrNetwork = errors.New("network error")

// NetworkError describes a failed request or a non-success response.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Cause      error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrNetwork) true for every NetworkError.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Getter is the network collaborator: it downloads or streams a URL.
type Getter interface {
	// Get downloads the whole body of url.
	Get(ctx context.Context, url string) ([]byte, error)

	// Open starts a streaming download of url. The caller closes the body.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout   time.Duration // Per request, 0 for none
	UserAgent string
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   60 * time.Second,
		UserAgent: "nafaa",
	}
}

// Client implements Getter over net/http.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

// NewClient creates a client. A nil httpClient uses a fresh http.Client.
func NewClient(httpClient *http.Client, cfg ClientConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:      httpClient,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Get downloads the whole body of url. A non-2xx status is a *NetworkError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := c.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: fmt.Errorf("unable to read body: %w", err)}
	}
	return data, nil
}

// Open starts a streaming download of url. The timeout does not apply since
// playback streams may outlive it; cancel ctx to abort.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return c.open(ctx, url)
}

func (c *Client) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close() //nolint:errcheck
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
