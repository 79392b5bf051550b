// Package ingress calls durable handlers through the control plane's ingress.
package ingress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/internal/logging"
)

const maxErrorBody = 64 << 10

// CallError is a non-2xx answer from the ingress.
type CallError struct {
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("ingress call failed: status %d: %s", e.Status, e.Message)
}

// Client sends invocations to the ingress.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// Connect creates a client for the ingress at baseURL.
func Connect(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ingress url: %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the ingress base URL.
func (c *Client) URL() string {
	return c.baseURL
}

type sendResponse struct {
	InvocationID string `json:"invocationId"`
}

// Call invokes service/handler and waits for the result, decoding it into out
// unless out is nil.
func (c *Client) Call(ctx context.Context, service, handler string, in, out any) error {
	return c.do(ctx, c.path(service, "", handler, false), in, out)
}

// CallKeyed invokes a handler of the object or workflow identified by key.
func (c *Client) CallKeyed(ctx context.Context, service, key, handler string, in, out any) error {
	return c.do(ctx, c.path(service, key, handler, false), in, out)
}

// Send enqueues service/handler without waiting and returns the invocation id.
func (c *Client) Send(ctx context.Context, service, handler string, in any) (string, error) {
	var resp sendResponse
	if err := c.do(ctx, c.path(service, "", handler, true), in, &resp); err != nil {
		return "", err
	}
	return resp.InvocationID, nil
}

// SendKeyed is Send for an object or workflow key.
func (c *Client) SendKeyed(ctx context.Context, service, key, handler string, in any) (string, error) {
	var resp sendResponse
	if err := c.do(ctx, c.path(service, key, handler, true), in, &resp); err != nil {
		return "", err
	}
	return resp.InvocationID, nil
}

func (c *Client) path(service, key, handler string, send bool) string {
	parts := []string{c.baseURL, url.PathEscape(service)}
	if key != "" {
		parts = append(parts, url.PathEscape(key))
	}
	parts = append(parts, url.PathEscape(handler))
	if send {
		parts = append(parts, "send")
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, target string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := jsoncodec.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ingress request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Ingress call rejected", "url", target, "status", resp.StatusCode)
		return &CallError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := jsoncodec.Decode(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
