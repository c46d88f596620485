package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"sayhey/internal/domain"
)

const (
	DevelopmentBaseURL = "http://127.0.0.1:5000"
	ProductionBaseURL  = "https://sayhey-chatbot.onrender.com"

	maxErrorBody    = 64 << 10
	maxResponseBody = 1 << 20
)

// ErrResponseTooLarge is returned when a success body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// HTTPStatusError captures a non-2xx reply that could not be recovered.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("chatapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Config selects the client variant.
//
// With RecoverStructuredErrors set, a non-2xx reply whose body still carries
// both "response" and "session_cancelled" is returned as a normal result.
// ExtraHeaders are sent on every request in addition to Content-Type.
type Config struct {
	RecoverStructuredErrors bool
	ExtraHeaders            map[string]string
}

// ExtendedConfig is the browser-facing variant: structured error recovery,
// an Accept header and, when origin is non-empty, an Origin header.
func ExtendedConfig(origin string) Config {
	headers := map[string]string{"Accept": "application/json"}
	if origin = strings.TrimSpace(origin); origin != "" {
		headers["Origin"] = origin
	}
	return Config{
		RecoverStructuredErrors: true,
		ExtraHeaders:            headers,
	}
}

// SimplifiedConfig fails on every non-2xx status and sends only Content-Type.
func SimplifiedConfig() Config {
	return Config{}
}

// Client performs one POST {base}/chat exchange per SendMessage call.
// It never retries and sets no timeout of its own; callers bound latency
// through the context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	trace      bool
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithTrace logs request target, payload, response status and headers at
// debug level. A nil logger falls back to slog.Default().
func WithTrace(logger *slog.Logger) Option {
	return func(c *Client) {
		c.trace = true
		c.logger = logger
	}
}

// NewClient creates a Client for the given base endpoint. The default
// configuration is the extended variant without an Origin header.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("chatapi: base URL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("chatapi: parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("chatapi: base URL %q must be an absolute http(s) URL", baseURL)
	}
	c := &Client{
		baseURL: baseURL,
		cfg:     ExtendedConfig(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint prefix the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// resolvedHTTPClient returns the configured client or a cookie-less client
// without a timeout.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{}
}

func (c *Client) resolvedLogger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func (c *Client) debug(msg string, args ...any) {
	if !c.trace {
		return
	}
	c.resolvedLogger().Debug(msg, args...)
}

func chatURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/chat"
}

// SendMessage posts the request and returns the backend reply.
//
// Non-2xx replies fail with *HTTPStatusError unless structured error recovery
// is enabled and the body matches the reply shape. Network failures are
// returned wrapped, without a status. Success bodies larger than 1 MiB are
// rejected rather than truncated.
func (c *Client) SendMessage(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: marshal request: %w", err)
	}

	target := chatURL(c.baseURL)
	c.debug("sending chat request", "url", target, "payload", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	c.debug("chat response received", "status", res.StatusCode, "headers", res.Header)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		c.debug("chat error response body", "status", res.StatusCode, "body", string(buf))
		if c.cfg.RecoverStructuredErrors {
			if out, ok := decodeStructuredError(buf); ok {
				c.debug("recovered structured error response", "status", res.StatusCode, "session_cancelled", out.Cancelled())
				return out, nil
			}
		}
		return domain.ChatResponse{}, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        target,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody+1))
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: read response body: %w", err)
	}
	if len(buf) > maxResponseBody {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: %w: limit is %d bytes", ErrResponseTooLarge, maxResponseBody)
	}
	out, _, err := decodeReply(buf)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("chatapi: decode response: %w", err)
	}
	return out, nil
}

// decodeReply reads a reply object field by field. A missing or null
// "response" is empty and a number keeps its JSON text. A "session_cancelled"
// that is not a bool is treated as absent. The decoded fields are returned
// for callers that need to check key presence.
func decodeReply(raw []byte) (domain.ChatResponse, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ChatResponse{}, nil, err
	}

	var out domain.ChatResponse
	if rawText, ok := fields["response"]; ok {
		text, err := replyText(rawText)
		if err != nil {
			return domain.ChatResponse{}, nil, err
		}
		out.Response = text
	}
	if rawCancelled, ok := fields["session_cancelled"]; ok {
		var cancelled *bool
		if err := json.Unmarshal(rawCancelled, &cancelled); err == nil {
			out.SessionCancelled = cancelled
		}
	}
	return out, fields, nil
}

func replyText(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return string(bytes.TrimSpace(raw)), nil
	case nil, bool:
		return "", nil
	default:
		return "", fmt.Errorf("field \"response\" is a %T, not text", v)
	}
}

// decodeStructuredError accepts an error body only when it is a JSON object
// with a non-empty string "response" and a "session_cancelled" key of any value.
func decodeStructuredError(raw []byte) (domain.ChatResponse, bool) {
	out, fields, err := decodeReply(raw)
	if err != nil {
		return domain.ChatResponse{}, false
	}
	if _, ok := fields["session_cancelled"]; !ok {
		return domain.ChatResponse{}, false
	}
	var text string
	if err := json.Unmarshal(fields["response"], &text); err != nil || text == "" {
		return domain.ChatResponse{}, false
	}
	return out, true
}
