// Package api talks to the complaint management REST backend and converts its
// payloads into domain values. Every failure it returns is a *faults.Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dcms-nepal/dcms/internal/faults"
	"github.com/dcms-nepal/dcms/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8000/api/"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
	requestIDKey   = "X-Request-ID"
	authPathPrefix = "auth/"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the current bearer token, or "" when there is none.
type TokenSource func() string

// Option configures Client construction.
type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(doer Doer) Option {
	return func(client *Client) {
		if doer != nil {
			client.doer = doer
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		if timeout > 0 {
			client.timeout = timeout
		}
	}
}

// WithTokenSource supplies the bearer token for protected endpoints.
func WithTokenSource(source TokenSource) Option {
	return func(client *Client) {
		client.token = source
	}
}

// WithTracer configures the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(client *Client) {
		if tracer != nil {
			client.tracer = tracer
		}
	}
}

// WithLogger configures request logging.
func WithLogger(logger *log.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithRequestIDs overrides the X-Request-ID generator.
func WithRequestIDs(next func() string) Option {
	return func(client *Client) {
		if next != nil {
			client.requestID = next
		}
	}
}

// Client is a typed REST client for the backend.
type Client struct {
	baseURL   *url.URL
	doer      Doer
	timeout   time.Duration
	token     TokenSource
	tracer    trace.Tracer
	logger    *log.Logger
	requestID func() string
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, options ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	client := &Client{
		baseURL:   parsed,
		doer:      &http.Client{},
		timeout:   defaultTimeout,
		tracer:    otel.Tracer("dcms/api"),
		logger:    log.New(io.Discard),
		requestID: uuid.NewString,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(client)
	}
	return client, nil
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "api."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := c.requestID()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("request_id", requestID),
	)

	err := c.send(ctx, op, method, path, requestID, body, out, span)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.Warn("api request failed", "op", op, "method", method, "path", path, "request_id", requestID, "kind", faults.KindOf(err), "err", telemetry.Redact(err.Error()))
		return err
	}
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("api request completed", "op", op, "method", method, "path", path, "request_id", requestID)
	return nil
}

func (c *Client) send(
	ctx context.Context,
	op, method, path, requestID string,
	body, out any,
	span trace.Span,
) error {
	target, err := c.baseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return faults.Wrap(faults.KindRemoteFailure, op, err, "build request url")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return faults.Wrap(faults.KindRemoteFailure, op, err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return faults.Wrap(faults.KindRemoteFailure, op, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDKey, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !isAuthPath(path) && c.token != nil {
		if token := strings.TrimSpace(c.token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return faults.Wrap(faults.KindRemoteFailure, op, err, fmt.Sprintf("request timed out after %s", c.timeout))
		}
		return faults.Wrap(faults.KindRemoteFailure, op, err, "")
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return faults.Wrap(faults.KindRemoteFailure, op, err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := decodeJSON(payload, out); err != nil {
		return faults.Wrap(faults.KindRemoteFailure, op, err, "")
	}
	return nil
}

// isAuthPath reports whether path is a public authentication endpoint that
// must never carry a bearer token.
func isAuthPath(path string) bool {
	path = strings.TrimPrefix(path, "/")
	return strings.HasPrefix(path, authPathPrefix) || strings.Contains(path, "/"+authPathPrefix)
}

func statusError(op string, status int, body []byte) error {
	kind := faults.KindRemoteFailure
	switch status {
	case http.StatusUnauthorized:
		kind = faults.KindUnauthorized
	case http.StatusForbidden:
		kind = faults.KindForbidden
	case http.StatusBadRequest:
		kind = faults.KindValidationFailed
	}

	message := backendMessage(body)
	if message == "" && kind != faults.KindRemoteFailure {
		message = http.StatusText(status)
	}
	return &faults.Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     fmt.Errorf("http status %d", status),
	}
}

func decodeJSON(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("empty JSON response")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return nil
}
