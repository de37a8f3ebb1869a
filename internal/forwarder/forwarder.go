// Package forwarder executes outbound forwarding attempts and classifies
// their outcomes. It owns the self-forward guard: a forward URL that points
// back at this deployment's own capture URLs is refused before any request
// is dispatched.
package forwarder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hookfreight/hookfreight/internal/models"
)

const (
	// ErrMessageSelfForward is recorded when the guard refuses an attempt.
	ErrMessageSelfForward = "forward URL points to a HookFreight webhook URL"

	HeaderForwarded = "X-Hookfreight-Forwarded"
	HeaderTimestamp = "X-Hookfreight-Timestamp"

	defaultMaxResponseBytes = 64 * 1024
)

// forwardedHeaders is the allow-list copied from the captured event onto the
// outbound request. Everything else the producer sent stays out of the
// forwarded request.
var forwardedHeaders = []string{
	"content-type",
	"content-encoding",
	"accept",
	"user-agent",
}

// hookTokenPath matches the path shape of a capture URL.
var hookTokenPath = regexp.MustCompile(`^/[A-Fa-f0-9]{24}$`)

// Result is the classified outcome of one forwarding attempt. Retryable is
// only meaningful for non-delivered statuses.
type Result struct {
	Status          string
	Retryable       bool
	DestinationURL  string
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    []byte
	DurationMs      int64
	ErrorMessage    string
}

type Forwarder struct {
	transport        http.RoundTripper
	baseHostPort     string
	maxResponseBytes int64
}

type Option func(*Forwarder)

func WithTransport(transport http.RoundTripper) Option {
	return func(f *Forwarder) {
		f.transport = transport
	}
}

func WithMaxResponseBytes(n int64) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.maxResponseBytes = n
		}
	}
}

// New constructs a Forwarder. baseURL is the deployment's public base URL;
// its host:port anchors the self-forward guard. An empty baseURL disables
// the guard.
func New(baseURL string, opts ...Option) (*Forwarder, error) {
	f := &Forwarder{
		transport:        http.DefaultTransport,
		maxResponseBytes: defaultMaxResponseBytes,
	}
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
		}
		f.baseHostPort = hostPort(parsed)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Forward dispatches the event to the endpoint's forward URL and classifies
// the outcome. It always returns a Result unless the context was canceled
// mid-attempt, in which case no outcome exists and the error is returned for
// the caller to requeue the job.
func (f *Forwarder) Forward(ctx context.Context, endpoint *models.Endpoint, event *models.Event) (*Result, error) {
	if f.isSelfForward(endpoint.ForwardURL) {
		return &Result{
			Status:         models.DeliveryStatusFailed,
			Retryable:      false,
			DestinationURL: endpoint.ForwardURL,
			ErrorMessage:   ErrMessageSelfForward,
		}, nil
	}

	req, err := f.buildRequest(ctx, endpoint, event)
	if err != nil {
		return &Result{
			Status:         models.DeliveryStatusFailed,
			Retryable:      false,
			DestinationURL: endpoint.ForwardURL,
			ErrorMessage:   "invalid forward URL: " + err.Error(),
		}, nil
	}

	timeout := endpoint.Timeout()
	client := &http.Client{
		Transport: f.transport,
		Timeout:   timeout,
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		result := &Result{
			Status:         models.DeliveryStatusFailed,
			Retryable:      true,
			DestinationURL: endpoint.ForwardURL,
			DurationMs:     time.Since(start).Milliseconds(),
			ErrorMessage:   err.Error(),
		}
		if isTimeout(err) {
			result.Status = models.DeliveryStatusTimeout
			result.ErrorMessage = timeoutMessage(timeout)
		}
		return result, nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxResponseBytes))
	durationMs := time.Since(start).Milliseconds()

	status := resp.StatusCode
	result := &Result{
		DestinationURL:  endpoint.ForwardURL,
		ResponseStatus:  &status,
		ResponseHeaders: captureHeaders(resp.Header),
		ResponseBody:    body,
		DurationMs:      durationMs,
	}

	if readErr != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, readErr
		}
		// The headers arrived but the body didn't. A timeout mid-body is
		// still a timeout; anything else is classified by the status line.
		if isTimeout(readErr) {
			result.Status = models.DeliveryStatusTimeout
			result.Retryable = true
			result.ErrorMessage = timeoutMessage(timeout)
			return result, nil
		}
	}

	result.Status, result.Retryable = classifyStatus(status)
	if result.Status != models.DeliveryStatusDelivered {
		result.ErrorMessage = fmt.Sprintf("request failed with status %d", status)
	}
	return result, nil
}

func (f *Forwarder) buildRequest(ctx context.Context, endpoint *models.Endpoint, event *models.Event) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, event.Method, endpoint.ForwardURL, bytes.NewReader(event.Body))
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if value := event.Headers.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}
	req.Header.Set(HeaderForwarded, "true")
	req.Header.Set(HeaderTimestamp, time.Now().UTC().Format(time.RFC3339))

	// Authentication wins over anything copied from the event.
	if endpoint.Authentication != nil && endpoint.Authentication.HeaderName != "" {
		req.Header.Set(endpoint.Authentication.HeaderName, endpoint.Authentication.HeaderValue)
	}

	return req, nil
}

// isSelfForward reports whether forwardURL targets one of this deployment's
// own capture URLs: same host:port as the public base URL and a path shaped
// like a hook token.
func (f *Forwarder) isSelfForward(forwardURL string) bool {
	if f.baseHostPort == "" {
		return false
	}
	parsed, err := url.Parse(forwardURL)
	if err != nil {
		return false
	}
	if hostPort(parsed) != f.baseHostPort {
		return false
	}
	return hookTokenPath.MatchString(parsed.Path)
}

// hostPort normalizes a URL to lowercase host:port, inferring the default
// port from the scheme when none is given.
func hostPort(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return host
		}
	}
	return net.JoinHostPort(host, port)
}

func classifyStatus(code int) (string, bool) {
	switch {
	case code >= 200 && code < 300:
		return models.DeliveryStatusDelivered, false
	case code >= 500:
		return models.DeliveryStatusFailed, true
	default:
		// 1xx, 3xx and 4xx: the destination answered and another attempt
		// with the same request will not change that answer.
		return models.DeliveryStatusFailed, false
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func timeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("request timed out after %dms", timeout.Milliseconds())
}

func captureHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}
