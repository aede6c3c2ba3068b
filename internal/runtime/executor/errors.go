package executor

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/meitianwang/llm-gateway/internal/config"
	"github.com/meitianwang/llm-gateway/internal/provider"
	"github.com/tidwall/gjson"
	"golang.org/x/net/proxy"
)

// categorizedError is the single error type every executor returns for a
// failed upstream call. It carries enough for provider.StatusCodeError and
// the retry category classification in internal/provider/retry.go.
type categorizedError struct {
	statusCode int
	message    string
	retryAfter *time.Duration
	category   provider.ErrorCategory
}

func (e *categorizedError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("status %d: %s", e.statusCode, e.message)
	}
	return e.message
}

func (e *categorizedError) StatusCode() int                 { return e.statusCode }
func (e *categorizedError) Category() provider.ErrorCategory { return e.category }
func (e *categorizedError) RetryAfter() *time.Duration       { return e.retryAfter }

// newCategorizedError builds the standard upstream-failure error from a
// status code and response body, classifying it the same way for every
// executor so fallback/retry decisions are consistent.
func newCategorizedError(statusCode int, body string, retryAfter *time.Duration) error {
	return &categorizedError{
		statusCode: statusCode,
		message:    body,
		retryAfter: retryAfter,
		category:   provider.CategorizeError(statusCode, body),
	}
}

// NewStatusError is the exported entry point executors use once they've
// already read the upstream error body.
func NewStatusError(statusCode int, body string, retryAfter *time.Duration) error {
	return newCategorizedError(statusCode, body, retryAfter)
}

// NewTimeoutError wraps a context-deadline/dial timeout as a 504 so it
// surfaces the same way a slow upstream's own timeout response would.
func NewTimeoutError(message string) error {
	return &categorizedError{
		statusCode: http.StatusGatewayTimeout,
		message:    message,
		category:   provider.CategoryTimeout,
	}
}

// NewNotImplementedError reports an operation an executor's provider
// doesn't support (e.g. token counting) as a 501.
func NewNotImplementedError(message string) error {
	return &categorizedError{
		statusCode: http.StatusNotImplemented,
		message:    message,
		category:   provider.CategoryClientError,
	}
}

// SummarizeErrorBody trims an error response body for logging, preferring
// the parsed JSON error message over the raw (possibly huge) body.
func SummarizeErrorBody(contentType string, body []byte) string {
	return summarizeErrorBody(contentType, body)
}

func summarizeErrorBody(contentType string, body []byte) string {
	const maxLen = 500
	text := strings.TrimSpace(string(body))
	if !strings.Contains(contentType, "json") && !strings.HasPrefix(text, "{") {
		if len(text) > maxLen {
			text = text[:maxLen] + "...(truncated)"
		}
		return text
	}
	if msg := gjson.Get(text, "error.message").String(); msg != "" {
		text = msg
	}
	if len(text) > maxLen {
		return text[:maxLen] + "...(truncated)"
	}
	return text
}

// DecodeResponseBody wraps body in a decompressing reader based on the
// response's Content-Encoding header. Callers still own closing the
// returned ReadCloser (and, separately, the original body).
func DecodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return &zstdReadCloser{zr}, nil
	case "deflate":
		return flate.NewReader(body), nil
	default:
		return body, nil
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewProxyAwareHTTPClient returns an http.Client routed through auth's
// (or, failing that, the global config's) proxy, falling back to the
// shared transport when no proxy is configured.
func NewProxyAwareHTTPClient(ctx context.Context, cfg *config.Config, auth *provider.Auth, timeout time.Duration) *http.Client {
	_ = ctx
	proxyURL := proxyURLFor(cfg, auth)

	client := AcquireHTTPClient()
	if proxyURL == "" {
		client.Transport = SharedTransport
	} else if t := buildProxyTransport(proxyURL); t != nil {
		client.Transport = t
	} else {
		client.Transport = SharedTransport
	}
	client.Timeout = timeout
	return client
}

func proxyURLFor(cfg *config.Config, auth *provider.Auth) string {
	if auth != nil && auth.ProxyURL != "" {
		return auth.ProxyURL
	}
	if cfg != nil {
		return cfg.ProxyURL
	}
	return ""
}

// buildProxyTransport builds an *http.Transport for a proxy URL, picking
// the HTTP(S)-CONNECT or SOCKS5 path based on the scheme.
func buildProxyTransport(proxyURL string) *http.Transport {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil
	}
	if parsed.Scheme == "socks5" || parsed.Scheme == "socks5h" {
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return nil
		}
		return SOCKS5Transport(dialer.Dial)
	}
	return ProxyTransport(parsed)
}
