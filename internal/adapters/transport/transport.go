// Package transport builds the HTTP clients used by the document service
// adapters and classifies their failures into the sync error taxonomy.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

// Config configures a service client.
type Config struct {
	Service    string
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	Headers    map[string]string
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// NewClient creates a resty client with bearer auth, JSON headers and retries
// on rate limiting, server errors and network failures.
func NewClient(cfg Config) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	client.AddRetryCondition(RetryCondition)
	return client
}

// RetryCondition retries network errors, 408, 429 and 5xx responses.
func RetryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !stderrors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// Classify converts a transport error or an unsuccessful response into a
// classified error. It returns nil for successful responses.
//
// A missing resource is reported as SOURCE_NOT_FOUND; the sync engine
// reclassifies it to DESTINATION_NOT_FOUND when the request was a write.
func Classify(service string, resp *resty.Response, err error) error {
	if err != nil {
		return FromTransportError(service, err)
	}
	if resp == nil {
		return errors.NewError(errors.CodeTransient, service+" returned no response", nil)
	}
	if !resp.IsError() {
		return nil
	}
	return FromStatus(service, resp.StatusCode(), resp.String())
}

// FromTransportError classifies a request that never produced a response.
// Timeouts and connection failures are transient.
func FromTransportError(service string, err error) *errors.SyncError {
	var netErr net.Error
	msg := service + " request failed"
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		msg = service + " request timed out"
	}
	return errors.NewError(errors.CodeTransient, msg, err)
}

// FromStatus classifies an HTTP status code.
func FromStatus(service string, status int, detail string) *errors.SyncError {
	cause := fmt.Errorf("HTTP %d: %s", status, truncate(detail, 300))
	switch {
	case status == http.StatusNotFound:
		return errors.NewError(errors.CodeSourceNotFound, service+" resource not found", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Unauthorized(service, cause)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return errors.NewError(errors.CodeTransient, service+" is unavailable", cause)
	default:
		return errors.NewError(errors.CodeValidation, service+" rejected the request", cause)
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
