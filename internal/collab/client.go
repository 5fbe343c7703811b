// Package collab is the JSON-over-HTTP transport shared by the identity, inventory,
// pricing and organization directory clients.
package collab

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

	"golang.org/x/time/rate"

	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	// ErrExternalService is the sentinel for collaborator failures that are not worth retrying.
	ErrExternalService = apperror.New(http.StatusBadGateway, "external service error")
	// ErrServiceUnavailable is the sentinel for transport failures, timeouts and 5xx answers.
	ErrServiceUnavailable = apperror.New(http.StatusServiceUnavailable, "external service unavailable")
	// ErrNotFound is returned when the collaborator answers 404.
	ErrNotFound = errors.New("collaborator entity not found")
)

// ServiceError describes a failed collaborator call.
type ServiceError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Retryable  bool
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s %s: status %d: %v", e.Service, e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Service, e.Method, e.Path, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from a collaborator call that may succeed on retry.
func IsRetryable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Retryable
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RequestsPerSec int
	Metrics        *metrics.Registry
	HTTPClient     *http.Client
}

// Client calls one collaborator service.
type Client struct {
	service string
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Registry
}

// NewClient creates a client for the named service.
func NewClient(service string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec)
	}
	return &Client{
		service: service,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: timeout,
		http:    hc,
		limiter: limiter,
		metrics: opts.Metrics,
	}
}

// Service returns the collaborator name used in errors and metrics.
func (c *Client) Service() string {
	return c.service
}

// Do sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
// Every call is bounded by the client timeout regardless of the caller's deadline.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	start := time.Now()
	err := c.do(ctx, method, path, in, out)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	c.metrics.CollaboratorCall(c.service, outcome, time.Since(start))
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(method, path, 0, true, fmt.Errorf("rate limiter: %w", err))
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request failed: %w", c.service, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request failed: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.token) != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(method, path, 0, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return c.fail(method, path, resp.StatusCode, retryable, errors.New(strings.TrimSpace(string(msg))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(method, path, resp.StatusCode, false, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// fail wraps a ServiceError into the matching AppError so handlers answer 503 or 502.
func (c *Client) fail(method, path string, status int, retryable bool, err error) error {
	se := &ServiceError{
		Service:    c.service,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
	if retryable {
		return &apperror.AppError{
			Code:    ErrServiceUnavailable.Code,
			Message: c.service + " service unavailable",
			Err:     errors.Join(ErrServiceUnavailable, se),
		}
	}
	return &apperror.AppError{
		Code:    ErrExternalService.Code,
		Message: c.service + " service error",
		Err:     errors.Join(ErrExternalService, se),
	}
}

// UniqueIDs drops empty and repeated IDs, keeping first-seen order. Batch endpoints expect each ID once.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
