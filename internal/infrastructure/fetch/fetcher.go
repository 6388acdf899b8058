// Package fetch downloads remote documents for URL ingestion.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/infrastructure/resilience"
)

const (
	defaultTimeout  = 120 * time.Second
	maxResponseSize = 64 << 20
)

// HTTPFetcher retrieves a URL body and its Content-Type. Transient
// transport failures are retried through the resilience executor; every
// failure surfaces as a network error so callers can separate it from
// extraction problems.
type HTTPFetcher struct {
	client   *http.Client
	executor *resilience.Executor
}

type Option func(*HTTPFetcher)

func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = client }
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(f *HTTPFetcher) { f.executor = executor }
}

func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	const op = "fetch url"

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, op,
			fmt.Errorf("unsupported url %q", rawURL))
	}

	var body []byte
	var contentType string

	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &statusError{code: resp.StatusCode}
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return err
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	}

	if f.executor != nil {
		err = f.executor.Execute(ctx, "http.fetch", call, classifyFetchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrNetwork, op, err)
	}
	return body, contentType, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var status *statusError
	if errors.As(err, &status) {
		retryable := status.code >= 500 || status.code == http.StatusTooManyRequests
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	// DNS and connection setup failures come through as *url.Error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
