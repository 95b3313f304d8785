// Package media is the client for binary object storage: it resolves an
// evidence resource path to raw bytes, first from local storage and then over
// HTTP when the asset lives behind the hosted backend.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type localStore interface {
	ReadAll(filename string) ([]byte, error)
}

// Fetcher loads evidence bytes with a two-tier strategy: direct storage read
// first, HTTP fetch as the single automatic fallback.
type Fetcher struct {
	store   localStore
	client  *http.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewFetcher constructs a fetcher. baseURL prefixes relative resource paths
// for the HTTP fallback; timeout bounds every fetch.
func NewFetcher(store localStore, baseURL string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		store:   store,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch returns the raw bytes for a resource path. Absolute URLs skip the
// local tier. Both tiers failing is a transient I/O failure for the caller to
// degrade on, not retry.
func (f *Fetcher) Fetch(ctx context.Context, resourcePath string) ([]byte, error) {
	if resourcePath == "" {
		return nil, fmt.Errorf("empty resource path")
	}

	if !isAbsoluteURL(resourcePath) && f.store != nil {
		data, err := f.store.ReadAll(resourcePath)
		if err == nil {
			return data, nil
		}
		f.logger.Sugar().Debugw("local media read missed, falling back to http", "resource", resourcePath, "error", err)
	}

	return f.fetchHTTP(ctx, resourcePath)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, resourcePath string) ([]byte, error) {
	target := resourcePath
	if !isAbsoluteURL(target) {
		if f.baseURL == "" {
			return nil, fmt.Errorf("no media base url for relative resource %q", resourcePath)
		}
		target = f.baseURL + "/" + strings.TrimLeft(resourcePath, "/")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return data, nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
