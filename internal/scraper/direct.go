package scraper

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/ternarybob/colligo/internal/common"
)

// DirectFetcher retrieves pages with a plain HTTP GET. It is the cheap
// first strategy: the target site serves table markup server-side often
// enough that a large share of pages never need a browser render.
type DirectFetcher struct {
	client *resty.Client
}

// NewDirectFetcher builds the shared HTTP client with retry logic and
// exponential backoff between attempts.
func NewDirectFetcher(cfg *common.Config) *DirectFetcher {
	client := resty.New().
		SetTimeout(cfg.Fetch.RequestTimeout).
		SetHeader("User-Agent", cfg.Source.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8").
		SetRetryCount(cfg.Fetch.RetryCount).
		SetRetryWaitTime(cfg.Fetch.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.Fetch.RetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	return &DirectFetcher{client: client}
}

// Fetch performs one GET against url and returns the response body.
// Non-2xx responses are errors so the caller can escalate.
func (f *DirectFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("direct fetch failed for %s: %w", url, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("direct fetch for %s returned status %d", url, resp.StatusCode())
	}

	html := resp.String()
	return &FetchResult{
		HTML:       html,
		Strategy:   StrategyDirect,
		StatusCode: resp.StatusCode(),
		Size:       len(html),
	}, nil
}

// Close releases the underlying transport.
func (f *DirectFetcher) Close() error {
	return f.client.Close()
}

// retryCondition retries on network errors, server errors, rate limiting
// and request timeouts. Other client errors are final.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch {
	case r.StatusCode() >= 500:
		return true
	case r.StatusCode() == 429:
		return true
	case r.StatusCode() == 408:
		return true
	}
	return false
}

func retryHook(r *resty.Response, err error) {
	log := common.GetLogger()
	if err != nil {
		log.Debug().
			Str("url", r.Request.URL).
			Int("attempt", r.Request.Attempt).
			Err(err).
			Msg("Retrying direct fetch after error")
		return
	}
	log.Debug().
		Str("url", r.Request.URL).
		Int("attempt", r.Request.Attempt).
		Int("status", r.StatusCode()).
		Msg("Retrying direct fetch after status")
}
