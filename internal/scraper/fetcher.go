package scraper

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

// strategyFetcher is one way of obtaining a page.
type strategyFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Fetcher coordinates the two fetch strategies. Each result is validated
// and the next strategy is tried only when the previous one produced an
// incomplete document, so cheap direct fetches are preferred and the
// browser runs only when it has to.
type Fetcher struct {
	direct    strategyFetcher
	rendered  strategyFetcher
	validator *Validator
	logger    arbor.ILogger
	shutdown  func()
}

func NewFetcher(cfg *common.Config) *Fetcher {
	direct := NewDirectFetcher(cfg)
	rendered := NewRenderedFetcher(cfg)
	logger := common.GetLogger()

	return &Fetcher{
		direct:    direct,
		rendered:  rendered,
		validator: NewValidator(cfg),
		logger:    logger,
		shutdown: func() {
			if err := direct.Close(); err != nil {
				logger.Warn().Err(err).Msg("Error closing HTTP client")
			}
			rendered.Shutdown()
		},
	}
}

// Fetch retrieves url and returns the first result that passes validation.
// When preferRendered is set the browser strategy runs first; later retry
// attempts use this after a direct fetch has already come back incomplete.
func (f *Fetcher) Fetch(ctx context.Context, url string, preferRendered bool) (*FetchResult, error) {
	order := []strategyFetcher{f.direct, f.rendered}
	if preferRendered {
		order = []strategyFetcher{f.rendered, f.direct}
	}

	var lastErr error
	for _, strategy := range order {
		result, err := strategy.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			f.logger.Warn().Str("url", url).Err(err).Msg("Fetch strategy failed")
			continue
		}

		verdict := f.validator.Validate(result.HTML)
		if verdict.Complete {
			f.logger.Debug().
				Str("url", url).
				Str("strategy", string(result.Strategy)).
				Int("size", result.Size).
				Int("tables", verdict.TableCount).
				Msg("Fetched complete document")
			return result, nil
		}

		lastErr = fmt.Errorf("%s fetch incomplete: %s", result.Strategy, verdict.Reason())
		f.logger.Debug().
			Str("url", url).
			Str("strategy", string(result.Strategy)).
			Str("reason", verdict.Reason()).
			Msg("Fetched document failed validation")
	}

	return nil, fmt.Errorf("all fetch strategies failed for %s: %w", url, lastErr)
}

// Close releases both strategies' resources.
func (f *Fetcher) Close() {
	if f.shutdown != nil {
		f.shutdown()
	}
}
