// Package pipeline runs the full per-stock flow: fetch, extract, render
// the report, snapshot the page and record the outcome in the ledger.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/report"
	"github.com/ternarybob/colligo/internal/scraper"
	"github.com/ternarybob/colligo/internal/snapshot"
)

// Result is the typed outcome of one processing attempt. Success means
// the extraction bundle met the completeness gate; a written report with
// Success=false is a partial result kept for visibility.
type Result struct {
	Stock      models.Stock
	Strategy   scraper.Strategy
	ReportPath string
	Bundle     *models.ExtractionBundle
	Success    bool
}

// Pipeline wires the per-stock stages together. The snapshot store is
// optional; a nil store disables raw-page capture.
type Pipeline struct {
	cfg       *common.Config
	fetcher   *scraper.Fetcher
	extractor *scraper.Extractor
	assembler *report.Assembler
	ledger    *ledger.Store
	snapshots *snapshot.Store
	logger    arbor.ILogger
}

func New(cfg *common.Config, ledgerStore *ledger.Store, snapshots *snapshot.Store) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   scraper.NewFetcher(cfg),
		extractor: scraper.NewExtractor(cfg),
		assembler: report.NewAssembler(cfg.Source.BaseURL, cfg.OutputPath()),
		ledger:    ledgerStore,
		snapshots: snapshots,
		logger:    common.GetLogger(),
	}
}

// Process runs one attempt for one stock. Fetch and parse failures come
// back as errors; an incomplete extraction is not an error but a Result
// with Success=false, since the report is still written.
func (p *Pipeline) Process(ctx context.Context, stock models.Stock, preferRendered bool) (*Result, error) {
	url := stock.PageURL(p.cfg.Source.BaseURL)

	p.logger.Info().
		Str("code", stock.Code).
		Str("name", stock.Name).
		Bool("rendered_first", preferRendered).
		Msg("Processing stock")

	fetched, err := p.fetcher.Fetch(ctx, url, preferRendered)
	if err != nil {
		return nil, err
	}

	p.saveSnapshot(stock, fetched)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetched.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page for %s: %w", stock.Code, err)
	}

	bundle := p.extractor.Extract(doc)

	path, err := p.assembler.Write(stock, bundle, time.Now())
	if err != nil {
		return nil, err
	}

	result := &Result{
		Stock:      stock,
		Strategy:   fetched.Strategy,
		ReportPath: path,
		Bundle:     bundle,
		Success:    bundle.Complete(),
	}

	if result.Success {
		p.logger.Info().Str("code", stock.Code).Str("report", path).Msg("Stock processed")
	} else {
		p.logger.Warn().
			Str("code", stock.Code).
			Int("current_fields", len(bundle.CurrentPrices)).
			Int("daily_rows", len(bundle.Daily)).
			Int("ownership_rows", len(bundle.Ownership)).
			Msg("Partial extraction, report written but marked failed")
	}

	return result, nil
}

// RecordOutcome upserts the ledger row for one finished stock. The row's
// last_update_time mirrors the report file's modification time so the
// ledger and the directory stay consistent; a run that produced no file
// records the failure sentinel instead.
func (p *Pipeline) RecordOutcome(stock models.Stock, success bool, retryCount int) error {
	entry := models.LedgerEntry{
		Filename:    stock.ReportFilename(),
		Success:     success,
		ProcessTime: models.FormatLedgerTime(time.Now()),
		RetryCount:  retryCount,
	}

	reportPath := p.assembler.ReportPath(stock)
	if info, err := os.Stat(reportPath); err == nil {
		entry.LastUpdateTime = models.FormatLedgerTime(info.ModTime())
	} else {
		entry.LastUpdateTime = models.FailedSentinel
	}

	return p.ledger.Upsert(entry)
}

// RecordFailure marks a stock as terminally failed for this run. Unlike
// RecordOutcome it always writes the failure sentinel, even when a stale
// or partial report file exists, so the retry-failed mode can find it.
func (p *Pipeline) RecordFailure(stock models.Stock, retryCount int) error {
	return p.ledger.Upsert(models.LedgerEntry{
		Filename:       stock.ReportFilename(),
		LastUpdateTime: models.FailedSentinel,
		Success:        false,
		ProcessTime:    models.FormatLedgerTime(time.Now()),
		RetryCount:     retryCount,
	})
}

// Reextract rebuilds a stock's report from its stored page snapshot
// without hitting the network. Used after extraction heuristics change.
func (p *Pipeline) Reextract(stock models.Stock) (*Result, error) {
	if p.snapshots == nil {
		return nil, fmt.Errorf("snapshot store disabled")
	}

	snap, err := p.snapshots.Get(stock.Code)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot for %s: %w", stock.Code, err)
	}

	bundle := p.extractor.Extract(doc)
	path, err := p.assembler.Write(stock, bundle, snap.FetchedAt)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("code", stock.Code).
		Str("fetched_at", snap.FetchedAt.Format(time.RFC3339)).
		Msg("Report rebuilt from snapshot")

	return &Result{
		Stock:      stock,
		Strategy:   scraper.Strategy(snap.Strategy),
		ReportPath: path,
		Bundle:     bundle,
		Success:    bundle.Complete(),
	}, nil
}

// Close releases fetcher resources (HTTP transport and any browser) and
// the snapshot store when one is attached.
func (p *Pipeline) Close() {
	p.fetcher.Close()
	if p.snapshots != nil {
		if err := p.snapshots.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Snapshot store did not close cleanly")
		}
	}
}

func (p *Pipeline) saveSnapshot(stock models.Stock, fetched *scraper.FetchResult) {
	if p.snapshots == nil {
		return
	}

	err := p.snapshots.Save(&models.PageSnapshot{
		Code:       stock.Code,
		URL:        stock.PageURL(p.cfg.Source.BaseURL),
		HTML:       fetched.HTML,
		Strategy:   string(fetched.Strategy),
		StatusCode: fetched.StatusCode,
		FetchedAt:  time.Now(),
	})
	if err != nil {
		p.logger.Warn().Str("code", stock.Code).Err(err).Msg("Failed to save page snapshot")
	}
}
