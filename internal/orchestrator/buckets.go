package orchestrator

import (
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/report"
)

// Bucket is the action class assigned to one stock for the current run.
type Bucket string

const (
	BucketUnprocessed      Bucket = "unprocessed"
	BucketRetryNeeded      Bucket = "retry_needed"
	BucketPreviouslyFailed Bucket = "previously_failed"
	BucketRefresh          Bucket = "refresh"
	BucketUpToDate         Bucket = "up_to_date"
)

// WorkPlan is the outcome of one bucketing pass. Priority holds the
// stocks that must be processed now (unprocessed, retry-needed and
// previously-failed, in universe order); Refresh holds the bounded
// refresh sample that runs only when Priority is empty.
type WorkPlan struct {
	Priority []models.Stock
	Refresh  []models.Stock
	Counts   map[Bucket]int
}

// Queue returns the stocks this run should actually process.
func (w *WorkPlan) Queue() []models.Stock {
	if len(w.Priority) > 0 {
		return w.Priority
	}
	return w.Refresh
}

// NoWork reports whether everything is up to date.
func (w *WorkPlan) NoWork() bool {
	return len(w.Priority) == 0 && len(w.Refresh) == 0
}

// Bucketer classifies each stock by inspecting its saved report and its
// ledger entry. No network traffic: bucketing must stay cheap enough to
// run at the start of every batch.
type Bucketer struct {
	inspector    *report.Inspector
	ledger       *ledger.Store
	outputDir    string
	freshness    time.Duration
	refreshLimit int
	logger       arbor.ILogger
}

func NewBucketer(cfg *common.Config, ledgerStore *ledger.Store) *Bucketer {
	return &Bucketer{
		inspector:    report.NewInspector(),
		ledger:       ledgerStore,
		outputDir:    cfg.OutputPath(),
		freshness:    cfg.Retry.FreshnessWindow,
		refreshLimit: cfg.Retry.RefreshLimit,
		logger:       common.GetLogger(),
	}
}

// Plan buckets every stock exactly once. Classification priority:
// missing report, then incomplete report, then ledger-recorded failure,
// then aged-but-complete, then up to date. The refresh list is truncated
// to the configured limit since refreshes are background work.
func (b *Bucketer) Plan(stocks []models.Stock, now time.Time) (*WorkPlan, error) {
	failed, err := b.ledger.FailedFilenames()
	if err != nil {
		return nil, err
	}
	failedSet := make(map[string]struct{}, len(failed))
	for _, filename := range failed {
		failedSet[filename] = struct{}{}
	}

	plan := &WorkPlan{Counts: map[Bucket]int{}}

	for _, stock := range stocks {
		bucket := b.classify(stock, failedSet, now)
		plan.Counts[bucket]++

		switch bucket {
		case BucketUnprocessed, BucketRetryNeeded, BucketPreviouslyFailed:
			plan.Priority = append(plan.Priority, stock)
		case BucketRefresh:
			plan.Refresh = append(plan.Refresh, stock)
		}
	}

	if len(plan.Refresh) > b.refreshLimit {
		plan.Refresh = plan.Refresh[:b.refreshLimit]
	}

	b.logger.Info().
		Int("unprocessed", plan.Counts[BucketUnprocessed]).
		Int("retry_needed", plan.Counts[BucketRetryNeeded]).
		Int("previously_failed", plan.Counts[BucketPreviouslyFailed]).
		Int("refresh", plan.Counts[BucketRefresh]).
		Int("up_to_date", plan.Counts[BucketUpToDate]).
		Msg("Bucketing pass complete")

	return plan, nil
}

func (b *Bucketer) classify(stock models.Stock, failedSet map[string]struct{}, now time.Time) Bucket {
	inspection := b.inspector.Inspect(filepath.Join(b.outputDir, stock.ReportFilename()))

	if !inspection.Exists {
		return BucketUnprocessed
	}
	if inspection.LoadingMessages || !inspection.Complete() {
		return BucketRetryNeeded
	}
	if _, failed := failedSet[stock.ReportFilename()]; failed {
		return BucketPreviouslyFailed
	}
	if inspection.Age(now) > b.freshness {
		return BucketRefresh
	}
	return BucketUpToDate
}
