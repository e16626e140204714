// Package orchestrator drives batch runs: bucketing, pacing, per-stock
// retries and terminal ledger accounting.
package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/universe"
)

// Summary is the aggregate outcome of one batch run.
type Summary struct {
	RunID       string `json:"run_id"`
	Strategy    string `json:"strategy"`
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Interrupted bool   `json:"interrupted"`
}

// Processor runs one fetch-extract-write attempt for a stock and records
// attempt outcomes in the ledger. Satisfied by *pipeline.Pipeline.
type Processor interface {
	Process(ctx context.Context, stock models.Stock, preferRendered bool) (*pipeline.Result, error)
	RecordOutcome(stock models.Stock, success bool, retryCount int) error
	RecordFailure(stock models.Stock, retryCount int) error
}

// Orchestrator runs stocks strictly sequentially. One in-flight request
// at a time is the binding constraint (site politeness), so there is no
// per-stock parallelism anywhere in here.
type Orchestrator struct {
	cfg      *common.Config
	pipe     Processor
	ledger   *ledger.Store
	bucketer *Bucketer
	pacer    *Pacer
	logger   arbor.ILogger
	sleep    func(context.Context, time.Duration) error

	// stopped is the graceful-stop flag, checked between stocks only;
	// an in-progress attempt is drained, never cut off.
	stopped atomic.Bool
}

func New(cfg *common.Config, pipe Processor, ledgerStore *ledger.Store) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		pipe:     pipe,
		ledger:   ledgerStore,
		bucketer: NewBucketer(cfg, ledgerStore),
		pacer:    NewPacer(cfg.Pacing),
		logger:   common.GetLogger(),
		sleep:    sleepCtx,
	}
}

// Stop requests a graceful stop: the current stock finishes, then the
// batch loop exits before the next one.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
}

// ProcessOne runs a single stock through the full retry loop and records
// the outcome. Used by the single-stock command.
func (o *Orchestrator) ProcessOne(ctx context.Context, stock models.Stock) bool {
	return o.processWithRetry(ctx, stock, o.cfg.Retry.MaxRetries, false)
}

// RunBatch executes one bucketing pass and processes the resulting
// queue. Per-stock failures never abort the batch; only interrupt and
// setup errors do.
func (o *Orchestrator) RunBatch(ctx context.Context) (*Summary, error) {
	uni, err := universe.Load(o.cfg.UniversePath())
	if err != nil {
		return nil, err
	}

	plan, err := o.bucketer.Plan(uni.Stocks(), time.Now())
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString()}

	if plan.NoWork() {
		summary.Strategy = "up_to_date"
		o.logger.Info().Str("run_id", summary.RunID).Msg("All stocks are up to date")
		return summary, nil
	}

	if len(plan.Priority) > 0 {
		summary.Strategy = "priority"
	} else {
		summary.Strategy = "refresh"
	}

	o.runQueue(ctx, plan.Queue(), summary, o.standardDelay)
	o.finishBatch(summary)
	return summary, nil
}

// RunAll processes the entire universe unconditionally, ignoring buckets.
func (o *Orchestrator) RunAll(ctx context.Context) (*Summary, error) {
	uni, err := universe.Load(o.cfg.UniversePath())
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), Strategy: "all"}
	o.runQueue(ctx, uni.Stocks(), summary, o.standardDelay)
	o.finishBatch(summary)
	return summary, nil
}

// RetryFailed re-runs only the ledger's failed stocks with a smaller
// retry ceiling, longer delays and the rendered strategy from the first
// attempt, independent of the bucketing pass.
func (o *Orchestrator) RetryFailed(ctx context.Context) (*Summary, error) {
	uni, err := universe.Load(o.cfg.UniversePath())
	if err != nil {
		return nil, err
	}

	failed, err := o.ledger.FailedFilenames()
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.NewString(), Strategy: "retry_failed"}

	var queue []models.Stock
	for _, filename := range failed {
		if stock, ok := stockForFilename(uni, filename); ok {
			queue = append(queue, stock)
		} else {
			o.logger.Warn().Str("filename", filename).Msg("Failed ledger entry has no matching stock")
		}
	}

	if len(queue) == 0 {
		o.logger.Info().Str("run_id", summary.RunID).Msg("No failed stocks to retry")
		return summary, nil
	}

	o.logger.Info().
		Str("run_id", summary.RunID).
		Int("count", len(queue)).
		Msg("Retrying previously failed stocks")

	failedDelay := func(ctx context.Context) error {
		return sleepCtx(ctx, o.pacer.FailedModeDelay(o.cfg.Retry.FailedRetryDelay))
	}

	o.runRetryQueue(ctx, queue, summary, failedDelay)

	o.logger.Info().
		Str("run_id", summary.RunID).
		Int("recovered", summary.Succeeded).
		Int("total", summary.Total).
		Msg("Retry session finished")
	return summary, nil
}

func (o *Orchestrator) standardDelay(ctx context.Context) error {
	return o.pacer.Wait(ctx)
}

// runQueue processes stocks sequentially with the normal retry ceiling.
func (o *Orchestrator) runQueue(ctx context.Context, queue []models.Stock, summary *Summary, delay func(context.Context) error) {
	o.loop(ctx, queue, summary, delay, o.cfg.Retry.MaxRetries, false)
}

// runRetryQueue is the failed-mode variant: smaller ceiling, rendered
// strategy from the first attempt.
func (o *Orchestrator) runRetryQueue(ctx context.Context, queue []models.Stock, summary *Summary, delay func(context.Context) error) {
	o.loop(ctx, queue, summary, delay, o.cfg.Retry.FailedRetryMax, true)
}

func (o *Orchestrator) loop(ctx context.Context, queue []models.Stock, summary *Summary, delay func(context.Context) error, maxRetries int, renderedFirst bool) {
	summary.Total = len(queue)

	for i, stock := range queue {
		if o.stopped.Load() || ctx.Err() != nil {
			summary.Interrupted = true
			o.logger.Warn().
				Str("run_id", summary.RunID).
				Int("remaining", len(queue)-i).
				Msg("Stopping before next stock")
			return
		}

		if i > 0 {
			if err := delay(ctx); err != nil {
				summary.Interrupted = true
				return
			}
		}

		o.logger.Info().
			Str("code", stock.Code).
			Str("name", stock.Name).
			Int("position", i+1).
			Int("total", len(queue)).
			Msg("Next stock")

		if o.processWithRetry(ctx, stock, maxRetries, renderedFirst) {
			summary.Succeeded++
			o.pacer.RecordSuccess()
		} else {
			summary.Failed++
			o.pacer.RecordFailure()
		}

		if (i+1)%10 == 0 {
			o.logger.Info().
				Int("done", i+1).
				Int("total", len(queue)).
				Int("succeeded", summary.Succeeded).
				Int("failed", summary.Failed).
				Msg("Batch progress")
		}
	}
}

// processWithRetry runs the per-stock attempt loop. Attempt 1 uses the
// direct strategy unless renderedFirst is set; every later attempt
// escalates to the rendered strategy with exponential backoff. Any error
// is caught here and counted as a failed attempt, never propagated. An
// interrupted loop returns without touching the ledger: only genuinely
// exhausting the ceiling earns a terminal failure row.
func (o *Orchestrator) processWithRetry(ctx context.Context, stock models.Stock, maxRetries int, renderedFirst bool) bool {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			o.logger.Warn().Str("code", stock.Code).Int("attempt", attempt).Msg("Interrupted mid-stock, outcome not recorded")
			return false
		}

		if attempt > 1 {
			backoff := o.pacer.RetryDelay(attempt, o.cfg.Retry.RetryDelayBase)
			o.logger.Info().
				Str("code", stock.Code).
				Int("attempt", attempt).
				Str("backoff", backoff.Round(100*time.Millisecond).String()).
				Msg("Backing off before retry")
			if err := o.sleep(ctx, backoff); err != nil {
				o.logger.Warn().Str("code", stock.Code).Int("attempt", attempt).Msg("Interrupted mid-stock, outcome not recorded")
				return false
			}
		}

		preferRendered := renderedFirst || attempt >= 2

		result, err := o.pipe.Process(ctx, stock, preferRendered)
		if err != nil {
			o.logger.Warn().
				Str("code", stock.Code).
				Int("attempt", attempt).
				Int("max", maxRetries).
				Err(err).
				Msg("Attempt failed")
			continue
		}

		if result.Success {
			if err := o.pipe.RecordOutcome(stock, true, attempt); err != nil {
				o.logger.Error().Str("code", stock.Code).Err(err).Msg("Failed to record success")
			}
			o.logger.Info().
				Str("code", stock.Code).
				Int("attempt", attempt).
				Str("strategy", string(result.Strategy)).
				Msg("Stock succeeded")
			return true
		}

		// Partial extraction: the report was written, keep the ledger
		// row in sync but keep trying for a complete bundle.
		if err := o.pipe.RecordOutcome(stock, false, attempt); err != nil {
			o.logger.Error().Str("code", stock.Code).Err(err).Msg("Failed to record partial outcome")
		}
		o.logger.Warn().
			Str("code", stock.Code).
			Int("attempt", attempt).
			Int("max", maxRetries).
			Msg("Incomplete extraction")
	}

	if err := o.pipe.RecordFailure(stock, maxRetries); err != nil {
		o.logger.Error().Str("code", stock.Code).Err(err).Msg("Failed to record terminal failure")
	}
	o.logger.Error().
		Str("code", stock.Code).
		Int("retries", maxRetries).
		Msg("Stock failed after all retries")
	return false
}

func (o *Orchestrator) finishBatch(summary *Summary) {
	o.logger.Info().
		Str("run_id", summary.RunID).
		Str("strategy", summary.Strategy).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Bool("interrupted", summary.Interrupted).
		Msg("Batch finished")

	if summary.Failed > 0 {
		o.logger.Info().Msg("Failed stocks can be re-run with the retry command")
	}
}

// stockForFilename resolves a ledger filename back to its stock. The
// filename embeds the code as the second underscore-separated field.
func stockForFilename(uni *universe.Universe, filename string) (models.Stock, bool) {
	parts := strings.SplitN(filename, "_", 3)
	if len(parts) < 3 {
		return models.Stock{}, false
	}
	return uni.Find(parts[1])
}
