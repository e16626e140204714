package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/scraper"
)

type attemptOutcome struct {
	success bool
	err     error
}

type recordedOutcome struct {
	success    bool
	retryCount int
}

// fakeProcessor scripts one outcome per attempt and records every call.
type fakeProcessor struct {
	attempts []attemptOutcome
	prefers  []bool
	outcomes []recordedOutcome
	failures []int
	cancel   context.CancelFunc
}

func (f *fakeProcessor) Process(ctx context.Context, stock models.Stock, preferRendered bool) (*pipeline.Result, error) {
	i := len(f.prefers)
	f.prefers = append(f.prefers, preferRendered)
	if f.cancel != nil {
		f.cancel()
	}
	a := f.attempts[i]
	if a.err != nil {
		return nil, a.err
	}
	strategy := scraper.StrategyDirect
	if preferRendered {
		strategy = scraper.StrategyRendered
	}
	return &pipeline.Result{Stock: stock, Strategy: strategy, Success: a.success}, nil
}

func (f *fakeProcessor) RecordOutcome(stock models.Stock, success bool, retryCount int) error {
	f.outcomes = append(f.outcomes, recordedOutcome{success: success, retryCount: retryCount})
	return nil
}

func (f *fakeProcessor) RecordFailure(stock models.Stock, retryCount int) error {
	f.failures = append(f.failures, retryCount)
	return nil
}

func newRetryOrchestrator(t *testing.T, fake *fakeProcessor) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	cfg := common.DefaultConfig()
	cfg.BaseDir = t.TempDir()

	o := New(cfg, fake, ledger.NewStore(cfg.LedgerPath(), common.GetLogger()))

	var backoffs []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return ctx.Err()
	}
	return o, &backoffs
}

func TestProcessWithRetry_SecondAttemptUsesRenderedStrategy(t *testing.T) {
	fake := &fakeProcessor{attempts: []attemptOutcome{
		{success: false}, // partial extraction, report written
		{success: true},
	}}
	o, backoffs := newRetryOrchestrator(t, fake)
	stock := models.Stock{Code: "2330", Name: "台積電"}

	ok := o.processWithRetry(context.Background(), stock, 3, false)
	require.True(t, ok)

	assert.Equal(t, []bool{false, true}, fake.prefers)
	assert.Equal(t, []recordedOutcome{
		{success: false, retryCount: 1},
		{success: true, retryCount: 2},
	}, fake.outcomes)
	assert.Empty(t, fake.failures)
	require.Len(t, *backoffs, 1)
	assert.GreaterOrEqual(t, (*backoffs)[0], o.cfg.Retry.RetryDelayBase)
}

func TestProcessWithRetry_RenderedFirstMode(t *testing.T) {
	fake := &fakeProcessor{attempts: []attemptOutcome{
		{err: errors.New("challenge page")},
		{success: true},
	}}
	o, _ := newRetryOrchestrator(t, fake)

	ok := o.processWithRetry(context.Background(), models.Stock{Code: "2330", Name: "台積電"}, 2, true)
	require.True(t, ok)
	assert.Equal(t, []bool{true, true}, fake.prefers)
}

func TestProcessWithRetry_ExhaustionRecordsTerminalFailure(t *testing.T) {
	fetchErr := errors.New("connection reset")
	fake := &fakeProcessor{attempts: []attemptOutcome{
		{err: fetchErr}, {err: fetchErr}, {err: fetchErr},
	}}
	o, backoffs := newRetryOrchestrator(t, fake)

	ok := o.processWithRetry(context.Background(), models.Stock{Code: "2330", Name: "台積電"}, 3, false)
	require.False(t, ok)

	assert.Equal(t, []bool{false, true, true}, fake.prefers)
	assert.Empty(t, fake.outcomes, "failed attempts write no partial rows")
	assert.Equal(t, []int{3}, fake.failures)
	assert.Len(t, *backoffs, 2)
}

func TestProcessWithRetry_InterruptLeavesNoFailureRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeProcessor{
		attempts: []attemptOutcome{{err: errors.New("connection reset")}},
		cancel:   cancel,
	}
	o, _ := newRetryOrchestrator(t, fake)

	ok := o.processWithRetry(ctx, models.Stock{Code: "2330", Name: "台積電"}, 3, false)
	require.False(t, ok)

	assert.Len(t, fake.prefers, 1, "no further attempts after cancellation")
	assert.Empty(t, fake.failures, "an interrupted stock is not a terminal failure")
	assert.Empty(t, fake.outcomes)
}
