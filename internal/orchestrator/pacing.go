package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/colligo/internal/common"
)

const (
	// Jitter bounds for the exponential retry backoff.
	retryJitterMin = 1 * time.Second
	retryJitterMax = 5 * time.Second

	// Jitter bounds for the retry-failed mode's inter-stock delay.
	failedJitterMin = 5 * time.Second
	failedJitterMax = 10 * time.Second
)

// Pacer owns the inter-stock delay policy and the consecutive-failure
// counter it feeds on. One pacer per orchestrator instance; the counter
// is never shared process-wide so independent orchestrators pace
// independently.
type Pacer struct {
	cfg     common.PacingConfig
	limiter *rate.Limiter
	rng     *rand.Rand

	consecutiveFailures int
}

func NewPacer(cfg common.PacingConfig) *Pacer {
	return &Pacer{
		cfg: cfg,
		// Hard politeness floor: at most one request per base-delay
		// interval regardless of what the dynamic delay computes.
		limiter: rate.NewLimiter(rate.Every(cfg.BaseDelay), 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay computes the next inter-stock delay: base, plus a penalty
// proportional to consecutive failures (capped so the penalty can never
// exceed the headroom below the maximum), plus jitter, capped at the
// maximum.
func (p *Pacer) Delay() time.Duration {
	delay := p.cfg.BaseDelay

	if p.consecutiveFailures > 0 {
		penalty := time.Duration(p.consecutiveFailures) * p.cfg.FailurePenalty
		if headroom := p.cfg.MaxDelay - p.cfg.BaseDelay; penalty > headroom {
			penalty = headroom
		}
		delay += penalty
	}

	delay += p.jitter(p.cfg.JitterMin, p.cfg.JitterMax)

	if delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}
	return delay
}

// RetryDelay returns the backoff before retry attempt n (n >= 2): the
// base doubled per prior retry, plus jitter. Grows monotonically in
// expectation even though jitter can reorder adjacent samples.
func (p *Pacer) RetryDelay(attempt int, base time.Duration) time.Duration {
	backoff := base
	for i := 2; i < attempt; i++ {
		backoff *= 2
	}
	return backoff + p.jitter(retryJitterMin, retryJitterMax)
}

// FailedModeDelay returns the longer inter-stock delay used when
// re-running previously failed stocks.
func (p *Pacer) FailedModeDelay(base time.Duration) time.Duration {
	return base + p.jitter(failedJitterMin, failedJitterMax)
}

// Wait blocks for the politeness floor and then the dynamic delay, or
// until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return sleepCtx(ctx, p.Delay())
}

// RecordSuccess resets the consecutive-failure counter.
func (p *Pacer) RecordSuccess() {
	p.consecutiveFailures = 0
}

// RecordFailure bumps the consecutive-failure counter.
func (p *Pacer) RecordFailure() {
	p.consecutiveFailures++
}

// ConsecutiveFailures returns the current failure streak.
func (p *Pacer) ConsecutiveFailures() int {
	return p.consecutiveFailures
}

func (p *Pacer) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

// sleepCtx sleeps for d or returns early with ctx's error.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
