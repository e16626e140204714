package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/colligo/internal/common"
)

func testPacer() *Pacer {
	return NewPacer(common.DefaultConfig().Pacing)
}

func TestPacer_DelayBounds(t *testing.T) {
	p := testPacer()

	for i := 0; i < 50; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 8*time.Second+500*time.Millisecond)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestPacer_FailurePenaltyGrowsAndCaps(t *testing.T) {
	p := testPacer()

	baseline := p.Delay()

	p.RecordFailure()
	p.RecordFailure()
	withPenalty := p.Delay()

	// Two failures add 10s of penalty; jitter spans at most 1.5s, so the
	// penalized delay always exceeds the baseline.
	assert.Greater(t, withPenalty, baseline)

	for i := 0; i < 20; i++ {
		p.RecordFailure()
	}
	assert.LessOrEqual(t, p.Delay(), 30*time.Second)

	p.RecordSuccess()
	assert.Equal(t, 0, p.ConsecutiveFailures())
}

func TestPacer_RetryBackoffGrowsExponentially(t *testing.T) {
	p := testPacer()
	base := 10 * time.Second

	// Attempt n waits base*2^(n-2) plus 1-5s of jitter; the deterministic
	// component doubles every attempt so expectation is non-decreasing.
	for attempt := 2; attempt <= 5; attempt++ {
		expected := base << (attempt - 2)
		d := p.RetryDelay(attempt, base)
		assert.GreaterOrEqual(t, d, expected+retryJitterMin)
		assert.LessOrEqual(t, d, expected+retryJitterMax)
	}
}

func TestPacer_FailedModeDelayBounds(t *testing.T) {
	p := testPacer()
	base := 15 * time.Second

	for i := 0; i < 20; i++ {
		d := p.FailedModeDelay(base)
		assert.GreaterOrEqual(t, d, base+failedJitterMin)
		assert.LessOrEqual(t, d, base+failedJitterMax)
	}
}
