package editors

import (
	"context"
	"sync"
	"time"
)

// SyntheticProgress is a cosmetic upload indicator. It creeps towards
// ProgressCeiling on a timer and only reaches 100 when Complete is called.
// It measures nothing about the actual transfer.
type SyntheticProgress struct {
	mu    sync.Mutex
	value int
	step  int
	done  bool
}

// ProgressCeiling is the highest value the timer alone can reach.
const ProgressCeiling = 90

// NewSyntheticProgress returns an indicator that advances by step per tick.
func NewSyntheticProgress(step int) *SyntheticProgress {
	if step <= 0 {
		step = 10
	}
	return &SyntheticProgress{step: step}
}

// Value returns the current percentage.
func (p *SyntheticProgress) Value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Advance moves one step, stopping at ProgressCeiling.
func (p *SyntheticProgress) Advance() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.value
	}
	p.value += p.step
	if p.value > ProgressCeiling {
		p.value = ProgressCeiling
	}
	return p.value
}

// Complete snaps to 100.
func (p *SyntheticProgress) Complete() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.value = 100
	return p.value
}

// Run advances every interval and reports each value to onTick until ctx is
// cancelled or Complete has been called.
func (p *SyntheticProgress) Run(ctx context.Context, interval time.Duration, onTick func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			done := p.done
			p.mu.Unlock()
			if done {
				return
			}
			v := p.Advance()
			if onTick != nil {
				onTick(v)
			}
		}
	}
}
