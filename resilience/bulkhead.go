package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// Errors returned by Acquire when no slot is granted.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	// Name identifies the bulkhead in OnReject and in logs.
	Name string
	// MaxConcurrent is the number of slots. It defaults to 10.
	MaxConcurrent int
	// MaxWait is how long Acquire queues for a slot. Zero rejects at once.
	MaxWait time.Duration
	// OnReject is called each time Acquire fails.
	OnReject func(name string)
}

// Bulkhead caps concurrent work such as live dictation sessions.
type Bulkhead struct {
	cfg BulkheadConfig
	sem *semaphore.Weighted
}

// NewBulkhead creates a bulkhead with cfg.MaxConcurrent free slots.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Bulkhead{cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent))}
}

// Acquire takes a slot. It fails with ErrBulkheadFull, ErrBulkheadTimeout
// or the ctx error; a nil return must be paired with Release.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	err := b.acquire(ctx)
	if err != nil && b.cfg.OnReject != nil {
		b.cfg.OnReject(b.cfg.Name)
	}
	return err
}

// acquire takes a free slot at once, or waits up to MaxWait for one.
func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		return nil
	}
	if b.cfg.MaxWait <= 0 {
		return ErrBulkheadFull
	}
	waitCtx, cancel := context.WithTimeoutCause(ctx, b.cfg.MaxWait, ErrBulkheadTimeout)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return context.Cause(waitCtx)
	}
	return nil
}

// Release returns a slot taken by a successful Acquire.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
}
