package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sjperalta/transfer-ledger/internal/metrics"
	"github.com/sjperalta/transfer-ledger/internal/repository"
	"github.com/sjperalta/transfer-ledger/pkg/logger"
)

// retryPolicy bounds how often a conflicting unit of work is replayed
type retryPolicy struct {
	maxAttempts int
	baseBackoff time.Duration
}

// backoff grows exponentially with full jitter, capped at 32x base
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.baseBackoff <= 0 {
		return 0
	}
	shift := attempt
	if shift > 5 {
		shift = 5
	}
	ceiling := p.baseBackoff << shift
	return p.baseBackoff/2 + time.Duration(rand.Int63n(int64(ceiling)))
}

// run calls fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. Exhaustion is reported as ErrLedgerBusy.
func (p retryPolicy) run(ctx context.Context, op string, fn func() error) error {
	attempts := p.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !repository.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		metrics.LedgerConflictRetries.Inc()
		logger.Debug("[Ledger] Write conflict, retrying", "op", op, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	metrics.LedgerBusy.Inc()
	logger.Warn("[Ledger] Retries exhausted", "op", op, "attempts", attempts, "error", err)
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrLedgerBusy, op, attempts, err)
}

// keyedMutex serializes work per key inside this process
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
