package lock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	driftFactor   = 0.01
	driftConstant = 2 * time.Millisecond

	defaultStoreTimeout = 50 * time.Millisecond
)

// Locker acquires and manages leases on named keys
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration, policy RetryPolicy) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
	Extend(ctx context.Context, lease *Lease, ttl time.Duration) error
}

// Coordinator holds a lock when a majority of independent stores agree on it
type Coordinator struct {
	stores       []Store
	quorum       int
	storeTimeout time.Duration
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithStoreTimeout bounds each individual store call
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.storeTimeout = d
		}
	}
}

// NewCoordinator creates a coordinator over stores with quorum N/2+1
func NewCoordinator(stores []Store, opts ...Option) (*Coordinator, error) {
	if len(stores) == 0 {
		return nil, errors.New("lock coordinator needs at least one store")
	}
	c := &Coordinator{
		stores:       stores,
		quorum:       len(stores)/2 + 1,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Quorum returns the number of stores that must agree
func (c *Coordinator) Quorum() int {
	return c.quorum
}

// Acquire tries to take key on a quorum of stores, retrying per policy
func (c *Coordinator) Acquire(ctx context.Context, key string, ttl time.Duration, policy RetryPolicy) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	token := uuid.NewString()

	var deadline time.Time
	if policy.Timeout > 0 {
		deadline = time.Now().Add(policy.Timeout)
	}

	attempts := 0
	var lastErr error
	for {
		attempts++
		lease, err := c.attempt(ctx, key, token, ttl)
		if lease != nil {
			return lease, nil
		}
		if err != nil {
			lastErr = err
		}

		if attempts > policy.RetryCount {
			break
		}
		wait := jitter(policy.RetryDelay)
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &AcquisitionError{Key: key, Attempts: attempts, Cause: ctx.Err()}
		case <-time.After(wait):
		}
	}

	log.WithFields(log.Fields{
		"key":      key,
		"attempts": attempts,
	}).Debug("Lock not acquired")

	return nil, &AcquisitionError{Key: key, Attempts: attempts, Cause: lastErr}
}

// attempt makes one quorum round. A partial acquisition is rolled back.
func (c *Coordinator) attempt(ctx context.Context, key, token string, ttl time.Duration) (*Lease, error) {
	start := time.Now()

	results := c.fanOut(ctx, func(ctx context.Context, s Store) (bool, error) {
		return s.TryAcquire(ctx, key, token, ttl)
	})

	acquired := 0
	var lastErr error
	for _, r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		if r.ok {
			acquired++
		}
	}

	drift := time.Duration(float64(ttl)*driftFactor) + driftConstant
	validity := ttl - time.Since(start) - drift

	if acquired >= c.quorum && validity > 0 {
		return &Lease{Key: key, Token: token, ExpiresAt: start.Add(ttl - drift)}, nil
	}

	c.releaseAll(ctx, key, token)
	return nil, lastErr
}

// Release frees the lease on every store. Stores that no longer hold it are ignored.
func (c *Coordinator) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	results := c.releaseAll(ctx, lease.Key, lease.Token)
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	if len(errs) == len(c.stores) {
		return fmt.Errorf("failed to release lock %q: %w", lease.Key, errors.Join(errs...))
	}
	return nil
}

// Extend renews the lease on a quorum of stores, updating its expiry
func (c *Coordinator) Extend(ctx context.Context, lease *Lease, ttl time.Duration) error {
	if !lease.Valid() {
		return ErrLeaseLost
	}
	start := time.Now()
	results := c.fanOut(ctx, func(ctx context.Context, s Store) (bool, error) {
		return s.Extend(ctx, lease.Key, lease.Token, ttl)
	})

	extended := 0
	for _, r := range results {
		if r.err == nil && r.ok {
			extended++
		}
	}
	if extended < c.quorum {
		return ErrLeaseLost
	}

	drift := time.Duration(float64(ttl)*driftFactor) + driftConstant
	lease.ExpiresAt = start.Add(ttl - drift)
	return nil
}

func (c *Coordinator) releaseAll(ctx context.Context, key, token string) []storeResult {
	// Release must run even when the caller's context is already cancelled.
	return c.fanOut(context.WithoutCancel(ctx), func(ctx context.Context, s Store) (bool, error) {
		return s.Release(ctx, key, token)
	})
}

type storeResult struct {
	ok  bool
	err error
}

func (c *Coordinator) fanOut(ctx context.Context, call func(context.Context, Store) (bool, error)) []storeResult {
	results := make([]storeResult, len(c.stores))
	var wg sync.WaitGroup
	for i, s := range c.stores {
		wg.Add(1)
		go func(i int, s Store) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
			defer cancel()
			ok, err := call(sctx, s)
			results[i] = storeResult{ok: ok, err: err}
		}(i, s)
	}
	wg.Wait()
	return results
}

// WithLock runs fn while holding key. The lease is released on return or panic.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, policy RetryPolicy, fn func(ctx context.Context, lease *Lease) error) error {
	lease, err := locker.Acquire(ctx, key, ttl, policy)
	if err != nil {
		return err
	}
	defer func() {
		if err := locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			log.WithError(err).WithField("key", key).Warn("Failed to release lock")
		}
	}()

	return fn(ctx, lease)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int64N(int64(d)))
}
