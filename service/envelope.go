package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerledger/lock"
	"wagerledger/models"
)

// LockSettings configures how mutations take the per-user game lock
type LockSettings struct {
	TTL    time.Duration
	Policy lock.RetryPolicy
}

// envelope runs a mutation under the (user, game) lock inside one unit of work.
// The transaction is committed only while the lease is still valid.
type envelope struct {
	locker     lock.Locker
	uowFactory UnitOfWorkFactory
	settings   LockSettings
	metrics    Metrics
}

func newEnvelope(locker lock.Locker, uowFactory UnitOfWorkFactory, settings LockSettings, metrics Metrics) *envelope {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if settings.TTL <= 0 {
		settings.TTL = 5 * time.Second
	}
	return &envelope{
		locker:     locker,
		uowFactory: uowFactory,
		settings:   settings,
		metrics:    metrics,
	}
}

func (e *envelope) run(ctx context.Context, userID int64, gameType models.GameType, fn func(ctx context.Context, uow UnitOfWork) error) error {
	key := lock.WagerKey(userID, string(gameType))
	err := lock.WithLock(ctx, e.locker, key, e.settings.TTL, e.settings.Policy, func(ctx context.Context, lease *lock.Lease) error {
		return e.transact(ctx, lease.Valid, fn)
	})
	return e.mapLockError(ctx, gameType, err)
}

// runAll holds the locks for every game in order before running fn
func (e *envelope) runAll(ctx context.Context, userID int64, gameTypes []models.GameType, fn func(ctx context.Context, uow UnitOfWork) error) error {
	var leases []*lock.Lease
	var acquire func(ctx context.Context, i int) error
	acquire = func(ctx context.Context, i int) error {
		if i == len(gameTypes) {
			return e.transact(ctx, func() bool {
				for _, l := range leases {
					if !l.Valid() {
						return false
					}
				}
				return true
			}, fn)
		}
		key := lock.WagerKey(userID, string(gameTypes[i]))
		err := lock.WithLock(ctx, e.locker, key, e.settings.TTL, e.settings.Policy, func(ctx context.Context, lease *lock.Lease) error {
			leases = append(leases, lease)
			return acquire(ctx, i+1)
		})
		var acqErr *lock.AcquisitionError
		if errors.As(err, &acqErr) && acqErr.Key == key {
			e.metrics.RecordLockBusy(ctx, gameTypes[i])
		}
		return err
	}
	return e.mapLockError(ctx, "", acquire(ctx, 0))
}

func (e *envelope) transact(ctx context.Context, leaseValid func() bool, fn func(ctx context.Context, uow UnitOfWork) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(ctx, uow); err != nil {
		return err
	}

	if !leaseValid() {
		return lock.ErrLeaseLost
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (e *envelope) mapLockError(ctx context.Context, gameType models.GameType, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrNotAcquired):
		if gameType != "" {
			e.metrics.RecordLockBusy(ctx, gameType)
		}
		return fmt.Errorf("%w: %v", models.ErrBusy, err)
	case errors.Is(err, lock.ErrLeaseLost):
		return fmt.Errorf("%w: %v", models.ErrBusy, err)
	default:
		return err
	}
}
