package service

import (
	"context"
	"time"

	"wagerledger/events"
	"wagerledger/lock"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockSeedPairRepository is a mock implementation of SeedPairRepository
type MockSeedPairRepository struct {
	mock.Mock
}

func (m *MockSeedPairRepository) GetActive(ctx context.Context, userID int64) (*models.SeedPair, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SeedPair), args.Error(1)
}

func (m *MockSeedPairRepository) GetByID(ctx context.Context, id int64) (*models.SeedPair, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SeedPair), args.Error(1)
}

func (m *MockSeedPairRepository) Create(ctx context.Context, pair *models.SeedPair) (bool, error) {
	args := m.Called(ctx, pair)
	return args.Bool(0), args.Error(1)
}

func (m *MockSeedPairRepository) IncrementNonce(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSeedPairRepository) Reveal(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockRoundRepository is a mock implementation of RoundRepository
type MockRoundRepository struct {
	mock.Mock
}

func (m *MockRoundRepository) Create(ctx context.Context, round *models.WagerRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockRoundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WagerRound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerRound), args.Error(1)
}

func (m *MockRoundRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WagerRound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerRound), args.Error(1)
}

func (m *MockRoundRepository) GetByRequestID(ctx context.Context, userID int64, requestID string) (*models.WagerRound, error) {
	args := m.Called(ctx, userID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerRound), args.Error(1)
}

func (m *MockRoundRepository) GetActive(ctx context.Context, userID int64, gameType models.GameType) (*models.WagerRound, error) {
	args := m.Called(ctx, userID, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerRound), args.Error(1)
}

func (m *MockRoundRepository) Update(ctx context.Context, round *models.WagerRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockRoundRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.WagerRound, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerRound), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) InsertOperation(ctx context.Context, op *models.LedgerOperation) (bool, error) {
	args := m.Called(ctx, op)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) GetOperation(ctx context.Context, operationID string) (*models.LedgerOperation, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerOperation), args.Error(1)
}

func (m *MockLedgerRepository) Debit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, userID, asset, amount)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockLedgerRepository) Credit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, userID, asset, amount)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockLedgerRepository) SetBalances(ctx context.Context, operationID string, before, after decimal.Decimal) error {
	args := m.Called(ctx, operationID, before, after)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, userID int64, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) GetByRound(ctx context.Context, roundID uuid.UUID) ([]*models.LedgerOperation, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerOperation), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	seedPairRepo SeedPairRepository
	roundRepo    RoundRepository
	ledgerRepo   LedgerRepository
	eventBus     EventPublisher
}

// SetRepositories sets the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(seedPairRepo SeedPairRepository, roundRepo RoundRepository, ledgerRepo LedgerRepository, eventBus EventPublisher) {
	m.seedPairRepo = seedPairRepo
	m.roundRepo = roundRepo
	m.ledgerRepo = ledgerRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) SeedPairRepository() SeedPairRepository {
	return m.seedPairRepo
}

func (m *MockUnitOfWork) RoundRepository() RoundRepository {
	return m.roundRepo
}

func (m *MockUnitOfWork) LedgerRepository() LedgerRepository {
	return m.ledgerRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockLocker is a mock implementation of lock.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration, policy lock.RetryPolicy) (*lock.Lease, error) {
	args := m.Called(ctx, key, ttl, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lock.Lease), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, lease *lock.Lease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

func (m *MockLocker) Extend(ctx context.Context, lease *lock.Lease, ttl time.Duration) error {
	args := m.Called(ctx, lease, ttl)
	return args.Error(0)
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordBet(ctx context.Context, gameType models.GameType, status models.RoundStatus, asset string, stake, payout decimal.Decimal) {
	m.Called(ctx, gameType, status, asset, stake, payout)
}

func (m *MockMetrics) RecordLockBusy(ctx context.Context, gameType models.GameType) {
	m.Called(ctx, gameType)
}

func (m *MockMetrics) RecordLedgerGroup(ctx context.Context, operations int, alreadyApplied bool) {
	m.Called(ctx, operations, alreadyApplied)
}
