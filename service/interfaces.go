package service

import (
	"context"
	"encoding/json"
	"time"

	"wagerledger/events"
	"wagerledger/games/blackjack"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedPairRepository defines the interface for seed pair data access
type SeedPairRepository interface {
	// GetActive returns the user's unrevealed pair, or nil if there is none
	GetActive(ctx context.Context, userID int64) (*models.SeedPair, error)

	// GetByID retrieves a seed pair by its ID
	GetByID(ctx context.Context, id int64) (*models.SeedPair, error)

	// Create inserts a new active pair, reporting false if the user already has one
	Create(ctx context.Context, pair *models.SeedPair) (bool, error)

	// IncrementNonce atomically consumes the pair's next nonce and returns it
	IncrementNonce(ctx context.Context, id int64) (int64, error)

	// Reveal retires the pair; a revealed pair is never mutated again
	Reveal(ctx context.Context, id int64, at time.Time) error
}

// RoundRepository defines the interface for wager round data access
type RoundRepository interface {
	// Create inserts a round. A repeated request id returns ErrDuplicateRequest and a
	// second in-play round for the same game returns ErrActiveRoundExists.
	Create(ctx context.Context, round *models.WagerRound) error

	// GetByID retrieves a round by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.WagerRound, error)

	// GetByIDForUpdate retrieves a round and locks its row for the transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WagerRound, error)

	// GetByRequestID retrieves a round by the caller's idempotency key
	GetByRequestID(ctx context.Context, userID int64, requestID string) (*models.WagerRound, error)

	// GetActive returns the user's in-play round for a game, or nil
	GetActive(ctx context.Context, userID int64, gameType models.GameType) (*models.WagerRound, error)

	// Update persists a non-terminal round's mutable fields. Updating a round that is
	// already terminal returns ErrRoundNotActive.
	Update(ctx context.Context, round *models.WagerRound) error

	// GetByUser returns the user's most recent rounds
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.WagerRound, error)
}

// LedgerRepository defines the interface for balances and ledger operations
type LedgerRepository interface {
	// InsertOperation records op unless its operation id exists. It reports whether a row was inserted.
	InsertOperation(ctx context.Context, op *models.LedgerOperation) (bool, error)

	// GetOperation retrieves an operation by its id, or nil
	GetOperation(ctx context.Context, operationID string) (*models.LedgerOperation, error)

	// Debit subtracts amount if the balance covers it, else returns ErrInsufficientBalance
	Debit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (before, after decimal.Decimal, err error)

	// Credit adds amount, creating the balance row if needed
	Credit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (before, after decimal.Decimal, err error)

	// SetBalances records the balance around an applied operation
	SetBalances(ctx context.Context, operationID string, before, after decimal.Decimal) error

	// GetBalance returns the user's balance, zero if they hold none
	GetBalance(ctx context.Context, userID int64, asset string) (decimal.Decimal, error)

	// GetByRound returns a round's operations in application order
	GetByRound(ctx context.Context, roundID uuid.UUID) ([]*models.LedgerOperation, error)
}

// EventPublisher queues events until the surrounding unit of work commits
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction and discards queued events
	Rollback() error

	// Repository getters
	SeedPairRepository() SeedPairRepository
	RoundRepository() RoundRepository
	LedgerRepository() LedgerRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Metrics records business measurements
type Metrics interface {
	RecordBet(ctx context.Context, gameType models.GameType, status models.RoundStatus, asset string, stake, payout decimal.Decimal)
	RecordLockBusy(ctx context.Context, gameType models.GameType)
	RecordLedgerGroup(ctx context.Context, operations int, alreadyApplied bool)
}

// RateLookup converts an asset amount into a display currency
type RateLookup interface {
	Rate(ctx context.Context, asset string) (rate decimal.Decimal, currency string, err error)
}

// PlaceBetRequest is a single-step bet
type PlaceBetRequest struct {
	UserID    int64
	GameType  models.GameType
	Asset     string
	Stake     decimal.Decimal
	RequestID string
	Params    json.RawMessage
}

// StartRoundRequest opens a blackjack round
type StartRoundRequest struct {
	UserID    int64
	Asset     string
	Stake     decimal.Decimal
	RequestID string
	SideBets  blackjack.SideBetStakes
}

// Action is a blackjack decision. Step must equal the number of actions already
// applied to the round, so a resubmitted or stale action is rejected.
type Action struct {
	Kind blackjack.ActionKind
	Step int
}

// LedgerService applies idempotent balance mutations
type LedgerService interface {
	ApplyOperations(ctx context.Context, ops []*models.LedgerOperation) (*models.LedgerResult, error)
	GetBalance(ctx context.Context, userID int64, asset string) (decimal.Decimal, error)
}

// WageringService resolves single-step games
type WageringService interface {
	PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.RoundResult, error)
}

// BlackjackService runs multi-step blackjack rounds
type BlackjackService interface {
	StartRound(ctx context.Context, req StartRoundRequest) (*models.RoundState, error)
	SubmitAction(ctx context.Context, userID int64, roundID uuid.UUID, action Action) (*models.RoundState, error)
	GetRoundState(ctx context.Context, userID int64, roundID uuid.UUID) (*models.RoundState, error)
}

// SeedService manages provably-fair seed commitments
type SeedService interface {
	GetActiveSeed(ctx context.Context, userID int64) (*models.SeedCommitment, error)
	RotateSeed(ctx context.Context, userID int64, newClientSeed string) (*models.SeedRotation, error)
	RevealSeed(ctx context.Context, seedPairID int64) (string, error)
	VerifyRound(ctx context.Context, roundID uuid.UUID) (*models.RoundVerification, error)
}

// HistoryService serves read-only round queries
type HistoryService interface {
	GetRoundHistory(ctx context.Context, userID int64, limit int) ([]*models.RoundResult, error)
	GetRoundByID(ctx context.Context, roundID uuid.UUID) (*models.RoundResult, error)
}
