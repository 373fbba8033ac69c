package repository

import (
	"context"
	"errors"
	"fmt"

	"wagerledger/database"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const roundColumns = `
	id, user_id, game_type, request_id, asset, stake_amount::text, status,
	seed_pair_id, server_seed_hash, client_seed, nonce, raw_value,
	params, result, state, payout_amount::text, payout_multiplier::text,
	created_at, updated_at, completed_at`

const (
	constraintRoundRequest   = "uq_wager_rounds_request"
	constraintRoundActive    = "idx_wager_rounds_active"
	constraintRoundSeedNonce = "uq_wager_rounds_seed_nonce"
)

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

// Create inserts a new round
func (r *RoundRepository) Create(ctx context.Context, round *models.WagerRound) error {
	query := `
		INSERT INTO wager_rounds (
			id, user_id, game_type, request_id, asset, stake_amount, status,
			seed_pair_id, server_seed_hash, client_seed, nonce, raw_value,
			params, result, state, payout_amount, payout_multiplier, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::numeric, $17::numeric, $18)
		RETURNING created_at, updated_at
	`

	params := round.Params
	if len(params) == 0 {
		params = []byte("{}")
	}

	err := r.q.QueryRow(ctx, query,
		round.ID,
		round.UserID,
		round.GameType,
		round.RequestID,
		round.Asset,
		round.StakeAmount.String(),
		round.Status,
		round.SeedPairID,
		round.ServerSeedHash,
		round.ClientSeed,
		round.Nonce,
		round.RawValue,
		[]byte(params),
		nullableJSON(round.Result),
		nullableJSON(round.State),
		round.PayoutAmount.String(),
		round.PayoutMultiplier.String(),
		round.CompletedAt,
	).Scan(&round.CreatedAt, &round.UpdatedAt)

	switch uniqueViolation(err) {
	case "":
	case constraintRoundRequest:
		return fmt.Errorf("%w: request %s already placed", models.ErrDuplicateRequest, round.RequestID)
	case constraintRoundActive:
		return fmt.Errorf("%w: user %d already has an active %s round", models.ErrActiveRoundExists, round.UserID, round.GameType)
	case constraintRoundSeedNonce:
		return fmt.Errorf("%w: nonce %d of seed pair %d already used", models.ErrIntegrity, round.Nonce, round.SeedPairID)
	default:
		return fmt.Errorf("failed to create round %s: %w", round.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to create round %s: %w", round.ID, err)
	}
	return nil
}

// GetByID retrieves a round by its ID
func (r *RoundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WagerRound, error) {
	return r.getOne(ctx, `SELECT `+roundColumns+` FROM wager_rounds WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a round and locks its row
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WagerRound, error) {
	return r.getOne(ctx, `SELECT `+roundColumns+` FROM wager_rounds WHERE id = $1 FOR UPDATE`, id)
}

// GetByRequestID retrieves a round by idempotency key
func (r *RoundRepository) GetByRequestID(ctx context.Context, userID int64, requestID string) (*models.WagerRound, error) {
	return r.getOne(ctx, `SELECT `+roundColumns+` FROM wager_rounds WHERE user_id = $1 AND request_id = $2`, userID, requestID)
}

// GetActive returns the user's in-play round for a game
func (r *RoundRepository) GetActive(ctx context.Context, userID int64, gameType models.GameType) (*models.WagerRound, error) {
	query := `SELECT ` + roundColumns + `
		FROM wager_rounds
		WHERE user_id = $1 AND game_type = $2 AND status IN ('ACTIVE', 'INSURANCE_PENDING')`
	return r.getOne(ctx, query, userID, gameType)
}

// Update persists a round that has not yet reached a terminal status
func (r *RoundRepository) Update(ctx context.Context, round *models.WagerRound) error {
	query := `
		UPDATE wager_rounds
		SET status = $2,
		    result = $3,
		    state = $4,
		    payout_amount = $5::numeric,
		    payout_multiplier = $6::numeric,
		    completed_at = $7,
		    updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('WON', 'LOST', 'COMPLETED')
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.ID,
		round.Status,
		nullableJSON(round.Result),
		nullableJSON(round.State),
		round.PayoutAmount.String(),
		round.PayoutMultiplier.String(),
		round.CompletedAt,
	).Scan(&round.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: round %s", models.ErrRoundNotActive, round.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update round %s: %w", round.ID, err)
	}
	return nil
}

// GetByUser returns the user's most recent rounds, newest first
func (r *RoundRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.WagerRound, error) {
	query := `SELECT ` + roundColumns + `
		FROM wager_rounds
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get rounds for user %d: %w", userID, err)
	}
	defer rows.Close()

	var rounds []*models.WagerRound
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}
	return rounds, nil
}

func (r *RoundRepository) getOne(ctx context.Context, query string, args ...any) (*models.WagerRound, error) {
	round, err := scanRound(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

func scanRound(row pgx.Row) (*models.WagerRound, error) {
	var round models.WagerRound
	var stake, payoutAmount, payoutMultiplier string
	var params, result, state []byte

	err := row.Scan(
		&round.ID,
		&round.UserID,
		&round.GameType,
		&round.RequestID,
		&round.Asset,
		&stake,
		&round.Status,
		&round.SeedPairID,
		&round.ServerSeedHash,
		&round.ClientSeed,
		&round.Nonce,
		&round.RawValue,
		&params,
		&result,
		&state,
		&payoutAmount,
		&payoutMultiplier,
		&round.CreatedAt,
		&round.UpdatedAt,
		&round.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if round.StakeAmount, err = parseDecimal(stake); err != nil {
		return nil, err
	}
	if round.PayoutAmount, err = parseDecimal(payoutAmount); err != nil {
		return nil, err
	}
	if round.PayoutMultiplier, err = parseDecimal(payoutMultiplier); err != nil {
		return nil, err
	}
	round.Params = params
	round.Result = result
	round.State = state
	return &round, nil
}

// nullableJSON stores an empty document as SQL NULL
func nullableJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
