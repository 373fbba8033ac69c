package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerledger/database"
	"wagerledger/models"

	"github.com/jackc/pgx/v5"
)

const seedPairColumns = `id, user_id, server_seed, server_seed_hash, client_seed, nonce, created_at, revealed_at`

// SeedPairRepository implements the SeedPairRepository interface
type SeedPairRepository struct {
	q queryable
}

// NewSeedPairRepository creates a new seed pair repository
func NewSeedPairRepository(db *database.DB) *SeedPairRepository {
	return &SeedPairRepository{q: db.Pool}
}

func newSeedPairRepositoryWithTx(tx queryable) *SeedPairRepository {
	return &SeedPairRepository{q: tx}
}

// GetActive returns the user's unrevealed pair
func (r *SeedPairRepository) GetActive(ctx context.Context, userID int64) (*models.SeedPair, error) {
	query := `SELECT ` + seedPairColumns + ` FROM seed_pairs WHERE user_id = $1 AND revealed_at IS NULL`

	pair, err := scanSeedPair(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active seed pair for user %d: %w", userID, err)
	}
	return pair, nil
}

// GetByID retrieves a seed pair by its ID
func (r *SeedPairRepository) GetByID(ctx context.Context, id int64) (*models.SeedPair, error) {
	query := `SELECT ` + seedPairColumns + ` FROM seed_pairs WHERE id = $1`

	pair, err := scanSeedPair(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seed pair %d: %w", id, err)
	}
	return pair, nil
}

// Create inserts pair as the user's active pair. It reports false, leaving pair
// untouched, when the user already has one.
func (r *SeedPairRepository) Create(ctx context.Context, pair *models.SeedPair) (bool, error) {
	query := `
		INSERT INTO seed_pairs (user_id, server_seed, server_seed_hash, client_seed, nonce)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) WHERE revealed_at IS NULL DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		pair.UserID,
		pair.ServerSeed,
		pair.ServerSeedHash,
		pair.ClientSeed,
		pair.Nonce,
	).Scan(&pair.ID, &pair.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create seed pair for user %d: %w", pair.UserID, err)
	}
	return true, nil
}

// IncrementNonce consumes the next nonce of an unrevealed pair. The stored
// nonce counts the bets placed, so the first bet uses 1.
func (r *SeedPairRepository) IncrementNonce(ctx context.Context, id int64) (int64, error) {
	query := `
		UPDATE seed_pairs
		SET nonce = nonce + 1
		WHERE id = $1 AND revealed_at IS NULL
		RETURNING nonce
	`

	var nonce int64
	err := r.q.QueryRow(ctx, query, id).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: seed pair %d is missing or revealed", models.ErrIntegrity, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment nonce for seed pair %d: %w", id, err)
	}
	return nonce, nil
}

// Reveal retires an unrevealed pair
func (r *SeedPairRepository) Reveal(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE seed_pairs SET revealed_at = $2 WHERE id = $1 AND revealed_at IS NULL`

	tag, err := r.q.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to reveal seed pair %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: seed pair %d is missing or already revealed", models.ErrIntegrity, id)
	}
	return nil
}

func scanSeedPair(row pgx.Row) (*models.SeedPair, error) {
	var pair models.SeedPair
	err := row.Scan(
		&pair.ID,
		&pair.UserID,
		&pair.ServerSeed,
		&pair.ServerSeedHash,
		&pair.ClientSeed,
		&pair.Nonce,
		&pair.CreatedAt,
		&pair.RevealedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}
