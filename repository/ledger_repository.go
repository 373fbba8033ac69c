package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wagerledger/database"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const operationColumns = `
	id, operation_id, user_id, asset, kind, amount::text, round_id,
	balance_before::text, balance_after::text, metadata, created_at`

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// InsertOperation records op unless its operation id already exists
func (r *LedgerRepository) InsertOperation(ctx context.Context, op *models.LedgerOperation) (bool, error) {
	metadataJSON, err := json.Marshal(op.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal operation metadata: %w", err)
	}
	if op.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	query := `
		INSERT INTO ledger_operations (operation_id, user_id, asset, kind, amount, round_id, metadata)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		ON CONFLICT (operation_id) DO NOTHING
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		op.OperationID,
		op.UserID,
		op.Asset,
		op.Kind,
		op.Amount.String(),
		op.RoundID,
		metadataJSON,
	).Scan(&op.ID, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger operation %s: %w", op.OperationID, err)
	}
	return true, nil
}

// GetOperation retrieves an operation by its operation id
func (r *LedgerRepository) GetOperation(ctx context.Context, operationID string) (*models.LedgerOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM ledger_operations WHERE operation_id = $1`

	op, err := scanOperation(r.q.QueryRow(ctx, query, operationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger operation %s: %w", operationID, err)
	}
	return op, nil
}

// Debit subtracts amount when the balance covers it
func (r *LedgerRepository) Debit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		UPDATE balances
		SET amount = amount - $3::numeric, updated_at = NOW()
		WHERE user_id = $1 AND asset = $2 AND amount >= $3::numeric
		RETURNING (amount + $3::numeric)::text, amount::text
	`

	before, after, err := r.scanBeforeAfter(r.q.QueryRow(ctx, query, userID, asset, amount.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: user %d cannot cover %s %s", models.ErrInsufficientBalance, userID, amount, asset)
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to debit user %d: %w", userID, err)
	}
	return before, after, nil
}

// Credit adds amount, creating the balance row if needed
func (r *LedgerRepository) Credit(ctx context.Context, userID int64, asset string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		INSERT INTO balances (user_id, asset, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (user_id, asset)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()
		RETURNING (amount - $3::numeric)::text, amount::text
	`

	before, after, err := r.scanBeforeAfter(r.q.QueryRow(ctx, query, userID, asset, amount.String()))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	return before, after, nil
}

// SetBalances records the balance around an applied operation
func (r *LedgerRepository) SetBalances(ctx context.Context, operationID string, before, after decimal.Decimal) error {
	query := `
		UPDATE ledger_operations
		SET balance_before = $2::numeric, balance_after = $3::numeric
		WHERE operation_id = $1
	`

	tag, err := r.q.Exec(ctx, query, operationID, before.String(), after.String())
	if err != nil {
		return fmt.Errorf("failed to record balances for operation %s: %w", operationID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: ledger operation %s not found", models.ErrIntegrity, operationID)
	}
	return nil
}

// GetBalance returns the user's balance of asset
func (r *LedgerRepository) GetBalance(ctx context.Context, userID int64, asset string) (decimal.Decimal, error) {
	var amount string
	err := r.q.QueryRow(ctx, `SELECT amount::text FROM balances WHERE user_id = $1 AND asset = $2`, userID, asset).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance for user %d: %w", userID, err)
	}
	return parseDecimal(amount)
}

// GetByRound returns a round's operations in application order
func (r *LedgerRepository) GetByRound(ctx context.Context, roundID uuid.UUID) ([]*models.LedgerOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM ledger_operations WHERE round_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger operations for round %s: %w", roundID, err)
	}
	defer rows.Close()

	var ops []*models.LedgerOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger operations: %w", err)
	}
	return ops, nil
}

func (r *LedgerRepository) scanBeforeAfter(row pgx.Row) (decimal.Decimal, decimal.Decimal, error) {
	var beforeText, afterText string
	if err := row.Scan(&beforeText, &afterText); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	before, err := parseDecimal(beforeText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	after, err := parseDecimal(afterText)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, after, nil
}

func scanOperation(row pgx.Row) (*models.LedgerOperation, error) {
	var op models.LedgerOperation
	var amount string
	var before, after *string
	var metadataJSON []byte

	err := row.Scan(
		&op.ID,
		&op.OperationID,
		&op.UserID,
		&op.Asset,
		&op.Kind,
		&amount,
		&op.RoundID,
		&before,
		&after,
		&metadataJSON,
		&op.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if op.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if op.BalanceBefore, err = parseNullableDecimal(before); err != nil {
		return nil, err
	}
	if op.BalanceAfter, err = parseNullableDecimal(after); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &op.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation metadata: %w", err)
		}
	}
	return &op, nil
}
