package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationKind is the direction of a ledger operation
type OperationKind string

const (
	OperationKindDebit  OperationKind = "DEBIT"
	OperationKindCredit OperationKind = "CREDIT"
)

// Valid reports whether k is a known kind
func (k OperationKind) Valid() bool {
	return k == OperationKindDebit || k == OperationKindCredit
}

// Metadata keys recorded on ledger operations
const (
	MetadataHouseEdgePercent  = "house_edge_percent"
	MetadataExpectedHouseTake = "expected_house_take"
	MetadataGameType          = "game_type"
	MetadataComponent         = "component"
)

// LedgerOperation is one idempotent balance mutation
type LedgerOperation struct {
	ID            int64            `db:"id"`
	OperationID   string           `db:"operation_id"`
	UserID        int64            `db:"user_id"`
	Asset         string           `db:"asset"`
	Kind          OperationKind    `db:"kind"`
	Amount        decimal.Decimal  `db:"amount"`
	RoundID       *uuid.UUID       `db:"round_id"`
	BalanceBefore *decimal.Decimal `db:"balance_before"`
	BalanceAfter  *decimal.Decimal `db:"balance_after"`
	Metadata      map[string]any   `db:"metadata"`
	CreatedAt     time.Time        `db:"created_at"`
}

// LedgerResult is the outcome of applying an operation group
type LedgerResult struct {
	// AlreadyApplied is set when every operation in the group had been recorded before
	AlreadyApplied bool
	NewBalance     decimal.Decimal
	Operations     []*LedgerOperation
}

// Balance is a user's holding of one asset
type Balance struct {
	UserID    int64           `db:"user_id"`
	Asset     string          `db:"asset"`
	Amount    decimal.Decimal `db:"amount"`
	UpdatedAt time.Time       `db:"updated_at"`
}
