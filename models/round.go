package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GameType identifies a game and doubles as the outcome derivation salt
type GameType string

const (
	GameTypeDice      GameType = "dice"
	GameTypeLimbo     GameType = "limbo"
	GameTypeRoulette  GameType = "roulette"
	GameTypePlinko    GameType = "plinko"
	GameTypeBlackjack GameType = "blackjack"
)

// RoundStatus is the lifecycle state of a wager round
type RoundStatus string

const (
	RoundStatusPending          RoundStatus = "PENDING"
	RoundStatusActive           RoundStatus = "ACTIVE"
	RoundStatusInsurancePending RoundStatus = "INSURANCE_PENDING"
	RoundStatusWon              RoundStatus = "WON"
	RoundStatusLost             RoundStatus = "LOST"
	RoundStatusCompleted        RoundStatus = "COMPLETED"
)

// IsTerminal reports whether no further mutation is allowed
func (s RoundStatus) IsTerminal() bool {
	switch s {
	case RoundStatusWon, RoundStatusLost, RoundStatusCompleted:
		return true
	}
	return false
}

// WagerRound is a persisted round together with the inputs needed to re-derive its outcome
type WagerRound struct {
	ID               uuid.UUID       `db:"id"`
	UserID           int64           `db:"user_id"`
	GameType         GameType        `db:"game_type"`
	RequestID        string          `db:"request_id"`
	Asset            string          `db:"asset"`
	StakeAmount      decimal.Decimal `db:"stake_amount"`
	Status           RoundStatus     `db:"status"`
	SeedPairID       int64           `db:"seed_pair_id"`
	ServerSeedHash   string          `db:"server_seed_hash"`
	ClientSeed       string          `db:"client_seed"`
	Nonce            int64           `db:"nonce"`
	RawValue         float64         `db:"raw_value"`
	Params           json.RawMessage `db:"params"`
	Result           json.RawMessage `db:"result"`
	State            json.RawMessage `db:"state"`
	PayoutAmount     decimal.Decimal `db:"payout_amount"`
	PayoutMultiplier decimal.Decimal `db:"payout_multiplier"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	CompletedAt      *time.Time      `db:"completed_at"`
}

// FairnessProof carries everything a third party needs to recompute an outcome
type FairnessProof struct {
	SeedPairID     int64   `json:"seed_pair_id"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
	RawValue       float64 `json:"raw_value"`
}

// RoundResult is the caller-facing view of a round
type RoundResult struct {
	RoundID          uuid.UUID          `json:"round_id"`
	UserID           int64              `json:"user_id"`
	GameType         GameType           `json:"game_type"`
	Asset            string             `json:"asset"`
	Stake            decimal.Decimal    `json:"stake"`
	Status           RoundStatus        `json:"status"`
	Won              bool               `json:"won"`
	PayoutAmount     decimal.Decimal    `json:"payout_amount"`
	PayoutMultiplier decimal.Decimal    `json:"payout_multiplier"`
	Params           json.RawMessage    `json:"params,omitempty"`
	Result           json.RawMessage    `json:"result,omitempty"`
	Fairness         FairnessProof      `json:"fairness"`
	NewBalance       *decimal.Decimal   `json:"new_balance,omitempty"`
	Operations       []*LedgerOperation `json:"operations,omitempty"`
	DisplayPayout    *decimal.Decimal   `json:"display_payout,omitempty"`
	DisplayCurrency  string             `json:"display_currency,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewRoundResult builds the caller view of a persisted round
func NewRoundResult(r *WagerRound) *RoundResult {
	return &RoundResult{
		RoundID:          r.ID,
		UserID:           r.UserID,
		GameType:         r.GameType,
		Asset:            r.Asset,
		Stake:            r.StakeAmount,
		Status:           r.Status,
		Won:              r.Status == RoundStatusWon || (r.Status == RoundStatusCompleted && r.PayoutAmount.IsPositive()),
		PayoutAmount:     r.PayoutAmount,
		PayoutMultiplier: r.PayoutMultiplier,
		Params:           r.Params,
		Result:           r.Result,
		Fairness: FairnessProof{
			SeedPairID:     r.SeedPairID,
			ServerSeedHash: r.ServerSeedHash,
			ClientSeed:     r.ClientSeed,
			Nonce:          r.Nonce,
			RawValue:       r.RawValue,
		},
		CreatedAt: r.CreatedAt,
	}
}

// RoundState is the caller-facing view of a multi-step round. Table holds the
// game's own projection of its state, with hidden information withheld.
type RoundState struct {
	RoundID          uuid.UUID        `json:"round_id"`
	UserID           int64            `json:"user_id"`
	GameType         GameType         `json:"game_type"`
	Asset            string           `json:"asset"`
	Stake            decimal.Decimal  `json:"stake"`
	Status           RoundStatus      `json:"status"`
	Table            any              `json:"table"`
	LegalActions     []string         `json:"legal_actions"`
	PayoutAmount     decimal.Decimal  `json:"payout_amount"`
	PayoutMultiplier decimal.Decimal  `json:"payout_multiplier"`
	Fairness         FairnessProof    `json:"fairness"`
	NewBalance       *decimal.Decimal `json:"new_balance,omitempty"`
}
