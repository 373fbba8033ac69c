package games

import (
	"encoding/json"
	"fmt"

	"wagerledger/fairness"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// Prepared is a validated bet ready for outcome derivation
type Prepared struct {
	BetType    string          `json:"bet_type,omitempty"`
	HouseEdge  decimal.Decimal `json:"house_edge"`
	WinChance  decimal.Decimal `json:"win_chance,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier,omitempty"`
	// Params is the normalised form of the caller's parameters
	Params any `json:"params"`
}

// Draws gives a strategy access to the bet's primary outcome and its draw stream
type Draws struct {
	Outcome fairness.Outcome
	Stream  *fairness.Stream
}

// Result is what a game produced for one set of draws
type Result struct {
	Won        bool            `json:"won"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Detail     any             `json:"detail"`
}

// Settlement is the financial effect of a result
type Settlement struct {
	Status     models.RoundStatus
	Payout     decimal.Decimal
	Multiplier decimal.Decimal
}

// Strategy is the per-game part of single-step round resolution
type Strategy interface {
	GameType() models.GameType
	Validate(params json.RawMessage) (*Prepared, error)
	// Reprice validates params like Validate but prices them at edge instead of the table's edge
	Reprice(params json.RawMessage, edge decimal.Decimal) (*Prepared, error)
	ComputeResult(bet *Prepared, draws Draws) (*Result, error)
	Settle(stake decimal.Decimal, result *Result) Settlement
}

// settle credits stake * multiplier whenever the multiplier is positive.
// Partial returns (plinko buckets below 1x) are credited but the round is still LOST.
func settle(stake decimal.Decimal, result *Result) Settlement {
	if !result.Multiplier.IsPositive() {
		return Settlement{Status: models.RoundStatusLost, Payout: decimal.Zero, Multiplier: decimal.Zero}
	}

	status := models.RoundStatusLost
	if result.Won {
		status = models.RoundStatusWon
	}
	return Settlement{
		Status:     status,
		Payout:     payout.Payout(stake, result.Multiplier),
		Multiplier: result.Multiplier,
	}
}

func decodeParams(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: game parameters are required", models.ErrInvalidParameters)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: malformed game parameters: %v", models.ErrInvalidParameters, err)
	}
	return nil
}
