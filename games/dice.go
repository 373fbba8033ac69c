package games

import (
	"encoding/json"
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

const (
	DiceUnder = "under"
	DiceOver  = "over"

	// rolls run 0.00 through 100.00
	diceOutcomes = 10001
)

var (
	diceMinChance = decimal.RequireFromString("0.01")
	diceMaxChance = decimal.RequireFromString("98")
)

// DiceParams selects a target and whether the roll must land under or over it
type DiceParams struct {
	Target    decimal.Decimal `json:"target"`
	Condition string          `json:"condition"`
}

// DiceDetail is the rolled value
type DiceDetail struct {
	Roll      decimal.Decimal `json:"roll"`
	Target    decimal.Decimal `json:"target"`
	Condition string          `json:"condition"`
}

type dice struct {
	edges *payout.EdgeTable
}

// NewDice creates the dice strategy
func NewDice(edges *payout.EdgeTable) Strategy {
	return &dice{edges: edges}
}

func (g *dice) GameType() models.GameType {
	return models.GameTypeDice
}

func (g *dice) Validate(raw json.RawMessage) (*Prepared, error) {
	params, chance, err := parseDice(raw)
	if err != nil {
		return nil, err
	}
	edge, err := g.edges.For(models.GameTypeDice, params.Condition)
	if err != nil {
		return nil, err
	}
	return priceDice(params, chance, edge)
}

func (g *dice) Reprice(raw json.RawMessage, edge decimal.Decimal) (*Prepared, error) {
	params, chance, err := parseDice(raw)
	if err != nil {
		return nil, err
	}
	return priceDice(params, chance, edge)
}

func parseDice(raw json.RawMessage) (DiceParams, decimal.Decimal, error) {
	var params DiceParams
	if err := decodeParams(raw, &params); err != nil {
		return params, decimal.Zero, err
	}

	if !params.Target.Equal(params.Target.Truncate(2)) {
		return params, decimal.Zero, fmt.Errorf("%w: dice target has more than 2 decimal places", models.ErrInvalidParameters)
	}

	var chance decimal.Decimal
	switch params.Condition {
	case DiceUnder:
		chance = params.Target
	case DiceOver:
		chance = decimal.NewFromInt(100).Sub(params.Target)
	default:
		return params, decimal.Zero, fmt.Errorf("%w: dice condition must be %q or %q", models.ErrInvalidParameters, DiceUnder, DiceOver)
	}
	if chance.LessThan(diceMinChance) || chance.GreaterThan(diceMaxChance) {
		return params, decimal.Zero, fmt.Errorf("%w: dice win chance %s outside [%s, %s]", models.ErrInvalidParameters, chance, diceMinChance, diceMaxChance)
	}
	return params, chance, nil
}

func priceDice(params DiceParams, chance, edge decimal.Decimal) (*Prepared, error) {
	multiplier, err := payout.MultiplierForChance(edge, chance)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		BetType:    params.Condition,
		HouseEdge:  edge,
		WinChance:  chance,
		Multiplier: multiplier,
		Params:     params,
	}, nil
}

func (g *dice) ComputeResult(bet *Prepared, draws Draws) (*Result, error) {
	params, ok := bet.Params.(DiceParams)
	if !ok {
		return nil, fmt.Errorf("%w: dice bet carries %T", models.ErrIntegrity, bet.Params)
	}

	roll := DiceRoll(draws.Outcome.Scale(diceOutcomes))

	won := false
	switch params.Condition {
	case DiceUnder:
		won = roll.LessThan(params.Target)
	case DiceOver:
		won = roll.GreaterThan(params.Target)
	}

	multiplier := decimal.Zero
	if won {
		multiplier = bet.Multiplier
	}
	return &Result{
		Won:        won,
		Multiplier: multiplier,
		Detail:     DiceDetail{Roll: roll, Target: params.Target, Condition: params.Condition},
	}, nil
}

func (g *dice) Settle(stake decimal.Decimal, result *Result) Settlement {
	return settle(stake, result)
}

// DiceRoll converts a scaled draw in [0, 10001) into a roll with two places
func DiceRoll(scaled uint64) decimal.Decimal {
	return decimal.New(int64(scaled), -2)
}
