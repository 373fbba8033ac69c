package games

import (
	"encoding/json"
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

var (
	limboMinTarget = decimal.RequireFromString("1.01")
	limboMaxTarget = decimal.NewFromInt(1_000_000)

	drawSpace = decimal.NewFromInt(1 << 52)
)

// LimboParams is the multiplier the crash point must reach
type LimboParams struct {
	TargetMultiplier decimal.Decimal `json:"target_multiplier"`
}

// LimboDetail is the generated crash point
type LimboDetail struct {
	CrashPoint       decimal.Decimal `json:"crash_point"`
	TargetMultiplier decimal.Decimal `json:"target_multiplier"`
}

type limbo struct {
	edges *payout.EdgeTable
}

// NewLimbo creates the limbo strategy
func NewLimbo(edges *payout.EdgeTable) Strategy {
	return &limbo{edges: edges}
}

func (g *limbo) GameType() models.GameType {
	return models.GameTypeLimbo
}

func (g *limbo) Validate(raw json.RawMessage) (*Prepared, error) {
	params, err := parseLimbo(raw)
	if err != nil {
		return nil, err
	}
	edge, err := g.edges.For(models.GameTypeLimbo, "")
	if err != nil {
		return nil, err
	}
	return priceLimbo(params, edge)
}

func (g *limbo) Reprice(raw json.RawMessage, edge decimal.Decimal) (*Prepared, error) {
	params, err := parseLimbo(raw)
	if err != nil {
		return nil, err
	}
	return priceLimbo(params, edge)
}

func parseLimbo(raw json.RawMessage) (LimboParams, error) {
	var params LimboParams
	if err := decodeParams(raw, &params); err != nil {
		return params, err
	}

	target := params.TargetMultiplier
	if !target.Equal(target.Truncate(2)) {
		return params, fmt.Errorf("%w: limbo target has more than 2 decimal places", models.ErrInvalidParameters)
	}
	if target.LessThan(limboMinTarget) || target.GreaterThan(limboMaxTarget) {
		return params, fmt.Errorf("%w: limbo target %s outside [%s, %s]", models.ErrInvalidParameters, target, limboMinTarget, limboMaxTarget)
	}
	return params, nil
}

func priceLimbo(params LimboParams, edge decimal.Decimal) (*Prepared, error) {
	chance, err := payout.ChanceForMultiplier(edge, params.TargetMultiplier)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		HouseEdge:  edge,
		WinChance:  chance,
		Multiplier: params.TargetMultiplier,
		Params:     params,
	}, nil
}

func (g *limbo) ComputeResult(bet *Prepared, draws Draws) (*Result, error) {
	params, ok := bet.Params.(LimboParams)
	if !ok {
		return nil, fmt.Errorf("%w: limbo bet carries %T", models.ErrIntegrity, bet.Params)
	}

	crash := CrashPoint(bet.HouseEdge, draws.Outcome.Bits)
	won := crash.GreaterThanOrEqual(params.TargetMultiplier)

	multiplier := decimal.Zero
	if won {
		multiplier = params.TargetMultiplier
	}
	return &Result{
		Won:        won,
		Multiplier: multiplier,
		Detail:     LimboDetail{CrashPoint: crash, TargetMultiplier: params.TargetMultiplier},
	}, nil
}

func (g *limbo) Settle(stake decimal.Decimal, result *Result) Settlement {
	return settle(stake, result)
}

// CrashPoint is floor((100 - edge) / (100 * (1 - v)), 2 places) with v = bits / 2^52,
// bounded to [1, 1,000,000].
func CrashPoint(edge decimal.Decimal, bits uint64) decimal.Decimal {
	numerator := decimal.NewFromInt(100).Sub(edge).Mul(drawSpace)
	denominator := drawSpace.Sub(decimal.NewFromInt(int64(bits)))

	hundredths, _ := numerator.QuoRem(denominator, 0)
	crash := hundredths.Shift(-2)

	if crash.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	if crash.GreaterThan(limboMaxTarget) {
		return limboMaxTarget
	}
	return crash
}
