package games

import (
	"encoding/json"
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// European wheel
const roulettePockets = 37

// Roulette bet types
const (
	RouletteStraight = "straight"
	RouletteRed      = "red"
	RouletteBlack    = "black"
	RouletteEven     = "even"
	RouletteOdd      = "odd"
	RouletteLow      = "low"
	RouletteHigh     = "high"
	RouletteDozen    = "dozen"
	RouletteColumn   = "column"
)

var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// RouletteParams is a single roulette bet. Value is the number for straight bets
// and 1-3 for dozen and column bets.
type RouletteParams struct {
	BetType string `json:"bet_type"`
	Value   int    `json:"value,omitempty"`
}

// RouletteDetail is the winning pocket
type RouletteDetail struct {
	Pocket int    `json:"pocket"`
	Color  string `json:"color"`
}

type roulette struct {
	edges *payout.EdgeTable
}

// NewRoulette creates the roulette strategy
func NewRoulette(edges *payout.EdgeTable) Strategy {
	return &roulette{edges: edges}
}

func (g *roulette) GameType() models.GameType {
	return models.GameTypeRoulette
}

func (g *roulette) Validate(raw json.RawMessage) (*Prepared, error) {
	params, coverage, err := parseRoulette(raw)
	if err != nil {
		return nil, err
	}
	edge, err := g.edges.For(models.GameTypeRoulette, params.BetType)
	if err != nil {
		return nil, err
	}
	return priceRoulette(params, coverage, edge)
}

func (g *roulette) Reprice(raw json.RawMessage, edge decimal.Decimal) (*Prepared, error) {
	params, coverage, err := parseRoulette(raw)
	if err != nil {
		return nil, err
	}
	return priceRoulette(params, coverage, edge)
}

func parseRoulette(raw json.RawMessage) (RouletteParams, int, error) {
	var params RouletteParams
	if err := decodeParams(raw, &params); err != nil {
		return params, 0, err
	}
	coverage, err := rouletteCoverage(params)
	if err != nil {
		return params, 0, err
	}
	return params, coverage, nil
}

func priceRoulette(params RouletteParams, coverage int, edge decimal.Decimal) (*Prepared, error) {
	chance := decimal.NewFromInt(int64(coverage * 100)).DivRound(decimal.NewFromInt(roulettePockets), payout.ChancePlaces)
	multiplier, err := payout.MultiplierForChance(edge, chance)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		BetType:    params.BetType,
		HouseEdge:  edge,
		WinChance:  chance,
		Multiplier: multiplier,
		Params:     params,
	}, nil
}

func (g *roulette) ComputeResult(bet *Prepared, draws Draws) (*Result, error) {
	params, ok := bet.Params.(RouletteParams)
	if !ok {
		return nil, fmt.Errorf("%w: roulette bet carries %T", models.ErrIntegrity, bet.Params)
	}

	pocket := int(draws.Outcome.Scale(roulettePockets))
	won := rouletteCovers(params, pocket)

	multiplier := decimal.Zero
	if won {
		multiplier = bet.Multiplier
	}
	return &Result{
		Won:        won,
		Multiplier: multiplier,
		Detail:     RouletteDetail{Pocket: pocket, Color: PocketColor(pocket)},
	}, nil
}

func (g *roulette) Settle(stake decimal.Decimal, result *Result) Settlement {
	return settle(stake, result)
}

// PocketColor returns green, red or black
func PocketColor(pocket int) string {
	switch {
	case pocket == 0:
		return "green"
	case redPockets[pocket]:
		return "red"
	default:
		return "black"
	}
}

func rouletteCoverage(p RouletteParams) (int, error) {
	switch p.BetType {
	case RouletteStraight:
		if p.Value < 0 || p.Value > 36 {
			return 0, fmt.Errorf("%w: straight bet number must be 0-36", models.ErrInvalidParameters)
		}
		return 1, nil
	case RouletteRed, RouletteBlack, RouletteEven, RouletteOdd, RouletteLow, RouletteHigh:
		return 18, nil
	case RouletteDozen, RouletteColumn:
		if p.Value < 1 || p.Value > 3 {
			return 0, fmt.Errorf("%w: %s bet value must be 1-3", models.ErrInvalidParameters, p.BetType)
		}
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: unknown roulette bet type %q", models.ErrInvalidParameters, p.BetType)
	}
}

func rouletteCovers(p RouletteParams, pocket int) bool {
	if p.BetType == RouletteStraight {
		return pocket == p.Value
	}
	if pocket == 0 {
		return false
	}

	switch p.BetType {
	case RouletteRed:
		return redPockets[pocket]
	case RouletteBlack:
		return !redPockets[pocket]
	case RouletteEven:
		return pocket%2 == 0
	case RouletteOdd:
		return pocket%2 == 1
	case RouletteLow:
		return pocket <= 18
	case RouletteHigh:
		return pocket >= 19
	case RouletteDozen:
		return (pocket-1)/12 == p.Value-1
	case RouletteColumn:
		return (pocket-1)%3 == p.Value-1
	}
	return false
}
