package games

import (
	"encoding/json"
	"fmt"

	"wagerledger/fairness"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

const (
	PlinkoRiskHigh = "high"

	plinkoMinRows = 11
	plinkoMaxRows = 16

	// a draw whose bits fall below ceil(0.499975 * 2^52) sends the ball left
	plinkoLeftThreshold uint64 = 2251687223694564
)

// plinkoHighRisk is indexed by row count, then by the number of left steps
var plinkoHighRisk = map[int][]string{
	11: {"120", "14", "5.2", "1.4", "0.4", "0.2", "0.2", "0.4", "1.4", "5.2", "14", "120"},
	12: {"170", "24", "8.1", "2", "0.7", "0.2", "0.2", "0.2", "0.7", "2", "8.1", "24", "170"},
	13: {"260", "37", "11", "4", "1", "0.2", "0.2", "0.2", "0.2", "1", "4", "11", "37", "260"},
	14: {"420", "56", "18", "5", "1.9", "0.3", "0.2", "0.2", "0.2", "0.3", "1.9", "5", "18", "56", "420"},
	15: {"620", "83", "27", "8", "3", "0.5", "0.2", "0.2", "0.2", "0.2", "0.5", "3", "8", "27", "83", "620"},
	16: {"1000", "130", "26", "9", "4", "2", "0.2", "0.2", "0.2", "0.2", "0.2", "2", "4", "9", "26", "130", "1000"},
}

// PlinkoParams selects the board
type PlinkoParams struct {
	Rows int    `json:"rows"`
	Risk string `json:"risk"`
}

// PlinkoDetail is the path the ball took
type PlinkoDetail struct {
	Path   []string `json:"path"`
	Bucket int      `json:"bucket"`
}

type plinko struct {
	edges *payout.EdgeTable
}

// NewPlinko creates the plinko strategy
func NewPlinko(edges *payout.EdgeTable) Strategy {
	return &plinko{edges: edges}
}

func (g *plinko) GameType() models.GameType {
	return models.GameTypePlinko
}

func (g *plinko) Validate(raw json.RawMessage) (*Prepared, error) {
	params, err := parsePlinko(raw)
	if err != nil {
		return nil, err
	}
	edge, err := g.edges.For(models.GameTypePlinko, params.Risk)
	if err != nil {
		return nil, err
	}
	return pricePlinko(params, edge), nil
}

func (g *plinko) Reprice(raw json.RawMessage, edge decimal.Decimal) (*Prepared, error) {
	params, err := parsePlinko(raw)
	if err != nil {
		return nil, err
	}
	if err := payout.ValidateHouseEdge(edge); err != nil {
		return nil, err
	}
	return pricePlinko(params, edge), nil
}

// pricePlinko records edge for attribution only. Returns come from the fixed table.
func pricePlinko(params PlinkoParams, edge decimal.Decimal) *Prepared {
	return &Prepared{
		BetType:   params.Risk,
		HouseEdge: edge,
		Params:    params,
	}
}

func (g *plinko) ComputeResult(bet *Prepared, draws Draws) (*Result, error) {
	params, ok := bet.Params.(PlinkoParams)
	if !ok {
		return nil, fmt.Errorf("%w: plinko bet carries %T", models.ErrIntegrity, bet.Params)
	}
	if draws.Stream == nil {
		return nil, fmt.Errorf("%w: plinko requires a draw stream", models.ErrIntegrity)
	}

	path := make([]string, params.Rows)
	lefts := 0
	for row := 0; row < params.Rows; row++ {
		if PlinkoGoesLeft(draws.Stream.At(row)) {
			path[row] = "L"
			lefts++
		} else {
			path[row] = "R"
		}
	}

	multiplier, err := PlinkoMultiplier(params.Rows, lefts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Won:        multiplier.GreaterThan(decimal.NewFromInt(1)),
		Multiplier: multiplier,
		Detail:     PlinkoDetail{Path: path, Bucket: lefts},
	}, nil
}

func (g *plinko) Settle(stake decimal.Decimal, result *Result) Settlement {
	return settle(stake, result)
}

// PlinkoGoesLeft decides one peg from the integer bits of a draw
func PlinkoGoesLeft(o fairness.Outcome) bool {
	return o.Bits < plinkoLeftThreshold
}

func parsePlinko(raw json.RawMessage) (PlinkoParams, error) {
	var params PlinkoParams
	if err := decodeParams(raw, &params); err != nil {
		return params, err
	}
	if params.Risk == "" {
		params.Risk = PlinkoRiskHigh
	}
	if params.Risk != PlinkoRiskHigh {
		return params, fmt.Errorf("%w: unsupported plinko risk %q", models.ErrInvalidParameters, params.Risk)
	}
	if params.Rows < plinkoMinRows || params.Rows > plinkoMaxRows {
		return params, fmt.Errorf("%w: plinko rows must be %d-%d", models.ErrInvalidParameters, plinkoMinRows, plinkoMaxRows)
	}
	return params, nil
}

// PlinkoMultiplier looks up the high risk table
func PlinkoMultiplier(rows, bucket int) (decimal.Decimal, error) {
	table, ok := plinkoHighRisk[rows]
	if !ok || bucket < 0 || bucket >= len(table) {
		return decimal.Zero, fmt.Errorf("%w: no plinko bucket %d for %d rows", models.ErrIntegrity, bucket, rows)
	}
	return decimal.RequireFromString(table[bucket]), nil
}
