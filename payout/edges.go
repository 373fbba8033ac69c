package payout

import (
	"fmt"

	"wagerledger/models"

	"github.com/shopspring/decimal"
)

// GameEdges holds the house edge for one game and any per-bet-type overrides
type GameEdges struct {
	Default  decimal.Decimal
	BetTypes map[string]decimal.Decimal
}

// EdgeTable resolves the configured house edge for a game and bet type
type EdgeTable struct {
	games map[models.GameType]GameEdges
}

// NewEdgeTable validates every configured edge
func NewEdgeTable(games map[models.GameType]GameEdges) (*EdgeTable, error) {
	for game, edges := range games {
		if err := ValidateHouseEdge(edges.Default); err != nil {
			return nil, fmt.Errorf("game %s: %w", game, err)
		}
		for betType, edge := range edges.BetTypes {
			if err := ValidateHouseEdge(edge); err != nil {
				return nil, fmt.Errorf("game %s bet type %s: %w", game, betType, err)
			}
		}
	}
	return &EdgeTable{games: games}, nil
}

// For returns the edge for a bet type, falling back to the game's default
func (t *EdgeTable) For(game models.GameType, betType string) (decimal.Decimal, error) {
	edges, ok := t.games[game]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no house edge configured for %s", models.ErrInvalidParameters, game)
	}
	if betType != "" {
		if edge, ok := edges.BetTypes[betType]; ok {
			return edge, nil
		}
	}
	return edges.Default, nil
}
