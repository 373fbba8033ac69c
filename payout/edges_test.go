package payout

import (
	"errors"
	"testing"

	"wagerledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeTable_For(t *testing.T) {
	table, err := NewEdgeTable(map[models.GameType]GameEdges{
		models.GameTypeDice: {Default: d("1")},
		models.GameTypeRoulette: {
			Default:  d("2.7027"),
			BetTypes: map[string]decimal.Decimal{"straight": d("2.7027"), "red": d("2.7027")},
		},
	})
	require.NoError(t, err)

	edge, err := table.For(models.GameTypeDice, "")
	require.NoError(t, err)
	assert.True(t, d("1").Equal(edge))

	edge, err = table.For(models.GameTypeRoulette, "dozen")
	require.NoError(t, err)
	assert.True(t, d("2.7027").Equal(edge))

	_, err = table.For(models.GameTypeLimbo, "")
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))
}

func TestNewEdgeTable_RejectsBadEdge(t *testing.T) {
	_, err := NewEdgeTable(map[models.GameType]GameEdges{
		models.GameTypeDice: {Default: d("100")},
	})
	assert.Error(t, err)

	_, err = NewEdgeTable(map[models.GameType]GameEdges{
		models.GameTypeRoulette: {Default: d("1"), BetTypes: map[string]decimal.Decimal{"red": d("-1")}},
	})
	assert.Error(t, err)
}
