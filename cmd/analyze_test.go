package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"wagerledger/config"
	"wagerledger/games"
	"wagerledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *games.Registry {
	t.Helper()
	edges, err := config.LoadHouseEdges("")
	require.NoError(t, err)
	return games.NewRegistry(edges)
}

func TestSimulate_ReturnToPlayer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping simulation in short mode")
	}
	registry := testRegistry(t)

	tests := []struct {
		game models.GameType
		rtp  float64
	}{
		{models.GameTypeDice, 99},
		{models.GameTypeRoulette, 97.2973},
		{models.GameTypeLimbo, 99},
	}
	for _, tt := range tests {
		t.Run(string(tt.game), func(t *testing.T) {
			strategy, err := registry.Get(tt.game)
			require.NoError(t, err)

			sim, err := simulate(strategy, json.RawMessage(defaultAnalyzeParams[tt.game]), 20000, "s3cr3t", "lucky")
			require.NoError(t, err)

			assert.Equal(t, 20000, sim.Trials)
			assert.InDelta(t, tt.rtp, sim.RTP(), 3)
			// one degree of freedom; 10.83 is the p=0.001 critical value
			assert.Less(t, sim.ChiSquared(), 20.0)

			total := 0
			for _, n := range sim.Buckets {
				total += n
			}
			assert.Equal(t, sim.Trials, total)
		})
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	strategy, err := testRegistry(t).Get(models.GameTypePlinko)
	require.NoError(t, err)
	params := json.RawMessage(defaultAnalyzeParams[models.GameTypePlinko])

	first, err := simulate(strategy, params, 500, "s3cr3t", "lucky")
	require.NoError(t, err)
	second, err := simulate(strategy, params, 500, "s3cr3t", "lucky")
	require.NoError(t, err)

	assert.True(t, first.Paid.Equal(second.Paid))
	assert.Equal(t, first.Buckets, second.Buckets)
	assert.Zero(t, first.ChiSquared(), "plinko has no single win chance")
}

func TestSimulate_InvalidInput(t *testing.T) {
	strategy, err := testRegistry(t).Get(models.GameTypeDice)
	require.NoError(t, err)

	_, err = simulate(strategy, json.RawMessage(defaultAnalyzeParams[models.GameTypeDice]), 0, "s", "c")
	assert.Error(t, err)

	_, err = simulate(strategy, json.RawMessage(`{"target": 50}`), 10, "s", "c")
	assert.ErrorIs(t, err, models.ErrInvalidParameters)
}

func TestAnalyzeCommand_ParamsRequireGame(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"analyze", "--params", `{"target": 50}`})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--params requires --game")
}

func TestAnalyzeCommand_SingleGame(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs([]string{"analyze", "--game", "dice", "--trials", "200"})
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "dice")
	assert.Contains(t, out.String(), "RTP:")
	assert.NotContains(t, out.String(), "roulette")
}
