package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"wagerledger/config"
	"wagerledger/fairness"
	"wagerledger/games"
	"wagerledger/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const histogramBuckets = 10

// defaultAnalyzeParams is a representative bet per game
var defaultAnalyzeParams = map[models.GameType]string{
	models.GameTypeDice:     `{"target": 50, "condition": "under"}`,
	models.GameTypeLimbo:    `{"target_multiplier": 2}`,
	models.GameTypePlinko:   `{"rows": 16, "risk": "high"}`,
	models.GameTypeRoulette: `{"bet_type": "red"}`,
}

func newAnalyzeCommand() *cobra.Command {
	var (
		game          string
		params        string
		trials        int
		houseEdgeFile string
	)

	c := &cobra.Command{
		Use:   "analyze",
		Short: "Simulate bets through the outcome generator and report the return to player",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if params != "" && game == "" {
				return fmt.Errorf("--params requires --game")
			}
			edges, err := config.LoadHouseEdges(houseEdgeFile)
			if err != nil {
				return err
			}
			registry := games.NewRegistry(edges)

			gameTypes := registry.GameTypes()
			sort.Slice(gameTypes, func(i, j int) bool { return gameTypes[i] < gameTypes[j] })
			if game != "" {
				gameTypes = []models.GameType{models.GameType(game)}
			}

			serverSeed, err := fairness.NewServerSeed()
			if err != nil {
				return err
			}
			clientSeed, err := fairness.NewClientSeed()
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			fmt.Fprintf(out, "=== Return to player over %d trials per game ===\n", trials)
			for _, gameType := range gameTypes {
				strategy, err := registry.Get(gameType)
				if err != nil {
					return err
				}
				raw := params
				if raw == "" {
					raw = defaultAnalyzeParams[gameType]
				}
				sim, err := simulate(strategy, json.RawMessage(raw), trials, serverSeed, clientSeed)
				if err != nil {
					return fmt.Errorf("%s: %w", gameType, err)
				}
				sim.print(out)
			}
			return nil
		},
	}

	f := c.Flags()
	f.StringVar(&game, "game", "", "single-step game to analyze (default: all)")
	f.StringVar(&params, "params", "", "bet parameters as JSON (requires --game)")
	f.IntVar(&trials, "trials", 100000, "bets to simulate per game")
	f.StringVar(&houseEdgeFile, "house-edge-file", "", "house edge table (defaults to the embedded table)")
	return c
}

// simulation accumulates unit-stake bets placed with consecutive nonces
type simulation struct {
	Game      models.GameType
	Params    string
	Trials    int
	Wins      int
	Staked    decimal.Decimal
	Paid      decimal.Decimal
	HouseEdge decimal.Decimal
	WinChance decimal.Decimal
	Buckets   [histogramBuckets]int
}

func simulate(strategy games.Strategy, params json.RawMessage, trials int, serverSeed, clientSeed string) (*simulation, error) {
	if trials < 1 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}

	bet, err := strategy.Validate(params)
	if err != nil {
		return nil, err
	}

	sim := &simulation{
		Game:      strategy.GameType(),
		Params:    string(params),
		Trials:    trials,
		Staked:    decimal.Zero,
		Paid:      decimal.Zero,
		HouseEdge: bet.HouseEdge,
		WinChance: bet.WinChance,
	}
	stake := decimal.NewFromInt(1)

	for nonce := int64(1); nonce <= int64(trials); nonce++ {
		outcome, err := fairness.DeriveOutcome(serverSeed, clientSeed, nonce, string(sim.Game))
		if err != nil {
			return nil, err
		}
		stream, err := fairness.NewStream(serverSeed, clientSeed, nonce)
		if err != nil {
			return nil, err
		}

		result, err := strategy.ComputeResult(bet, games.Draws{Outcome: outcome, Stream: stream})
		if err != nil {
			return nil, err
		}
		settlement := strategy.Settle(stake, result)

		if result.Won {
			sim.Wins++
		}
		sim.Staked = sim.Staked.Add(stake)
		sim.Paid = sim.Paid.Add(settlement.Payout)
		sim.Buckets[outcome.Scale(histogramBuckets)]++
	}
	return sim, nil
}

// RTP is the percentage of stakes returned
func (s *simulation) RTP() float64 {
	return s.Paid.Div(s.Staked).InexactFloat64() * 100
}

// ChiSquared compares observed wins with the bet's stated chance. It is zero
// for games without a single win chance.
func (s *simulation) ChiSquared() float64 {
	chance := s.WinChance.InexactFloat64() / 100
	if chance <= 0 || chance >= 1 {
		return 0
	}
	n := float64(s.Trials)
	expectedWins := n * chance
	expectedLosses := n * (1 - chance)
	return math.Pow(float64(s.Wins)-expectedWins, 2)/expectedWins +
		math.Pow(float64(s.Trials-s.Wins)-expectedLosses, 2)/expectedLosses
}

func (s *simulation) print(w io.Writer) {
	fmt.Fprintf(w, "\n%s %s\n", s.Game, s.Params)
	fmt.Fprintf(w, "  Wins:        %d (%.4f%%)\n", s.Wins, float64(s.Wins)/float64(s.Trials)*100)
	if s.WinChance.IsPositive() {
		fmt.Fprintf(w, "  Win chance:  %s%% | χ²: %.2f\n", s.WinChance.String(), s.ChiSquared())
	}
	fmt.Fprintf(w, "  RTP:         %.4f%% (expected %s%%)\n", s.RTP(), decimal.NewFromInt(100).Sub(s.HouseEdge).String())

	// Check distribution uniformity
	expectedPerBucket := float64(s.Trials) / histogramBuckets
	fmt.Fprintf(w, "  Raw value distribution (each bucket should hold ~%.0f):\n", expectedPerBucket)
	for i, count := range s.Buckets {
		deviation := (float64(count) - expectedPerBucket) / expectedPerBucket * 100
		bar := strings.Repeat("█", int(float64(count)/expectedPerBucket*20))
		fmt.Fprintf(w, "    [%.1f-%.1f): %7d (%+5.2f%%) %s\n",
			float64(i)/histogramBuckets, float64(i+1)/histogramBuckets, count, deviation, bar)
	}
}
