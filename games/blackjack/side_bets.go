package blackjack

import (
	"sort"

	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// SideBetStakes are optional wagers settled on the initial cards
type SideBetStakes struct {
	PerfectPairs       decimal.Decimal `json:"perfect_pairs"`
	TwentyOnePlusThree decimal.Decimal `json:"twenty_one_plus_three"`
}

// Total staked on side bets
func (s SideBetStakes) Total() decimal.Decimal {
	return s.PerfectPairs.Add(s.TwentyOnePlusThree)
}

// SideBetResult is a settled side bet. Multiplier is the total return including the stake.
type SideBetResult struct {
	Stake      decimal.Decimal `json:"stake"`
	Outcome    string          `json:"outcome"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}

// Perfect pairs outcomes
const (
	PairNone     = "none"
	PairMixed    = "mixed_pair"
	PairColoured = "coloured_pair"
	PairPerfect  = "perfect_pair"
)

// 21+3 outcomes
const (
	ComboNone          = "none"
	ComboFlush         = "flush"
	ComboStraight      = "straight"
	ComboThreeOfAKind  = "three_of_a_kind"
	ComboStraightFlush = "straight_flush"
	ComboSuitedTrips   = "suited_trips"
)

// total return multipliers, stake included
var (
	perfectPairsReturns = map[string]decimal.Decimal{
		PairMixed:    decimal.NewFromInt(7),
		PairColoured: decimal.NewFromInt(13),
		PairPerfect:  decimal.NewFromInt(26),
	}
	twentyOnePlusThreeReturns = map[string]decimal.Decimal{
		ComboFlush:         decimal.NewFromInt(6),
		ComboStraight:      decimal.NewFromInt(11),
		ComboThreeOfAKind:  decimal.NewFromInt(31),
		ComboStraightFlush: decimal.NewFromInt(41),
		ComboSuitedTrips:   decimal.NewFromInt(101),
	}
)

// ClassifyPair grades the player's first two cards
func ClassifyPair(a, b Card) string {
	switch {
	case a.Rank != b.Rank:
		return PairNone
	case a.Suit == b.Suit:
		return PairPerfect
	case a.IsRed() == b.IsRed():
		return PairColoured
	default:
		return PairMixed
	}
}

// ClassifyThree grades the player's two cards with the dealer's up card
func ClassifyThree(cards [3]Card) string {
	suited := cards[0].Suit == cards[1].Suit && cards[1].Suit == cards[2].Suit
	trips := cards[0].Rank == cards[1].Rank && cards[1].Rank == cards[2].Rank

	ranks := []int{int(cards[0].Rank), int(cards[1].Rank), int(cards[2].Rank)}
	sort.Ints(ranks)
	straight := ranks[0]+1 == ranks[1] && ranks[1]+1 == ranks[2]
	// Q-K-A
	if ranks[0] == int(Ace) && ranks[1] == int(Queen) && ranks[2] == int(King) {
		straight = true
	}

	switch {
	case trips && suited:
		return ComboSuitedTrips
	case straight && suited:
		return ComboStraightFlush
	case trips:
		return ComboThreeOfAKind
	case straight:
		return ComboStraight
	case suited:
		return ComboFlush
	default:
		return ComboNone
	}
}

func settlePerfectPairs(stake decimal.Decimal, a, b Card) *SideBetResult {
	if !stake.IsPositive() {
		return nil
	}
	return sideBetResult(stake, ClassifyPair(a, b), perfectPairsReturns)
}

func settleTwentyOnePlusThree(stake decimal.Decimal, cards [3]Card) *SideBetResult {
	if !stake.IsPositive() {
		return nil
	}
	return sideBetResult(stake, ClassifyThree(cards), twentyOnePlusThreeReturns)
}

func sideBetResult(stake decimal.Decimal, outcome string, returns map[string]decimal.Decimal) *SideBetResult {
	multiplier, ok := returns[outcome]
	if !ok {
		multiplier = decimal.Zero
	}
	return &SideBetResult{
		Stake:      stake,
		Outcome:    outcome,
		Multiplier: multiplier,
		Payout:     payout.Payout(stake, multiplier),
	}
}
