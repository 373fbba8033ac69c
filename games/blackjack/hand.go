package blackjack

import "github.com/shopspring/decimal"

// HandStatus is the per-hand lifecycle
type HandStatus string

const (
	HandPlaying   HandStatus = "PLAYING"
	HandStanding  HandStatus = "STANDING"
	HandBust      HandStatus = "BUST"
	HandBlackjack HandStatus = "BLACKJACK"
)

// Hand is one player hand
type Hand struct {
	Cards     []Card          `json:"cards"`
	Stake     decimal.Decimal `json:"stake"`
	Status    HandStatus      `json:"status"`
	Doubled   bool            `json:"doubled,omitempty"`
	FromSplit bool            `json:"from_split,omitempty"`
	SplitAces bool            `json:"split_aces,omitempty"`
}

// Total returns the best total and whether an ace is being counted as 11
func Total(cards []Card) (int, bool) {
	total := 0
	aces := 0
	for _, c := range cards {
		total += c.Value()
		if c.Rank == Ace {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		return total + 10, true
	}
	return total, false
}

// Total of the hand
func (h *Hand) Total() int {
	t, _ := Total(h.Cards)
	return t
}

// IsNatural is a two card 21 on the original deal. Split hands never qualify.
func (h *Hand) IsNatural() bool {
	return !h.FromSplit && isNatural(h.Cards)
}

func (h *Hand) isDone() bool {
	return h.Status != HandPlaying
}

func isNatural(cards []Card) bool {
	if len(cards) != 2 {
		return false
	}
	t, _ := Total(cards)
	return t == 21
}
