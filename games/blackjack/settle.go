package blackjack

import (
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// Hand results
const (
	ResultWin       = "win"
	ResultBlackjack = "blackjack"
	ResultPush      = "push"
	ResultLoss      = "loss"
	ResultBust      = "bust"
)

var (
	blackjackReturn = decimal.RequireFromString("2.5")
	winReturn       = decimal.NewFromInt(2)
	pushReturn      = decimal.NewFromInt(1)
)

// HandSettlement is the return on one player hand
type HandSettlement struct {
	Result     string          `json:"result"`
	Stake      decimal.Decimal `json:"stake"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
}

// Settlement breaks a completed round's return into components. Total is credited once.
type Settlement struct {
	Hands              []HandSettlement `json:"hands"`
	PerfectPairs       decimal.Decimal  `json:"perfect_pairs"`
	TwentyOnePlusThree decimal.Decimal  `json:"twenty_one_plus_three"`
	Insurance          decimal.Decimal  `json:"insurance"`
	TotalStaked        decimal.Decimal  `json:"total_staked"`
	Total              decimal.Decimal  `json:"total"`
	// Multiplier is Total over TotalStaked
	Multiplier  decimal.Decimal `json:"multiplier"`
	DealerTotal int             `json:"dealer_total"`
}

// Settle computes the payout of a completed round. It is pure and may be called repeatedly.
func Settle(s *State) (*Settlement, error) {
	if !s.IsCompleted() {
		return nil, fmt.Errorf("%w: round is still in phase %s", models.ErrRoundNotActive, s.Phase)
	}

	dealerTotal, _ := Total(s.Dealer)
	dealerNatural := isNatural(s.Dealer)

	out := &Settlement{
		PerfectPairs:       sideBetPayout(s.PerfectPairs),
		TwentyOnePlusThree: sideBetPayout(s.TwentyOnePlusThree),
		Insurance:          decimal.Zero,
		TotalStaked:        s.TotalStaked(),
		DealerTotal:        dealerTotal,
	}
	if s.Insurance != nil {
		out.Insurance = s.Insurance.Payout
	}

	total := out.PerfectPairs.Add(out.TwentyOnePlusThree).Add(out.Insurance)
	for _, h := range s.Hands {
		hs := settleHand(h, dealerTotal, dealerNatural)
		out.Hands = append(out.Hands, hs)
		total = total.Add(hs.Payout)
	}
	out.Total = total

	out.Multiplier = decimal.Zero
	if out.TotalStaked.IsPositive() {
		out.Multiplier = total.DivRound(out.TotalStaked, payout.MultiplierPlaces)
	}
	return out, nil
}

func settleHand(h *Hand, dealerTotal int, dealerNatural bool) HandSettlement {
	playerTotal := h.Total()

	var result string
	var multiplier decimal.Decimal
	switch {
	case h.Status == HandBust || playerTotal > 21:
		result, multiplier = ResultBust, decimal.Zero
	case h.IsNatural() && dealerNatural:
		result, multiplier = ResultPush, pushReturn
	case h.IsNatural():
		result, multiplier = ResultBlackjack, blackjackReturn
	case dealerNatural:
		result, multiplier = ResultLoss, decimal.Zero
	case dealerTotal > 21 || playerTotal > dealerTotal:
		result, multiplier = ResultWin, winReturn
	case playerTotal == dealerTotal:
		result, multiplier = ResultPush, pushReturn
	default:
		result, multiplier = ResultLoss, decimal.Zero
	}

	return HandSettlement{
		Result:     result,
		Stake:      h.Stake,
		Multiplier: multiplier,
		Payout:     payout.Payout(h.Stake, multiplier),
	}
}

func sideBetPayout(r *SideBetResult) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.Payout
}
