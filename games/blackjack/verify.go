package blackjack

import (
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// VerifyDraws checks a persisted state against the shoe it claims to be dealt from.
// Play order fixes the cursor of every card, so each one must be the shoe's card at
// that cursor. The dealer must have followed the drawing rule, and side bets, insurance
// and hand stakes must agree with the cards.
func (s *State) VerifyDraws(src Source) error {
	if len(s.Hands) == 0 || len(s.Hands) > 2 || len(s.Dealer) < 2 {
		return mismatch("malformed table: %d hands, %d dealer cards", len(s.Hands), len(s.Dealer))
	}
	split := len(s.Hands) == 2
	first := s.Hands[0]
	for i, h := range s.Hands {
		if len(h.Cards) == 0 || (!split && len(h.Cards) < 2) {
			return mismatch("hand %d has too few cards", i)
		}
	}

	p1, p2 := first.Cards[0], s.Hands[len(s.Hands)-1].Cards[0]
	rest := first.Cards[1:]
	if !split {
		p2 = first.Cards[1]
		rest = first.Cards[2:]
	}

	dealt := []Card{p1, s.Dealer[0], p2, s.Dealer[1]}
	dealt = append(dealt, rest...)
	if split {
		dealt = append(dealt, s.Hands[1].Cards[1:]...)
	}
	dealt = append(dealt, s.Dealer[2:]...)

	if len(dealt) != s.Cursor {
		return mismatch("%d cards on the table but cursor is %d", len(dealt), s.Cursor)
	}
	for cursor, c := range dealt {
		if want := CardAt(src, cursor); c != want {
			return mismatch("card at cursor %d is %s, shoe has %s", cursor, c, want)
		}
	}

	if err := s.verifyDealer(); err != nil {
		return err
	}
	if err := s.verifyHands(); err != nil {
		return err
	}
	if err := s.verifyInsurance(); err != nil {
		return err
	}

	if err := sameSideBet("perfect pairs", s.PerfectPairs, settlePerfectPairs(s.SideBets.PerfectPairs, p1, p2)); err != nil {
		return err
	}
	return sameSideBet("21+3", s.TwentyOnePlusThree, settleTwentyOnePlusThree(s.SideBets.TwentyOnePlusThree, [3]Card{p1, p2, s.Dealer[0]}))
}

func (s *State) verifyDealer() error {
	for i := 2; i < len(s.Dealer); i++ {
		if total, _ := Total(s.Dealer[:i]); total >= dealerStandsOn {
			return mismatch("dealer drew on %d", total)
		}
	}

	mustPlay := s.IsCompleted() && !isNatural(s.Dealer) && !(len(s.Hands) == 1 && s.Hands[0].IsNatural())
	if mustPlay {
		mustPlay = false
		for _, h := range s.Hands {
			if h.Status != HandBust {
				mustPlay = true
				break
			}
		}
	}

	if !mustPlay {
		if len(s.Dealer) > 2 {
			return mismatch("dealer drew %d cards without having to play", len(s.Dealer)-2)
		}
		return nil
	}
	if total, _ := Total(s.Dealer); total < dealerStandsOn {
		return mismatch("dealer stood on %d", total)
	}
	return nil
}

func (s *State) verifyHands() error {
	for i, h := range s.Hands {
		want := s.MainStake
		if h.Doubled {
			want = want.Mul(decimal.NewFromInt(2))
		}
		if !h.Stake.Equal(want) {
			return mismatch("hand %d stake %s, expected %s", i, h.Stake, want)
		}
		bust := h.Total() > 21
		if bust != (h.Status == HandBust) {
			return mismatch("hand %d totals %d but is %s", i, h.Total(), h.Status)
		}
		if h.Status == HandBlackjack && !h.IsNatural() {
			return mismatch("hand %d is not a natural", i)
		}
	}
	return nil
}

func (s *State) verifyInsurance() error {
	ins := s.Insurance
	if ins == nil {
		if s.Dealer[0].Rank == Ace && s.Phase != PhaseInsurancePending {
			return mismatch("ace showing but no insurance decision recorded")
		}
		return nil
	}
	if s.Dealer[0].Rank != Ace {
		return mismatch("insurance recorded without an ace showing")
	}

	want := InsuranceBet{Stake: decimal.Zero, Payout: decimal.Zero}
	if ins.Taken {
		want.Taken = true
		want.Stake = insuranceStake(s.MainStake)
		want.Won = isNatural(s.Dealer[:2])
		if want.Won {
			want.Payout = payout.Payout(want.Stake, decimal.NewFromInt(3))
		}
	}
	if ins.Won != want.Won || !ins.Stake.Equal(want.Stake) || !ins.Payout.Equal(want.Payout) {
		return mismatch("insurance recorded as won=%t paying %s, expected won=%t paying %s", ins.Won, ins.Payout, want.Won, want.Payout)
	}
	return nil
}

func sameSideBet(name string, got, want *SideBetResult) error {
	if got == nil || want == nil {
		if got != want {
			return mismatch("%s side bet presence differs from its stake", name)
		}
		return nil
	}
	if got.Outcome != want.Outcome || !got.Stake.Equal(want.Stake) || !got.Multiplier.Equal(want.Multiplier) || !got.Payout.Equal(want.Payout) {
		return mismatch("%s recorded as %s paying %s, cards give %s paying %s", name, got.Outcome, got.Payout, want.Outcome, want.Payout)
	}
	return nil
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrReplayMismatch, fmt.Sprintf(format, args...))
}
