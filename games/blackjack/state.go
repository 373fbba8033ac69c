package blackjack

import (
	"fmt"

	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
)

// Phase is the round's position in the state machine
type Phase string

const (
	PhasePlayerTurn       Phase = "PLAYER_TURN"
	PhaseInsurancePending Phase = "INSURANCE_PENDING"
	PhaseDealerResolution Phase = "DEALER_RESOLUTION"
	PhaseCompleted        Phase = "COMPLETED"
)

// ActionKind is a player decision
type ActionKind string

const (
	ActionHit         ActionKind = "hit"
	ActionStand       ActionKind = "stand"
	ActionDouble      ActionKind = "double"
	ActionSplit       ActionKind = "split"
	ActionInsurance   ActionKind = "insurance"
	ActionNoInsurance ActionKind = "no_insurance"
)

const dealerStandsOn = 17

// InsuranceBet is resolved the moment it is decided
type InsuranceBet struct {
	Taken  bool            `json:"taken"`
	Stake  decimal.Decimal `json:"stake"`
	Won    bool            `json:"won"`
	Payout decimal.Decimal `json:"payout"`
}

// State is the full, persisted round state. Dealer[1] is the hole card.
type State struct {
	Phase      Phase           `json:"phase"`
	Cursor     int             `json:"cursor"`
	Step       int             `json:"step"`
	MainStake  decimal.Decimal `json:"main_stake"`
	Hands      []*Hand         `json:"hands"`
	ActiveHand int             `json:"active_hand"`
	Dealer     []Card          `json:"dealer"`

	SideBets           SideBetStakes  `json:"side_bets"`
	PerfectPairs       *SideBetResult `json:"perfect_pairs,omitempty"`
	TwentyOnePlusThree *SideBetResult `json:"twenty_one_plus_three,omitempty"`
	Insurance          *InsuranceBet  `json:"insurance,omitempty"`
}

// Effect is the extra stake an action requires, debited before the action takes effect
type Effect struct {
	Action     ActionKind
	ExtraStake decimal.Decimal
}

// Deal opens a round: cards alternate player, dealer, player, dealer from cursor 0.
// Side bets settle on these cards before anything else is decided.
func Deal(src Source, stake decimal.Decimal, sideBets SideBetStakes) (*State, error) {
	if !stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be positive", models.ErrInvalidParameters)
	}
	if sideBets.PerfectPairs.IsNegative() || sideBets.TwentyOnePlusThree.IsNegative() {
		return nil, fmt.Errorf("%w: side bet stakes cannot be negative", models.ErrInvalidParameters)
	}

	s := &State{
		Phase:     PhasePlayerTurn,
		MainStake: stake,
		SideBets:  sideBets,
	}

	p1 := s.draw(src)
	up := s.draw(src)
	p2 := s.draw(src)
	hole := s.draw(src)

	s.Hands = []*Hand{{Cards: []Card{p1, p2}, Stake: stake, Status: HandPlaying}}
	s.Dealer = []Card{up, hole}

	s.PerfectPairs = settlePerfectPairs(sideBets.PerfectPairs, p1, p2)
	s.TwentyOnePlusThree = settleTwentyOnePlusThree(sideBets.TwentyOnePlusThree, [3]Card{p1, p2, up})

	main := s.Hands[0]
	switch {
	case up.IsTen() && isNatural(s.Dealer):
		s.finishOnDealerBlackjack()
	case up.Rank == Ace:
		s.Phase = PhaseInsurancePending
	case main.IsNatural():
		main.Status = HandBlackjack
		s.Phase = PhaseCompleted
	}
	return s, nil
}

// Apply performs one player action against the active hand
func (s *State) Apply(src Source, action ActionKind) (*Effect, error) {
	if !s.isLegal(action) {
		return nil, fmt.Errorf("%w: %s not allowed in phase %s", models.ErrIllegalAction, action, s.Phase)
	}

	effect := &Effect{Action: action, ExtraStake: decimal.Zero}
	s.Step++

	switch action {
	case ActionInsurance, ActionNoInsurance:
		s.decideInsurance(action == ActionInsurance)
		if action == ActionInsurance {
			effect.ExtraStake = s.Insurance.Stake
		}

	case ActionHit:
		h := s.active()
		h.Cards = append(h.Cards, s.draw(src))
		s.afterDraw(src, h)

	case ActionStand:
		s.active().Status = HandStanding
		s.advance(src)

	case ActionDouble:
		h := s.active()
		effect.ExtraStake = h.Stake
		h.Stake = h.Stake.Mul(decimal.NewFromInt(2))
		h.Doubled = true
		h.Cards = append(h.Cards, s.draw(src))
		if h.Total() > 21 {
			h.Status = HandBust
		} else {
			h.Status = HandStanding
		}
		s.advance(src)

	case ActionSplit:
		effect.ExtraStake = s.split(src)
	}

	return effect, nil
}

// LegalActions lists what the player may do now
func (s *State) LegalActions() []ActionKind {
	var legal []ActionKind
	for _, a := range []ActionKind{ActionHit, ActionStand, ActionDouble, ActionSplit, ActionInsurance, ActionNoInsurance} {
		if s.isLegal(a) {
			legal = append(legal, a)
		}
	}
	return legal
}

// TotalStaked is every stake placed on the round so far
func (s *State) TotalStaked() decimal.Decimal {
	total := s.SideBets.Total()
	for _, h := range s.Hands {
		total = total.Add(h.Stake)
	}
	if s.Insurance != nil && s.Insurance.Taken {
		total = total.Add(s.Insurance.Stake)
	}
	return total
}

// IsCompleted reports whether the round reached its terminal phase
func (s *State) IsCompleted() bool {
	return s.Phase == PhaseCompleted
}

func (s *State) isLegal(action ActionKind) bool {
	switch s.Phase {
	case PhaseInsurancePending:
		if action == ActionInsurance {
			return insuranceStake(s.MainStake).IsPositive()
		}
		return action == ActionNoInsurance
	case PhasePlayerTurn:
	default:
		return false
	}

	h := s.active()
	if h == nil || h.isDone() {
		return false
	}

	switch action {
	case ActionHit, ActionStand:
		return true
	case ActionDouble:
		return len(h.Cards) == 2 && !h.SplitAces
	case ActionSplit:
		return len(s.Hands) == 1 && len(h.Cards) == 2 && h.Cards[0].Value() == h.Cards[1].Value()
	}
	return false
}

func (s *State) active() *Hand {
	if s.ActiveHand < 0 || s.ActiveHand >= len(s.Hands) {
		return nil
	}
	return s.Hands[s.ActiveHand]
}

func (s *State) draw(src Source) Card {
	c := CardAt(src, s.Cursor)
	s.Cursor++
	return c
}

func (s *State) decideInsurance(take bool) {
	dealerBlackjack := isNatural(s.Dealer)

	bet := &InsuranceBet{Taken: take, Stake: decimal.Zero, Payout: decimal.Zero}
	if take {
		bet.Stake = insuranceStake(s.MainStake)
		bet.Won = dealerBlackjack
		if dealerBlackjack {
			bet.Payout = payout.Payout(bet.Stake, decimal.NewFromInt(3))
		}
	}
	s.Insurance = bet

	if dealerBlackjack {
		s.finishOnDealerBlackjack()
		return
	}

	main := s.Hands[0]
	if main.IsNatural() {
		main.Status = HandBlackjack
		s.Phase = PhaseCompleted
		return
	}
	s.Phase = PhasePlayerTurn
}

func (s *State) finishOnDealerBlackjack() {
	for _, h := range s.Hands {
		if h.IsNatural() {
			h.Status = HandBlackjack
		} else {
			h.Status = HandStanding
		}
	}
	s.Phase = PhaseCompleted
}

// split turns the active pair into two hands. The first receives its second card now,
// the second when play reaches it.
func (s *State) split(src Source) decimal.Decimal {
	h := s.active()
	aces := h.Cards[0].Rank == Ace

	second := &Hand{
		Cards:     []Card{h.Cards[1]},
		Stake:     h.Stake,
		Status:    HandPlaying,
		FromSplit: true,
		SplitAces: aces,
	}
	h.Cards = []Card{h.Cards[0]}
	h.FromSplit = true
	h.SplitAces = aces
	s.Hands = append(s.Hands, second)

	h.Cards = append(h.Cards, s.draw(src))
	s.afterDraw(src, h)
	return second.Stake
}

// afterDraw ends the hand's turn on bust, 21 or split aces
func (s *State) afterDraw(src Source, h *Hand) {
	switch total := h.Total(); {
	case total > 21:
		h.Status = HandBust
	case total == 21, h.SplitAces:
		h.Status = HandStanding
	default:
		return
	}
	s.advance(src)
}

// advance moves to the next unfinished hand, dealing a split hand its second card on arrival,
// and resolves the dealer once no hand is left to play.
func (s *State) advance(src Source) {
	for i := s.ActiveHand; i < len(s.Hands); i++ {
		h := s.Hands[i]
		if h.isDone() {
			continue
		}
		s.ActiveHand = i
		if len(h.Cards) == 1 {
			h.Cards = append(h.Cards, s.draw(src))
			if total := h.Total(); total == 21 || h.SplitAces {
				h.Status = HandStanding
				continue
			}
		}
		return
	}

	s.ActiveHand = len(s.Hands) - 1
	s.Phase = PhaseDealerResolution
	s.playDealer(src)
	s.Phase = PhaseCompleted
}

// playDealer draws to 17 and stands on soft 17. Nothing is drawn if every hand busted.
func (s *State) playDealer(src Source) {
	live := false
	for _, h := range s.Hands {
		if h.Status != HandBust {
			live = true
			break
		}
	}
	if !live {
		return
	}
	for {
		total, _ := Total(s.Dealer)
		if total >= dealerStandsOn {
			return
		}
		s.Dealer = append(s.Dealer, s.draw(src))
	}
}

func insuranceStake(mainStake decimal.Decimal) decimal.Decimal {
	return mainStake.Div(decimal.NewFromInt(2)).RoundFloor(payout.AmountPlaces)
}
