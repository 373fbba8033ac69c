package blackjack

import "github.com/shopspring/decimal"

// HandView is a hand as shown to the player
type HandView struct {
	Cards   []string        `json:"cards"`
	Total   int             `json:"total"`
	Soft    bool            `json:"soft"`
	Status  HandStatus      `json:"status"`
	Stake   decimal.Decimal `json:"stake"`
	Doubled bool            `json:"doubled,omitempty"`
}

// View is the player's view of the table. The hole card stays hidden until the round completes.
type View struct {
	Phase              Phase          `json:"phase"`
	Step               int            `json:"step"`
	ActiveHand         int            `json:"active_hand"`
	Hands              []HandView     `json:"hands"`
	Dealer             []string       `json:"dealer"`
	DealerTotal        int            `json:"dealer_total"`
	PerfectPairs       *SideBetResult `json:"perfect_pairs,omitempty"`
	TwentyOnePlusThree *SideBetResult `json:"twenty_one_plus_three,omitempty"`
	Insurance          *InsuranceBet  `json:"insurance,omitempty"`
	LegalActions       []ActionKind   `json:"legal_actions"`
	Settlement         *Settlement    `json:"settlement,omitempty"`
}

// View renders the state for the player
func (s *State) View() *View {
	v := &View{
		Phase:              s.Phase,
		Step:               s.Step,
		ActiveHand:         s.ActiveHand,
		PerfectPairs:       s.PerfectPairs,
		TwentyOnePlusThree: s.TwentyOnePlusThree,
		Insurance:          s.Insurance,
		LegalActions:       s.LegalActions(),
	}

	for _, h := range s.Hands {
		total, soft := Total(h.Cards)
		v.Hands = append(v.Hands, HandView{
			Cards:   cardStrings(h.Cards),
			Total:   total,
			Soft:    soft,
			Status:  h.Status,
			Stake:   h.Stake,
			Doubled: h.Doubled,
		})
	}

	dealer := s.Dealer
	if !s.IsCompleted() && len(dealer) > 1 {
		dealer = dealer[:1]
	}
	v.Dealer = cardStrings(dealer)
	v.DealerTotal, _ = Total(dealer)

	if s.IsCompleted() {
		if settlement, err := Settle(s); err == nil {
			v.Settlement = settlement
		}
	}
	return v
}

func cardStrings(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
