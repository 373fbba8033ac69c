package blackjack

import (
	"errors"
	"testing"

	"wagerledger/fairness"
	"wagerledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stackedShoe returns preset cards in cursor order
type stackedShoe struct {
	t     *testing.T
	cards []Card
	reads []int
}

func newShoe(t *testing.T, cards ...Card) *stackedShoe {
	return &stackedShoe{t: t, cards: cards}
}

func (s *stackedShoe) At(cursor int) fairness.Outcome {
	if cursor >= len(s.cards) {
		s.t.Fatalf("shoe exhausted at cursor %d", cursor)
	}
	s.reads = append(s.reads, cursor)
	c := s.cards[cursor]
	idx := uint64(int(c.Suit)*13 + int(c.Rank) - 1)
	return fairness.Outcome{Bits: (idx<<52 + 51) / 52}
}

func card(r Rank, s Suit) Card {
	return Card{Rank: r, Suit: s}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func noSideBets() SideBetStakes {
	return SideBetStakes{PerfectPairs: decimal.Zero, TwentyOnePlusThree: decimal.Zero}
}

func TestCardFromIndex(t *testing.T) {
	assert.Equal(t, card(Ace, Hearts), CardFromIndex(0))
	assert.Equal(t, card(King, Spades), CardFromIndex(51))
	assert.Equal(t, card(10, Diamonds), CardFromIndex(22))
	assert.Equal(t, "A♥", CardFromIndex(0).String())
	assert.Equal(t, "10♦", CardFromIndex(22).String())
}

func TestCardAt_StackedShoeRoundTrips(t *testing.T) {
	want := []Card{card(Ace, Hearts), card(King, Spades), card(8, Clubs), card(Queen, Diamonds)}
	shoe := newShoe(t, want...)
	for i, c := range want {
		assert.Equal(t, c, CardAt(shoe, i))
	}
}

func TestTotal_SoftAces(t *testing.T) {
	total, soft := Total([]Card{card(Ace, Hearts), card(6, Clubs)})
	assert.Equal(t, 17, total)
	assert.True(t, soft)

	total, soft = Total([]Card{card(Ace, Hearts), card(6, Clubs), card(King, Clubs)})
	assert.Equal(t, 17, total)
	assert.False(t, soft)

	total, _ = Total([]Card{card(Ace, Hearts), card(Ace, Clubs), card(9, Clubs)})
	assert.Equal(t, 21, total)
}

func TestDeal_PlayerBlackjackAgainstTenResolvesImmediately(t *testing.T) {
	shoe := newShoe(t,
		card(Ace, Hearts),   // player
		card(10, Diamonds),  // dealer up
		card(King, Spades),  // player
		card(7, Clubs),      // dealer hole
	)

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Equal(t, HandBlackjack, state.Hands[0].Status)
	assert.Nil(t, state.Insurance, "no insurance offered against a ten")
	assert.Equal(t, []int{0, 1, 2, 3}, shoe.reads)
	assert.Len(t, state.Dealer, 2, "dealer does not draw")

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultBlackjack, settlement.Hands[0].Result)
	assert.True(t, d("2.5").Equal(settlement.Hands[0].Multiplier))
	assert.True(t, d("25").Equal(settlement.Total))
	assert.True(t, d("2.5").Equal(settlement.Multiplier))
}

func TestDeal_DealerBlackjackWithTenShowingEndsRound(t *testing.T) {
	shoe := newShoe(t, card(9, Hearts), card(King, Clubs), card(9, Spades), card(Ace, Diamonds))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Nil(t, state.Insurance)
	assert.Empty(t, state.LegalActions())

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultLoss, settlement.Hands[0].Result)
	assert.True(t, settlement.Total.IsZero())
}

func TestDeal_BothBlackjackPushes(t *testing.T) {
	shoe := newShoe(t, card(Ace, Hearts), card(Queen, Clubs), card(Jack, Spades), card(Ace, Diamonds))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultPush, settlement.Hands[0].Result)
	assert.True(t, d("10").Equal(settlement.Total))
}

func TestDeal_AceShowingOffersInsurance(t *testing.T) {
	shoe := newShoe(t, card(9, Hearts), card(Ace, Clubs), card(8, Spades), card(King, Diamonds))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	assert.Equal(t, PhaseInsurancePending, state.Phase)
	assert.ElementsMatch(t, []ActionKind{ActionInsurance, ActionNoInsurance}, state.LegalActions())

	_, err = state.Apply(shoe, ActionHit)
	assert.True(t, errors.Is(err, models.ErrIllegalAction))

	effect, err := state.Apply(shoe, ActionInsurance)
	require.NoError(t, err)
	assert.True(t, d("5").Equal(effect.ExtraStake))
	assert.Equal(t, PhaseCompleted, state.Phase, "dealer blackjack completes the round")
	assert.True(t, state.Insurance.Won)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.True(t, d("15").Equal(settlement.Insurance))
	assert.True(t, settlement.Hands[0].Payout.IsZero())
	assert.True(t, d("15").Equal(settlement.Total))
	assert.True(t, d("15").Equal(settlement.TotalStaked))
}

func TestInsurance_DeclinedWithoutDealerBlackjackContinues(t *testing.T) {
	shoe := newShoe(t, card(9, Hearts), card(Ace, Clubs), card(8, Spades), card(6, Diamonds), card(2, Clubs), card(King, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	effect, err := state.Apply(shoe, ActionNoInsurance)
	require.NoError(t, err)
	assert.True(t, effect.ExtraStake.IsZero())
	assert.Equal(t, PhasePlayerTurn, state.Phase)
	assert.False(t, state.Insurance.Taken)

	// player 17 stands; dealer soft 17 (A+6) stands
	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Len(t, state.Dealer, 2)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultPush, settlement.Hands[0].Result)
}

func TestInsurance_TakenAndLost(t *testing.T) {
	shoe := newShoe(t, card(10, Hearts), card(Ace, Clubs), card(9, Spades), card(5, Diamonds), card(King, Hearts), card(5, Clubs))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionInsurance)
	require.NoError(t, err)
	assert.False(t, state.Insurance.Won)
	assert.Equal(t, PhasePlayerTurn, state.Phase)

	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)

	// dealer A+5 draws K for hard 16, then 5 for 21
	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, 21, settlement.DealerTotal)
	assert.Equal(t, ResultLoss, settlement.Hands[0].Result)
	assert.True(t, settlement.Insurance.IsZero())
	assert.True(t, d("15").Equal(settlement.TotalStaked))
}

func TestSplit_SharedCursorOrder(t *testing.T) {
	shoe := newShoe(t,
		card(8, Clubs),     // 0 player
		card(5, Hearts),    // 1 dealer up
		card(8, Diamonds),  // 2 player
		card(10, Spades),   // 3 dealer hole
		card(3, Hearts),    // 4 hand 1 second card on split
		card(2, Spades),    // 5 hand 1 hit
		card(10, Hearts),   // 6 hand 2 second card when reached
		card(9, Clubs),     // 7 dealer draw
	)

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)
	assert.Contains(t, state.LegalActions(), ActionSplit)

	effect, err := state.Apply(shoe, ActionSplit)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(effect.ExtraStake))
	require.Len(t, state.Hands, 2)
	assert.Equal(t, []Card{card(8, Clubs), card(3, Hearts)}, state.Hands[0].Cards)
	assert.Equal(t, []Card{card(8, Diamonds)}, state.Hands[1].Cards, "second hand waits for its card")

	_, err = state.Apply(shoe, ActionHit)
	require.NoError(t, err)
	assert.Equal(t, card(2, Spades), state.Hands[0].Cards[2], "hand 1 draws the next card in the stream")
	assert.Len(t, state.Hands[1].Cards, 1)

	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)
	assert.Equal(t, 1, state.ActiveHand)
	assert.Equal(t, []Card{card(8, Diamonds), card(10, Hearts)}, state.Hands[1].Cards)

	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, shoe.reads)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, 24, settlement.DealerTotal)
	assert.Equal(t, ResultWin, settlement.Hands[0].Result)
	assert.Equal(t, ResultWin, settlement.Hands[1].Result)
	assert.True(t, d("40").Equal(settlement.Total))
}

func TestSplit_TwentyOneIsNotNatural(t *testing.T) {
	shoe := newShoe(t,
		card(Ace, Clubs), card(9, Hearts), card(Ace, Diamonds), card(8, Spades),
		card(King, Hearts), // hand 1: A K
		card(5, Spades),    // hand 2: A 5
	)

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionSplit)
	require.NoError(t, err)

	// split aces receive one card each and stand
	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Equal(t, HandStanding, state.Hands[0].Status)
	assert.Equal(t, HandStanding, state.Hands[1].Status)
	assert.Len(t, state.Dealer, 2, "dealer 17 stands")

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultWin, settlement.Hands[0].Result)
	assert.True(t, d("2").Equal(settlement.Hands[0].Multiplier), "21 after a split pays even money")
	assert.Equal(t, ResultLoss, settlement.Hands[1].Result)
}

func TestSplit_OnlyOnce(t *testing.T) {
	shoe := newShoe(t, card(8, Clubs), card(5, Hearts), card(8, Diamonds), card(10, Spades), card(8, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)
	_, err = state.Apply(shoe, ActionSplit)
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionSplit)
	assert.True(t, errors.Is(err, models.ErrIllegalAction))
}

func TestDouble_DrawsExactlyOneCard(t *testing.T) {
	shoe := newShoe(t, card(6, Clubs), card(9, Hearts), card(5, Diamonds), card(8, Spades), card(2, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	effect, err := state.Apply(shoe, ActionDouble)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(effect.ExtraStake))

	hand := state.Hands[0]
	assert.Len(t, hand.Cards, 3)
	assert.True(t, hand.Doubled)
	assert.True(t, d("20").Equal(hand.Stake))
	assert.Equal(t, HandStanding, hand.Status)
	assert.Equal(t, PhaseCompleted, state.Phase)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.Equal(t, ResultLoss, settlement.Hands[0].Result, "13 loses to 17")
}

func TestDouble_OnlyOnTwoCards(t *testing.T) {
	shoe := newShoe(t, card(2, Clubs), card(9, Hearts), card(3, Diamonds), card(8, Spades), card(2, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)
	_, err = state.Apply(shoe, ActionHit)
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionDouble)
	assert.True(t, errors.Is(err, models.ErrIllegalAction))
}

func TestBust_DealerDoesNotDraw(t *testing.T) {
	shoe := newShoe(t, card(10, Clubs), card(6, Hearts), card(6, Diamonds), card(King, Spades), card(9, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionHit)
	require.NoError(t, err)
	assert.Equal(t, HandBust, state.Hands[0].Status)
	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Len(t, state.Dealer, 2)

	_, err = state.Apply(shoe, ActionStand)
	assert.True(t, errors.Is(err, models.ErrIllegalAction), "no actions after completion")
}

func TestHit_TwentyOneEndsTurn(t *testing.T) {
	shoe := newShoe(t, card(5, Clubs), card(10, Hearts), card(6, Diamonds), card(7, Spades), card(King, Hearts))

	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	_, err = state.Apply(shoe, ActionHit)
	require.NoError(t, err)
	assert.Equal(t, HandStanding, state.Hands[0].Status)
	assert.Equal(t, PhaseCompleted, state.Phase)
}

func TestSideBets_SettledOnInitialCards(t *testing.T) {
	shoe := newShoe(t, card(7, Hearts), card(9, Hearts), card(7, Hearts), card(8, Spades), card(5, Clubs))

	state, err := Deal(shoe, d("10"), SideBetStakes{PerfectPairs: d("1"), TwentyOnePlusThree: d("2")})
	require.NoError(t, err)

	require.NotNil(t, state.PerfectPairs)
	assert.Equal(t, PairPerfect, state.PerfectPairs.Outcome)
	assert.True(t, d("26").Equal(state.PerfectPairs.Payout))

	require.NotNil(t, state.TwentyOnePlusThree)
	assert.Equal(t, ComboFlush, state.TwentyOnePlusThree.Outcome)
	assert.True(t, d("12").Equal(state.TwentyOnePlusThree.Payout))

	// 14 hits to 19, dealer 17 stands
	_, err = state.Apply(shoe, ActionHit)
	require.NoError(t, err)
	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)

	settlement, err := Settle(state)
	require.NoError(t, err)
	assert.True(t, d("20").Equal(settlement.Hands[0].Payout))
	assert.True(t, d("26").Equal(settlement.PerfectPairs))
	assert.True(t, d("12").Equal(settlement.TwentyOnePlusThree))
	assert.True(t, d("58").Equal(settlement.Total))
	assert.True(t, d("13").Equal(settlement.TotalStaked))
}

func TestClassifyPair(t *testing.T) {
	assert.Equal(t, PairNone, ClassifyPair(card(7, Hearts), card(8, Hearts)))
	assert.Equal(t, PairPerfect, ClassifyPair(card(7, Hearts), card(7, Hearts)))
	assert.Equal(t, PairColoured, ClassifyPair(card(7, Hearts), card(7, Diamonds)))
	assert.Equal(t, PairMixed, ClassifyPair(card(7, Hearts), card(7, Spades)))
}

func TestClassifyThree(t *testing.T) {
	assert.Equal(t, ComboSuitedTrips, ClassifyThree([3]Card{card(4, Clubs), card(4, Clubs), card(4, Clubs)}))
	assert.Equal(t, ComboStraightFlush, ClassifyThree([3]Card{card(4, Clubs), card(5, Clubs), card(6, Clubs)}))
	assert.Equal(t, ComboThreeOfAKind, ClassifyThree([3]Card{card(4, Clubs), card(4, Hearts), card(4, Spades)}))
	assert.Equal(t, ComboStraight, ClassifyThree([3]Card{card(Queen, Clubs), card(King, Hearts), card(Ace, Spades)}))
	assert.Equal(t, ComboStraight, ClassifyThree([3]Card{card(Ace, Clubs), card(2, Hearts), card(3, Spades)}))
	assert.Equal(t, ComboFlush, ClassifyThree([3]Card{card(2, Clubs), card(9, Clubs), card(Jack, Clubs)}))
	assert.Equal(t, ComboNone, ClassifyThree([3]Card{card(2, Clubs), card(9, Hearts), card(Jack, Clubs)}))
}

func TestSettle_RejectsRoundInPlay(t *testing.T) {
	shoe := newShoe(t, card(5, Clubs), card(10, Hearts), card(6, Diamonds), card(7, Spades))
	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	_, err = Settle(state)
	assert.True(t, errors.Is(err, models.ErrRoundNotActive))
}

func TestView_HidesHoleCardUntilComplete(t *testing.T) {
	shoe := newShoe(t, card(5, Clubs), card(10, Hearts), card(6, Diamonds), card(7, Spades))
	state, err := Deal(shoe, d("10"), noSideBets())
	require.NoError(t, err)

	view := state.View()
	assert.Equal(t, []string{"10♥"}, view.Dealer)
	assert.Equal(t, 10, view.DealerTotal)
	assert.Nil(t, view.Settlement)
	assert.ElementsMatch(t, []ActionKind{ActionHit, ActionStand, ActionDouble}, view.LegalActions)

	_, err = state.Apply(shoe, ActionStand)
	require.NoError(t, err)

	view = state.View()
	assert.Equal(t, []string{"10♥", "7♠"}, view.Dealer)
	require.NotNil(t, view.Settlement)
}

func TestDeal_RejectsBadStake(t *testing.T) {
	shoe := newShoe(t)
	_, err := Deal(shoe, decimal.Zero, noSideBets())
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))

	_, err = Deal(shoe, d("1"), SideBetStakes{PerfectPairs: d("-1"), TwentyOnePlusThree: decimal.Zero})
	assert.True(t, errors.Is(err, models.ErrInvalidParameters))
}
