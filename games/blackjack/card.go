package blackjack

import (
	"fmt"

	"wagerledger/fairness"
)

// Suit of a card
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

var suitSymbols = [...]string{"♥", "♦", "♣", "♠"}

// Rank of a card, Ace = 1 through King = 13
type Rank int

const (
	Ace   Rank = 1
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
)

// Card is one draw from the infinite shoe
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// CardFromIndex maps 0..51 onto a card: rank = idx%13, suit = idx/13
func CardFromIndex(idx int) Card {
	return Card{Rank: Rank(idx%13 + 1), Suit: Suit(idx / 13)}
}

// Value is the blackjack point value with aces counted as 1
func (c Card) Value() int {
	if c.Rank >= 10 {
		return 10
	}
	return int(c.Rank)
}

// IsTen reports whether the card counts as ten
func (c Card) IsTen() bool {
	return c.Value() == 10
}

// IsRed reports whether the card is a heart or diamond
func (c Card) IsRed() bool {
	return c.Suit == Hearts || c.Suit == Diamonds
}

func (c Card) String() string {
	var rank string
	switch c.Rank {
	case Ace:
		rank = "A"
	case Jack:
		rank = "J"
	case Queen:
		rank = "Q"
	case King:
		rank = "K"
	default:
		rank = fmt.Sprintf("%d", c.Rank)
	}
	if c.Suit < Hearts || c.Suit > Spades {
		return rank + "?"
	}
	return rank + suitSymbols[c.Suit]
}

// Source yields the draw at a cursor. *fairness.Stream satisfies it.
type Source interface {
	At(cursor int) fairness.Outcome
}

// CardAt draws the card at cursor
func CardAt(src Source, cursor int) Card {
	return CardFromIndex(int(src.At(cursor).Scale(52)))
}
