package payout

import (
	"fmt"
	"math"

	"wagerledger/models"

	"github.com/shopspring/decimal"
)

// Rounding policy
const (
	ChancePlaces     = 6
	MultiplierPlaces = 4
	AmountPlaces     = 8
)

var (
	// MinWinChance and MaxWinChance are percentages
	MinWinChance = decimal.RequireFromString("0.000001")
	MaxWinChance = decimal.RequireFromString("99.99")

	MaxMultiplier = decimal.NewFromInt(100_000_000)

	hundred = decimal.NewFromInt(100)
)

// ValidateHouseEdge checks that an edge percentage lies in [0, 100)
func ValidateHouseEdge(edge decimal.Decimal) error {
	if edge.IsNegative() || edge.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: house edge %s outside [0, 100)", models.ErrInvalidParameters, edge)
	}
	return nil
}

// ClampChance bounds a win chance percentage to [MinWinChance, MaxWinChance]
func ClampChance(chance decimal.Decimal) decimal.Decimal {
	if chance.LessThan(MinWinChance) {
		return MinWinChance
	}
	if chance.GreaterThan(MaxWinChance) {
		return MaxWinChance
	}
	return chance
}

// MultiplierForChance returns (100 - edge) / chance rounded to 4 places.
// chance is a percentage in (0, 100) and is clamped before dividing.
func MultiplierForChance(edge, chance decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateHouseEdge(edge); err != nil {
		return decimal.Zero, err
	}
	if !chance.IsPositive() || chance.GreaterThanOrEqual(hundred) {
		return decimal.Zero, fmt.Errorf("%w: win chance %s outside (0, 100)", models.ErrInvalidParameters, chance)
	}

	chance = ClampChance(chance)
	return hundred.Sub(edge).DivRound(chance, MultiplierPlaces), nil
}

// ChanceForMultiplier returns (100 - edge) / multiplier rounded to 6 places and clamped
func ChanceForMultiplier(edge, multiplier decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateHouseEdge(edge); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateMultiplier(multiplier); err != nil {
		return decimal.Zero, err
	}

	chance := hundred.Sub(edge).DivRound(multiplier, ChancePlaces)
	return ClampChance(chance), nil
}

// ValidateMultiplier requires a target multiplier in (1, MaxMultiplier]
func ValidateMultiplier(multiplier decimal.Decimal) error {
	if multiplier.LessThanOrEqual(decimal.NewFromInt(1)) || multiplier.GreaterThan(MaxMultiplier) {
		return fmt.Errorf("%w: multiplier %s outside (1, %s]", models.ErrInvalidParameters, multiplier, MaxMultiplier)
	}
	return nil
}

// Payout floors stake * multiplier to 8 places. It never rounds up.
func Payout(stake, multiplier decimal.Decimal) decimal.Decimal {
	return stake.Mul(multiplier).RoundFloor(AmountPlaces)
}

// ExpectedHouseTake is the long-run value the house keeps from a stake
func ExpectedHouseTake(stake, edge decimal.Decimal) decimal.Decimal {
	return stake.Mul(edge).Div(hundred).RoundFloor(AmountPlaces)
}

// ValidateStake requires a positive amount with at most 8 places inside [min, max].
// A zero max means no upper bound.
func ValidateStake(stake, minStake, maxStake decimal.Decimal) error {
	if !stake.IsPositive() {
		return fmt.Errorf("%w: stake must be positive", models.ErrInvalidParameters)
	}
	if !stake.Equal(stake.Truncate(AmountPlaces)) {
		return fmt.Errorf("%w: stake has more than %d decimal places", models.ErrInvalidParameters, AmountPlaces)
	}
	if stake.LessThan(minStake) {
		return fmt.Errorf("%w: stake below minimum %s", models.ErrInvalidParameters, minStake)
	}
	if maxStake.IsPositive() && stake.GreaterThan(maxStake) {
		return fmt.Errorf("%w: stake above maximum %s", models.ErrInvalidParameters, maxStake)
	}
	return nil
}

// FromFloat converts a caller supplied float, rejecting NaN and infinities
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: non-finite value", models.ErrInvalidParameters)
	}
	return decimal.NewFromFloat(f), nil
}
