package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// GainAllocation is the result of allocating a withdrawal across a
// position: the withdrawn proportion, the realized slice of the position's
// unrealized gain, and the cost basis to remove with the redeemed shares.
type GainAllocation struct {
	Proportion         decimal.Decimal
	UnrealizedGain     decimal.Decimal
	RealizedGain       decimal.Decimal
	CostBasisReduction decimal.Decimal
}

// AllocateProportionalGain allocates realized gain for a withdrawal of
// amount against a position worth positionValue with the given costBasis.
// Gain is allocated proportionally across the whole position, not
// lot-tracked. Used by withdrawal processing, account closure, and
// quarterly settlement so the math cannot drift between call sites.
func AllocateProportionalGain(positionValue, costBasis, amount decimal.Decimal) (GainAllocation, error) {
	if !positionValue.IsPositive() {
		return GainAllocation{}, errors.New("position value must be positive")
	}

	if costBasis.IsNegative() {
		return GainAllocation{}, errors.New("cost basis cannot be negative")
	}

	if !amount.IsPositive() {
		return GainAllocation{}, errors.New("withdrawal amount must be positive")
	}

	if amount.GreaterThan(positionValue) {
		return GainAllocation{}, errors.New("withdrawal amount exceeds position value")
	}

	proportion := amount.Div(positionValue)

	unrealized := positionValue.Sub(costBasis)
	if unrealized.IsNegative() {
		unrealized = decimal.Zero
	}

	return GainAllocation{
		Proportion:         proportion,
		UnrealizedGain:     unrealized,
		RealizedGain:       unrealized.Mul(proportion),
		CostBasisReduction: costBasis.Mul(proportion),
	}, nil
}
