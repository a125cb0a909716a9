package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateProportionalGain_HalfWithdrawal(t *testing.T) {
	// 1,000 shares at NAV 12.00 -> position value 12,000; basis 10,000.
	// Withdrawing 6,000 realizes half of the 2,000 unrealized gain.
	positionValue := decimal.NewFromInt(12000)
	costBasis := decimal.NewFromInt(10000)
	amount := decimal.NewFromInt(6000)

	alloc, err := AllocateProportionalGain(positionValue, costBasis, amount)
	require.NoError(t, err)

	assert.True(t, alloc.Proportion.Equal(decimal.RequireFromString("0.5")), "proportion: %s", alloc.Proportion)
	assert.True(t, alloc.UnrealizedGain.Equal(decimal.NewFromInt(2000)), "unrealized: %s", alloc.UnrealizedGain)
	assert.True(t, alloc.RealizedGain.Equal(decimal.NewFromInt(1000)), "realized: %s", alloc.RealizedGain)
	assert.True(t, alloc.CostBasisReduction.Equal(decimal.NewFromInt(5000)), "basis reduction: %s", alloc.CostBasisReduction)
}

func TestAllocateProportionalGain_FullClosure(t *testing.T) {
	positionValue := decimal.NewFromInt(12000)
	costBasis := decimal.NewFromInt(10000)

	alloc, err := AllocateProportionalGain(positionValue, costBasis, positionValue)
	require.NoError(t, err)

	assert.True(t, alloc.Proportion.Equal(decimal.NewFromInt(1)))
	assert.True(t, alloc.RealizedGain.Equal(decimal.NewFromInt(2000)))
	assert.True(t, alloc.CostBasisReduction.Equal(costBasis))
}

func TestAllocateProportionalGain_LossPositionRealizesNothing(t *testing.T) {
	// Position under water: unrealized gain clamps to zero, never negative.
	positionValue := decimal.NewFromInt(8000)
	costBasis := decimal.NewFromInt(10000)
	amount := decimal.NewFromInt(4000)

	alloc, err := AllocateProportionalGain(positionValue, costBasis, amount)
	require.NoError(t, err)

	assert.True(t, alloc.UnrealizedGain.IsZero())
	assert.True(t, alloc.RealizedGain.IsZero())
	assert.True(t, alloc.CostBasisReduction.Equal(decimal.NewFromInt(5000)))
}

func TestAllocateProportionalGain_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		positionValue decimal.Decimal
		costBasis     decimal.Decimal
		amount        decimal.Decimal
	}{
		{
			name:          "zero position value",
			positionValue: decimal.Zero,
			costBasis:     decimal.NewFromInt(100),
			amount:        decimal.NewFromInt(10),
		},
		{
			name:          "negative cost basis",
			positionValue: decimal.NewFromInt(100),
			costBasis:     decimal.NewFromInt(-1),
			amount:        decimal.NewFromInt(10),
		},
		{
			name:          "zero amount",
			positionValue: decimal.NewFromInt(100),
			costBasis:     decimal.NewFromInt(50),
			amount:        decimal.Zero,
		},
		{
			name:          "amount exceeds position",
			positionValue: decimal.NewFromInt(100),
			costBasis:     decimal.NewFromInt(50),
			amount:        decimal.NewFromInt(101),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AllocateProportionalGain(tt.positionValue, tt.costBasis, tt.amount)
			assert.Error(t, err)
		})
	}
}
