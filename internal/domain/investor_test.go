package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvestor_Validate(t *testing.T) {
	tests := []struct {
		name     string
		investor Investor
		wantErr  bool
		errMsg   string
	}{
		{
			name: "Active investor with shares should pass",
			investor: Investor{
				ID:            uuid.New(),
				Name:          "Alice",
				Status:        InvestorStatusActive,
				CurrentShares: decimal.NewFromInt(100),
				NetInvestment: decimal.NewFromInt(1000),
			},
			wantErr: false,
		},
		{
			name: "Inactive investor with zero shares should pass",
			investor: Investor{
				ID:            uuid.New(),
				Name:          "Bob",
				Status:        InvestorStatusInactive,
				CurrentShares: decimal.Zero,
				NetInvestment: decimal.Zero,
			},
			wantErr: false,
		},
		{
			name: "Inactive investor holding shares should fail",
			investor: Investor{
				ID:            uuid.New(),
				Name:          "Carol",
				Status:        InvestorStatusInactive,
				CurrentShares: decimal.NewFromInt(5),
				NetInvestment: decimal.Zero,
			},
			wantErr: true,
			errMsg:  "inactive investor must hold zero shares",
		},
		{
			name: "Negative shares should fail",
			investor: Investor{
				ID:            uuid.New(),
				Name:          "Dave",
				Status:        InvestorStatusActive,
				CurrentShares: decimal.NewFromInt(-1),
				NetInvestment: decimal.Zero,
			},
			wantErr: true,
			errMsg:  "investor current shares cannot be negative",
		},
		{
			name: "Empty name should fail",
			investor: Investor{
				ID:            uuid.New(),
				Status:        InvestorStatusActive,
				CurrentShares: decimal.Zero,
				NetInvestment: decimal.Zero,
			},
			wantErr: true,
			errMsg:  "investor name cannot be empty",
		},
		{
			name: "Unknown status should fail",
			investor: Investor{
				ID:            uuid.New(),
				Name:          "Eve",
				Status:        InvestorStatus("SUSPENDED"),
				CurrentShares: decimal.Zero,
				NetInvestment: decimal.Zero,
			},
			wantErr: true,
			errMsg:  "investor status must be ACTIVE or INACTIVE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.investor.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFundFlowRequest_Processable(t *testing.T) {
	base := FundFlowRequest{
		ID:              uuid.New(),
		InvestorID:      uuid.New(),
		FlowType:        FlowTypeContribution,
		RequestedAmount: decimal.NewFromInt(1000),
	}

	matched := base
	matched.Status = FlowStatusMatched
	assert.NoError(t, matched.Processable())

	pending := base
	pending.Status = FlowStatusPending
	assert.Error(t, pending.Processable())

	processed := base
	processed.Status = FlowStatusProcessed
	assert.ErrorIs(t, processed.Processable(), ErrAlreadyProcessed)

	rejected := base
	rejected.Status = FlowStatusRejected
	assert.Error(t, rejected.Processable())
}

func TestFundFlowRequest_SettledAmount(t *testing.T) {
	req := FundFlowRequest{
		RequestedAmount: decimal.NewFromInt(1000),
		ActualAmount:    decimal.Zero,
	}
	assert.True(t, req.SettledAmount().Equal(decimal.NewFromInt(1000)))

	req.ActualAmount = decimal.NewFromInt(995)
	assert.True(t, req.SettledAmount().Equal(decimal.NewFromInt(995)))
}

func TestRawTransaction_HasSyntheticID(t *testing.T) {
	raw := RawTransaction{BrokerageTransactionID: "gen:abc123"}
	assert.True(t, raw.HasSyntheticID())

	raw.BrokerageTransactionID = "BRK-1001"
	assert.False(t, raw.HasSyntheticID())
}
