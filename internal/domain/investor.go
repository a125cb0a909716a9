package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestorStatus represents the lifecycle status of an investor account
type InvestorStatus string

const (
	InvestorStatusActive   InvestorStatus = "ACTIVE"
	InvestorStatusInactive InvestorStatus = "INACTIVE"
)

// Investor represents a fund participant in the domain layer
// CurrentShares and NetInvestment are mutated only by share ledger
// operations and account-closure flows.
type Investor struct {
	ID            uuid.UUID
	Name          string
	Email         string
	Status        InvestorStatus
	CurrentShares decimal.Decimal // Units of proportional fund ownership
	NetInvestment decimal.Decimal // Cost basis (contributions minus redeemed basis)
	CreatedAt     time.Time
}

// Validate ensures the investor adheres to domain rules
// CRITICAL: an inactive investor must hold exactly zero shares
func (i *Investor) Validate() error {
	if i.Name == "" {
		return errors.New("investor name cannot be empty")
	}

	if i.Status != InvestorStatusActive && i.Status != InvestorStatusInactive {
		return errors.New("investor status must be ACTIVE or INACTIVE")
	}

	if i.CurrentShares.IsNegative() {
		return errors.New("investor current shares cannot be negative")
	}

	if i.NetInvestment.IsNegative() {
		return errors.New("investor net investment cannot be negative")
	}

	if i.Status == InvestorStatusInactive && !i.CurrentShares.IsZero() {
		return errors.New("inactive investor must hold zero shares")
	}

	return nil
}

// OwnershipValue returns the investor's position value at the given NAV per share
func (i *Investor) OwnershipValue(navPerShare decimal.Decimal) decimal.Decimal {
	return i.CurrentShares.Mul(navPerShare)
}
