package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NAVFormulaEpsilon is the tolerance for nav_per_share == total_portfolio_value / total_shares
var NAVFormulaEpsilon = decimal.RequireFromString("0.0001")

// BootstrapNAV is the defined NAV per share for the very first valuation,
// before any shares have been issued.
var BootstrapNAV = decimal.RequireFromString("1.00")

// NAVRecord represents one trading day's valuation of the fund
// Exactly one record exists per trading date; records are upserted by the
// valuation engine and never deleted.
type NAVRecord struct {
	ID                  uuid.UUID
	Date                time.Time // Trading date, truncated to day
	NAVPerShare         decimal.Decimal
	TotalPortfolioValue decimal.Decimal
	TotalShares         decimal.Decimal
	DailyChangeAbs      decimal.Decimal
	DailyChangePct      decimal.Decimal
	CreatedAt           time.Time
}

// Validate ensures the record adheres to domain rules
// CRITICAL: nav_per_share must equal total_portfolio_value / total_shares
// (within NAVFormulaEpsilon) whenever shares are outstanding
func (n *NAVRecord) Validate() error {
	if n.Date.IsZero() {
		return errors.New("nav record date cannot be zero")
	}

	if n.NAVPerShare.IsNegative() {
		return errors.New("nav per share cannot be negative")
	}

	if n.TotalPortfolioValue.IsNegative() {
		return errors.New("total portfolio value cannot be negative")
	}

	if n.TotalShares.IsNegative() {
		return errors.New("total shares cannot be negative")
	}

	if n.TotalShares.IsPositive() {
		implied := n.TotalPortfolioValue.Div(n.TotalShares)
		if implied.Sub(n.NAVPerShare).Abs().GreaterThan(NAVFormulaEpsilon) {
			return errors.New("nav per share does not match total portfolio value / total shares")
		}
	}

	return nil
}
