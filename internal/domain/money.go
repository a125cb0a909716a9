package domain

import "github.com/shopspring/decimal"

// Fixed rounding rule across the ledger: round half-up at 4 decimal
// places for share quantities and 2 for currency. Rounding is applied
// only at persist/output boundaries, never mid-calculation.
const (
	SharePrecision    = 4
	CurrencyPrecision = 2
)

// RoundShares rounds a share quantity half-up at SharePrecision.
func RoundShares(d decimal.Decimal) decimal.Decimal {
	return d.Round(SharePrecision)
}

// RoundCurrency rounds a monetary amount half-up at CurrencyPrecision.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPrecision)
}
