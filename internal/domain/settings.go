package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundSettings is the single-row configuration record for the fund
type FundSettings struct {
	TaxRate      decimal.Decimal // Realized-gain tax rate, e.g. 0.25
	BaseCurrency string
	UpdatedAt    time.Time
}

// AuditEntry is a best-effort persisted summary of a batch operation.
// Audit writes may fail without aborting the operation that produced them.
type AuditEntry struct {
	ID        int64
	Category  string
	Message   string
	Details   string // JSON blob of computed figures
	CreatedAt time.Time
}
