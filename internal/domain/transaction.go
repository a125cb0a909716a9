package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of share-affecting event
type TransactionType string

const (
	TransactionTypeInitial      TransactionType = "INITIAL"
	TransactionTypeContribution TransactionType = "CONTRIBUTION"
	TransactionTypeWithdrawal   TransactionType = "WITHDRAWAL"
	TransactionTypeTaxPayment   TransactionType = "TAX_PAYMENT"
	TransactionTypeTaxRefund    TransactionType = "TAX_REFUND"
)

// Transaction represents an immutable, append-only record of a
// share-affecting event. Transactions are never mutated after creation.
type Transaction struct {
	ID          uuid.UUID
	InvestorID  uuid.UUID
	Date        time.Time
	Type        TransactionType
	Amount      decimal.Decimal // Signed: positive for cash in, negative for cash out
	NAVPerShare decimal.Decimal // NAV per share at execution
	SharesDelta decimal.Decimal // Signed share movement
	BasisDelta  decimal.Decimal // Signed change to the investor's cost basis
	ReferenceID *uuid.UUID      // Originating fund flow request, when any
	Notes       string
	CreatedAt   time.Time
}

// Validate ensures the transaction adheres to domain rules
// Sign conventions are enforced per type: contributions add shares and cash,
// withdrawals remove both.
func (t *Transaction) Validate() error {
	if t.InvestorID == uuid.Nil {
		return errors.New("transaction investor id cannot be empty")
	}

	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}

	switch t.Type {
	case TransactionTypeInitial, TransactionTypeContribution:
		if !t.Amount.IsPositive() {
			return errors.New("contribution amount must be positive")
		}
		if t.SharesDelta.IsNegative() {
			return errors.New("contribution shares delta cannot be negative")
		}
	case TransactionTypeWithdrawal:
		// Zero is allowed: closing a dust position whose value rounds to
		// nothing still redeems its shares.
		if t.Amount.IsPositive() {
			return errors.New("withdrawal amount cannot be positive")
		}
		if t.SharesDelta.IsPositive() {
			return errors.New("withdrawal shares delta cannot be positive")
		}
	case TransactionTypeTaxPayment, TransactionTypeTaxRefund:
		if t.Amount.IsZero() {
			return errors.New("tax adjustment amount cannot be zero")
		}
		if !t.SharesDelta.IsZero() {
			return errors.New("tax adjustment must not move shares")
		}
	default:
		return errors.New("unknown transaction type: " + string(t.Type))
	}

	if t.NAVPerShare.IsNegative() {
		return errors.New("nav per share at execution cannot be negative")
	}

	return nil
}

// TaxEvent represents one realized-gain event tied to a transaction.
// TaxDue may legitimately be zero when liability is deferred to a later
// batch settlement; the record still captures the gain for reconciliation.
type TaxEvent struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	InvestorID    uuid.UUID
	Date          time.Time
	RealizedGain  decimal.Decimal
	TaxRate       decimal.Decimal
	TaxDue        decimal.Decimal
	NetProceeds   decimal.Decimal
	CreatedAt     time.Time
}

// Validate ensures the tax event adheres to domain rules
func (e *TaxEvent) Validate() error {
	if e.TransactionID == uuid.Nil {
		return errors.New("tax event transaction id cannot be empty")
	}

	if e.InvestorID == uuid.Nil {
		return errors.New("tax event investor id cannot be empty")
	}

	if e.RealizedGain.IsNegative() {
		return errors.New("tax event realized gain cannot be negative")
	}

	if e.TaxRate.IsNegative() || e.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("tax rate must be between 0 and 1")
	}

	if e.TaxDue.IsNegative() {
		return errors.New("tax due cannot be negative")
	}

	return nil
}
