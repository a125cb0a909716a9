package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ETLStatus represents the processing outcome recorded on a staging row
type ETLStatus string

const (
	ETLStatusPending     ETLStatus = "PENDING"
	ETLStatusTransformed ETLStatus = "TRANSFORMED"
	ETLStatusError       ETLStatus = "ERROR"
	ETLStatusSkipped     ETLStatus = "SKIPPED"
)

// SyntheticIDPrefix marks brokerage transaction ids that were generated
// rather than reported by the source. Sources that cannot supply stable
// ids across extractions emit placeholders with this prefix; the loader
// applies a (source, date, amount) fallback dedup to such rows.
const SyntheticIDPrefix = "gen:"

// RawTransaction is one staged brokerage-reported event, keyed by
// (source, brokerage_transaction_id). Never overwritten once ingested:
// it is the audit trail of what the brokerage actually said.
type RawTransaction struct {
	ID                     uuid.UUID
	Source                 string
	BrokerageTransactionID string
	RawData                string // Verbatim API payload
	TransactionDate        time.Time
	TransactionType        string
	TransactionSubtype     string
	Symbol                 string
	Amount                 decimal.Decimal
	Description            string

	ETLStatus        ETLStatus
	ErrorMessage     string
	Category         TradeCategory // Written back by Transform
	Subcategory      string
	NeedsReview      bool // Unmappable type fell into OTHER
	CanonicalTradeID *uuid.UUID
	IngestedAt       time.Time
}

// Validate ensures the staging row adheres to domain rules
func (r *RawTransaction) Validate() error {
	if r.Source == "" {
		return errors.New("raw transaction source cannot be empty")
	}

	if r.BrokerageTransactionID == "" {
		return errors.New("raw transaction brokerage transaction id cannot be empty")
	}

	if r.TransactionDate.IsZero() {
		return errors.New("raw transaction date cannot be zero")
	}

	return nil
}

// HasSyntheticID reports whether the brokerage transaction id is a
// generated placeholder rather than a stable source-reported id.
func (r *RawTransaction) HasSyntheticID() bool {
	return strings.HasPrefix(r.BrokerageTransactionID, SyntheticIDPrefix)
}

// TradeCategory is the canonical taxonomy for normalized trades
type TradeCategory string

const (
	TradeCategoryTrade    TradeCategory = "TRADE"
	TradeCategoryTransfer TradeCategory = "TRANSFER"
	TradeCategoryIncome   TradeCategory = "INCOME"
	TradeCategoryFee      TradeCategory = "FEE"
	TradeCategoryOther    TradeCategory = "OTHER"
)

// CanonicalTrade is the normalized, brokerage-agnostic trade/transfer
// record in the production ledger. Deduplicated against
// (source, brokerage_transaction_id).
type CanonicalTrade struct {
	ID                     uuid.UUID
	Date                   time.Time
	Type                   string // Source-native type, retained for reporting
	Symbol                 string
	Quantity               decimal.Decimal
	Price                  decimal.Decimal
	Amount                 decimal.Decimal
	Commission             decimal.Decimal
	Fees                   decimal.Decimal
	Category               TradeCategory
	Subcategory            string
	Source                 string
	BrokerageTransactionID string
	CreatedAt              time.Time
}

// Validate ensures the canonical trade adheres to domain rules
func (t *CanonicalTrade) Validate() error {
	if t.Source == "" {
		return errors.New("canonical trade source cannot be empty")
	}

	if t.BrokerageTransactionID == "" {
		return errors.New("canonical trade brokerage transaction id cannot be empty")
	}

	if t.Date.IsZero() {
		return errors.New("canonical trade date cannot be zero")
	}

	switch t.Category {
	case TradeCategoryTrade, TradeCategoryTransfer, TradeCategoryIncome, TradeCategoryFee, TradeCategoryOther:
	default:
		return errors.New("unknown trade category: " + string(t.Category))
	}

	return nil
}
