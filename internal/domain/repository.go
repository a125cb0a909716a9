package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestorRepository defines the interface for investor persistence operations
type InvestorRepository interface {
	// GetByID retrieves an investor by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Investor, error)

	// Create creates a new investor
	Create(ctx context.Context, investor *Investor) error

	// List retrieves investors, optionally filtered by status
	// If statusFilter is empty, returns all investors
	List(ctx context.Context, statusFilter InvestorStatus) ([]*Investor, error)

	// SumActiveShares returns the live sum of current_shares over ACTIVE
	// investors. This query is the canonical source of truth for shares
	// outstanding, never a cached counter.
	SumActiveShares(ctx context.Context) (decimal.Decimal, error)
}

// NAVRepository defines the interface for NAV record persistence operations
type NAVRepository interface {
	// Upsert creates or replaces the record for its date. Re-running the
	// same day's valuation must be idempotent, not additive.
	Upsert(ctx context.Context, record *NAVRecord) error

	// GetLatest retrieves the most recent record, or ErrNotFound
	GetLatest(ctx context.Context) (*NAVRecord, error)

	// GetOnOrBefore retrieves the most recent record with date <= the given
	// date, or ErrNotFound
	GetOnOrBefore(ctx context.Context, date time.Time) (*NAVRecord, error)

	// GetPrior retrieves the most recent record with date < the given date,
	// or ErrNotFound
	GetPrior(ctx context.Context, date time.Time) (*NAVRecord, error)

	// ListAll retrieves every record ordered by date ascending
	ListAll(ctx context.Context) ([]*NAVRecord, error)
}

// TransactionRepository defines the interface for reading the append-only
// transaction ledger. Writes happen only through LedgerRepository so they
// stay atomic with the investor and request mutations they belong to.
type TransactionRepository interface {
	// ListByInvestor retrieves all transactions for an investor ordered by date
	ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*Transaction, error)

	// GetByReferenceID retrieves the transaction created for a fund flow
	// request, or ErrNotFound. This is the idempotency probe for retries.
	GetByReferenceID(ctx context.Context, referenceID uuid.UUID) (*Transaction, error)
}

// TaxEventRepository defines the interface for tax event reads
type TaxEventRepository interface {
	// ListByYear retrieves all tax events dated within the given year
	ListByYear(ctx context.Context, year int) ([]*TaxEvent, error)

	// ListByInvestor retrieves all tax events for an investor
	ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*TaxEvent, error)
}

// FundFlowRepository defines the interface for fund flow request persistence
type FundFlowRepository interface {
	// GetByID retrieves a request by its ID, or ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*FundFlowRequest, error)

	// Create creates a new request
	Create(ctx context.Context, request *FundFlowRequest) error

	// ListByStatus retrieves requests in the given status ordered by creation
	ListByStatus(ctx context.Context, status FlowStatus) ([]*FundFlowRequest, error)

	// Reject transitions a request to REJECTED with the given reason.
	// Rejection changes no financial state.
	Reject(ctx context.Context, id uuid.UUID, reason string) error
}

// FundFlowApplication is the unit of work for completing a fund flow: the
// mutated investor, the stamped request, the ledger transaction, and the
// optional tax event succeed together or not at all.
type FundFlowApplication struct {
	Investor    *Investor
	Request     *FundFlowRequest // Nil for account-closure flows with no originating request
	Transaction *Transaction
	TaxEvent    *TaxEvent // Nil when no gain was realized
}

// LedgerRepository defines the atomic multi-entity write surface of the
// share ledger. A crash mid-sequence must leave the request in its
// pre-operation state so the operation can be safely retried.
type LedgerRepository interface {
	// ApplyFundFlow persists the whole application in one store transaction
	ApplyFundFlow(ctx context.Context, app *FundFlowApplication) error
}

// StagingRepository defines the interface for the raw transaction staging table
type StagingRepository interface {
	// InsertIfAbsent stages the row unless one with the same
	// (source, brokerage_transaction_id) already exists. Returns true when
	// the row was inserted. Re-extracting an already-staged transaction is
	// a no-op, not an error.
	InsertIfAbsent(ctx context.Context, raw *RawTransaction) (bool, error)

	// ListPending retrieves rows with etl_status PENDING
	ListPending(ctx context.Context) ([]*RawTransaction, error)

	// ListTransformedUnlinked retrieves TRANSFORMED rows not yet linked to
	// a canonical trade
	ListTransformedUnlinked(ctx context.Context) ([]*RawTransaction, error)

	// Update writes back the row's ETL outcome (status, error message,
	// category, review flag, canonical trade link)
	Update(ctx context.Context, raw *RawTransaction) error
}

// CanonicalTradeRepository defines the interface for the production trade ledger
type CanonicalTradeRepository interface {
	// Create inserts a new canonical trade
	Create(ctx context.Context, trade *CanonicalTrade) error

	// GetBySourceTransactionID retrieves a trade by its dedup key, or ErrNotFound
	GetBySourceTransactionID(ctx context.Context, source, brokerageTransactionID string) (*CanonicalTrade, error)

	// FindLogicalDuplicate retrieves a trade matching (source, date, amount),
	// or ErrNotFound. Fallback dedup for synthetic-id sources.
	FindLogicalDuplicate(ctx context.Context, source string, date time.Time, amount decimal.Decimal) (*CanonicalTrade, error)

	// Count returns the number of canonical trades
	Count(ctx context.Context) (int, error)
}

// SettingsRepository defines the interface for the fund settings row
type SettingsRepository interface {
	// Get retrieves the settings row, or ErrNotFound
	Get(ctx context.Context) (*FundSettings, error)

	// Ensure creates the settings row with the given defaults if absent
	Ensure(ctx context.Context, defaults *FundSettings) error
}

// AuditRepository defines the interface for best-effort audit logging
type AuditRepository interface {
	// Append persists an audit entry. Callers treat failures as
	// non-fatal: audit logging never aborts a financial operation.
	Append(ctx context.Context, entry *AuditEntry) error
}
