package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance is a single brokerage account's balance reading
type AccountBalance struct {
	TotalEquity decimal.Decimal
	TotalCash   decimal.Decimal
	Timestamp   time.Time
}

// BrokerageTransaction is a brokerage-normalized transaction, as already
// shaped by the client implementation
type BrokerageTransaction struct {
	BrokerageTransactionID string
	Date                   time.Time
	Type                   string
	Symbol                 string
	Quantity               decimal.Decimal
	Price                  decimal.Decimal
	Amount                 decimal.Decimal
	Description            string
}

// RawBrokerageTransaction is a brokerage-reported event in the source's
// native vocabulary, carried verbatim for staging
type RawBrokerageTransaction struct {
	BrokerageTransactionID string
	RawData                string // Verbatim API payload
	TransactionDate        time.Time
	TransactionType        string
	TransactionSubtype     string
	Symbol                 string
	Amount                 decimal.Decimal
	Description            string
}

// BrokerageClient is the capability the core requires from each
// configured brokerage source. Implementations (HTTP, SDK, fixtures) live
// outside the core; any number of sources may be configured at once.
type BrokerageClient interface {
	// GetAccountBalance returns the current balance for the account
	GetAccountBalance(ctx context.Context) (*AccountBalance, error)

	// GetTransactions returns normalized transactions in [start, end]
	GetTransactions(ctx context.Context, start, end time.Time) ([]BrokerageTransaction, error)

	// GetRawTransactions returns raw brokerage-reported events in [start, end]
	GetRawTransactions(ctx context.Context, start, end time.Time) ([]RawBrokerageTransaction, error)
}

// Event is a structured payload the core hands to surrounding automation
type Event struct {
	Kind    string
	Message string
	Fields  map[string]string
	At      time.Time
}

// NotificationSink is the capability for forwarding structured results to
// email/webhook delivery. The core never depends on how or whether
// delivery happens; a no-op implementation is used when unconfigured.
type NotificationSink interface {
	Publish(ctx context.Context, event Event) error
}
