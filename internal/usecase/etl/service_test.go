package etl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// fakeBrokerageClient returns canned raw transactions, mimicking a
// brokerage that reports the same history on every call.
type fakeBrokerageClient struct {
	raws []domain.RawBrokerageTransaction
}

func (f *fakeBrokerageClient) GetAccountBalance(ctx context.Context) (*domain.AccountBalance, error) {
	return &domain.AccountBalance{}, nil
}

func (f *fakeBrokerageClient) GetTransactions(ctx context.Context, start, end time.Time) ([]domain.BrokerageTransaction, error) {
	return nil, nil
}

func (f *fakeBrokerageClient) GetRawTransactions(ctx context.Context, start, end time.Time) ([]domain.RawBrokerageTransaction, error) {
	return f.raws, nil
}

// memStaging is an in-memory StagingRepository enforcing the
// (source, brokerage_transaction_id) unique constraint.
type memStaging struct {
	rows []*domain.RawTransaction
}

func (m *memStaging) InsertIfAbsent(ctx context.Context, raw *domain.RawTransaction) (bool, error) {
	for _, row := range m.rows {
		if row.Source == raw.Source && row.BrokerageTransactionID == raw.BrokerageTransactionID {
			return false, nil
		}
	}
	clone := *raw
	m.rows = append(m.rows, &clone)
	return true, nil
}

func (m *memStaging) ListPending(ctx context.Context) ([]*domain.RawTransaction, error) {
	var out []*domain.RawTransaction
	for _, row := range m.rows {
		if row.ETLStatus == domain.ETLStatusPending {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStaging) ListTransformedUnlinked(ctx context.Context) ([]*domain.RawTransaction, error) {
	var out []*domain.RawTransaction
	for _, row := range m.rows {
		if row.ETLStatus == domain.ETLStatusTransformed && row.CanonicalTradeID == nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memStaging) Update(ctx context.Context, raw *domain.RawTransaction) error {
	for i, row := range m.rows {
		if row.ID == raw.ID {
			m.rows[i] = raw
			return nil
		}
	}
	return domain.ErrNotFound
}

// memTrades is an in-memory CanonicalTradeRepository.
type memTrades struct {
	trades []*domain.CanonicalTrade
}

func (m *memTrades) Create(ctx context.Context, trade *domain.CanonicalTrade) error {
	clone := *trade
	m.trades = append(m.trades, &clone)
	return nil
}

func (m *memTrades) GetBySourceTransactionID(ctx context.Context, source, brokerageTransactionID string) (*domain.CanonicalTrade, error) {
	for _, trade := range m.trades {
		if trade.Source == source && trade.BrokerageTransactionID == brokerageTransactionID {
			return trade, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTrades) FindLogicalDuplicate(ctx context.Context, source string, date time.Time, amount decimal.Decimal) (*domain.CanonicalTrade, error) {
	for _, trade := range m.trades {
		if trade.Source == source && trade.Date.Equal(date) && trade.Amount.Equal(amount) {
			return trade, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTrades) Count(ctx context.Context) (int, error) {
	return len(m.trades), nil
}

func rawTxn(id, txnType, subtype, amount string, day int) domain.RawBrokerageTransaction {
	return domain.RawBrokerageTransaction{
		BrokerageTransactionID: id,
		RawData:                fmt.Sprintf(`{"id":%q,"type":%q}`, id, txnType),
		TransactionDate:        time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		TransactionType:        txnType,
		TransactionSubtype:     subtype,
		Symbol:                 "VTI",
		Amount:                 decimal.RequireFromString(amount),
	}
}

func newPipeline(raws ...domain.RawBrokerageTransaction) (*Service, *memStaging, *memTrades) {
	staging := &memStaging{}
	trades := &memTrades{}
	service := NewService(map[string]domain.BrokerageClient{
		"alpha": &fakeBrokerageClient{raws: raws},
	}, staging, trades, zap.NewNop())
	return service, staging, trades
}

func TestExtract_InsertIfAbsentAndMissingIDs(t *testing.T) {
	ctx := context.Background()
	service, staging, _ := newPipeline(
		rawTxn("T-1", "trade", "buy", "-1000.00", 2),
		rawTxn("T-2", "dividend", "", "12.50", 3),
		rawTxn("", "trade", "sell", "500.00", 4), // no usable identifier
	)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	result, err := service.Extract(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Existing)
	assert.Equal(t, 1, result.Errors)
	assert.Len(t, staging.rows, 2)

	// Re-extraction is a no-op, not an error.
	result, err = service.Extract(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Existing)
	assert.Len(t, staging.rows, 2)
}

func TestTransform_MapsAndFlagsForReview(t *testing.T) {
	ctx := context.Background()
	service, staging, _ := newPipeline(
		rawTxn("T-1", "trade", "buy", "-1000.00", 2),
		rawTxn("T-2", "corporate_action", "spinoff", "10.00", 3),
	)

	_, err := service.Extract(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	result, err := service.Transform(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transformed)
	assert.Equal(t, 1, result.Review)
	assert.Equal(t, 0, result.Errors)

	byID := map[string]*domain.RawTransaction{}
	for _, row := range staging.rows {
		byID[row.BrokerageTransactionID] = row
	}

	assert.Equal(t, domain.ETLStatusTransformed, byID["T-1"].ETLStatus)
	assert.Equal(t, domain.TradeCategoryTrade, byID["T-1"].Category)
	assert.False(t, byID["T-1"].NeedsReview)

	assert.Equal(t, domain.TradeCategoryOther, byID["T-2"].Category)
	assert.True(t, byID["T-2"].NeedsReview)
}

func TestTransform_SkipsZeroAmountRows(t *testing.T) {
	ctx := context.Background()
	service, staging, trades := newPipeline(
		rawTxn("T-1", "trade", "buy", "-1000.00", 2),
		rawTxn("T-2", "journal", "memo", "0.00", 3),
	)

	result, err := service.Run(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transform.Transformed)
	assert.Equal(t, 1, result.Transform.Skipped)
	assert.Equal(t, 0, result.Transform.Errors)

	// The zero-amount row stays in staging as SKIPPED and never reaches
	// production.
	assert.Equal(t, 1, result.Load.Loaded)
	count, _ := trades.Count(ctx)
	assert.Equal(t, 1, count)

	for _, row := range staging.rows {
		if row.BrokerageTransactionID == "T-2" {
			assert.Equal(t, domain.ETLStatusSkipped, row.ETLStatus)
			assert.Nil(t, row.CanonicalTradeID)
		}
	}
}

func TestLoad_ParsesExecutionDetailsFromPayload(t *testing.T) {
	ctx := context.Background()

	raw := rawTxn("T-1", "trade", "buy", "-2500.00", 2)
	raw.RawData = `{"id":"T-1","type":"trade","quantity":"10","price":"250.00","commission":"1.25","fees":"0.35"}`

	bare := rawTxn("T-2", "dividend", "", "12.50", 3) // payload carries no fill numbers

	service, _, trades := newPipeline(raw, bare)

	_, err := service.Run(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	filled, err := trades.GetBySourceTransactionID(ctx, "alpha", "T-1")
	require.NoError(t, err)
	assert.True(t, filled.Quantity.Equal(decimal.NewFromInt(10)), "quantity: %s", filled.Quantity)
	assert.True(t, filled.Price.Equal(decimal.RequireFromString("250.00")))
	assert.True(t, filled.Commission.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, filled.Fees.Equal(decimal.RequireFromString("0.35")))

	plain, err := trades.GetBySourceTransactionID(ctx, "alpha", "T-2")
	require.NoError(t, err)
	assert.True(t, plain.Quantity.IsZero())
	assert.True(t, plain.Price.IsZero())
	assert.True(t, plain.Commission.IsZero())
	assert.True(t, plain.Fees.IsZero())
}

func TestLoad_DeduplicatesBySourceTransactionID(t *testing.T) {
	ctx := context.Background()
	service, staging, trades := newPipeline(
		rawTxn("T-1", "trade", "buy", "-1000.00", 2),
	)

	start, end := time.Time{}, time.Time{}
	_, err := service.Run(ctx, start, end)
	require.NoError(t, err)

	count, _ := trades.Count(ctx)
	assert.Equal(t, 1, count)
	require.NotNil(t, staging.rows[0].CanonicalTradeID)

	// Simulate a fresh staging of the same brokerage transaction (e.g. a
	// prior run crashed after load but before the range advanced).
	staging.rows[0].CanonicalTradeID = nil
	staging.rows[0].ETLStatus = domain.ETLStatusTransformed

	result, err := service.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Loaded)
	assert.Equal(t, 1, result.Duplicates)

	count, _ = trades.Count(ctx)
	assert.Equal(t, 1, count)
	assert.NotNil(t, staging.rows[0].CanonicalTradeID)
}

func TestLoad_SyntheticIDFallsBackToLogicalDedup(t *testing.T) {
	ctx := context.Background()

	// Two distinct synthetic ids describing the same logical event
	// (source, date, amount): the second must dedup via the fallback.
	service, staging, trades := newPipeline(
		rawTxn("gen:aaa111", "deposit", "", "2500.00", 5),
		rawTxn("gen:bbb222", "deposit", "", "2500.00", 5),
	)

	_, err := service.Run(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)

	count, _ := trades.Count(ctx)
	assert.Equal(t, 1, count)

	linked := 0
	for _, row := range staging.rows {
		if row.CanonicalTradeID != nil {
			linked++
		}
	}
	assert.Equal(t, 2, linked, "both staging rows link to the single trade")
}

func TestRun_RerunOverlappingRangeConverges(t *testing.T) {
	ctx := context.Background()
	service, _, trades := newPipeline(
		rawTxn("T-1", "trade", "buy", "-1000.00", 2),
		rawTxn("T-2", "dividend", "", "12.50", 3),
		rawTxn("T-3", "ach", "deposit", "5000.00", 4),
	)

	first, err := service.Run(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Load.Loaded)

	countAfterFirst, _ := trades.Count(ctx)

	second, err := service.Run(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Extract.Existing)
	assert.Equal(t, 0, second.Load.Loaded)

	countAfterSecond, _ := trades.Count(ctx)
	assert.Equal(t, countAfterFirst, countAfterSecond,
		"re-running over an overlapping range must never grow the production ledger")
}

func TestExtract_NoSourcesConfigured(t *testing.T) {
	service := NewService(nil, &memStaging{}, &memTrades{}, zap.NewNop())
	_, err := service.Extract(context.Background(), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
