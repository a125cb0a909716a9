package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// tradeRepository implements domain.CanonicalTradeRepository
type tradeRepository struct {
	db *DB
}

// NewTradeRepository creates a new canonical trade repository
func NewTradeRepository(db *DB) domain.CanonicalTradeRepository {
	return &tradeRepository{db: db}
}

const tradeColumns = `id, date, type, symbol, quantity, price, amount, commission, fees,
	category, subcategory, source, brokerage_transaction_id, created_at`

// Create inserts a new canonical trade
func (r *tradeRepository) Create(ctx context.Context, trade *domain.CanonicalTrade) error {
	query := `
		INSERT INTO canonical_trades (id, date, type, symbol, quantity, price, amount,
			commission, fees, category, subcategory, source, brokerage_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.Date,
		trade.Type,
		trade.Symbol,
		trade.Quantity.String(),
		trade.Price.String(),
		trade.Amount.String(),
		trade.Commission.String(),
		trade.Fees.String(),
		string(trade.Category),
		trade.Subcategory,
		trade.Source,
		trade.BrokerageTransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to create canonical trade: %w", err)
	}

	return nil
}

// GetBySourceTransactionID retrieves a trade by its dedup key
func (r *tradeRepository) GetBySourceTransactionID(ctx context.Context, source, brokerageTransactionID string) (*domain.CanonicalTrade, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM canonical_trades
		WHERE source = $1 AND brokerage_transaction_id = $2
	`, tradeColumns)

	return r.queryOne(ctx, query, source, brokerageTransactionID)
}

// FindLogicalDuplicate retrieves a trade matching (source, date, amount).
// Fallback dedup for sources whose transaction ids are generated per fetch.
func (r *tradeRepository) FindLogicalDuplicate(ctx context.Context, source string, date time.Time, amount decimal.Decimal) (*domain.CanonicalTrade, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM canonical_trades
		WHERE source = $1 AND date = $2 AND amount = $3
		LIMIT 1
	`, tradeColumns)

	return r.queryOne(ctx, query, source, date, amount.String())
}

// Count returns the number of canonical trades
func (r *tradeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM canonical_trades`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count canonical trades: %w", err)
	}
	return count, nil
}

func (r *tradeRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.CanonicalTrade, error) {
	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("canonical trade: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get canonical trade: %w", err)
	}
	return trade, nil
}

func scanTrade(row rowScanner) (*domain.CanonicalTrade, error) {
	var trade domain.CanonicalTrade
	var quantityStr, priceStr, amountStr, commissionStr, feesStr string

	err := row.Scan(
		&trade.ID,
		&trade.Date,
		&trade.Type,
		&trade.Symbol,
		&quantityStr,
		&priceStr,
		&amountStr,
		&commissionStr,
		&feesStr,
		&trade.Category,
		&trade.Subcategory,
		&trade.Source,
		&trade.BrokerageTransactionID,
		&trade.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
		col string
	}{
		{&trade.Quantity, quantityStr, "quantity"},
		{&trade.Price, priceStr, "price"},
		{&trade.Amount, amountStr, "amount"},
		{&trade.Commission, commissionStr, "commission"},
		{&trade.Fees, feesStr, "fees"},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.col, err)
		}
		*f.dst = value
	}

	return &trade, nil
}
