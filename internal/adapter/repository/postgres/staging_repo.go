package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// stagingRepository implements domain.StagingRepository
type stagingRepository struct {
	db *DB
}

// NewStagingRepository creates a new staging repository
func NewStagingRepository(db *DB) domain.StagingRepository {
	return &stagingRepository{db: db}
}

const stagingColumns = `id, source, brokerage_transaction_id, raw_data, transaction_date,
	transaction_type, transaction_subtype, symbol, amount, description,
	etl_status, error_message, category, subcategory, needs_review, canonical_trade_id, ingested_at`

// InsertIfAbsent stages the row unless its (source, brokerage_transaction_id)
// pair already exists. ON CONFLICT DO NOTHING makes re-extraction a no-op.
func (r *stagingRepository) InsertIfAbsent(ctx context.Context, raw *domain.RawTransaction) (bool, error) {
	query := `
		INSERT INTO raw_transactions (id, source, brokerage_transaction_id, raw_data,
			transaction_date, transaction_type, transaction_subtype, symbol, amount, description,
			etl_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, brokerage_transaction_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		raw.ID,
		raw.Source,
		raw.BrokerageTransactionID,
		raw.RawData,
		raw.TransactionDate,
		raw.TransactionType,
		raw.TransactionSubtype,
		raw.Symbol,
		raw.Amount.String(),
		raw.Description,
		string(domain.ETLStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to stage raw transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check staged rows: %w", err)
	}

	return affected > 0, nil
}

// ListPending retrieves rows with etl_status PENDING
func (r *stagingRepository) ListPending(ctx context.Context) ([]*domain.RawTransaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_transactions
		WHERE etl_status = $1
		ORDER BY ingested_at
	`, stagingColumns)

	return r.list(ctx, query, string(domain.ETLStatusPending))
}

// ListTransformedUnlinked retrieves TRANSFORMED rows not yet linked to a
// canonical trade
func (r *stagingRepository) ListTransformedUnlinked(ctx context.Context) ([]*domain.RawTransaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM raw_transactions
		WHERE etl_status = $1 AND canonical_trade_id IS NULL
		ORDER BY ingested_at
	`, stagingColumns)

	return r.list(ctx, query, string(domain.ETLStatusTransformed))
}

// Update writes back the row's ETL outcome
func (r *stagingRepository) Update(ctx context.Context, raw *domain.RawTransaction) error {
	query := `
		UPDATE raw_transactions
		SET etl_status = $2, error_message = $3, category = $4, subcategory = $5,
			needs_review = $6, canonical_trade_id = $7
		WHERE id = $1
	`

	var canonicalID interface{}
	if raw.CanonicalTradeID != nil {
		canonicalID = *raw.CanonicalTradeID
	}

	result, err := r.db.ExecContext(ctx, query,
		raw.ID,
		string(raw.ETLStatus),
		raw.ErrorMessage,
		string(raw.Category),
		raw.Subcategory,
		raw.NeedsReview,
		canonicalID,
	)
	if err != nil {
		return fmt.Errorf("failed to update raw transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check raw transaction update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("raw transaction %s: %w", raw.ID, domain.ErrNotFound)
	}

	return nil
}

func (r *stagingRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.RawTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw transactions: %w", err)
	}
	defer rows.Close()

	var raws []*domain.RawTransaction
	for rows.Next() {
		raw, err := scanRawTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw transaction: %w", err)
		}
		raws = append(raws, raw)
	}

	return raws, rows.Err()
}

func scanRawTransaction(row rowScanner) (*domain.RawTransaction, error) {
	var raw domain.RawTransaction
	var amountStr string
	var canonicalID sql.NullString

	err := row.Scan(
		&raw.ID,
		&raw.Source,
		&raw.BrokerageTransactionID,
		&raw.RawData,
		&raw.TransactionDate,
		&raw.TransactionType,
		&raw.TransactionSubtype,
		&raw.Symbol,
		&amountStr,
		&raw.Description,
		&raw.ETLStatus,
		&raw.ErrorMessage,
		&raw.Category,
		&raw.Subcategory,
		&raw.NeedsReview,
		&canonicalID,
		&raw.IngestedAt,
	)
	if err != nil {
		return nil, err
	}

	if canonicalID.Valid {
		tradeUUID, err := uuid.Parse(canonicalID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse canonical_trade_id: %w", err)
		}
		raw.CanonicalTradeID = &tradeUUID
	}

	if raw.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}

	return &raw, nil
}
