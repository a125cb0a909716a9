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

// navRepository implements domain.NAVRepository
type navRepository struct {
	db *DB
}

// NewNAVRepository creates a new NAV record repository
func NewNAVRepository(db *DB) domain.NAVRepository {
	return &navRepository{db: db}
}

const navColumns = `id, date, nav_per_share, total_portfolio_value, total_shares,
	daily_change_abs, daily_change_pct, created_at`

// Upsert creates or replaces the record for its date. The unique index on
// date makes same-day reruns overwrite rather than accumulate.
func (r *navRepository) Upsert(ctx context.Context, record *domain.NAVRecord) error {
	query := `
		INSERT INTO nav_records (id, date, nav_per_share, total_portfolio_value, total_shares,
			daily_change_abs, daily_change_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date) DO UPDATE SET
			nav_per_share = EXCLUDED.nav_per_share,
			total_portfolio_value = EXCLUDED.total_portfolio_value,
			total_shares = EXCLUDED.total_shares,
			daily_change_abs = EXCLUDED.daily_change_abs,
			daily_change_pct = EXCLUDED.daily_change_pct
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Date,
		record.NAVPerShare.String(),
		record.TotalPortfolioValue.String(),
		record.TotalShares.String(),
		record.DailyChangeAbs.String(),
		record.DailyChangePct.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert nav record: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent record
func (r *navRepository) GetLatest(ctx context.Context) (*domain.NAVRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM nav_records ORDER BY date DESC LIMIT 1`, navColumns)
	return r.queryOne(ctx, query)
}

// GetOnOrBefore retrieves the most recent record with date <= the given date
func (r *navRepository) GetOnOrBefore(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM nav_records WHERE date <= $1 ORDER BY date DESC LIMIT 1`, navColumns)
	return r.queryOne(ctx, query, date)
}

// GetPrior retrieves the most recent record with date < the given date
func (r *navRepository) GetPrior(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM nav_records WHERE date < $1 ORDER BY date DESC LIMIT 1`, navColumns)
	return r.queryOne(ctx, query, date)
}

// ListAll retrieves every record ordered by date ascending
func (r *navRepository) ListAll(ctx context.Context) ([]*domain.NAVRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM nav_records ORDER BY date`, navColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list nav records: %w", err)
	}
	defer rows.Close()

	var records []*domain.NAVRecord
	for rows.Next() {
		record, err := scanNAVRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nav record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *navRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.NAVRecord, error) {
	record, err := scanNAVRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("nav record: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get nav record: %w", err)
	}
	return record, nil
}

func scanNAVRecord(row rowScanner) (*domain.NAVRecord, error) {
	var record domain.NAVRecord
	var navStr, valueStr, sharesStr, changeAbsStr, changePctStr string

	err := row.Scan(
		&record.ID,
		&record.Date,
		&navStr,
		&valueStr,
		&sharesStr,
		&changeAbsStr,
		&changePctStr,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
		col string
	}{
		{&record.NAVPerShare, navStr, "nav_per_share"},
		{&record.TotalPortfolioValue, valueStr, "total_portfolio_value"},
		{&record.TotalShares, sharesStr, "total_shares"},
		{&record.DailyChangeAbs, changeAbsStr, "daily_change_abs"},
		{&record.DailyChangePct, changePctStr, "daily_change_pct"},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.col, err)
		}
		*f.dst = value
	}

	return &record, nil
}
