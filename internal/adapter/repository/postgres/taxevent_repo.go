package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// taxEventRepository implements domain.TaxEventRepository
type taxEventRepository struct {
	db *DB
}

// NewTaxEventRepository creates a new tax event repository
func NewTaxEventRepository(db *DB) domain.TaxEventRepository {
	return &taxEventRepository{db: db}
}

const taxEventColumns = `id, transaction_id, investor_id, date, realized_gain,
	tax_rate, tax_due, net_proceeds, created_at`

// ListByYear retrieves all tax events dated within the given year
func (r *taxEventRepository) ListByYear(ctx context.Context, year int) ([]*domain.TaxEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tax_events
		WHERE EXTRACT(YEAR FROM date) = $1
		ORDER BY date
	`, taxEventColumns)

	return r.list(ctx, query, year)
}

// ListByInvestor retrieves all tax events for an investor
func (r *taxEventRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*domain.TaxEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tax_events
		WHERE investor_id = $1
		ORDER BY date
	`, taxEventColumns)

	return r.list(ctx, query, investorID)
}

func (r *taxEventRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.TaxEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TaxEvent
	for rows.Next() {
		event, err := scanTaxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func scanTaxEvent(row rowScanner) (*domain.TaxEvent, error) {
	var event domain.TaxEvent
	var gainStr, rateStr, dueStr, proceedsStr string

	err := row.Scan(
		&event.ID,
		&event.TransactionID,
		&event.InvestorID,
		&event.Date,
		&gainStr,
		&rateStr,
		&dueStr,
		&proceedsStr,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if event.RealizedGain, err = decimal.NewFromString(gainStr); err != nil {
		return nil, fmt.Errorf("failed to parse realized_gain: %w", err)
	}
	if event.TaxRate, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("failed to parse tax_rate: %w", err)
	}
	if event.TaxDue, err = decimal.NewFromString(dueStr); err != nil {
		return nil, fmt.Errorf("failed to parse tax_due: %w", err)
	}
	if event.NetProceeds, err = decimal.NewFromString(proceedsStr); err != nil {
		return nil, fmt.Errorf("failed to parse net_proceeds: %w", err)
	}

	return &event, nil
}
