package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// investorRepository implements domain.InvestorRepository
type investorRepository struct {
	db *DB
}

// NewInvestorRepository creates a new investor repository
func NewInvestorRepository(db *DB) domain.InvestorRepository {
	return &investorRepository{db: db}
}

// GetByID retrieves an investor by its ID
func (r *investorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investor, error) {
	query := `
		SELECT id, name, email, status, current_shares, net_investment, created_at
		FROM investors
		WHERE id = $1
	`

	investor, err := scanInvestor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("investor %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get investor by ID: %w", err)
	}

	return investor, nil
}

// Create creates a new investor
func (r *investorRepository) Create(ctx context.Context, investor *domain.Investor) error {
	query := `
		INSERT INTO investors (id, name, email, status, current_shares, net_investment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		investor.ID,
		investor.Name,
		investor.Email,
		string(investor.Status),
		investor.CurrentShares.String(),
		investor.NetInvestment.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create investor: %w", err)
	}

	return nil
}

// List retrieves investors, optionally filtered by status
func (r *investorRepository) List(ctx context.Context, statusFilter domain.InvestorStatus) ([]*domain.Investor, error) {
	query := `
		SELECT id, name, email, status, current_shares, net_investment, created_at
		FROM investors
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, string(statusFilter))
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}
	defer rows.Close()

	var investors []*domain.Investor
	for rows.Next() {
		investor, err := scanInvestor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investor: %w", err)
		}
		investors = append(investors, investor)
	}

	return investors, rows.Err()
}

// SumActiveShares returns the sum of current_shares over ACTIVE investors.
// Computed live in the database so it can never drift from the rows.
func (r *investorRepository) SumActiveShares(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(current_shares), 0)
		FROM investors
		WHERE status = $1
	`

	var sumStr string
	err := r.db.QueryRowContext(ctx, query, string(domain.InvestorStatusActive)).Scan(&sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum active shares: %w", err)
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse shares sum: %w", err)
	}

	return sum, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvestor(row rowScanner) (*domain.Investor, error) {
	var investor domain.Investor
	var sharesStr, investmentStr string

	err := row.Scan(
		&investor.ID,
		&investor.Name,
		&investor.Email,
		&investor.Status,
		&sharesStr,
		&investmentStr,
		&investor.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if investor.CurrentShares, err = decimal.NewFromString(sharesStr); err != nil {
		return nil, fmt.Errorf("failed to parse current_shares: %w", err)
	}
	if investor.NetInvestment, err = decimal.NewFromString(investmentStr); err != nil {
		return nil, fmt.Errorf("failed to parse net_investment: %w", err)
	}

	return &investor, nil
}
