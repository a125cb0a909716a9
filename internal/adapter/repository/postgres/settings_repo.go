package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// settingsRepository implements domain.SettingsRepository
type settingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new fund settings repository
func NewSettingsRepository(db *DB) domain.SettingsRepository {
	return &settingsRepository{db: db}
}

// Get retrieves the settings row
func (r *settingsRepository) Get(ctx context.Context) (*domain.FundSettings, error) {
	query := `SELECT tax_rate, base_currency, updated_at FROM fund_settings`

	var settings domain.FundSettings
	var rateStr string

	err := r.db.QueryRowContext(ctx, query).Scan(&rateStr, &settings.BaseCurrency, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund settings: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fund settings: %w", err)
	}

	if settings.TaxRate, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("failed to parse tax_rate: %w", err)
	}

	return &settings, nil
}

// Ensure creates the settings row with the given defaults if absent.
// An existing row is left untouched.
func (r *settingsRepository) Ensure(ctx context.Context, defaults *domain.FundSettings) error {
	query := `
		INSERT INTO fund_settings (singleton, tax_rate, base_currency, updated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		defaults.TaxRate.String(),
		defaults.BaseCurrency,
		defaults.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure fund settings: %w", err)
	}

	return nil
}
