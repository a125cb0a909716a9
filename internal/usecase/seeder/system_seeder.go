package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// Defaults applied when the fund settings row does not exist yet
var (
	DefaultTaxRate      = decimal.RequireFromString("0.25")
	DefaultBaseCurrency = "USD"
)

// SystemSeeder ensures the singleton fund settings row exists so every
// other service can rely on a tax rate and base currency being present.
type SystemSeeder struct {
	repo         domain.SettingsRepository
	taxRate      decimal.Decimal
	baseCurrency string
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(repo domain.SettingsRepository) *SystemSeeder {
	return NewSystemSeederWithDefaults(repo, DefaultTaxRate, DefaultBaseCurrency)
}

// NewSystemSeederWithDefaults creates a SystemSeeder that seeds the given
// values instead of the package defaults
func NewSystemSeederWithDefaults(repo domain.SettingsRepository, taxRate decimal.Decimal, baseCurrency string) *SystemSeeder {
	return &SystemSeeder{
		repo:         repo,
		taxRate:      taxRate,
		baseCurrency: baseCurrency,
	}
}

// Seed creates the fund settings row with the seeder's defaults if it is
// absent. If the row already exists, existing values are preserved.
func (s *SystemSeeder) Seed(ctx context.Context) error {
	defaults := &domain.FundSettings{
		TaxRate:      s.taxRate,
		BaseCurrency: s.baseCurrency,
		UpdatedAt:    time.Now().UTC(),
	}
	return s.repo.Ensure(ctx, defaults)
}
