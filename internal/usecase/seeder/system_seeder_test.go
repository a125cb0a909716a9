package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*domain.FundSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FundSettings), args.Error(1)
}

func (m *MockSettingsRepository) Ensure(ctx context.Context, defaults *domain.FundSettings) error {
	args := m.Called(ctx, defaults)
	return args.Error(0)
}

func TestSeed_WritesDefaults(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	seeder := NewSystemSeeder(repo)

	repo.On("Ensure", ctx, mock.MatchedBy(func(settings *domain.FundSettings) bool {
		return settings.TaxRate.Equal(DefaultTaxRate) &&
			settings.BaseCurrency == DefaultBaseCurrency
	})).Return(nil)

	err := seeder.Seed(ctx)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSeed_PropagatesRepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	seeder := NewSystemSeeder(repo)

	repo.On("Ensure", ctx, mock.Anything).Return(errors.New("connection refused"))

	err := seeder.Seed(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
