package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// MockBrokerageClient is a mock implementation of domain.BrokerageClient for testing
type MockBrokerageClient struct {
	mock.Mock
}

func (m *MockBrokerageClient) GetAccountBalance(ctx context.Context) (*domain.AccountBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountBalance), args.Error(1)
}

func (m *MockBrokerageClient) GetTransactions(ctx context.Context, start, end time.Time) ([]domain.BrokerageTransaction, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BrokerageTransaction), args.Error(1)
}

func (m *MockBrokerageClient) GetRawTransactions(ctx context.Context, start, end time.Time) ([]domain.RawBrokerageTransaction, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawBrokerageTransaction), args.Error(1)
}

func balance(equity, cash string) *domain.AccountBalance {
	return &domain.AccountBalance{
		TotalEquity: decimal.RequireFromString(equity),
		TotalCash:   decimal.RequireFromString(cash),
		Timestamp:   time.Now(),
	}
}

func TestCombinedBalance_SumsAllSources(t *testing.T) {
	ctx := context.Background()

	alpha := new(MockBrokerageClient)
	alpha.On("GetAccountBalance", ctx).Return(balance("10000.125", "500.10"), nil)

	beta := new(MockBrokerageClient)
	beta.On("GetAccountBalance", ctx).Return(balance("2500.50", "99.901"), nil)

	service := NewService(map[string]domain.BrokerageClient{
		"alpha": alpha,
		"beta":  beta,
	}, RetryConfig{Attempts: 1}, zap.NewNop())

	combined, err := service.CombinedBalance(ctx)
	require.NoError(t, err)

	// Rounded to 2 dp only at output: 10000.125 + 2500.50 = 12500.625 -> 12500.63
	assert.True(t, combined.TotalEquity.Equal(decimal.RequireFromString("12500.63")), "equity: %s", combined.TotalEquity)
	assert.True(t, combined.TotalCash.Equal(decimal.RequireFromString("600.00")), "cash: %s", combined.TotalCash)
	assert.Equal(t, []string{"alpha", "beta"}, combined.Sources)
	assert.Len(t, combined.PerSource, 2)
}

func TestCombinedBalance_FailFastWhenOneSourceFails(t *testing.T) {
	ctx := context.Background()

	healthy := new(MockBrokerageClient)
	healthy.On("GetAccountBalance", ctx).Return(balance("10000.00", "0"), nil)

	broken := new(MockBrokerageClient)
	broken.On("GetAccountBalance", ctx).Return(nil, errors.New("api timeout"))

	service := NewService(map[string]domain.BrokerageClient{
		"healthy": healthy,
		"broken":  broken,
	}, RetryConfig{Attempts: 1}, zap.NewNop())

	combined, err := service.CombinedBalance(ctx)
	assert.Nil(t, combined, "must never return a value computed from only the surviving source")
	require.Error(t, err)

	var aggErr *domain.AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, []string{"broken"}, aggErr.Sources())
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "remove it from configuration")
}

func TestCombinedBalance_NoSourcesConfigured(t *testing.T) {
	service := NewService(nil, RetryConfig{Attempts: 1}, zap.NewNop())

	_, err := service.CombinedBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCombinedBalance_RetriesTransientFailure(t *testing.T) {
	ctx := context.Background()

	flaky := new(MockBrokerageClient)
	flaky.On("GetAccountBalance", ctx).Return(nil, errors.New("connection reset")).Once()
	flaky.On("GetAccountBalance", ctx).Return(balance("5000.00", "100.00"), nil).Once()

	service := NewService(map[string]domain.BrokerageClient{
		"flaky": flaky,
	}, RetryConfig{Attempts: 2, Backoff: time.Millisecond}, zap.NewNop())

	combined, err := service.CombinedBalance(ctx)
	require.NoError(t, err)
	assert.True(t, combined.TotalEquity.Equal(decimal.RequireFromString("5000.00")))
	flaky.AssertNumberOfCalls(t, "GetAccountBalance", 2)
}
