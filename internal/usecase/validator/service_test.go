package validator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// MockInvestorRepository is a mock implementation of domain.InvestorRepository for testing
type MockInvestorRepository struct {
	mock.Mock
}

func (m *MockInvestorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Investor), args.Error(1)
}

func (m *MockInvestorRepository) Create(ctx context.Context, investor *domain.Investor) error {
	args := m.Called(ctx, investor)
	return args.Error(0)
}

func (m *MockInvestorRepository) List(ctx context.Context, statusFilter domain.InvestorStatus) ([]*domain.Investor, error) {
	args := m.Called(ctx, statusFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Investor), args.Error(1)
}

func (m *MockInvestorRepository) SumActiveShares(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockNAVRepository is a mock implementation of domain.NAVRepository for testing
type MockNAVRepository struct {
	mock.Mock
}

func (m *MockNAVRepository) Upsert(ctx context.Context, record *domain.NAVRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockNAVRepository) GetLatest(ctx context.Context) (*domain.NAVRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NAVRecord), args.Error(1)
}

func (m *MockNAVRepository) GetOnOrBefore(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NAVRecord), args.Error(1)
}

func (m *MockNAVRepository) GetPrior(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NAVRecord), args.Error(1)
}

func (m *MockNAVRepository) ListAll(ctx context.Context) ([]*domain.NAVRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.NAVRecord), args.Error(1)
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, investorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByReferenceID(ctx context.Context, referenceID uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

type harness struct {
	service   *Service
	investors *MockInvestorRepository
	navs      *MockNAVRepository
	txns      *MockTransactionRepository
}

func newHarness() *harness {
	h := &harness{
		investors: new(MockInvestorRepository),
		navs:      new(MockNAVRepository),
		txns:      new(MockTransactionRepository),
	}
	h.service = NewService(h.investors, h.navs, h.txns, zap.NewNop())
	return h
}

func checkByName(t *testing.T, report *Report, name string) CheckResult {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %s not in report", name)
	return CheckResult{}
}

// seedConsistent wires a fund where every invariant holds: two investors
// holding 600 + 400 shares, NAV 12.00, portfolio value 12,000.
func seedConsistent(h *harness, ctx context.Context) (*domain.Investor, *domain.Investor) {
	alice := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Alice",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(600),
		NetInvestment: decimal.NewFromInt(6000),
	}
	bob := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Bob",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(400),
		NetInvestment: decimal.NewFromInt(4000),
	}

	latest := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("12.00"),
		TotalPortfolioValue: decimal.NewFromInt(12000),
		TotalShares:         decimal.NewFromInt(1000),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).
		Return([]*domain.Investor{alice, bob}, nil)
	h.navs.On("GetLatest", ctx).Return(latest, nil)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{latest}, nil)

	h.txns.On("ListByInvestor", ctx, alice.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(6000), BasisDelta: decimal.NewFromInt(6000)},
	}, nil)
	h.txns.On("ListByInvestor", ctx, bob.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(4000), BasisDelta: decimal.NewFromInt(4000)},
	}, nil)

	return alice, bob
}

func TestRun_AllChecksPassOnConsistentState(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedConsistent(h, ctx)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Passed(), "failed: %+v", report.Failed())
	assert.Len(t, report.Checks, 6)
}

func TestRun_ShareDriftSurfacesExactlyOneCheck(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	alice, _ := seedConsistent(h, ctx)

	// Off by more than the 0.01 epsilon against total_shares: 600 -> 590.
	// Keep net_investment consistent with Alice's transactions so only the
	// share/NAV pair trips.
	alice.CurrentShares = decimal.NewFromInt(590)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Passed())

	shares := checkByName(t, report, CheckSharesOutstanding)
	assert.False(t, shares.Passed)
	assert.Equal(t, "1000", shares.Expected)
	assert.Equal(t, "990", shares.Actual)
	assert.Equal(t, "10", shares.Diff)

	// Ownership percentages follow shares, so that check trips too;
	// everything else must stay green (no false positives).
	assert.True(t, checkByName(t, report, CheckNAVFormula).Passed)
	assert.True(t, checkByName(t, report, CheckNoNegatives).Passed)
	assert.True(t, checkByName(t, report, CheckInvestorFlows).Passed)
	assert.True(t, checkByName(t, report, CheckNAVFormulaHistory).Passed)
}

func TestRun_NAVFormulaDriftDetectedInHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	latest := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("12.00"),
		TotalPortfolioValue: decimal.NewFromInt(12000),
		TotalShares:         decimal.NewFromInt(1000),
	}
	// Historical record violating the formula by more than 0.0001.
	drifted := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("11.99"),
		TotalPortfolioValue: decimal.NewFromInt(12000),
		TotalShares:         decimal.NewFromInt(1000),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).Return([]*domain.Investor{}, nil)
	h.navs.On("GetLatest", ctx).Return(latest, nil)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{drifted, latest}, nil)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)

	history := checkByName(t, report, CheckNAVFormulaHistory)
	assert.False(t, history.Passed)
	require.Len(t, history.Details, 1)
	assert.Contains(t, history.Details[0], "2026-03-01")

	assert.True(t, checkByName(t, report, CheckNAVFormula).Passed, "latest record is consistent")
}

func TestRun_NegativeQuantitiesReported(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	broke := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Broke",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(-5),
		NetInvestment: decimal.NewFromInt(100),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).Return([]*domain.Investor{broke}, nil)
	h.navs.On("GetLatest", ctx).Return(nil, domain.ErrNotFound)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{}, nil)
	h.txns.On("ListByInvestor", ctx, broke.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(100), BasisDelta: decimal.NewFromInt(100)},
	}, nil)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)

	negatives := checkByName(t, report, CheckNoNegatives)
	assert.False(t, negatives.Passed)
	require.Len(t, negatives.Details, 1)
	assert.Contains(t, negatives.Details[0], broke.ID.String())
}

func TestRun_FlowConservationWithRealizedGains(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	// Contributed 10,000; withdrew 6,000 cash of which 1,000 was realized
	// gain, so the basis removed was 5,000 and the remaining basis is
	// 5,000. The cash amounts sum to 4,000 and would not balance; the
	// basis deltas do.
	investor := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Carol",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(500),
		NetInvestment: decimal.NewFromInt(5000),
	}

	latest := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("12.00"),
		TotalPortfolioValue: decimal.NewFromInt(6000),
		TotalShares:         decimal.NewFromInt(500),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).Return([]*domain.Investor{investor}, nil)
	h.navs.On("GetLatest", ctx).Return(latest, nil)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{latest}, nil)
	h.txns.On("ListByInvestor", ctx, investor.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(10000), BasisDelta: decimal.NewFromInt(10000)},
		{Type: domain.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(-6000), BasisDelta: decimal.NewFromInt(-5000)},
	}, nil)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)
	assert.True(t, checkByName(t, report, CheckInvestorFlows).Passed,
		"failed: %+v", report.Failed())
}

func TestRun_FlowConservationWithLossWithdrawal(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	// Contributed 10,000 at NAV 10.00, NAV fell to 8.00 (position worth
	// 8,000), then withdrew 4,000 cash. Half the position was redeemed, so
	// 5,000 of basis left even though only 4,000 of cash did; nothing was
	// realized. The basis deltas make the identity exact.
	investor := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Dave",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(500),
		NetInvestment: decimal.NewFromInt(5000),
	}

	latest := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("8.00"),
		TotalPortfolioValue: decimal.NewFromInt(4000),
		TotalShares:         decimal.NewFromInt(500),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).Return([]*domain.Investor{investor}, nil)
	h.navs.On("GetLatest", ctx).Return(latest, nil)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{latest}, nil)
	h.txns.On("ListByInvestor", ctx, investor.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(10000), BasisDelta: decimal.NewFromInt(10000)},
		{Type: domain.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(-4000), BasisDelta: decimal.NewFromInt(-5000)},
	}, nil)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)
	assert.True(t, checkByName(t, report, CheckInvestorFlows).Passed,
		"failed: %+v", report.Failed())
}

func TestRun_FlowConservationCatchesUnexplainedBasis(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	// net_investment says 5,000 but the ledger only explains 4,000.
	investor := &domain.Investor{
		ID:            uuid.New(),
		Name:          "Eve",
		Status:        domain.InvestorStatusActive,
		CurrentShares: decimal.NewFromInt(500),
		NetInvestment: decimal.NewFromInt(5000),
	}

	latest := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		NAVPerShare:         decimal.RequireFromString("8.00"),
		TotalPortfolioValue: decimal.NewFromInt(4000),
		TotalShares:         decimal.NewFromInt(500),
	}

	h.investors.On("List", ctx, domain.InvestorStatus("")).Return([]*domain.Investor{investor}, nil)
	h.navs.On("GetLatest", ctx).Return(latest, nil)
	h.navs.On("ListAll", ctx).Return([]*domain.NAVRecord{latest}, nil)
	h.txns.On("ListByInvestor", ctx, investor.ID).Return([]*domain.Transaction{
		{Type: domain.TransactionTypeInitial, Amount: decimal.NewFromInt(10000), BasisDelta: decimal.NewFromInt(10000)},
		{Type: domain.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(-4000), BasisDelta: decimal.NewFromInt(-6000)},
	}, nil)

	report, err := h.service.Run(ctx)
	require.NoError(t, err)

	flows := checkByName(t, report, CheckInvestorFlows)
	assert.False(t, flows.Passed)
	require.Len(t, flows.Details, 1)
	assert.Contains(t, flows.Details[0], investor.ID.String())
	assert.Contains(t, flows.Details[0], "diff 1000")
}
