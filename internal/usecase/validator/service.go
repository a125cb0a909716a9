package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// Check names, stable for report consumers
const (
	CheckSharesOutstanding = "shares_outstanding"
	CheckOwnershipSum      = "ownership_percentage_sum"
	CheckNAVFormula        = "nav_formula_latest"
	CheckNoNegatives       = "no_negative_quantities"
	CheckInvestorFlows     = "investor_flow_conservation"
	CheckNAVFormulaHistory = "nav_formula_history"
)

var (
	sharesEpsilon   = decimal.RequireFromString("0.01")
	percentEpsilon  = decimal.RequireFromString("0.01")
	currencyEpsilon = decimal.RequireFromString("0.01")
	hundred         = decimal.NewFromInt(100)
)

// CheckResult is one invariant's independent pass/fail outcome with
// enough detail to diagnose the root cause without re-deriving it.
type CheckResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
	Diff     string
	Details  []string
}

// Report is the structured outcome of one validation run. Violations are
// surfaced as a batch report, never raised mid-transaction.
type Report struct {
	GeneratedAt time.Time
	Checks      []CheckResult
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failed checks.
func (r *Report) Failed() []CheckResult {
	var out []CheckResult
	for _, check := range r.Checks {
		if !check.Passed {
			out = append(out, check)
		}
	}
	return out
}

// Service recomputes every cross-entity invariant over the store. A batch
// auditor run after the other operations, not a streaming constraint
// enforcer.
type Service struct {
	InvestorRepo    domain.InvestorRepository
	NAVRepo         domain.NAVRepository
	TransactionRepo domain.TransactionRepository
	Logger          *zap.Logger
}

// NewService creates a new validator Service instance
func NewService(
	investorRepo domain.InvestorRepository,
	navRepo domain.NAVRepository,
	transactionRepo domain.TransactionRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		InvestorRepo:    investorRepo,
		NAVRepo:         navRepo,
		TransactionRepo: transactionRepo,
		Logger:          logger,
	}
}

// Run executes all checks and returns the report.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	investors, err := s.InvestorRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}

	latest, err := s.NAVRepo.GetLatest(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	history, err := s.NAVRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{GeneratedAt: time.Now()}
	report.Checks = append(report.Checks, s.checkSharesOutstanding(investors, latest))
	report.Checks = append(report.Checks, s.checkOwnershipSum(investors, latest))
	report.Checks = append(report.Checks, s.checkNAVFormula(latest))
	report.Checks = append(report.Checks, s.checkNoNegatives(investors, history))

	flowCheck, err := s.checkInvestorFlows(ctx, investors)
	if err != nil {
		return nil, err
	}
	report.Checks = append(report.Checks, flowCheck)

	report.Checks = append(report.Checks, s.checkNAVFormulaHistory(history))

	for _, check := range report.Failed() {
		s.Logger.Warn("invariant violated",
			zap.String("check", check.Name),
			zap.String("expected", check.Expected),
			zap.String("actual", check.Actual),
			zap.String("diff", check.Diff),
		)
	}

	return report, nil
}

// checkSharesOutstanding: sum(active investor shares) == latest total_shares.
func (s *Service) checkSharesOutstanding(investors []*domain.Investor, latest *domain.NAVRecord) CheckResult {
	result := CheckResult{Name: CheckSharesOutstanding, Passed: true}
	if latest == nil {
		result.Details = append(result.Details, "no nav record exists; nothing to compare")
		return result
	}

	sum := decimal.Zero
	for _, investor := range investors {
		if investor.Status == domain.InvestorStatusActive {
			sum = sum.Add(investor.CurrentShares)
		}
	}

	diff := sum.Sub(latest.TotalShares).Abs()
	result.Expected = latest.TotalShares.String()
	result.Actual = sum.String()
	result.Diff = diff.String()
	result.Passed = diff.LessThan(sharesEpsilon)
	return result
}

// checkOwnershipSum: investor ownership percentages sum to 100.
func (s *Service) checkOwnershipSum(investors []*domain.Investor, latest *domain.NAVRecord) CheckResult {
	result := CheckResult{Name: CheckOwnershipSum, Passed: true}
	if latest == nil || !latest.TotalPortfolioValue.IsPositive() {
		result.Details = append(result.Details, "no positive portfolio value; nothing to compare")
		return result
	}

	sum := decimal.Zero
	for _, investor := range investors {
		if investor.Status != domain.InvestorStatusActive {
			continue
		}
		value := investor.OwnershipValue(latest.NAVPerShare)
		sum = sum.Add(value.Div(latest.TotalPortfolioValue).Mul(hundred))
	}

	diff := sum.Sub(hundred).Abs()
	result.Expected = hundred.String()
	result.Actual = sum.String()
	result.Diff = diff.String()
	result.Passed = diff.LessThan(percentEpsilon)
	return result
}

// checkNAVFormula: latest nav_per_share == total_portfolio_value / total_shares.
func (s *Service) checkNAVFormula(latest *domain.NAVRecord) CheckResult {
	result := CheckResult{Name: CheckNAVFormula, Passed: true}
	if latest == nil {
		result.Details = append(result.Details, "no nav record exists; nothing to check")
		return result
	}
	return navFormulaCheck(CheckNAVFormula, latest)
}

// checkNoNegatives: no negative shares, basis, portfolio value or NAV anywhere.
func (s *Service) checkNoNegatives(investors []*domain.Investor, history []*domain.NAVRecord) CheckResult {
	result := CheckResult{Name: CheckNoNegatives, Passed: true}

	for _, investor := range investors {
		if investor.CurrentShares.IsNegative() {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("investor %s has negative shares %s", investor.ID, investor.CurrentShares))
		}
		if investor.NetInvestment.IsNegative() {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("investor %s has negative net investment %s", investor.ID, investor.NetInvestment))
		}
	}

	for _, record := range history {
		if record.TotalPortfolioValue.IsNegative() {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("nav record %s has negative portfolio value %s",
					record.Date.Format("2006-01-02"), record.TotalPortfolioValue))
		}
		if record.NAVPerShare.IsNegative() {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("nav record %s has negative nav per share %s",
					record.Date.Format("2006-01-02"), record.NAVPerShare))
		}
	}

	return result
}

// checkInvestorFlows: per investor, the sum of recorded basis deltas
// equals net_investment. Cash amounts cannot be used here: a withdrawal's
// cash includes its gain slice (or falls short of the basis removed, on a
// loss), so each ledger entry records the exact basis change it applied.
func (s *Service) checkInvestorFlows(ctx context.Context, investors []*domain.Investor) (CheckResult, error) {
	result := CheckResult{Name: CheckInvestorFlows, Passed: true}

	for _, investor := range investors {
		transactions, err := s.TransactionRepo.ListByInvestor(ctx, investor.ID)
		if err != nil {
			return result, err
		}

		sum := decimal.Zero
		for _, txn := range transactions {
			sum = sum.Add(txn.BasisDelta)
		}

		diff := sum.Sub(investor.NetInvestment).Abs()
		if diff.GreaterThanOrEqual(currencyEpsilon) {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("investor %s: basis delta sum %s vs net investment %s (diff %s)",
					investor.ID, sum, investor.NetInvestment, diff))
		}
	}

	return result, nil
}

// checkNAVFormulaHistory: every record in history satisfies the formula.
func (s *Service) checkNAVFormulaHistory(history []*domain.NAVRecord) CheckResult {
	result := CheckResult{Name: CheckNAVFormulaHistory, Passed: true}

	for _, record := range history {
		check := navFormulaCheck(CheckNAVFormulaHistory, record)
		if !check.Passed {
			result.Passed = false
			result.Details = append(result.Details,
				fmt.Sprintf("record %s: nav %s vs implied %s (diff %s)",
					record.Date.Format("2006-01-02"), check.Actual, check.Expected, check.Diff))
		}
	}

	return result
}

func navFormulaCheck(name string, record *domain.NAVRecord) CheckResult {
	result := CheckResult{Name: name, Passed: true}
	if !record.TotalShares.IsPositive() {
		return result
	}

	implied := record.TotalPortfolioValue.Div(record.TotalShares)
	diff := implied.Sub(record.NAVPerShare).Abs()
	result.Expected = implied.String()
	result.Actual = record.NAVPerShare.String()
	result.Diff = diff.String()
	result.Passed = diff.LessThan(domain.NAVFormulaEpsilon)
	return result
}
