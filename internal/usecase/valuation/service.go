package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
	"github.com/oakfund/fundcore-backend/internal/usecase/aggregator"
)

// navQuotePrecision is the scale NAV per share is computed and stored at.
// Finer than the currency scale so per-share error stays inside the
// 0.0001 formula epsilon even for large share counts.
const navQuotePrecision = 8

// BalanceSource is the slice of the aggregator the valuation engine needs
type BalanceSource interface {
	CombinedBalance(ctx context.Context) (*aggregator.CombinedBalance, error)
}

// Service computes and persists one NAV record per trading day and is the
// single query surface for current/historical NAV. Callers never reach
// into the store directly for NAV rows.
type Service struct {
	Balances     BalanceSource
	InvestorRepo domain.InvestorRepository
	NAVRepo      domain.NAVRepository
	AuditRepo    domain.AuditRepository
	Sink         domain.NotificationSink
	Logger       *zap.Logger
}

// NewService creates a new valuation Service instance
func NewService(
	balances BalanceSource,
	investorRepo domain.InvestorRepository,
	navRepo domain.NAVRepository,
	auditRepo domain.AuditRepository,
	sink domain.NotificationSink,
	logger *zap.Logger,
) *Service {
	return &Service{
		Balances:     balances,
		InvestorRepo: investorRepo,
		NAVRepo:      navRepo,
		AuditRepo:    auditRepo,
		Sink:         sink,
		Logger:       logger,
	}
}

// UpdateNAV values the fund for the given trading date.
// Logic:
//  1. Obtain total portfolio value via the balance aggregator (any source
//     failure aborts the whole operation)
//  2. Sum current_shares over ACTIVE investors — a live query
//  3. nav_per_share = value / shares, or the 1.00 bootstrap on the very
//     first valuation when no shares have been issued yet
//  4. Compute daily change against the most recent prior record
//  5. Upsert the record for the date; re-running the same day is
//     idempotent, not additive
//  6. Persist a best-effort audit summary
//
// Any failure aborts with no partial write: the upsert is the last step
// and is atomic. A failed valuation never defaults to a stale or
// interpolated NAV.
func (s *Service) UpdateNAV(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	date = truncateToDay(date)

	combined, err := s.Balances.CombinedBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("valuation aborted: %w", err)
	}
	totalValue := combined.TotalEquity

	totalShares, err := s.InvestorRepo.SumActiveShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum active investor shares: %w", err)
	}

	navPerShare := domain.BootstrapNAV
	if totalShares.IsPositive() {
		navPerShare = totalValue.DivRound(totalShares, navQuotePrecision)
	}

	changeAbs := decimal.Zero
	changePct := decimal.Zero
	prior, err := s.NAVRepo.GetPrior(ctx, date)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up prior nav record: %w", err)
	}
	if prior != nil && prior.NAVPerShare.IsPositive() {
		changeAbs = navPerShare.Sub(prior.NAVPerShare)
		changePct = changeAbs.Div(prior.NAVPerShare).Mul(decimal.NewFromInt(100)).Round(navQuotePrecision)
	}

	record := &domain.NAVRecord{
		ID:                  uuid.New(),
		Date:                date,
		NAVPerShare:         navPerShare,
		TotalPortfolioValue: totalValue,
		TotalShares:         totalShares,
		DailyChangeAbs:      changeAbs,
		DailyChangePct:      changePct,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.NAVRepo.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to upsert nav record: %w", err)
	}

	s.Logger.Info("nav updated",
		zap.Time("date", date),
		zap.String("nav_per_share", navPerShare.String()),
		zap.String("total_portfolio_value", totalValue.String()),
		zap.String("total_shares", totalShares.String()),
		zap.String("daily_change_pct", changePct.String()),
	)

	s.auditValuation(ctx, record)

	return record, nil
}

// CurrentNAV returns the most recent record's nav_per_share.
// "No record exists" is a distinct, visible state (ErrNAVUnavailable),
// never a fabricated value.
func (s *Service) CurrentNAV(ctx context.Context) (decimal.Decimal, error) {
	record, err := s.NAVRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.ErrNAVUnavailable
		}
		return decimal.Zero, err
	}
	return record.NAVPerShare, nil
}

// CurrentRecord returns the most recent full NAV record.
func (s *Service) CurrentRecord(ctx context.Context) (*domain.NAVRecord, error) {
	record, err := s.NAVRepo.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNAVUnavailable
		}
		return nil, err
	}
	return record, nil
}

// NAVOnOrBefore returns the record for the given date, falling back to
// the most recent record before it — never a future record, which would
// let a late-arriving operation see information it couldn't have had.
func (s *Service) NAVOnOrBefore(ctx context.Context, date time.Time) (*domain.NAVRecord, error) {
	record, err := s.NAVRepo.GetOnOrBefore(ctx, truncateToDay(date))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no nav record on or before %s", domain.ErrStaleNAV, date.Format("2006-01-02"))
		}
		return nil, err
	}
	return record, nil
}

// auditValuation persists and publishes the computed figures, best-effort.
func (s *Service) auditValuation(ctx context.Context, record *domain.NAVRecord) {
	details, _ := json.Marshal(map[string]string{
		"date":                  record.Date.Format("2006-01-02"),
		"nav_per_share":         record.NAVPerShare.String(),
		"total_portfolio_value": record.TotalPortfolioValue.String(),
		"total_shares":          record.TotalShares.String(),
		"daily_change_abs":      record.DailyChangeAbs.String(),
		"daily_change_pct":      record.DailyChangePct.String(),
	})

	entry := &domain.AuditEntry{
		Category: "valuation",
		Message:  "daily nav computed",
		Details:  string(details),
	}
	if err := s.AuditRepo.Append(ctx, entry); err != nil {
		s.Logger.Warn("audit append failed", zap.Error(err))
	}

	event := domain.Event{
		Kind:    "nav_updated",
		Message: "daily nav computed",
		Fields: map[string]string{
			"date":          record.Date.Format("2006-01-02"),
			"nav_per_share": record.NAVPerShare.String(),
		},
		At: time.Now(),
	}
	if err := s.Sink.Publish(ctx, event); err != nil {
		s.Logger.Warn("notification publish failed", zap.Error(err))
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
