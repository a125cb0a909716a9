package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// RetryConfig bounds the per-source transient retry. The aggregate itself
// never retries-and-averages: a source that exhausts its retries fails the
// whole call.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// CombinedBalance is one fund-level balance reading across all sources
type CombinedBalance struct {
	TotalEquity decimal.Decimal
	TotalCash   decimal.Decimal
	Timestamp   time.Time
	Sources     []string
	PerSource   map[string]domain.AccountBalance
}

// Service produces one trustworthy fund-level equity figure from the
// configured brokerage sources. Stateless; no side effects beyond the
// read calls.
type Service struct {
	Clients map[string]domain.BrokerageClient
	Retry   RetryConfig
	Logger  *zap.Logger
}

// NewService creates a new aggregator Service instance
func NewService(clients map[string]domain.BrokerageClient, retry RetryConfig, logger *zap.Logger) *Service {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &Service{
		Clients: clients,
		Retry:   retry,
		Logger:  logger,
	}
}

// CombinedBalance calls GetAccountBalance on every configured client and
// sums the results. Fail-fast: if any source fails after bounded retries,
// the entire call fails rather than returning a partial sum — an
// inaccurate NAV silently mis-values every investor's position.
// Sums are rounded to 2 decimal places only at the point of output.
func (s *Service) CombinedBalance(ctx context.Context) (*CombinedBalance, error) {
	if len(s.Clients) == 0 {
		return nil, fmt.Errorf("%w: no brokerage sources configured", domain.ErrConfiguration)
	}

	names := make([]string, 0, len(s.Clients))
	for name := range s.Clients {
		names = append(names, name)
	}
	sort.Strings(names)

	totalEquity := decimal.Zero
	totalCash := decimal.Zero
	perSource := make(map[string]domain.AccountBalance, len(names))
	failed := make(map[string]error)

	for _, name := range names {
		balance, err := s.balanceWithRetry(ctx, name, s.Clients[name])
		if err != nil {
			failed[name] = err
			continue
		}

		perSource[name] = *balance
		totalEquity = totalEquity.Add(balance.TotalEquity)
		totalCash = totalCash.Add(balance.TotalCash)
	}

	if len(failed) > 0 {
		return nil, &domain.AggregationError{Failed: failed}
	}

	combined := &CombinedBalance{
		TotalEquity: domain.RoundCurrency(totalEquity),
		TotalCash:   domain.RoundCurrency(totalCash),
		Timestamp:   time.Now(),
		Sources:     names,
		PerSource:   perSource,
	}

	s.Logger.Info("combined balance computed",
		zap.String("total_equity", combined.TotalEquity.String()),
		zap.String("total_cash", combined.TotalCash.String()),
		zap.Strings("sources", names),
	)

	return combined, nil
}

// balanceWithRetry retries a single source's balance call with a bounded
// linear backoff before giving up on that source.
func (s *Service) balanceWithRetry(ctx context.Context, name string, client domain.BrokerageClient) (*domain.AccountBalance, error) {
	var lastErr error

	for attempt := 1; attempt <= s.Retry.Attempts; attempt++ {
		balance, err := client.GetAccountBalance(ctx)
		if err == nil {
			return balance, nil
		}
		lastErr = err

		s.Logger.Warn("brokerage balance call failed",
			zap.String("source", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == s.Retry.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Retry.Backoff * time.Duration(attempt)):
		}
	}

	return nil, lastErr
}
