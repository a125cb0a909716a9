package shareledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// quarterlyFraction is the flat share of annual estimated liability
// settled each quarter, reconciled at year-end.
var quarterlyFraction = decimal.RequireFromString("0.25")

// NAVSource is the slice of the valuation engine the share ledger needs
type NAVSource interface {
	NAVOnOrBefore(ctx context.Context, date time.Time) (*domain.NAVRecord, error)
	CurrentRecord(ctx context.Context) (*domain.NAVRecord, error)
}

// Result summarizes one processed fund flow
type Result struct {
	Request          *domain.FundFlowRequest
	Transaction      *domain.Transaction
	TaxEvent         *domain.TaxEvent
	SharesTransacted decimal.Decimal
	NAVPerShare      decimal.Decimal
	RealizedGain     decimal.Decimal
	TaxDue           decimal.Decimal
	NetProceeds      decimal.Decimal
	AlreadyProcessed bool
}

// BatchResult summarizes a sweep over all matched requests
type BatchResult struct {
	Processed int
	Rejected  int
	Failed    int
	Errors    []error
}

// Service converts matched fund flow requests into share issuance or
// redemption under decimal arithmetic with the fixed rounding rule:
// half-up at 4 decimal places for shares, 2 for currency.
type Service struct {
	InvestorRepo    domain.InvestorRepository
	FundFlowRepo    domain.FundFlowRepository
	TransactionRepo domain.TransactionRepository
	TaxEventRepo    domain.TaxEventRepository
	LedgerRepo      domain.LedgerRepository
	NAVs            NAVSource
	TaxRate         decimal.Decimal
	Sink            domain.NotificationSink
	Logger          *zap.Logger
}

// NewService creates a new share ledger Service instance
func NewService(
	investorRepo domain.InvestorRepository,
	fundFlowRepo domain.FundFlowRepository,
	transactionRepo domain.TransactionRepository,
	taxEventRepo domain.TaxEventRepository,
	ledgerRepo domain.LedgerRepository,
	navs NAVSource,
	taxRate decimal.Decimal,
	sink domain.NotificationSink,
	logger *zap.Logger,
) *Service {
	return &Service{
		InvestorRepo:    investorRepo,
		FundFlowRepo:    fundFlowRepo,
		TransactionRepo: transactionRepo,
		TaxEventRepo:    taxEventRepo,
		LedgerRepo:      ledgerRepo,
		NAVs:            navs,
		TaxRate:         taxRate,
		Sink:            sink,
		Logger:          logger,
	}
}

// ProcessRequest consumes one matched fund flow request: issues or redeems
// shares, updates the investor, records the transaction and any tax event,
// and transitions the request to PROCESSED — all in one atomic unit.
// Reprocessing a PROCESSED request, or retrying after a crash, is safe:
// the MATCHED -> PROCESSED transition is the sole gate, and the
// transaction's reference id is checked before creating a duplicate.
func (s *Service) ProcessRequest(ctx context.Context, requestID uuid.UUID) (*Result, error) {
	request, err := s.FundFlowRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := request.Processable(); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return s.alreadyProcessedResult(ctx, request)
		}
		return nil, fmt.Errorf("fund flow request %s not processable: %w", requestID, err)
	}

	// Idempotency probe: a transaction keyed to this request means a prior
	// run committed but the caller never saw the result.
	if existing, err := s.TransactionRepo.GetByReferenceID(ctx, request.ID); err == nil {
		return &Result{Request: request, Transaction: existing, AlreadyProcessed: true}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	investor, err := s.InvestorRepo.GetByID(ctx, request.InvestorID)
	if err != nil {
		return nil, err
	}
	if investor.Status != domain.InvestorStatusActive {
		return nil, fmt.Errorf("investor %s is not active", investor.ID)
	}

	nav, err := s.NAVs.NAVOnOrBefore(ctx, request.SettlementDate)
	if err != nil {
		return nil, err
	}
	if !nav.NAVPerShare.IsPositive() {
		return nil, fmt.Errorf("%w: nav per share is not positive for %s",
			domain.ErrStaleNAV, request.SettlementDate.Format("2006-01-02"))
	}

	var result *Result
	switch request.FlowType {
	case domain.FlowTypeContribution:
		result, err = s.processContribution(ctx, request, investor, nav)
	case domain.FlowTypeWithdrawal:
		result, err = s.processWithdrawal(ctx, request, investor, nav)
	default:
		return nil, fmt.Errorf("unknown flow type %q on request %s", request.FlowType, request.ID)
	}
	if err != nil {
		return nil, err
	}

	s.notifyProcessed(ctx, result)
	return result, nil
}

// ProcessMatched sweeps every matched request. Per-request failures are
// collected, not fatal to the sweep; each request is its own atomic unit.
func (s *Service) ProcessMatched(ctx context.Context) (*BatchResult, error) {
	requests, err := s.FundFlowRepo.ListByStatus(ctx, domain.FlowStatusMatched)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	for _, request := range requests {
		_, err := s.ProcessRequest(ctx, request.ID)
		switch {
		case err == nil:
			batch.Processed++
		case errors.Is(err, domain.ErrInsufficientFunds):
			batch.Rejected++
		default:
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Errorf("request %s: %w", request.ID, err))
			s.Logger.Error("fund flow processing failed",
				zap.String("request_id", request.ID.String()),
				zap.Error(err),
			)
		}
	}

	return batch, nil
}

// processContribution issues shares at the settlement-date NAV:
// shares = amount / nav_per_share, rounded half-up at 4 dp.
func (s *Service) processContribution(
	ctx context.Context,
	request *domain.FundFlowRequest,
	investor *domain.Investor,
	nav *domain.NAVRecord,
) (*Result, error) {
	amount := domain.RoundCurrency(request.SettledAmount())
	sharesIssued := domain.RoundShares(amount.Div(nav.NAVPerShare))

	txnType := domain.TransactionTypeContribution
	if investor.CurrentShares.IsZero() {
		txnType = domain.TransactionTypeInitial
	}

	investor.CurrentShares = investor.CurrentShares.Add(sharesIssued)
	investor.NetInvestment = investor.NetInvestment.Add(amount)

	refID := request.ID
	transaction := &domain.Transaction{
		ID:          uuid.New(),
		InvestorID:  investor.ID,
		Date:        request.SettlementDate,
		Type:        txnType,
		Amount:      amount,
		NAVPerShare: nav.NAVPerShare,
		SharesDelta: sharesIssued,
		BasisDelta:  amount,
		ReferenceID: &refID,
	}

	s.stampProcessed(request, transaction, sharesIssued, nav.NAVPerShare, decimal.Zero, decimal.Zero, amount)

	if err := s.apply(ctx, investor, request, transaction, nil); err != nil {
		return nil, err
	}

	s.Logger.Info("contribution processed",
		zap.String("investor_id", investor.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("shares_issued", sharesIssued.String()),
		zap.String("nav_per_share", nav.NAVPerShare.String()),
	)

	return &Result{
		Request:          request,
		Transaction:      transaction,
		SharesTransacted: sharesIssued,
		NAVPerShare:      nav.NAVPerShare,
		NetProceeds:      amount,
	}, nil
}

// processWithdrawal redeems shares at the settlement-date NAV and records
// the proportionally allocated realized gain. In the current policy tax is
// recorded, not withheld: net proceeds equal the full requested amount and
// tax due is settled in a later quarterly batch.
func (s *Service) processWithdrawal(
	ctx context.Context,
	request *domain.FundFlowRequest,
	investor *domain.Investor,
	nav *domain.NAVRecord,
) (*Result, error) {
	amount := domain.RoundCurrency(request.SettledAmount())
	currentValue := investor.OwnershipValue(nav.NAVPerShare)

	if amount.GreaterThan(currentValue) {
		reason := fmt.Sprintf("requested %s exceeds current position value %s",
			amount.String(), domain.RoundCurrency(currentValue).String())
		if err := s.FundFlowRepo.Reject(ctx, request.ID, reason); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, reason)
	}

	alloc, err := domain.AllocateProportionalGain(currentValue, investor.NetInvestment, amount)
	if err != nil {
		return nil, err
	}

	sharesToRedeem := domain.RoundShares(amount.Div(nav.NAVPerShare))
	// Full closure redeems the exact share balance so no dust survives.
	if alloc.Proportion.Equal(decimal.NewFromInt(1)) {
		sharesToRedeem = investor.CurrentShares
	}

	realizedGain := domain.RoundCurrency(alloc.RealizedGain)
	taxDue := domain.RoundCurrency(realizedGain.Mul(s.TaxRate))
	netProceeds := amount

	previousBasis := investor.NetInvestment
	investor.CurrentShares = investor.CurrentShares.Sub(sharesToRedeem)
	investor.NetInvestment = domain.RoundCurrency(previousBasis.Sub(alloc.CostBasisReduction))

	refID := request.ID
	transaction := &domain.Transaction{
		ID:          uuid.New(),
		InvestorID:  investor.ID,
		Date:        request.SettlementDate,
		Type:        domain.TransactionTypeWithdrawal,
		Amount:      amount.Neg(),
		NAVPerShare: nav.NAVPerShare,
		SharesDelta: sharesToRedeem.Neg(),
		// The exact basis the redemption removed, which differs from the
		// cash amount whenever the position carried a gain or a loss.
		BasisDelta:  investor.NetInvestment.Sub(previousBasis),
		ReferenceID: &refID,
	}

	var taxEvent *domain.TaxEvent
	if realizedGain.IsPositive() {
		taxEvent = &domain.TaxEvent{
			ID:            uuid.New(),
			TransactionID: transaction.ID,
			InvestorID:    investor.ID,
			Date:          request.SettlementDate,
			RealizedGain:  realizedGain,
			TaxRate:       s.TaxRate,
			TaxDue:        taxDue,
			NetProceeds:   netProceeds,
		}
	}

	s.stampProcessed(request, transaction, sharesToRedeem, nav.NAVPerShare, realizedGain, decimal.Zero, netProceeds)

	if err := s.apply(ctx, investor, request, transaction, taxEvent); err != nil {
		return nil, err
	}

	s.Logger.Info("withdrawal processed",
		zap.String("investor_id", investor.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("shares_redeemed", sharesToRedeem.String()),
		zap.String("realized_gain", realizedGain.String()),
		zap.String("tax_due", taxDue.String()),
	)

	return &Result{
		Request:          request,
		Transaction:      transaction,
		TaxEvent:         taxEvent,
		SharesTransacted: sharesToRedeem,
		NAVPerShare:      nav.NAVPerShare,
		RealizedGain:     realizedGain,
		TaxDue:           taxDue,
		NetProceeds:      netProceeds,
	}, nil
}

// CloseAccount redeems an investor's entire position at the current NAV
// (proportion 1.0) and marks the account inactive. The closure transaction
// and investor mutation commit atomically; there is no originating fund
// flow request.
func (s *Service) CloseAccount(ctx context.Context, investorID uuid.UUID) (*Result, error) {
	investor, err := s.InvestorRepo.GetByID(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if investor.Status != domain.InvestorStatusActive {
		return nil, fmt.Errorf("investor %s is not active", investorID)
	}

	nav, err := s.NAVs.CurrentRecord(ctx)
	if err != nil {
		return nil, err
	}
	if !nav.NAVPerShare.IsPositive() {
		return nil, fmt.Errorf("%w: current nav per share is not positive", domain.ErrStaleNAV)
	}

	if investor.CurrentShares.IsZero() {
		investor.Status = domain.InvestorStatusInactive
		investor.NetInvestment = decimal.Zero
		if err := s.apply(ctx, investor, nil, nil, nil); err != nil {
			return nil, err
		}
		return &Result{NAVPerShare: nav.NAVPerShare}, nil
	}

	// A dust position whose value rounds to zero is still closable: it
	// redeems all shares for nothing and realizes nothing.
	currentValue := domain.RoundCurrency(investor.OwnershipValue(nav.NAVPerShare))

	realizedGain := decimal.Zero
	if currentValue.IsPositive() {
		alloc, err := domain.AllocateProportionalGain(currentValue, investor.NetInvestment, currentValue)
		if err != nil {
			return nil, err
		}
		realizedGain = domain.RoundCurrency(alloc.RealizedGain)
	}

	taxDue := domain.RoundCurrency(realizedGain.Mul(s.TaxRate))
	sharesRedeemed := investor.CurrentShares
	previousBasis := investor.NetInvestment

	investor.CurrentShares = decimal.Zero
	investor.NetInvestment = decimal.Zero
	investor.Status = domain.InvestorStatusInactive

	transaction := &domain.Transaction{
		ID:          uuid.New(),
		InvestorID:  investor.ID,
		Date:        time.Now().UTC(),
		Type:        domain.TransactionTypeWithdrawal,
		Amount:      currentValue.Neg(),
		NAVPerShare: nav.NAVPerShare,
		SharesDelta: sharesRedeemed.Neg(),
		BasisDelta:  previousBasis.Neg(),
		Notes:       "account closure",
	}

	var taxEvent *domain.TaxEvent
	if realizedGain.IsPositive() {
		taxEvent = &domain.TaxEvent{
			ID:            uuid.New(),
			TransactionID: transaction.ID,
			InvestorID:    investor.ID,
			Date:          transaction.Date,
			RealizedGain:  realizedGain,
			TaxRate:       s.TaxRate,
			TaxDue:        taxDue,
			NetProceeds:   currentValue,
		}
	}

	if err := s.apply(ctx, investor, nil, transaction, taxEvent); err != nil {
		return nil, err
	}

	s.Logger.Info("account closed",
		zap.String("investor_id", investor.ID.String()),
		zap.String("proceeds", currentValue.String()),
		zap.String("realized_gain", realizedGain.String()),
	)

	return &Result{
		Transaction:      transaction,
		TaxEvent:         taxEvent,
		SharesTransacted: sharesRedeemed,
		NAVPerShare:      nav.NAVPerShare,
		RealizedGain:     realizedGain,
		TaxDue:           taxDue,
		NetProceeds:      currentValue,
	}, nil
}

// QuarterlyTaxEstimate returns the flat quarterly share of the year's
// estimated liability, summed over recorded tax events. Reconciled at
// year-end; the flat fraction is existing policy, preserved as-is.
func (s *Service) QuarterlyTaxEstimate(ctx context.Context, year int) (decimal.Decimal, error) {
	events, err := s.TaxEventRepo.ListByYear(ctx, year)
	if err != nil {
		return decimal.Zero, err
	}

	annual := decimal.Zero
	for _, event := range events {
		annual = annual.Add(event.TaxDue)
	}

	return domain.RoundCurrency(annual.Mul(quarterlyFraction)), nil
}

// apply validates every entity in the unit and persists it atomically.
func (s *Service) apply(
	ctx context.Context,
	investor *domain.Investor,
	request *domain.FundFlowRequest,
	transaction *domain.Transaction,
	taxEvent *domain.TaxEvent,
) error {
	if err := investor.Validate(); err != nil {
		return err
	}
	if transaction != nil {
		if err := transaction.Validate(); err != nil {
			return err
		}
	}
	if taxEvent != nil {
		if err := taxEvent.Validate(); err != nil {
			return err
		}
	}

	return s.LedgerRepo.ApplyFundFlow(ctx, &domain.FundFlowApplication{
		Investor:    investor,
		Request:     request,
		Transaction: transaction,
		TaxEvent:    taxEvent,
	})
}

// stampProcessed records the execution terms on the request and moves it
// to its terminal PROCESSED state.
func (s *Service) stampProcessed(
	request *domain.FundFlowRequest,
	transaction *domain.Transaction,
	shares, navPerShare, realizedGain, taxWithheld, netProceeds decimal.Decimal,
) {
	now := time.Now().UTC()
	request.Status = domain.FlowStatusProcessed
	request.SharesTransacted = shares
	request.NAVPerShare = navPerShare
	request.TransactionID = &transaction.ID
	request.RealizedGain = realizedGain
	request.TaxWithheld = taxWithheld
	request.NetProceeds = netProceeds
	request.ProcessedAt = &now
}

// alreadyProcessedResult reconstructs the outcome of a previously
// completed request so retries are observably no-ops.
func (s *Service) alreadyProcessedResult(ctx context.Context, request *domain.FundFlowRequest) (*Result, error) {
	result := &Result{
		Request:          request,
		SharesTransacted: request.SharesTransacted,
		NAVPerShare:      request.NAVPerShare,
		RealizedGain:     request.RealizedGain,
		NetProceeds:      request.NetProceeds,
		AlreadyProcessed: true,
	}

	if transaction, err := s.TransactionRepo.GetByReferenceID(ctx, request.ID); err == nil {
		result.Transaction = transaction
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return result, nil
}

func (s *Service) notifyProcessed(ctx context.Context, result *Result) {
	if result.Request == nil {
		return
	}

	event := domain.Event{
		Kind:    "fund_flow_processed",
		Message: fmt.Sprintf("%s processed", result.Request.FlowType),
		Fields: map[string]string{
			"request_id":        result.Request.ID.String(),
			"investor_id":       result.Request.InvestorID.String(),
			"shares_transacted": result.SharesTransacted.String(),
			"nav_per_share":     result.NAVPerShare.String(),
			"net_proceeds":      result.NetProceeds.String(),
		},
		At: time.Now(),
	}
	if err := s.Sink.Publish(ctx, event); err != nil {
		s.Logger.Warn("notification publish failed", zap.Error(err))
	}
}
