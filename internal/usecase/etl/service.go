package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// ExtractResult counts one extraction sweep's outcomes per row
type ExtractResult struct {
	Fetched  int
	Inserted int
	Existing int // Already staged; re-extraction is a no-op
	Errors   int // Rows missing a usable identifier, never silently dropped
}

// TransformResult counts one transform sweep's outcomes per row
type TransformResult struct {
	Transformed int
	Review      int // Mapped to OTHER, flagged for manual review
	Errors      int
	Skipped     int
}

// LoadResult counts one load sweep's outcomes per row
type LoadResult struct {
	Loaded     int
	Duplicates int // Already in production; linked, not errored
	Errors     int
}

// RunResult is the combined outcome of a full pipeline run
type RunResult struct {
	Extract   ExtractResult
	Transform TransformResult
	Load      LoadResult
}

// Service is the Extract -> Transform -> Load pipeline turning brokerage
// API output into the canonical trade ledger with no data loss and no
// duplicate production records. Re-running the pipeline over an
// overlapping date range converges to the same production state.
type Service struct {
	Clients map[string]domain.BrokerageClient
	Staging domain.StagingRepository
	Trades  domain.CanonicalTradeRepository
	Logger  *zap.Logger
}

// NewService creates a new ETL Service instance
func NewService(
	clients map[string]domain.BrokerageClient,
	staging domain.StagingRepository,
	trades domain.CanonicalTradeRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		Clients: clients,
		Staging: staging,
		Trades:  trades,
		Logger:  logger,
	}
}

// Run executes the full pipeline over the date range.
func (s *Service) Run(ctx context.Context, start, end time.Time) (*RunResult, error) {
	extract, err := s.Extract(ctx, start, end)
	if err != nil {
		return nil, err
	}

	transform, err := s.Transform(ctx)
	if err != nil {
		return nil, err
	}

	load, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &RunResult{Extract: *extract, Transform: *transform, Load: *load}, nil
}

// Extract pulls raw transactions from every configured source and stages
// them with an insert-if-absent policy keyed on
// (source, brokerage_transaction_id). Always safe to re-run. Each insert
// commits independently, so a long sweep is safely interruptible between
// rows.
func (s *Service) Extract(ctx context.Context, start, end time.Time) (*ExtractResult, error) {
	if len(s.Clients) == 0 {
		return nil, fmt.Errorf("%w: no brokerage sources configured", domain.ErrConfiguration)
	}

	names := make([]string, 0, len(s.Clients))
	for name := range s.Clients {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &ExtractResult{}
	for _, name := range names {
		raws, err := s.Clients[name].GetRawTransactions(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("extract from %s failed: %w", name, err)
		}
		result.Fetched += len(raws)

		for _, raw := range raws {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if raw.BrokerageTransactionID == "" {
				result.Errors++
				s.Logger.Warn("raw transaction missing usable identifier, skipped",
					zap.String("source", name),
					zap.Time("date", raw.TransactionDate),
					zap.String("type", raw.TransactionType),
				)
				continue
			}

			row := &domain.RawTransaction{
				ID:                     uuid.New(),
				Source:                 name,
				BrokerageTransactionID: raw.BrokerageTransactionID,
				RawData:                raw.RawData,
				TransactionDate:        raw.TransactionDate,
				TransactionType:        raw.TransactionType,
				TransactionSubtype:     raw.TransactionSubtype,
				Symbol:                 raw.Symbol,
				Amount:                 raw.Amount,
				Description:            raw.Description,
				ETLStatus:              domain.ETLStatusPending,
			}

			inserted, err := s.Staging.InsertIfAbsent(ctx, row)
			if err != nil {
				return nil, fmt.Errorf("staging insert failed for %s/%s: %w", name, raw.BrokerageTransactionID, err)
			}
			if inserted {
				result.Inserted++
			} else {
				result.Existing++
			}
		}
	}

	s.Logger.Info("extract complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", result.Inserted),
		zap.Int("existing", result.Existing),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// Transform classifies every PENDING staging row into the canonical
// taxonomy. The mapping is a pure function of the raw type strings; each
// row's outcome is written back so the staging table remains the durable
// record of why any row didn't make it to production.
func (s *Service) Transform(ctx context.Context) (*TransformResult, error) {
	pending, err := s.Staging.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	result := &TransformResult{}
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := row.Validate(); err != nil {
			row.ETLStatus = domain.ETLStatusError
			row.ErrorMessage = err.Error()
			result.Errors++
		} else if row.Amount.IsZero() {
			// Zero-amount rows are informational noise from the source
			// (journal notes, reversed entries netting to nothing). They
			// stay in staging for the audit trail but never reach
			// production.
			row.ETLStatus = domain.ETLStatusSkipped
			result.Skipped++
		} else {
			category, subcategory, ok := MapCategory(row.TransactionType, row.TransactionSubtype)
			row.Category = category
			row.Subcategory = subcategory
			row.ETLStatus = domain.ETLStatusTransformed
			if !ok {
				row.NeedsReview = true
				result.Review++
				s.Logger.Warn("unmappable transaction type, classified as OTHER",
					zap.String("source", row.Source),
					zap.String("type", row.TransactionType),
					zap.String("subtype", row.TransactionSubtype),
				)
			}
			result.Transformed++
		}

		if err := s.Staging.Update(ctx, row); err != nil {
			return nil, fmt.Errorf("staging status write-back failed for %s: %w", row.ID, err)
		}
	}

	s.Logger.Info("transform complete",
		zap.Int("transformed", result.Transformed),
		zap.Int("review", result.Review),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// Load promotes TRANSFORMED rows into the production canonical ledger.
// Primary dedup is the (source, brokerage_transaction_id) key; rows whose
// id is a generated placeholder also dedup by (source, date, amount) to
// catch logical duplicates the id-based check would miss.
func (s *Service) Load(ctx context.Context) (*LoadResult, error) {
	rows, err := s.Staging.ListTransformedUnlinked(ctx)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		existing, err := s.findExisting(ctx, row)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			row.CanonicalTradeID = &existing.ID
			result.Duplicates++
		} else {
			trade := canonicalFromStaging(row)
			if err := trade.Validate(); err != nil {
				row.ETLStatus = domain.ETLStatusError
				row.ErrorMessage = err.Error()
				result.Errors++
				if err := s.Staging.Update(ctx, row); err != nil {
					return nil, err
				}
				continue
			}

			if err := s.Trades.Create(ctx, trade); err != nil {
				return nil, fmt.Errorf("canonical trade insert failed for %s/%s: %w",
					row.Source, row.BrokerageTransactionID, err)
			}
			row.CanonicalTradeID = &trade.ID
			result.Loaded++
		}

		if err := s.Staging.Update(ctx, row); err != nil {
			return nil, fmt.Errorf("staging link write-back failed for %s: %w", row.ID, err)
		}
	}

	s.Logger.Info("load complete",
		zap.Int("loaded", result.Loaded),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// findExisting applies the primary dedup rule, then the logical fallback
// for synthetic-id rows.
func (s *Service) findExisting(ctx context.Context, row *domain.RawTransaction) (*domain.CanonicalTrade, error) {
	existing, err := s.Trades.GetBySourceTransactionID(ctx, row.Source, row.BrokerageTransactionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if !row.HasSyntheticID() {
		return nil, nil
	}

	existing, err = s.Trades.FindLogicalDuplicate(ctx, row.Source, row.TransactionDate, row.Amount)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// executionDetails are the per-fill numbers some sources report. They
// live only in the verbatim payload, not in dedicated staging columns,
// so the loader decodes them best-effort: absent or malformed fields
// stay zero.
type executionDetails struct {
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Fees       decimal.Decimal `json:"fees"`
}

func canonicalFromStaging(row *domain.RawTransaction) *domain.CanonicalTrade {
	var details executionDetails
	if row.RawData != "" {
		_ = json.Unmarshal([]byte(row.RawData), &details)
	}

	return &domain.CanonicalTrade{
		ID:                     uuid.New(),
		Date:                   row.TransactionDate,
		Type:                   row.TransactionType,
		Symbol:                 row.Symbol,
		Quantity:               details.Quantity,
		Price:                  details.Price,
		Amount:                 row.Amount,
		Commission:             details.Commission,
		Fees:                   details.Fees,
		Category:               row.Category,
		Subcategory:            row.Subcategory,
		Source:                 row.Source,
		BrokerageTransactionID: row.BrokerageTransactionID,
	}
}
