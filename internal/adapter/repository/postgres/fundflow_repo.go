package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// fundFlowRepository implements domain.FundFlowRepository
type fundFlowRepository struct {
	db *DB
}

// NewFundFlowRepository creates a new fund flow request repository
func NewFundFlowRepository(db *DB) domain.FundFlowRepository {
	return &fundFlowRepository{db: db}
}

const fundFlowColumns = `id, investor_id, flow_type, status, requested_amount, actual_amount,
	settlement_date, shares_transacted, nav_per_share, transaction_id, realized_gain,
	tax_withheld, net_proceeds, reject_reason, created_at, processed_at`

// GetByID retrieves a request by its ID
func (r *fundFlowRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FundFlowRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM fund_flow_requests WHERE id = $1`, fundFlowColumns)

	request, err := scanFundFlowRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund flow request %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get fund flow request: %w", err)
	}

	return request, nil
}

// Create creates a new request
func (r *fundFlowRepository) Create(ctx context.Context, request *domain.FundFlowRequest) error {
	query := `
		INSERT INTO fund_flow_requests (id, investor_id, flow_type, status,
			requested_amount, actual_amount, settlement_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.InvestorID,
		string(request.FlowType),
		string(request.Status),
		request.RequestedAmount.String(),
		request.ActualAmount.String(),
		request.SettlementDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create fund flow request: %w", err)
	}

	return nil
}

// ListByStatus retrieves requests in the given status ordered by creation
func (r *fundFlowRepository) ListByStatus(ctx context.Context, status domain.FlowStatus) ([]*domain.FundFlowRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM fund_flow_requests
		WHERE status = $1
		ORDER BY created_at
	`, fundFlowColumns)

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list fund flow requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.FundFlowRequest
	for rows.Next() {
		request, err := scanFundFlowRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund flow request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// Reject transitions a request to REJECTED with the given reason
func (r *fundFlowRepository) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE fund_flow_requests
		SET status = $2, reject_reason = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, string(domain.FlowStatusRejected), reason)
	if err != nil {
		return fmt.Errorf("failed to reject fund flow request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rejected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fund flow request %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func scanFundFlowRequest(row rowScanner) (*domain.FundFlowRequest, error) {
	var request domain.FundFlowRequest
	var requestedStr, actualStr, sharesStr, navStr, gainStr, taxStr, proceedsStr string
	var transactionID sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.InvestorID,
		&request.FlowType,
		&request.Status,
		&requestedStr,
		&actualStr,
		&request.SettlementDate,
		&sharesStr,
		&navStr,
		&transactionID,
		&gainStr,
		&taxStr,
		&proceedsStr,
		&request.RejectReason,
		&request.CreatedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	if transactionID.Valid {
		txnUUID, err := uuid.Parse(transactionID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction_id: %w", err)
		}
		request.TransactionID = &txnUUID
	}
	if processedAt.Valid {
		request.ProcessedAt = &processedAt.Time
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
		col string
	}{
		{&request.RequestedAmount, requestedStr, "requested_amount"},
		{&request.ActualAmount, actualStr, "actual_amount"},
		{&request.SharesTransacted, sharesStr, "shares_transacted"},
		{&request.NAVPerShare, navStr, "nav_per_share"},
		{&request.RealizedGain, gainStr, "realized_gain"},
		{&request.TaxWithheld, taxStr, "tax_withheld"},
		{&request.NetProceeds, proceedsStr, "net_proceeds"},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.col, err)
		}
		*f.dst = value
	}

	return &request, nil
}
