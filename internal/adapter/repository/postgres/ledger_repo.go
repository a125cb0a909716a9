package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// ApplyFundFlow persists the investor mutation, ledger transaction, optional
// tax event and optional request stamp in one database transaction. A crash
// anywhere in the sequence rolls the whole unit back, leaving the request
// unprocessed and safe to retry.
func (r *ledgerRepository) ApplyFundFlow(ctx context.Context, app *domain.FundFlowApplication) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := updateInvestor(ctx, dbTx, app.Investor); err != nil {
		return err
	}

	if err := insertTransaction(ctx, dbTx, app.Transaction); err != nil {
		return err
	}

	if app.TaxEvent != nil {
		if err := insertTaxEvent(ctx, dbTx, app.TaxEvent); err != nil {
			return err
		}
	}

	if app.Request != nil {
		if err := stampRequest(ctx, dbTx, app.Request); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fund flow: %w", err)
	}

	return nil
}

func updateInvestor(ctx context.Context, dbTx *sql.Tx, investor *domain.Investor) error {
	query := `
		UPDATE investors
		SET status = $2, current_shares = $3, net_investment = $4
		WHERE id = $1
	`

	result, err := dbTx.ExecContext(ctx, query,
		investor.ID,
		string(investor.Status),
		investor.CurrentShares.String(),
		investor.NetInvestment.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update investor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check investor update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("investor %s: %w", investor.ID, domain.ErrNotFound)
	}

	return nil
}

func insertTransaction(ctx context.Context, dbTx *sql.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, investor_id, date, type, amount, nav_per_share,
			shares_delta, basis_delta, reference_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var referenceID interface{}
	if txn.ReferenceID != nil {
		referenceID = *txn.ReferenceID
	}

	_, err := dbTx.ExecContext(ctx, query,
		txn.ID,
		txn.InvestorID,
		txn.Date,
		string(txn.Type),
		txn.Amount.String(),
		txn.NAVPerShare.String(),
		txn.SharesDelta.String(),
		txn.BasisDelta.String(),
		referenceID,
		txn.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

func insertTaxEvent(ctx context.Context, dbTx *sql.Tx, event *domain.TaxEvent) error {
	query := `
		INSERT INTO tax_events (id, transaction_id, investor_id, date, realized_gain,
			tax_rate, tax_due, net_proceeds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := dbTx.ExecContext(ctx, query,
		event.ID,
		event.TransactionID,
		event.InvestorID,
		event.Date,
		event.RealizedGain.String(),
		event.TaxRate.String(),
		event.TaxDue.String(),
		event.NetProceeds.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tax event: %w", err)
	}

	return nil
}

func stampRequest(ctx context.Context, dbTx *sql.Tx, request *domain.FundFlowRequest) error {
	query := `
		UPDATE fund_flow_requests
		SET status = $2, shares_transacted = $3, nav_per_share = $4, transaction_id = $5,
			realized_gain = $6, tax_withheld = $7, net_proceeds = $8, processed_at = $9
		WHERE id = $1
	`

	var transactionID interface{}
	if request.TransactionID != nil {
		transactionID = *request.TransactionID
	}

	result, err := dbTx.ExecContext(ctx, query,
		request.ID,
		string(request.Status),
		request.SharesTransacted.String(),
		request.NAVPerShare.String(),
		transactionID,
		request.RealizedGain.String(),
		request.TaxWithheld.String(),
		request.NetProceeds.String(),
		request.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp fund flow request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check request stamp: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("fund flow request %s: %w", request.ID, domain.ErrNotFound)
	}

	return nil
}
