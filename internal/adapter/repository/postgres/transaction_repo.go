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

// transactionRepository implements domain.TransactionRepository. The ledger
// is append-only and written exclusively through LedgerRepository, so this
// repository only reads.
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, investor_id, date, type, amount, nav_per_share,
	shares_delta, basis_delta, reference_id, notes, created_at`

// ListByInvestor retrieves all transactions for an investor ordered by date
func (r *transactionRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE investor_id = $1
		ORDER BY date, created_at
	`, transactionColumns)

	rows, err := r.db.QueryContext(ctx, query, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// GetByReferenceID retrieves the transaction created for a fund flow request
func (r *transactionRepository) GetByReferenceID(ctx context.Context, referenceID uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference_id = $1`, transactionColumns)

	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, referenceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction for request %s: %w", referenceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}

	return txn, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var txn domain.Transaction
	var amountStr, navStr, sharesStr, basisStr string
	var referenceID sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.InvestorID,
		&txn.Date,
		&txn.Type,
		&amountStr,
		&navStr,
		&sharesStr,
		&basisStr,
		&referenceID,
		&txn.Notes,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if referenceID.Valid {
		refUUID, err := uuid.Parse(referenceID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reference_id: %w", err)
		}
		txn.ReferenceID = &refUUID
	}

	if txn.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	if txn.NAVPerShare, err = decimal.NewFromString(navStr); err != nil {
		return nil, fmt.Errorf("failed to parse nav_per_share: %w", err)
	}
	if txn.SharesDelta, err = decimal.NewFromString(sharesStr); err != nil {
		return nil, fmt.Errorf("failed to parse shares_delta: %w", err)
	}
	if txn.BasisDelta, err = decimal.NewFromString(basisStr); err != nil {
		return nil, fmt.Errorf("failed to parse basis_delta: %w", err)
	}

	return &txn, nil
}
