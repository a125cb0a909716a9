// Package brokerage provides BrokerageClient implementations. The core is
// indifferent to transport; this package currently ships a file-backed
// client for local runs and fixtures.
package brokerage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// fileSnapshot is the on-disk shape: one JSON document per source holding
// the balance plus the full transaction history exported from the brokerage.
type fileSnapshot struct {
	Balance struct {
		TotalEquity decimal.Decimal `json:"total_equity"`
		TotalCash   decimal.Decimal `json:"total_cash"`
		Timestamp   time.Time       `json:"timestamp"`
	} `json:"balance"`
	Transactions []struct {
		ID          string          `json:"id"`
		Date        time.Time       `json:"date"`
		Type        string          `json:"type"`
		Subtype     string          `json:"subtype"`
		Symbol      string          `json:"symbol"`
		Quantity    decimal.Decimal `json:"quantity"`
		Price       decimal.Decimal `json:"price"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	} `json:"transactions"`
}

// FileClient implements domain.BrokerageClient over a JSON snapshot file.
// The file is re-read on every call so a refreshed export is picked up
// without restarting.
type FileClient struct {
	path string
}

// NewFileClient creates a client reading from the given snapshot path
func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

// GetAccountBalance returns the balance recorded in the snapshot
func (c *FileClient) GetAccountBalance(ctx context.Context) (*domain.AccountBalance, error) {
	snapshot, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.AccountBalance{
		TotalEquity: snapshot.Balance.TotalEquity,
		TotalCash:   snapshot.Balance.TotalCash,
		Timestamp:   snapshot.Balance.Timestamp,
	}, nil
}

// GetTransactions returns normalized transactions in [start, end]
func (c *FileClient) GetTransactions(ctx context.Context, start, end time.Time) ([]domain.BrokerageTransaction, error) {
	snapshot, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.BrokerageTransaction
	for _, txn := range snapshot.Transactions {
		if !inRange(txn.Date, start, end) {
			continue
		}
		out = append(out, domain.BrokerageTransaction{
			BrokerageTransactionID: txn.ID,
			Date:                   txn.Date,
			Type:                   txn.Type,
			Symbol:                 txn.Symbol,
			Quantity:               txn.Quantity,
			Price:                  txn.Price,
			Amount:                 txn.Amount,
			Description:            txn.Description,
		})
	}

	return out, nil
}

// GetRawTransactions returns raw brokerage-reported events in [start, end]
func (c *FileClient) GetRawTransactions(ctx context.Context, start, end time.Time) ([]domain.RawBrokerageTransaction, error) {
	snapshot, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.RawBrokerageTransaction
	for _, txn := range snapshot.Transactions {
		if !inRange(txn.Date, start, end) {
			continue
		}
		payload, err := json.Marshal(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode transaction %s: %w", txn.ID, err)
		}
		out = append(out, domain.RawBrokerageTransaction{
			BrokerageTransactionID: txn.ID,
			RawData:                string(payload),
			TransactionDate:        txn.Date,
			TransactionType:        txn.Type,
			TransactionSubtype:     txn.Subtype,
			Symbol:                 txn.Symbol,
			Amount:                 txn.Amount,
			Description:            txn.Description,
		})
	}

	return out, nil
}

func (c *FileClient) read(ctx context.Context) (*fileSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read brokerage snapshot %s: %v", domain.ErrTransient, c.path, err)
	}

	var snapshot fileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode brokerage snapshot %s: %w", c.path, err)
	}

	return &snapshot, nil
}

func inRange(date, start, end time.Time) bool {
	return !date.Before(start) && !date.After(end)
}
