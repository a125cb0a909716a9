package brokerage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `{
	"balance": {
		"total_equity": "95000.50",
		"total_cash": "4999.50",
		"timestamp": "2026-03-02T16:00:00Z"
	},
	"transactions": [
		{
			"id": "txn-001",
			"date": "2026-03-01T00:00:00Z",
			"type": "trade",
			"subtype": "buy",
			"symbol": "VTI",
			"quantity": "10",
			"price": "250.00",
			"amount": "-2500.00",
			"description": "Bought 10 VTI"
		},
		{
			"id": "txn-002",
			"date": "2026-02-15T00:00:00Z",
			"type": "cash",
			"subtype": "deposit",
			"amount": "5000.00",
			"description": "ACH deposit"
		}
	]
}`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshotJSON), 0o644))
	return path
}

func TestFileClient_GetAccountBalance(t *testing.T) {
	client := NewFileClient(writeSnapshot(t))

	balance, err := client.GetAccountBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "95000.5", balance.TotalEquity.String())
	assert.Equal(t, "4999.5", balance.TotalCash.String())
}

func TestFileClient_GetRawTransactionsFiltersByRange(t *testing.T) {
	client := NewFileClient(writeSnapshot(t))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	raws, err := client.GetRawTransactions(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "txn-001", raws[0].BrokerageTransactionID)
	assert.Equal(t, "trade", raws[0].TransactionType)
	assert.Equal(t, "buy", raws[0].TransactionSubtype)
	assert.NotEmpty(t, raws[0].RawData)
}

func TestFileClient_MissingFileIsTransient(t *testing.T) {
	client := NewFileClient("/nonexistent/snapshot.json")

	_, err := client.GetAccountBalance(context.Background())
	assert.Error(t, err)
}
