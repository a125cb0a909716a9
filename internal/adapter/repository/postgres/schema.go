package postgres

import (
	"context"
	"fmt"
)

// schemaStatements are idempotent: every run converges to the same schema.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS investors (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		current_shares DECIMAL(20, 4) NOT NULL DEFAULT 0,
		net_investment DECIMAL(20, 2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS nav_records (
		id UUID PRIMARY KEY,
		date DATE NOT NULL UNIQUE,
		nav_per_share DECIMAL(20, 8) NOT NULL,
		total_portfolio_value DECIMAL(20, 2) NOT NULL,
		total_shares DECIMAL(20, 4) NOT NULL,
		daily_change_abs DECIMAL(20, 8) NOT NULL DEFAULT 0,
		daily_change_pct DECIMAL(20, 8) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		investor_id UUID NOT NULL REFERENCES investors(id),
		date DATE NOT NULL,
		type TEXT NOT NULL,
		amount DECIMAL(20, 2) NOT NULL,
		nav_per_share DECIMAL(20, 8) NOT NULL,
		shares_delta DECIMAL(20, 4) NOT NULL,
		basis_delta DECIMAL(20, 2) NOT NULL DEFAULT 0,
		reference_id UUID,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_investor ON transactions(investor_id, date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference_id) WHERE reference_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS tax_events (
		id UUID PRIMARY KEY,
		transaction_id UUID NOT NULL REFERENCES transactions(id),
		investor_id UUID NOT NULL REFERENCES investors(id),
		date DATE NOT NULL,
		realized_gain DECIMAL(20, 2) NOT NULL,
		tax_rate DECIMAL(8, 4) NOT NULL,
		tax_due DECIMAL(20, 2) NOT NULL,
		net_proceeds DECIMAL(20, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tax_events_investor ON tax_events(investor_id, date)`,

	`CREATE TABLE IF NOT EXISTS fund_flow_requests (
		id UUID PRIMARY KEY,
		investor_id UUID NOT NULL REFERENCES investors(id),
		flow_type TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_amount DECIMAL(20, 2) NOT NULL,
		actual_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
		settlement_date DATE NOT NULL,
		shares_transacted DECIMAL(20, 4) NOT NULL DEFAULT 0,
		nav_per_share DECIMAL(20, 8) NOT NULL DEFAULT 0,
		transaction_id UUID,
		realized_gain DECIMAL(20, 2) NOT NULL DEFAULT 0,
		tax_withheld DECIMAL(20, 2) NOT NULL DEFAULT 0,
		net_proceeds DECIMAL(20, 2) NOT NULL DEFAULT 0,
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fund_flow_requests_status ON fund_flow_requests(status)`,

	`CREATE TABLE IF NOT EXISTS raw_transactions (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		brokerage_transaction_id TEXT NOT NULL,
		raw_data TEXT NOT NULL DEFAULT '',
		transaction_date DATE NOT NULL,
		transaction_type TEXT NOT NULL DEFAULT '',
		transaction_subtype TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL DEFAULT '',
		amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		etl_status TEXT NOT NULL DEFAULT 'PENDING',
		error_message TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		canonical_trade_id UUID,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (source, brokerage_transaction_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_transactions_status ON raw_transactions(etl_status)`,

	`CREATE TABLE IF NOT EXISTS canonical_trades (
		id UUID PRIMARY KEY,
		date DATE NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL DEFAULT '',
		quantity DECIMAL(20, 8) NOT NULL DEFAULT 0,
		price DECIMAL(20, 8) NOT NULL DEFAULT 0,
		amount DECIMAL(20, 2) NOT NULL,
		commission DECIMAL(20, 2) NOT NULL DEFAULT 0,
		fees DECIMAL(20, 2) NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		subcategory TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		brokerage_transaction_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (source, brokerage_transaction_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_canonical_trades_logical ON canonical_trades(source, date, amount)`,

	`CREATE TABLE IF NOT EXISTS fund_settings (
		singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
		tax_rate DECIMAL(8, 4) NOT NULL,
		base_currency TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates all tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
