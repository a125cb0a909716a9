package postgres

import (
	"context"
	"fmt"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// auditRepository implements domain.AuditRepository
type auditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *DB) domain.AuditRepository {
	return &auditRepository{db: db}
}

// Append persists an audit entry
func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (category, message, details)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, entry.Category, entry.Message, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}
