package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type auditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) audit.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, entry audit.Entry) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO audit_trails (company_id, actor_id, action, entity_type, entity_id, reason, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	details := entry.Details
	if len(details) == 0 {
		details = []byte("{}")
	}

	if _, err := q.Exec(ctx, query,
		entry.CompanyID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, entry.Reason, details,
	); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}
