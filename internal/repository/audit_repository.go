package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bentech3/online-board-api/internal/models"
)

// maxAuditRows caps audit queries; the trail grows without bound.
const maxAuditRows = 1000

// AuditRepository appends and reads the immutable audit trail. There is no
// update or delete path by design.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit event.
func (r *AuditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_events (id, actor_id, action, entity_type, entity_id, old_values, new_values, metadata, created_at)
VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :old_values, :new_values, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create audit event: %w", err)
	}
	return nil
}

// List returns audit events newest first, capped at maxAuditRows.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filter.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)+1))
		args = append(args, filter.EntityType)
	}
	if filter.ActorID != "" {
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)+1))
		args = append(args, filter.ActorID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxAuditRows {
		limit = maxAuditRows
	}

	query := fmt.Sprintf(`SELECT id, actor_id, action, entity_type, entity_id, old_values, new_values, metadata, created_at
FROM audit_events WHERE %s ORDER BY created_at DESC LIMIT %d`, strings.Join(where, " AND "), limit)
	var events []models.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
