package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bentech3/online-board-api/internal/models"
)

// ViewRepository persists deduplicated notice view events.
type ViewRepository struct {
	db *sqlx.DB
}

// NewViewRepository creates the repository.
func NewViewRepository(db *sqlx.DB) *ViewRepository {
	return &ViewRepository{db: db}
}

// Create inserts a view event. The unique (notice_id, session_id) constraint
// makes retries of an already recorded view a no-op.
func (r *ViewRepository) Create(ctx context.Context, view *models.ViewEvent) error {
	if view.ID == "" {
		view.ID = uuid.NewString()
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notice_views (id, notice_id, viewer_id, session_id, viewed_at)
VALUES (:id, :notice_id, :viewer_id, :session_id, :viewed_at)
ON CONFLICT (notice_id, session_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, view); err != nil {
		return fmt.Errorf("create view event: %w", err)
	}
	return nil
}

// CountForNotice returns the number of distinct session views for a notice.
func (r *ViewRepository) CountForNotice(ctx context.Context, noticeID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notice_views WHERE notice_id = $1", noticeID); err != nil {
		return 0, fmt.Errorf("count notice views: %w", err)
	}
	return total, nil
}
