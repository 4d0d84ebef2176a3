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

const noticeColumns = "id, title, content, category, priority, status, author_id, approved_by, approved_at, publish_at, expires_at, created_at, updated_at"

// NoticeRepository provides persistence for notices and their attachments.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository creates the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// List returns notices matching the filter with a total count.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	base := "FROM notices"
	where := []string{"1=1"}
	var args []interface{}

	if filter.PublicOnly {
		where = append(where, "status = 'APPROVED'")
		where = append(where, "(publish_at IS NULL OR publish_at <= NOW())")
		where = append(where, "(expires_at IS NULL OR expires_at > NOW())")
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.AuthorID != "" {
		where = append(where, fmt.Sprintf("author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
%s WHERE %s
ORDER BY CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'NORMAL' THEN 2 ELSE 3 END, created_at DESC
LIMIT %d OFFSET %d`, noticeColumns, base, whereClause, size, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return notices, total, nil
}

// GetByID returns a notice with its attachments.
func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	query := fmt.Sprintf("SELECT %s FROM notices WHERE id = $1", noticeColumns)
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, id); err != nil {
		return nil, err
	}
	attachments, err := r.ListAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	notice.Attachments = attachments
	return &notice, nil
}

// Create inserts a notice together with its attachments in one transaction,
// so a failed attachment insert never leaves an orphaned notice row.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice, attachments []models.Attachment) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = now
	}
	notice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create notice: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertNotice = `INSERT INTO notices (id, title, content, category, priority, status, author_id, publish_at, expires_at, created_at, updated_at)
VALUES (:id, :title, :content, :category, :priority, :status, :author_id, :publish_at, :expires_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertNotice, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}

	const insertAttachment = `INSERT INTO attachments (id, notice_id, file_name, url, kind, mime_type, size_bytes, created_at)
VALUES (:id, :notice_id, :file_name, :url, :kind, :mime_type, :size_bytes, :created_at)`
	for i := range attachments {
		if attachments[i].ID == "" {
			attachments[i].ID = uuid.NewString()
		}
		attachments[i].NoticeID = notice.ID
		if attachments[i].CreatedAt.IsZero() {
			attachments[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertAttachment, attachments[i]); err != nil {
			return fmt.Errorf("create attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create notice: %w", err)
	}
	notice.Attachments = attachments
	return nil
}

// TransitionStatus moves a notice out of the expected status. It returns
// false when the row was not in that status, which callers map to a state
// conflict. The conditional update makes concurrent transitions safe.
func (r *NoticeRepository) TransitionStatus(ctx context.Context, id string, from, to models.NoticeStatus, approverID *string, at time.Time) (bool, error) {
	const query = `UPDATE notices SET status = $3, approved_by = $4, approved_at = $5, updated_at = $6 WHERE id = $1 AND status = $2`
	var approvedAt *time.Time
	if to == models.NoticeStatusApproved {
		approvedAt = &at
	}
	result, err := r.db.ExecContext(ctx, query, id, from, to, approverID, approvedAt, at)
	if err != nil {
		return false, fmt.Errorf("transition notice status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition notice status: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a notice; attachments cascade at the database level.
func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM notices WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	return nil
}

// ListAttachments returns the attachments for a notice.
func (r *NoticeRepository) ListAttachments(ctx context.Context, noticeID string) ([]models.Attachment, error) {
	const query = `SELECT id, notice_id, file_name, url, kind, mime_type, size_bytes, created_at FROM attachments WHERE notice_id = $1 ORDER BY created_at`
	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, query, noticeID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}
