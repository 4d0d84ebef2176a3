package models

import "time"

// NoticeStatus tracks the moderation state of a notice.
type NoticeStatus string

const (
	NoticeStatusPending  NoticeStatus = "PENDING"
	NoticeStatusApproved NoticeStatus = "APPROVED"
	NoticeStatusRejected NoticeStatus = "REJECTED"
)

// NoticePriority defines ordering for notices.
type NoticePriority string

const (
	NoticePriorityLow    NoticePriority = "LOW"
	NoticePriorityNormal NoticePriority = "NORMAL"
	NoticePriorityHigh   NoticePriority = "HIGH"
	NoticePriorityUrgent NoticePriority = "URGENT"
)

// Notice represents a persisted notice row.
type Notice struct {
	ID         string         `db:"id" json:"id"`
	Title      string         `db:"title" json:"title"`
	Content    string         `db:"content" json:"content"`
	Category   *string        `db:"category" json:"category,omitempty"`
	Priority   NoticePriority `db:"priority" json:"priority"`
	Status     NoticeStatus   `db:"status" json:"status"`
	AuthorID   string         `db:"author_id" json:"author_id"`
	ApprovedBy *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	PublishAt  *time.Time     `db:"publish_at" json:"publish_at,omitempty"`
	ExpiresAt  *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`

	Attachments []Attachment `db:"-" json:"attachments,omitempty"`
}

// VisibleTo reports whether the notice may be shown to an unprivileged reader at the given instant.
func (n *Notice) VisibleTo(now time.Time) bool {
	if n.Status != NoticeStatusApproved {
		return false
	}
	if n.PublishAt != nil && n.PublishAt.After(now) {
		return false
	}
	if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
		return false
	}
	return true
}

// NoticeFilter allows listing notices.
type NoticeFilter struct {
	Status     *NoticeStatus
	Category   *string
	AuthorID   string
	PublicOnly bool
	Page       int
	PageSize   int
}
