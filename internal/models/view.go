package models

import "time"

// ViewEvent records that a session saw a notice. Deduplicated per
// (notice, session) pair, so counts measure distinct session views rather
// than raw page loads.
type ViewEvent struct {
	ID        string    `db:"id" json:"id"`
	NoticeID  string    `db:"notice_id" json:"notice_id"`
	ViewerID  *string   `db:"viewer_id" json:"viewer_id,omitempty"`
	SessionID string    `db:"session_id" json:"session_id"`
	ViewedAt  time.Time `db:"viewed_at" json:"viewed_at"`
}
