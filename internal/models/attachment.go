package models

import (
	"strings"
	"time"
)

// AttachmentKind is the coarse file classification derived from the MIME prefix.
type AttachmentKind string

const (
	AttachmentKindImage    AttachmentKind = "IMAGE"
	AttachmentKindVideo    AttachmentKind = "VIDEO"
	AttachmentKindDocument AttachmentKind = "DOCUMENT"
)

// KindFromMIME maps a MIME type to its coarse kind. Anything that is not an
// image or a video counts as a document.
func KindFromMIME(mimeType string) AttachmentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return AttachmentKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return AttachmentKindVideo
	default:
		return AttachmentKindDocument
	}
}

// Attachment is a file linked to exactly one notice. Attachments are created
// together with their notice and never mutated afterwards.
type Attachment struct {
	ID        string         `db:"id" json:"id"`
	NoticeID  string         `db:"notice_id" json:"notice_id"`
	FileName  string         `db:"file_name" json:"file_name"`
	URL       string         `db:"url" json:"url"`
	Kind      AttachmentKind `db:"kind" json:"kind"`
	MIMEType  string         `db:"mime_type" json:"mime_type"`
	SizeBytes int64          `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
