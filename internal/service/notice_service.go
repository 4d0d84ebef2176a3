package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	"github.com/bentech3/online-board-api/internal/moderation"
	"github.com/bentech3/online-board-api/internal/realtime"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

type noticeRepository interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	GetByID(ctx context.Context, id string) (*models.Notice, error)
	Create(ctx context.Context, notice *models.Notice, attachments []models.Attachment) error
	TransitionStatus(ctx context.Context, id string, from, to models.NoticeStatus, approverID *string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type auditRecorder interface {
	Record(ctx context.Context, actorID *string, action, entityType, entityID string, oldValues, newValues interface{}, metadata map[string]interface{})
}

type changePublisher interface {
	Publish(ctx context.Context, event realtime.Event)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string)
}

// NoticeService owns the notice lifecycle: pending on creation, approved or
// rejected by an admin, both terminal.
type NoticeService struct {
	repo      noticeRepository
	screener  *moderation.Screener
	audit     auditRecorder
	bus       changePublisher
	cache     listingCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNoticeService constructs the service. Cache and bus may be nil.
func NewNoticeService(repo noticeRepository, screener *moderation.Screener, audit auditRecorder, bus changePublisher, cache listingCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *NoticeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if screener == nil {
		screener = moderation.NewScreener()
	}
	svc := &NoticeService{
		repo:      repo,
		screener:  screener,
		audit:     audit,
		bus:       bus,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
	svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.NoticePriority(strings.ToUpper(fl.Field().String())) {
		case models.NoticePriorityLow, models.NoticePriorityNormal, models.NoticePriorityHigh, models.NoticePriorityUrgent:
			return true
		default:
			return false
		}
	})
	return svc
}

// AttachmentInput references an already uploaded file to link to a notice.
type AttachmentInput struct {
	FileName  string `json:"file_name" validate:"required"`
	URL       string `json:"url" validate:"required"`
	MIMEType  string `json:"mime_type" validate:"required"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
}

// CreateNoticeRequest describes the create payload.
type CreateNoticeRequest struct {
	Title       string            `json:"title" validate:"required"`
	Content     string            `json:"content" validate:"required"`
	Category    *string           `json:"category"`
	Priority    string            `json:"priority" validate:"required,priority"`
	PublishAt   *time.Time        `json:"publish_at"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	Attachments []AttachmentInput `json:"attachments" validate:"dive"`
}

// CreateNoticeResult pairs the stored notice with the advisory moderation
// verdict surfaced to the author.
type CreateNoticeResult struct {
	Notice     *models.Notice     `json:"notice"`
	Moderation moderation.Verdict `json:"moderation"`
}

// NoticeListRequest describes filters for listing notices.
type NoticeListRequest struct {
	Status   string `json:"status"`
	Category string `json:"category"`
	Mine     bool   `json:"mine"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Create sanitizes and screens the draft, then persists the notice and its
// attachments as pending. The moderation verdict is advisory: it is returned
// to the author but never blocks submission.
func (s *NoticeService) Create(ctx context.Context, claims *models.JWTClaims, req CreateNoticeRequest) (*CreateNoticeResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !effectiveRole(claims).CanPublish() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff or admin role required to publish notices")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notice payload")
	}

	title := strings.TrimSpace(req.Title)
	content := moderation.Sanitize(req.Content)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be empty")
	}
	if len(content) < moderation.MinContentLength || len(content) > moderation.MaxContentLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content must be between %d and %d characters", moderation.MinContentLength, moderation.MaxContentLength))
	}
	if req.ExpiresAt != nil && req.PublishAt != nil && req.ExpiresAt.Before(*req.PublishAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be after publish_at")
	}

	verdict := s.screener.Screen(title, content)

	notice := &models.Notice{
		Title:     title,
		Content:   content,
		Category:  req.Category,
		Priority:  models.NoticePriority(strings.ToUpper(req.Priority)),
		Status:    models.NoticeStatusPending,
		AuthorID:  claims.UserID,
		PublishAt: req.PublishAt,
		ExpiresAt: req.ExpiresAt,
	}

	attachments := make([]models.Attachment, len(req.Attachments))
	for i, in := range req.Attachments {
		attachments[i] = models.Attachment{
			FileName:  in.FileName,
			URL:       in.URL,
			Kind:      models.KindFromMIME(in.MIMEType),
			MIMEType:  in.MIMEType,
			SizeBytes: in.SizeBytes,
		}
	}

	if err := s.repo.Create(ctx, notice, attachments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notice")
	}

	s.audit.Record(ctx, &claims.UserID, models.AuditActionCreate, models.AuditEntityNotice, notice.ID, nil, notice, map[string]interface{}{
		"moderation_approved": verdict.Approved,
		"moderation_severity": verdict.Severity,
		"moderation_issues":   verdict.Issues,
	})
	s.notifyChange(ctx, models.AuditActionCreate, notice.ID)

	return &CreateNoticeResult{Notice: notice, Moderation: verdict}, nil
}

// Approve moves a pending notice to approved. Admin only.
func (s *NoticeService) Approve(ctx context.Context, claims *models.JWTClaims, id string) (*models.Notice, error) {
	return s.transition(ctx, claims, id, models.NoticeStatusApproved, models.AuditActionApprove)
}

// Reject moves a pending notice to rejected. Admin only.
func (s *NoticeService) Reject(ctx context.Context, claims *models.JWTClaims, id string) (*models.Notice, error) {
	return s.transition(ctx, claims, id, models.NoticeStatusRejected, models.AuditActionReject)
}

func (s *NoticeService) transition(ctx context.Context, claims *models.JWTClaims, id string, to models.NoticeStatus, action string) (*models.Notice, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required to moderate notices")
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	if before.Status != models.NoticeStatusPending {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, fmt.Sprintf("notice is already %s", strings.ToLower(string(before.Status))))
	}

	now := time.Now().UTC()
	var approverID *string
	if to == models.NoticeStatusApproved {
		approverID = &claims.UserID
	}
	ok, err := s.repo.TransitionStatus(ctx, id, models.NoticeStatusPending, to, approverID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notice status")
	}
	if !ok {
		// lost a race with another moderator
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "notice is no longer pending")
	}

	after := *before
	after.Status = to
	after.UpdatedAt = now
	if to == models.NoticeStatusApproved {
		after.ApprovedBy = approverID
		after.ApprovedAt = &now
	}

	s.audit.Record(ctx, &claims.UserID, action, models.AuditEntityNotice, id, before, &after, nil)
	s.notifyChange(ctx, action, id)

	return &after, nil
}

// Delete removes a notice and, via the cascade, its attachments. Admin only
// and irreversible.
func (s *NoticeService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required to delete notices")
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notice")
	}

	s.audit.Record(ctx, &claims.UserID, models.AuditActionDelete, models.AuditEntityNotice, id, before, nil, nil)
	s.notifyChange(ctx, models.AuditActionDelete, id)

	return nil
}

// List returns notices visible to the caller. Anonymous readers and students
// only ever see approved, published, unexpired notices; staff may addition-
// ally list their own submissions in any status; admins see everything.
func (s *NoticeService) List(ctx context.Context, claims *models.JWTClaims, req NoticeListRequest) ([]models.Notice, *models.Pagination, error) {
	filter := models.NoticeFilter{Page: req.Page, PageSize: req.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if req.Category != "" {
		filter.Category = &req.Category
	}

	role := models.RoleStudent
	if claims != nil {
		role = effectiveRole(claims)
	}

	switch {
	case role == models.RoleAdmin:
		if req.Status != "" {
			status := models.NoticeStatus(strings.ToUpper(req.Status))
			filter.Status = &status
		}
		if req.Mine {
			filter.AuthorID = claims.UserID
		}
	case role == models.RoleStaff && (req.Mine || req.Status != ""):
		// staff can inspect their own submissions in any status
		filter.AuthorID = claims.UserID
		if req.Status != "" {
			status := models.NoticeStatus(strings.ToUpper(req.Status))
			filter.Status = &status
		}
	default:
		filter.PublicOnly = true
	}

	if filter.PublicOnly && s.cache != nil {
		key := fmt.Sprintf("notices:public:%s:p%d:s%d", req.Category, filter.Page, filter.PageSize)
		var cached cachedNoticeList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Notices, cached.Pagination, nil
		}
		notices, pagination, err := s.listFromRepo(ctx, filter)
		if err != nil {
			return nil, nil, err
		}
		if err := s.cache.Set(ctx, key, cachedNoticeList{Notices: notices, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache notice listing", zap.Error(err))
		}
		return notices, pagination, nil
	}

	return s.listFromRepo(ctx, filter)
}

// Get returns a single notice, hiding unpublished notices from readers who
// are neither the author nor an admin.
func (s *NoticeService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Notice, error) {
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}

	if notice.VisibleTo(time.Now().UTC()) {
		return notice, nil
	}
	if claims != nil && (effectiveRole(claims) == models.RoleAdmin || claims.UserID == notice.AuthorID) {
		return notice, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
}

type cachedNoticeList struct {
	Notices    []models.Notice    `json:"notices"`
	Pagination *models.Pagination `json:"pagination"`
}

func (s *NoticeService) listFromRepo(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, *models.Pagination, error) {
	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return notices, pagination, nil
}

func (s *NoticeService) notifyChange(ctx context.Context, action, noticeID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "notices:public:*")
	}
	if s.bus != nil {
		s.bus.Publish(ctx, realtime.Event{Table: "notices", Action: action, EntityID: noticeID})
	}
}

// effectiveRole resolves the caller's role, falling back to the least
// privileged role when the claim is missing or unknown.
func effectiveRole(claims *models.JWTClaims) models.UserRole {
	if claims == nil || !claims.Role.Valid() {
		return models.RoleStudent
	}
	return claims.Role
}
