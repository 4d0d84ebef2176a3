package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

type auditEventRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error)
}

// AuditService appends immutable audit events and serves the admin trail.
type AuditService struct {
	repo   auditEventRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditEventRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one audit event. It never returns an error: a failure to
// write the trail is logged for monitoring but must not abort the operation
// that triggered it.
func (s *AuditService) Record(ctx context.Context, actorID *string, action, entityType, entityID string, oldValues, newValues interface{}, metadata map[string]interface{}) {
	event := &models.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  marshalSnapshot(s.logger, "old_values", oldValues),
		NewValues:  marshalSnapshot(s.logger, "new_values", newValues),
	}
	if len(metadata) > 0 {
		event.Metadata = marshalSnapshot(s.logger, "metadata", metadata)
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("failed to record audit event",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// List returns audit events for the admin view, newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit events")
	}
	return events, nil
}

func marshalSnapshot(logger *zap.Logger, field string, value interface{}) []byte {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("failed to marshal audit snapshot", zap.String("field", field), zap.Error(err))
		return nil
	}
	return raw
}
