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
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error
}

// UserService manages user directory and role assignments.
type UserService struct {
	repo      userRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// AssignRoleRequest carries the target role for a user.
type AssignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// AssignRole replaces the user's single role. Admin only. Replacing a role
// records the removal of the old role and the assignment of the new one so
// the audit trail shows both sides of the change.
func (s *UserService) AssignRole(ctx context.Context, claims *models.JWTClaims, userID string, req AssignRoleRequest) (*models.User, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required to assign roles")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	role := models.UserRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	oldRole := user.Role
	if oldRole == role {
		return user, nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateRole(ctx, userID, role, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	if s.audit != nil {
		s.audit.Record(ctx, &claims.UserID, models.AuditActionRemoveRole, models.AuditEntityUserRole, userID,
			map[string]interface{}{"role": oldRole}, nil, nil)
		s.audit.Record(ctx, &claims.UserID, models.AuditActionAssignRole, models.AuditEntityUserRole, userID,
			nil, map[string]interface{}{"role": role}, nil)
	}

	user.Role = role
	user.UpdatedAt = now
	return user, nil
}

// List returns users matching the filter. Admin only.
func (s *UserService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required to list users")
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single user. Admins may load anyone; others only themselves.
func (s *UserService) Get(ctx context.Context, claims *models.JWTClaims, userID string) (*models.User, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin && claims.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view other users")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
