package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

type mockUserRepo struct {
	users         map[string]*models.User
	updateRoleErr error
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error {
	if m.updateRoleErr != nil {
		return m.updateRoleErr
	}
	if u, ok := m.users[id]; ok {
		u.Role = role
		u.UpdatedAt = updatedAt
	}
	return nil
}

func TestAssignRoleRecordsBothSides(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Email: "u1@campus.edu", Role: models.RoleStudent})
	audit := &stubAuditRecorder{}
	svc := NewUserService(repo, audit, validator.New(), zap.NewNop())

	updated, err := svc.AssignRole(context.Background(), adminClaims(), "u1", AssignRoleRequest{Role: "staff"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, updated.Role)
	assert.Equal(t, models.RoleStaff, repo.users["u1"].Role)

	removals := audit.byAction(models.AuditActionRemoveRole)
	require.Len(t, removals, 1)
	assert.Equal(t, map[string]interface{}{"role": models.RoleStudent}, removals[0].OldValues)

	assignments := audit.byAction(models.AuditActionAssignRole)
	require.Len(t, assignments, 1)
	assert.Equal(t, map[string]interface{}{"role": models.RoleStaff}, assignments[0].NewValues)
}

func TestAssignRoleSameRoleIsNoop(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStaff})
	audit := &stubAuditRecorder{}
	svc := NewUserService(repo, audit, validator.New(), zap.NewNop())

	updated, err := svc.AssignRole(context.Background(), adminClaims(), "u1", AssignRoleRequest{Role: "STAFF"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, updated.Role)
	assert.Empty(t, audit.events)
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewUserService(repo, &stubAuditRecorder{}, validator.New(), zap.NewNop())

	_, err := svc.AssignRole(context.Background(), adminClaims(), "u1", AssignRoleRequest{Role: "SUPERUSER"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignRoleRequiresAdmin(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewUserService(repo, &stubAuditRecorder{}, validator.New(), zap.NewNop())

	_, err := svc.AssignRole(context.Background(), staffClaims(), "u1", AssignRoleRequest{Role: "STAFF"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignRoleUserNotFound(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), &stubAuditRecorder{}, validator.New(), zap.NewNop())

	_, err := svc.AssignRole(context.Background(), adminClaims(), "ghost", AssignRoleRequest{Role: "STAFF"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUnknownRoleClaimTreatedAsStudent(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewUserService(repo, &stubAuditRecorder{}, validator.New(), zap.NewNop())

	claims := &models.JWTClaims{UserID: "x", Role: models.UserRole("WIZARD")}
	_, err := svc.AssignRole(context.Background(), claims, "u1", AssignRoleRequest{Role: "STAFF"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserListRequiresAdmin(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Role: models.RoleStudent})
	svc := NewUserService(repo, &stubAuditRecorder{}, validator.New(), zap.NewNop())

	_, _, err := svc.List(context.Background(), studentClaims(), models.UserFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	users, pagination, err := svc.List(context.Background(), adminClaims(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserGetSelfAllowed(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "student-1", Role: models.RoleStudent})
	svc := NewUserService(repo, &stubAuditRecorder{}, validator.New(), zap.NewNop())

	got, err := svc.Get(context.Background(), studentClaims(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", got.ID)

	_, err = svc.Get(context.Background(), studentClaims(), "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
