package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	"github.com/bentech3/online-board-api/internal/moderation"
	"github.com/bentech3/online-board-api/internal/realtime"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

type recordedAudit struct {
	ActorID    *string
	Action     string
	EntityType string
	EntityID   string
	OldValues  interface{}
	NewValues  interface{}
	Metadata   map[string]interface{}
}

type stubAuditRecorder struct {
	events []recordedAudit
}

func (s *stubAuditRecorder) Record(ctx context.Context, actorID *string, action, entityType, entityID string, oldValues, newValues interface{}, metadata map[string]interface{}) {
	s.events = append(s.events, recordedAudit{
		ActorID: actorID, Action: action, EntityType: entityType, EntityID: entityID,
		OldValues: oldValues, NewValues: newValues, Metadata: metadata,
	})
}

func (s *stubAuditRecorder) byAction(action string) []recordedAudit {
	var matched []recordedAudit
	for _, event := range s.events {
		if event.Action == action {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubBus struct {
	events []realtime.Event
}

func (s *stubBus) Publish(ctx context.Context, event realtime.Event) {
	s.events = append(s.events, event)
}

type mockNoticeRepo struct {
	notices       map[string]*models.Notice
	createErr     error
	transitionErr error
	listErr       error
	created       []*models.Notice
	attachments   map[string][]models.Attachment
}

func newMockNoticeRepo() *mockNoticeRepo {
	return &mockNoticeRepo{notices: make(map[string]*models.Notice), attachments: make(map[string][]models.Attachment)}
}

func (m *mockNoticeRepo) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Notice
	now := time.Now().UTC()
	for _, n := range m.notices {
		if filter.PublicOnly && !n.VisibleTo(now) {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		if filter.AuthorID != "" && n.AuthorID != filter.AuthorID {
			continue
		}
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (m *mockNoticeRepo) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	n, ok := m.notices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *n
	return &clone, nil
}

func (m *mockNoticeRepo) Create(ctx context.Context, notice *models.Notice, attachments []models.Attachment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	notice.CreatedAt = time.Now().UTC()
	notice.UpdatedAt = notice.CreatedAt
	stored := *notice
	m.notices[notice.ID] = &stored
	m.attachments[notice.ID] = attachments
	m.created = append(m.created, notice)
	return nil
}

func (m *mockNoticeRepo) TransitionStatus(ctx context.Context, id string, from, to models.NoticeStatus, approverID *string, at time.Time) (bool, error) {
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	n, ok := m.notices[id]
	if !ok || n.Status != from {
		return false, nil
	}
	n.Status = to
	n.UpdatedAt = at
	if to == models.NoticeStatusApproved {
		n.ApprovedBy = approverID
		n.ApprovedAt = &at
	}
	return true, nil
}

func (m *mockNoticeRepo) Delete(ctx context.Context, id string) error {
	delete(m.notices, id)
	delete(m.attachments, id)
	return nil
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff, Email: "staff@campus.edu"}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, Email: "admin@campus.edu"}
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, Email: "student@campus.edu"}
}

func newNoticeService(repo *mockNoticeRepo, audit *stubAuditRecorder, bus *stubBus) *NoticeService {
	return NewNoticeService(repo, moderation.NewScreener(), audit, bus, nil, 0, validator.New(), zap.NewNop())
}

func TestNoticeCreateStartsPending(t *testing.T) {
	repo := newMockNoticeRepo()
	audit := &stubAuditRecorder{}
	bus := &stubBus{}
	svc := newNoticeService(repo, audit, bus)

	res, err := svc.Create(context.Background(), staffClaims(), CreateNoticeRequest{
		Title:    "Library hours",
		Content:  "The library will stay open until midnight during exam week.",
		Priority: "normal",
		Attachments: []AttachmentInput{
			{FileName: "hours.pdf", URL: "/uploads/hours.pdf", MIMEType: "application/pdf", SizeBytes: 1024},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, models.NoticeStatusPending, res.Notice.Status)
	assert.Equal(t, "staff-1", res.Notice.AuthorID)
	assert.True(t, res.Moderation.Approved)
	assert.Equal(t, moderation.SeverityLow, res.Moderation.Severity)

	stored := repo.attachments[res.Notice.ID]
	require.Len(t, stored, 1)
	assert.Equal(t, models.AttachmentKindDocument, stored[0].Kind)

	creates := audit.byAction(models.AuditActionCreate)
	require.Len(t, creates, 1)
	assert.Equal(t, models.AuditEntityNotice, creates[0].EntityType)

	require.Len(t, bus.events, 1)
	assert.Equal(t, "notices", bus.events[0].Table)
}

func TestNoticeCreateFlaggedContentStillAccepted(t *testing.T) {
	repo := newMockNoticeRepo()
	audit := &stubAuditRecorder{}
	svc := newNoticeService(repo, audit, &stubBus{})

	res, err := svc.Create(context.Background(), staffClaims(), CreateNoticeRequest{
		Title:    "Cheap textbooks",
		Content:  "AMAZING deals, visit https://spam.example for casino level prices today.",
		Priority: "high",
	})
	require.NoError(t, err)

	assert.Equal(t, models.NoticeStatusPending, res.Notice.Status)
	assert.False(t, res.Moderation.Approved)
	assert.NotEmpty(t, res.Moderation.Issues)

	creates := audit.byAction(models.AuditActionCreate)
	require.Len(t, creates, 1)
	assert.Equal(t, false, creates[0].Metadata["moderation_approved"])
}

func TestNoticeCreateStudentForbidden(t *testing.T) {
	svc := newNoticeService(newMockNoticeRepo(), &stubAuditRecorder{}, &stubBus{})

	_, err := svc.Create(context.Background(), studentClaims(), CreateNoticeRequest{
		Title:    "Party",
		Content:  "Everyone is invited to the dorm party on Friday evening.",
		Priority: "low",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNoticeCreateContentTooShort(t *testing.T) {
	svc := newNoticeService(newMockNoticeRepo(), &stubAuditRecorder{}, &stubBus{})

	_, err := svc.Create(context.Background(), staffClaims(), CreateNoticeRequest{
		Title:    "Hi",
		Content:  "short",
		Priority: "low",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNoticeApproveLifecycle(t *testing.T) {
	repo := newMockNoticeRepo()
	audit := &stubAuditRecorder{}
	bus := &stubBus{}
	svc := newNoticeService(repo, audit, bus)

	created, err := svc.Create(context.Background(), staffClaims(), CreateNoticeRequest{
		Title:    "Exam schedule",
		Content:  "Final exams begin on Monday next week, check your timetable.",
		Priority: "urgent",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), adminClaims(), created.Notice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.True(t, approved.VisibleTo(time.Now().UTC()))

	approvals := audit.byAction(models.AuditActionApprove)
	require.Len(t, approvals, 1)
	assert.NotNil(t, approvals[0].OldValues)
	assert.NotNil(t, approvals[0].NewValues)
}

func TestNoticeApproveNonPendingConflict(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	repo.notices["n1"] = &models.Notice{ID: "n1", Status: models.NoticeStatusRejected, AuthorID: "staff-1"}

	_, err := svc.Approve(context.Background(), adminClaims(), "n1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErr.Code)
	assert.Equal(t, 412, appErr.Status)
}

func TestNoticeApproveLosesRace(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	// pending on read, but another moderator wins the conditional update
	repo.notices["n1"] = &models.Notice{ID: "n1", Status: models.NoticeStatusPending, AuthorID: "staff-1"}
	base := repo.notices["n1"]
	raced := &raceNoticeRepo{mockNoticeRepo: repo, flipOnRead: base}

	svc.repo = raced
	_, err := svc.Approve(context.Background(), adminClaims(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStateConflict.Code, appErrors.FromError(err).Code)
}

type raceNoticeRepo struct {
	*mockNoticeRepo
	flipOnRead *models.Notice
}

func (r *raceNoticeRepo) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	n, err := r.mockNoticeRepo.GetByID(ctx, id)
	if err == nil && r.flipOnRead != nil && r.flipOnRead.ID == id {
		r.flipOnRead.Status = models.NoticeStatusRejected
	}
	return n, err
}

func TestNoticeRejectRequiresAdmin(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	repo.notices["n1"] = &models.Notice{ID: "n1", Status: models.NoticeStatusPending, AuthorID: "staff-1"}

	_, err := svc.Reject(context.Background(), staffClaims(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestNoticeApproveNotFound(t *testing.T) {
	svc := newNoticeService(newMockNoticeRepo(), &stubAuditRecorder{}, &stubBus{})

	_, err := svc.Approve(context.Background(), adminClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNoticeDeleteRecordsSnapshot(t *testing.T) {
	repo := newMockNoticeRepo()
	audit := &stubAuditRecorder{}
	svc := newNoticeService(repo, audit, &stubBus{})
	repo.notices["n1"] = &models.Notice{ID: "n1", Title: "Old", Status: models.NoticeStatusApproved, AuthorID: "staff-1"}

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "n1"))
	assert.Empty(t, repo.notices)

	deletes := audit.byAction(models.AuditActionDelete)
	require.Len(t, deletes, 1)
	assert.NotNil(t, deletes[0].OldValues)
	assert.Nil(t, deletes[0].NewValues)
}

func TestNoticeListAnonymousSeesOnlyPublic(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	repo.notices["a"] = &models.Notice{ID: "a", Status: models.NoticeStatusApproved, AuthorID: "staff-1"}
	repo.notices["b"] = &models.Notice{ID: "b", Status: models.NoticeStatusPending, AuthorID: "staff-1"}
	future := time.Now().UTC().Add(time.Hour)
	repo.notices["c"] = &models.Notice{ID: "c", Status: models.NoticeStatusApproved, AuthorID: "staff-1", PublishAt: &future}

	notices, pagination, err := svc.List(context.Background(), nil, NoticeListRequest{Status: "PENDING"})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "a", notices[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestNoticeListStaffSeesOwnPending(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	repo.notices["mine"] = &models.Notice{ID: "mine", Status: models.NoticeStatusPending, AuthorID: "staff-1"}
	repo.notices["theirs"] = &models.Notice{ID: "theirs", Status: models.NoticeStatusPending, AuthorID: "staff-2"}

	notices, _, err := svc.List(context.Background(), staffClaims(), NoticeListRequest{Mine: true})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "mine", notices[0].ID)
}

func TestNoticeGetHidesPendingFromReaders(t *testing.T) {
	repo := newMockNoticeRepo()
	svc := newNoticeService(repo, &stubAuditRecorder{}, &stubBus{})
	repo.notices["n1"] = &models.Notice{ID: "n1", Status: models.NoticeStatusPending, AuthorID: "staff-1"}

	_, err := svc.Get(context.Background(), studentClaims(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	got, err := svc.Get(context.Background(), staffClaims(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.ID)

	got, err = svc.Get(context.Background(), adminClaims(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.ID)
}

func TestNoticeSubmissionThroughApproval(t *testing.T) {
	repo := newMockNoticeRepo()
	audit := &stubAuditRecorder{}
	svc := newNoticeService(repo, audit, &stubBus{})

	created, err := svc.Create(context.Background(), staffClaims(), CreateNoticeRequest{
		Title:    "Announcement",
		Content:  "VISIT our booth at http://fair.example for 08012345678 deals.",
		Priority: "normal",
	})
	require.NoError(t, err)
	assert.False(t, created.Moderation.Approved)
	assert.Contains(t, created.Moderation.Issues, "Contains URLs")
	assert.Contains(t, created.Moderation.Issues, "Contains long numbers")

	// flagged content still goes through the normal review queue
	_, err = svc.Get(context.Background(), nil, created.Notice.ID)
	require.Error(t, err)

	approved, err := svc.Approve(context.Background(), adminClaims(), created.Notice.ID)
	require.NoError(t, err)
	assert.True(t, approved.VisibleTo(time.Now().UTC()))

	got, err := svc.Get(context.Background(), nil, created.Notice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeStatusApproved, got.Status)
	require.Len(t, audit.byAction(models.AuditActionApprove), 1)
}
