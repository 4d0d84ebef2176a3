package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
)

func exportFixture(t *testing.T) *ExportService {
	t.Helper()
	actor := "admin-1"
	repo := &mockAuditRepo{events: []*models.AuditEvent{
		{
			ID:         "e1",
			ActorID:    &actor,
			Action:     models.AuditActionApprove,
			EntityType: models.AuditEntityNotice,
			EntityID:   "n1",
			NewValues:  []byte(`{"status":"APPROVED"}`),
			CreatedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
	}}
	return NewExportService(NewAuditService(repo, zap.NewNop()), zap.NewNop())
}

func TestExportAuditCSV(t *testing.T) {
	svc := exportFixture(t)

	res, err := svc.ExportAudit(context.Background(), adminClaims(), models.AuditFilter{}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.Equal(t, "audit-trail.csv", res.FileName)

	body := string(res.Content)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,actor,action,entity_type,entity_id,old_values,new_values,metadata", lines[0])
	assert.Contains(t, lines[1], "2026-03-01 09:30:00")
	assert.Contains(t, lines[1], "APPROVE")
	assert.Contains(t, lines[1], "admin-1")
}

func TestExportAuditPDF(t *testing.T) {
	svc := exportFixture(t)

	res, err := svc.ExportAudit(context.Background(), adminClaims(), models.AuditFilter{}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, strings.HasPrefix(string(res.Content), "%PDF"))
}

func TestExportAuditRequiresAdmin(t *testing.T) {
	svc := exportFixture(t)

	_, err := svc.ExportAudit(context.Background(), staffClaims(), models.AuditFilter{}, FormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportAuditUnknownFormat(t *testing.T) {
	svc := exportFixture(t)

	_, err := svc.ExportAudit(context.Background(), adminClaims(), models.AuditFilter{}, ExportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
