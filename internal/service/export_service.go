package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
	"github.com/bentech3/online-board-api/pkg/export"
)

// ExportFormat names a supported audit export format.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

var auditExportHeaders = []string{"timestamp", "actor", "action", "entity_type", "entity_id", "old_values", "new_values", "metadata"}

// ExportService renders the audit trail as downloadable documents.
type ExportService struct {
	audit  *AuditService
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(audit *AuditService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		audit:  audit,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// ExportResult carries the rendered document and its transport metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	FileName    string
}

// ExportAudit renders the filtered audit trail in the requested format.
func (s *ExportService) ExportAudit(ctx context.Context, claims *models.JWTClaims, filter models.AuditFilter, format ExportFormat) (*ExportResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if effectiveRole(claims) != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required to export the audit trail")
	}

	events, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: auditExportHeaders, Rows: make([]map[string]string, 0, len(events))}
	for _, event := range events {
		actor := ""
		if event.ActorID != nil {
			actor = *event.ActorID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"timestamp":   event.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			"actor":       actor,
			"action":      event.Action,
			"entity_type": event.EntityType,
			"entity_id":   event.EntityID,
			"old_values":  string(event.OldValues),
			"new_values":  string(event.NewValues),
			"metadata":    string(event.Metadata),
		})
	}

	switch ExportFormat(strings.ToLower(string(format))) {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", FileName: "audit-trail.csv"}, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, "Audit Trail")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", FileName: "audit-trail.pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
