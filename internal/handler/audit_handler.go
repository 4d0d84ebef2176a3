package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bentech3/online-board-api/internal/models"
	"github.com/bentech3/online-board-api/internal/service"
	"github.com/bentech3/online-board-api/pkg/response"
)

// AuditHandler serves the admin audit trail and its exports.
type AuditHandler struct {
	audit  *service.AuditService
	export *service.ExportService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(audit *service.AuditService, export *service.ExportService) *AuditHandler {
	return &AuditHandler{audit: audit, export: export}
}

func auditFilterFromQuery(c *gin.Context) models.AuditFilter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	return models.AuditFilter{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		ActorID:    c.Query("actor_id"),
		Limit:      limit,
	}
}

// List godoc
// @Summary List audit events
// @Description Return the audit trail newest first, optionally filtered
// @Tags Audit
// @Produce json
// @Param action query string false "Action filter"
// @Param entity_type query string false "Entity type filter"
// @Param actor_id query string false "Actor filter"
// @Param limit query int false "Row cap"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	events, err := h.audit.List(c.Request.Context(), auditFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Export godoc
// @Summary Export the audit trail
// @Description Download the filtered audit trail as CSV or PDF
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	res, err := h.export.ExportAudit(c.Request.Context(), claimsFromContext(c), auditFilterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.FileName+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Content)
}
