package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bentech3/online-board-api/internal/models"
	"github.com/bentech3/online-board-api/internal/service"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
	"github.com/bentech3/online-board-api/pkg/response"
)

// SessionHeader carries the opaque browsing session token used to
// deduplicate view counts.
const SessionHeader = "X-Session-ID"

// NoticeHandler wires HTTP endpoints to the notice service.
type NoticeHandler struct {
	notices *service.NoticeService
	views   *service.ViewService
	metrics *service.MetricsService
}

// NewNoticeHandler creates a new handler.
func NewNoticeHandler(notices *service.NoticeService, views *service.ViewService, metrics *service.MetricsService) *NoticeHandler {
	return &NoticeHandler{notices: notices, views: views, metrics: metrics}
}

// List godoc
// @Summary List notices
// @Description List notices visible to the caller. Anonymous readers see only approved, published notices.
// @Tags Notices
// @Produce json
// @Param status query string false "Status filter (staff/admin only)"
// @Param category query string false "Category filter"
// @Param mine query bool false "Only the caller's own notices"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *NoticeHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	req := service.NoticeListRequest{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Mine:     c.Query("mine") == "true",
		Page:     page,
		PageSize: pageSize,
	}

	notices, pagination, err := h.notices.List(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.recordListViews(c, notices)

	response.JSON(c, http.StatusOK, notices, pagination)
}

// Get godoc
// @Summary Get a notice
// @Description Fetch a single notice with its attachments
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *NoticeHandler) Get(c *gin.Context) {
	notice, err := h.notices.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{}
	if sessionID := c.GetHeader(SessionHeader); sessionID != "" && h.views != nil {
		claims := claimsFromContext(c)
		var viewerID *string
		if claims != nil {
			viewerID = &claims.UserID
		}
		fresh, err := h.views.RecordViews(c.Request.Context(), sessionID, viewerID, []string{notice.ID})
		if err == nil {
			h.metrics.RecordViews(len(fresh))
		}
		if total, err := h.views.Count(c.Request.Context(), notice.ID); err == nil {
			meta["views"] = total
		}
	}

	response.JSON(c, http.StatusOK, notice, nil, meta)
}

// Create godoc
// @Summary Submit a notice
// @Description Submit a notice for review. Returns the pending notice and the advisory moderation verdict.
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body service.CreateNoticeRequest true "Notice payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	var req service.CreateNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notice payload"))
		return
	}

	res, err := h.notices.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationVerdict(string(res.Moderation.Severity))

	response.Created(c, res)
}

// Approve godoc
// @Summary Approve a pending notice
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /notices/{id}/approve [post]
func (h *NoticeHandler) Approve(c *gin.Context) {
	notice, err := h.notices.Approve(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordNoticeTransition(string(notice.Status))
	response.JSON(c, http.StatusOK, notice, nil)
}

// Reject godoc
// @Summary Reject a pending notice
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /notices/{id}/reject [post]
func (h *NoticeHandler) Reject(c *gin.Context) {
	notice, err := h.notices.Reject(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordNoticeTransition(string(notice.Status))
	response.JSON(c, http.StatusOK, notice, nil)
}

// Delete godoc
// @Summary Delete a notice
// @Tags Notices
// @Param id path string true "Notice ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notices/{id} [delete]
func (h *NoticeHandler) Delete(c *gin.Context) {
	if err := h.notices.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// recordListViews counts the listed notices as viewed for the caller's
// session. Listing without a session header records nothing.
func (h *NoticeHandler) recordListViews(c *gin.Context, notices []models.Notice) {
	sessionID := c.GetHeader(SessionHeader)
	if sessionID == "" || h.views == nil || len(notices) == 0 {
		return
	}
	claims := claimsFromContext(c)
	var viewerID *string
	if claims != nil {
		viewerID = &claims.UserID
	}
	ids := make([]string, len(notices))
	for i, n := range notices {
		ids[i] = n.ID
	}
	fresh, err := h.views.RecordViews(c.Request.Context(), sessionID, viewerID, ids)
	if err != nil {
		return
	}
	h.metrics.RecordViews(len(fresh))
}
