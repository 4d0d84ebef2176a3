package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
	"github.com/bentech3/online-board-api/pkg/response"
	"github.com/bentech3/online-board-api/pkg/storage"
)

// UploadConfig limits what the upload endpoint accepts.
type UploadConfig struct {
	PublicBaseURL string
	MaxSizeBytes  int64
	AllowedMIMEs  []string
}

// UploadHandler stores attachment files before their notice is submitted.
type UploadHandler struct {
	store  *storage.LocalStorage
	config UploadConfig
	logger *zap.Logger
}

// NewUploadHandler creates a new handler.
func NewUploadHandler(store *storage.LocalStorage, config UploadConfig, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{store: store, config: config, logger: logger}
}

// UploadResult describes a stored file for the subsequent notice submission.
type UploadResult struct {
	FileName  string                `json:"file_name"`
	URL       string                `json:"url"`
	MIMEType  string                `json:"mime_type"`
	Kind      models.AttachmentKind `json:"kind"`
	SizeBytes int64                 `json:"size_bytes"`
}

// Upload godoc
// @Summary Upload an attachment file
// @Description Store a file and return the URL to reference from a notice submission
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}

	if h.config.MaxSizeBytes > 0 && fileHeader.Size > h.config.MaxSizeBytes {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", h.config.MaxSizeBytes)))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !h.mimeAllowed(mimeType) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", mimeType)))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	ext := filepath.Ext(fileHeader.Filename)
	stored := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)
	if _, err := h.store.SaveStream(stored, src); err != nil {
		h.logger.Error("failed to store upload", zap.String("file", fileHeader.Filename), zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	response.Created(c, UploadResult{
		FileName:  fileHeader.Filename,
		URL:       strings.TrimSuffix(h.config.PublicBaseURL, "/") + "/" + stored,
		MIMEType:  mimeType,
		Kind:      models.KindFromMIME(mimeType),
		SizeBytes: fileHeader.Size,
	})
}

func (h *UploadHandler) mimeAllowed(mimeType string) bool {
	if len(h.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range h.config.AllowedMIMEs {
		if strings.HasSuffix(allowed, "/*") {
			if strings.HasPrefix(mimeType, strings.TrimSuffix(allowed, "*")) {
				return true
			}
			continue
		}
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
