package media

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/validation"
)

// UploadRequest is the body of POST /admin/uploads.
type UploadRequest struct {
	Folder string `json:"folder" binding:"required"`
	Data   string `json:"data" binding:"required"`
}

// PresignRequest is the body of POST /admin/uploads/presign.
type PresignRequest struct {
	Folder      string `json:"folder" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// Handler exposes admin uploads.
type Handler struct {
	uploader *Uploader
	logger   *zap.Logger
}

// NewHandler creates an upload handler.
func NewHandler(uploader *Uploader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uploader: uploader, logger: logger}
}

// Upload handles POST /admin/uploads.
func (h *Handler) Upload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	asset, err := h.uploader.Upload(c.Request.Context(), req.Folder, req.Data)
	if err != nil {
		response.Error(c, err, "failed to upload file")
		return
	}
	response.Created(c, asset)
}

// Presign handles POST /admin/uploads/presign.
func (h *Handler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	slot, err := h.uploader.Presign(c.Request.Context(), req.Folder, req.ContentType)
	if err != nil {
		response.Error(c, err, "failed to presign upload")
		return
	}
	response.OK(c, slot)
}

// Routes registers upload routes on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.POST("", h.Upload)
	rg.POST("/presign", h.Presign)
}
