package reviews

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/validation"
)

// SubmitRequest is the body of a review submission. Rating applies to courses only.
type SubmitRequest struct {
	Rating *int   `json:"rating" binding:"omitempty,min=1,max=5"`
	Body   string `json:"body" binding:"required"`
}

// ApproveRequest optionally hides a review again with approved=false.
type ApproveRequest struct {
	Approved *bool `json:"approved"`
}

// Lister pages through reviews.
type Lister interface {
	List(ctx context.Context, kind models.ProductKind, lf ListFilter) ([]models.Review, int64, error)
}

// Handler exposes review endpoints for one product kind at a time.
type Handler struct {
	list   Lister
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a review handler.
func NewHandler(list Lister, svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{list: list, svc: svc, logger: logger}
}

// Eligibility handles GET /{courses|events}/:id/reviews/eligibility.
func (h *Handler) Eligibility(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := response.UUIDParam(c, "id")
		if !ok {
			return
		}
		studentID, ok := middleware.StudentID(c)
		if !ok {
			response.OK(c, gin.H{"can_review": false})
			return
		}
		can, err := h.svc.CanReview(c.Request.Context(), kind, productID, studentID)
		if err != nil {
			response.Error(c, err, "failed to check review eligibility")
			return
		}
		response.OK(c, gin.H{"can_review": can})
	}
}

// Submit handles POST /{courses|events}/:id/reviews.
func (h *Handler) Submit(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := response.UUIDParam(c, "id")
		if !ok {
			return
		}
		studentID, ok := middleware.StudentID(c)
		if !ok {
			response.Forbidden(c, "student profile required")
			return
		}
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, validation.Message(err))
			return
		}
		rv, err := h.svc.Submit(c.Request.Context(), SubmitInput{
			Kind: kind, ProductID: productID, StudentID: studentID, Rating: req.Rating, Body: req.Body,
		})
		if err != nil {
			response.Error(c, err, "failed to submit review")
			return
		}
		response.Created(c, rv)
	}
}

// Approved handles the public GET /{courses|events}/:id/reviews.
func (h *Handler) Approved(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := response.UUIDParam(c, "id")
		if !ok {
			return
		}
		approved := true
		lf := ListFilter{ProductID: &productID, IsApproved: &approved, Page: pagination.FromQuery(c)}
		list, total, err := h.list.List(c.Request.Context(), kind, lf)
		if err != nil {
			response.Error(c, err, "failed to list reviews")
			return
		}
		response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
	}
}

// List handles GET /admin/{course|event}-reviews.
func (h *Handler) List(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
		if v := c.Query("is_approved"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.BadRequest(c, "invalid is_approved")
				return
			}
			lf.IsApproved = &b
		}
		if v := c.Query("product_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.BadRequest(c, "invalid product_id")
				return
			}
			lf.ProductID = &id
		}
		list, total, err := h.list.List(c.Request.Context(), kind, lf)
		if err != nil {
			h.logger.Error("list reviews failed", zap.String("kind", string(kind)), zap.Error(err))
			response.Error(c, err, "failed to list reviews")
			return
		}
		response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
	}
}

// Approve handles PATCH /admin/{course|event}-reviews/:id/approve.
func (h *Handler) Approve(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.UUIDParam(c, "id")
		if !ok {
			return
		}
		var req ApproveRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, validation.Message(err))
				return
			}
		}
		approved := req.Approved == nil || *req.Approved
		rv, err := h.svc.SetApproved(c.Request.Context(), kind, id, approved)
		if err != nil {
			response.Error(c, err, "failed to moderate review")
			return
		}
		response.OK(c, rv)
	}
}

// Delete handles DELETE /admin/{course|event}-reviews/:id.
func (h *Handler) Delete(kind models.ProductKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := response.UUIDParam(c, "id")
		if !ok {
			return
		}
		if err := h.svc.Delete(c.Request.Context(), kind, id); err != nil {
			response.Error(c, err, "failed to delete review")
			return
		}
		response.NoContent(c)
	}
}

// StudentRoutes registers eligibility and submission under /{courses|events}/:id/reviews.
func (h *Handler) StudentRoutes(rg gin.IRoutes, kind models.ProductKind) {
	rg.GET("/eligibility", h.Eligibility(kind))
	rg.POST("", h.Submit(kind))
}

// PublicRoutes registers the approved review list under /{courses|events}/:id/reviews.
func (h *Handler) PublicRoutes(rg gin.IRoutes, kind models.ProductKind) {
	rg.GET("", h.Approved(kind))
}

// AdminRoutes registers moderation routes.
func (h *Handler) AdminRoutes(rg gin.IRoutes, kind models.ProductKind) {
	rg.GET("", h.List(kind))
	rg.PATCH("/:id/approve", h.Approve(kind))
	rg.DELETE("/:id", h.Delete(kind))
}
