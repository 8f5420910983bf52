package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

// EventRequest is the body for event create and update. A missing or zero price means free.
type EventRequest struct {
	Title        string           `json:"title" binding:"required,max=200"`
	Slug         string           `json:"slug" binding:"max=220"`
	Description  string           `json:"description"`
	ThumbnailURL *string          `json:"thumbnail_url" binding:"omitempty,url"`
	Price        *decimal.Decimal `json:"price"`
	Location     string           `json:"location" binding:"max=300"`
	StartsAt     time.Time        `json:"starts_at" binding:"required"`
	EndsAt       *time.Time       `json:"ends_at"`
	IsPublished  bool             `json:"is_published"`
}

func (r EventRequest) fields() (Fields, string) {
	if r.Price != nil && r.Price.IsNegative() {
		return Fields{}, "price must not be negative"
	}
	if r.EndsAt != nil && r.EndsAt.Before(r.StartsAt) {
		return Fields{}, "ends_at must not be before starts_at"
	}
	slug := utils.Slugify(r.Slug)
	if slug == "" {
		slug = utils.Slugify(r.Title)
	}
	return Fields{
		Title:        strings.TrimSpace(r.Title),
		Slug:         slug,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		Price:        r.Price,
		Location:     r.Location,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
		IsPublished:  r.IsPublished,
	}, ""
}

// RegisterRequest is the body of POST /events/:id/register.
type RegisterRequest struct {
	Phone        string `json:"phone" binding:"required"`
	PaymentProof string `json:"payment_proof"`
}

// StatusRequest is the body of PATCH /admin/event-registrants/:id/status.
type StatusRequest struct {
	Status models.RegistrantStatus `json:"status" binding:"required"`
	Note   string                  `json:"note" binding:"max=500"`
}

// Handler exposes events, registration and registrant administration.
type Handler struct {
	repo   *Repository
	svc    *Service
	cache  cache.Invalidator
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, svc *Service, inv cache.Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Handler{repo: repo, svc: svc, cache: inv, logger: logger}
}

// List handles GET /admin/events.
func (h *Handler) List(c *gin.Context) {
	lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	if v := c.Query("is_published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid is_published")
			return
		}
		lf.IsPublished = &b
	}
	lf.Upcoming, _ = strconv.ParseBool(c.Query("upcoming"))
	list, total, err := h.repo.List(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Error(c, err, "failed to list events")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// Get handles GET /admin/events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	e, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	response.OK(c, e)
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	e, err := h.repo.Create(c.Request.Context(), f)
	if err != nil {
		h.logger.Warn("create event failed", zap.String("slug", f.Slug), zap.Error(err))
		response.Error(c, err, "failed to create event")
		return
	}
	h.invalidate(c)
	response.Created(c, e)
}

// Update handles PUT /admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	e, err := h.repo.Update(c.Request.Context(), id, f)
	if err != nil {
		response.Error(c, err, "failed to update event")
		return
	}
	h.invalidate(c)
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete event")
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

// Register handles POST /events/:id/register for the authenticated student.
func (h *Handler) Register(c *gin.Context) {
	eventID, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	studentID, ok := middleware.StudentID(c)
	if !ok {
		response.Forbidden(c, "student profile required")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), RegisterInput{
		EventID: eventID, StudentID: studentID, Phone: req.Phone, PaymentProof: req.PaymentProof,
	})
	if err != nil {
		response.Error(c, err, "failed to register for event")
		return
	}
	response.Created(c, reg)
}

// MyRegistrations handles GET /me/registrations.
func (h *Handler) MyRegistrations(c *gin.Context) {
	studentID, ok := middleware.StudentID(c)
	if !ok {
		response.Forbidden(c, "student profile required")
		return
	}
	p := pagination.FromQuery(c)
	list, total, err := h.svc.ListForStudent(c.Request.Context(), studentID, p)
	if err != nil {
		response.Error(c, err, "failed to list registrations")
		return
	}
	response.Paginated(c, list, p.Page, p.Limit, total)
}

// ListRegistrants handles GET /admin/event-registrants.
func (h *Handler) ListRegistrants(c *gin.Context) {
	rf := RegistrantFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	for name, dst := range map[string]**uuid.UUID{"event_id": &rf.EventID, "student_id": &rf.StudentID} {
		if v := c.Query(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				response.BadRequest(c, "invalid "+name)
				return
			}
			*dst = &id
		}
	}
	if v := c.Query("status"); v != "" {
		st := models.RegistrantStatus(v)
		if !models.RegistrantTransitions.Known(st) {
			response.BadRequest(c, "invalid status")
			return
		}
		rf.Status = &st
	}
	list, total, err := h.repo.ListRegistrants(c.Request.Context(), rf)
	if err != nil {
		h.logger.Error("list registrants failed", zap.Error(err))
		response.Error(c, err, "failed to list registrants")
		return
	}
	response.Paginated(c, list, rf.Page.Page, rf.Page.Limit, total)
}

// GetRegistrant handles GET /admin/event-registrants/:id.
func (h *Handler) GetRegistrant(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	reg, err := h.repo.GetRegistrant(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load registrant")
		return
	}
	response.OK(c, reg)
}

// UpdateRegistrantStatus handles PATCH /admin/event-registrants/:id/status.
func (h *Handler) UpdateRegistrantStatus(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	userID, _ := middleware.UserID(c)
	reg, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status, models.AdminActor(userID), req.Note)
	if err != nil {
		h.logger.Info("registrant status change rejected",
			zap.String("registrant_id", id.String()), zap.String("to", string(req.Status)), zap.Error(err))
		response.Error(c, err, "failed to update registrant status")
		return
	}
	response.OK(c, reg)
}

// RegistrantAudits handles GET /admin/event-registrants/:id/audits.
func (h *Handler) RegistrantAudits(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.repo.RegistrantAudits(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load audit trail")
		return
	}
	response.OK(c, list)
}

// DeleteRegistrant handles DELETE /admin/event-registrants/:id.
func (h *Handler) DeleteRegistrant(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteRegistrant(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete registrant")
		return
	}
	response.NoContent(c)
}

func (h *Handler) invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), cache.TagEvents); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Routes registers admin event CRUD on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// RegistrantRoutes registers admin registrant routes on rg.
func (h *Handler) RegistrantRoutes(rg gin.IRoutes) {
	rg.GET("", h.ListRegistrants)
	rg.GET("/:id", h.GetRegistrant)
	rg.PATCH("/:id/status", h.UpdateRegistrantStatus)
	rg.GET("/:id/audits", h.RegistrantAudits)
	rg.DELETE("/:id", h.DeleteRegistrant)
}
