package transactions

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/validation"
)

// CheckoutRequest is the body of POST /courses/:id/checkout.
type CheckoutRequest struct {
	PromoCode string `json:"promo_code" binding:"max=64"`
}

// StatusRequest is the body of PATCH /admin/course-transactions/:id/status.
type StatusRequest struct {
	Status models.TransactionStatus `json:"status" binding:"required"`
	Note   string                   `json:"note" binding:"max=500"`
}

// Detail is a transaction with the statuses an admin may move it to.
type Detail struct {
	*models.CourseTransaction
	NextStatuses []models.TransactionStatus `json:"next_statuses"`
	Terminal     bool                       `json:"terminal"`
}

func detailOf(t *models.CourseTransaction) Detail {
	return Detail{
		CourseTransaction: t,
		NextStatuses:      models.TransactionTransitions.Next(t.Status),
		Terminal:          models.TransactionTransitions.Terminal(t.Status),
	}
}

func statusNames() string {
	states := models.TransactionTransitions.States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

// AdminStore serves the admin read and delete endpoints.
type AdminStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.CourseTransaction, error)
	List(ctx context.Context, f ListFilter) ([]models.CourseTransaction, int64, error)
	Audits(ctx context.Context, id uuid.UUID) ([]models.StatusAudit, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler exposes checkout and transaction administration.
type Handler struct {
	repo   AdminStore
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a transaction handler.
func NewHandler(repo AdminStore, svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, svc: svc, logger: logger}
}

// Checkout handles POST /courses/:id/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	courseID, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	studentID, ok := middleware.StudentID(c)
	if !ok {
		response.Forbidden(c, "student profile required")
		return
	}
	var req CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, validation.Message(err))
			return
		}
	}
	t, err := h.svc.Checkout(c.Request.Context(), CheckoutInput{CourseID: courseID, StudentID: studentID, PromoCode: req.PromoCode})
	if err != nil {
		h.logger.Info("checkout rejected",
			zap.String("course_id", courseID.String()), zap.String("student_id", studentID.String()), zap.Error(err))
		response.Error(c, err, "failed to start checkout")
		return
	}
	response.Created(c, t)
}

// MyTransactions handles GET /me/transactions.
func (h *Handler) MyTransactions(c *gin.Context) {
	studentID, ok := middleware.StudentID(c)
	if !ok {
		response.Forbidden(c, "student profile required")
		return
	}
	p := pagination.FromQuery(c)
	list, total, err := h.svc.ListForStudent(c.Request.Context(), studentID, p)
	if err != nil {
		response.Error(c, err, "failed to list transactions")
		return
	}
	response.Paginated(c, list, p.Page, p.Limit, total)
}

// List handles GET /admin/course-transactions.
func (h *Handler) List(c *gin.Context) {
	lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	if v := c.Query("status"); v != "" {
		st := models.TransactionStatus(v)
		if !models.TransactionTransitions.Known(st) {
			response.BadRequest(c, "invalid status, expected one of: "+statusNames())
			return
		}
		lf.Status = &st
	}
	var ok bool
	if lf.CourseID, ok = uuidQuery(c, "course_id"); !ok {
		return
	}
	if lf.StudentID, ok = uuidQuery(c, "student_id"); !ok {
		return
	}
	list, total, err := h.repo.List(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list transactions failed", zap.Error(err))
		response.Error(c, err, "failed to list transactions")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

func uuidQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}

// Get handles GET /admin/course-transactions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	t, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load transaction")
		return
	}
	response.OK(c, detailOf(t))
}

// UpdateStatus handles PATCH /admin/course-transactions/:id/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
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
	t, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status, models.AdminActor(userID), req.Note)
	if err != nil {
		h.logger.Info("transaction status change rejected",
			zap.String("transaction_id", id.String()), zap.String("to", string(req.Status)), zap.Error(err))
		response.Error(c, err, "failed to update transaction status")
		return
	}
	response.OK(c, detailOf(t))
}

// Audits handles GET /admin/course-transactions/:id/audits.
func (h *Handler) Audits(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	list, err := h.repo.Audits(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load audit trail")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /admin/course-transactions/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete transaction")
		return
	}
	response.NoContent(c)
}

// Routes registers admin transaction routes on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.GET("/:id/audits", h.Audits)
	rg.DELETE("/:id", h.Delete)
}
