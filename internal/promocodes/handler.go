package promocodes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/money"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/validation"
)

// PromoRequest is the body for promo code create and update.
type PromoRequest struct {
	Code         string             `json:"code" binding:"required,max=50"`
	DiscountType money.DiscountType `json:"discount_type" binding:"required,oneof=percentage fixed"`
	Discount     decimal.Decimal    `json:"discount"`
	ValidUntil   time.Time          `json:"valid_until" binding:"required"`
}

func (r PromoRequest) fields() (Fields, string) {
	if NormalizeCode(r.Code) == "" {
		return Fields{}, "code is required"
	}
	if r.Discount.Sign() <= 0 {
		return Fields{}, "discount must be positive"
	}
	if r.DiscountType == money.DiscountPercentage && r.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return Fields{}, "percentage discount must be at most 100"
	}
	return Fields{Code: r.Code, DiscountType: r.DiscountType, Discount: r.Discount, ValidUntil: r.ValidUntil}, ""
}

// QuoteRequest is the body of POST /promo-codes/:code/quote.
type QuoteRequest struct {
	CourseID uuid.UUID `json:"course_id" binding:"required"`
}

// Handler exposes promo code administration and validation.
type Handler struct {
	repo   *Repository
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a promo code handler.
func NewHandler(repo *Repository, svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, svc: svc, logger: logger}
}

func parseFilter(c *gin.Context) (ListFilter, string) {
	lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	for name, dst := range map[string]**bool{"is_used": &lf.IsUsed, "active": &lf.Active} {
		if v := c.Query(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return lf, "invalid " + name
			}
			*dst = &b
		}
	}
	return lf, ""
}

// List handles GET /admin/promo-codes.
func (h *Handler) List(c *gin.Context) {
	lf, msg := parseFilter(c)
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	list, total, err := h.repo.List(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list promo codes failed", zap.Error(err))
		response.Error(c, err, "failed to list promo codes")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// Get handles GET /admin/promo-codes/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load promo code")
		return
	}
	response.OK(c, p)
}

// Create handles POST /admin/promo-codes.
func (h *Handler) Create(c *gin.Context) {
	var req PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	p, err := h.repo.Create(c.Request.Context(), f)
	if err != nil {
		h.logger.Warn("create promo code failed", zap.String("code", f.Code), zap.Error(err))
		response.Error(c, err, "failed to create promo code")
		return
	}
	response.Created(c, p)
}

// Update handles PUT /admin/promo-codes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	p, err := h.repo.Update(c.Request.Context(), id, f)
	if err != nil {
		response.Error(c, err, "failed to update promo code")
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /admin/promo-codes/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete promo code")
		return
	}
	response.NoContent(c)
}

// Validate handles GET /promo-codes/:code/validate.
func (h *Handler) Validate(c *gin.Context) {
	p, err := h.svc.Validate(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err, "failed to validate promo code")
		return
	}
	response.OK(c, gin.H{
		"code":          p.Code,
		"discount_type": p.DiscountType,
		"discount":      p.Discount,
		"valid_until":   p.ValidUntil,
	})
}

// Quote handles POST /promo-codes/:code/quote.
func (h *Handler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	q, err := h.svc.Quote(c.Request.Context(), c.Param("code"), req.CourseID)
	if err != nil {
		response.Error(c, err, "failed to quote promo code")
		return
	}
	response.OK(c, q)
}

// Routes registers admin CRUD on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
