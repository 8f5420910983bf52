package taxonomy

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

// UpsertRequest is the body for create and update.
type UpsertRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Slug string `json:"slug" binding:"max=120"`
}

func (r UpsertRequest) slug() string {
	if s := utils.Slugify(r.Slug); s != "" {
		return s
	}
	return utils.Slugify(r.Name)
}

// Handler exposes admin CRUD for one Kind.
type Handler struct {
	repo   *Repository
	cache  cache.Invalidator
	logger *zap.Logger
}

// NewHandler creates a taxonomy handler.
func NewHandler(repo *Repository, inv cache.Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Handler{repo: repo, cache: inv, logger: logger.With(zap.String("entity", repo.kind.Entity))}
}

// List handles GET /admin/<kind>.
func (h *Handler) List(c *gin.Context) {
	p := pagination.FromQuery(c)
	list, total, err := h.repo.List(c.Request.Context(), c.Query("search"), p)
	if err != nil {
		h.logger.Error("list failed", zap.Error(err))
		response.Error(c, err, "failed to list "+h.repo.kind.Entity)
		return
	}
	response.Paginated(c, list, p.Page, p.Limit, total)
}

// Get handles GET /admin/<kind>/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	t, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load "+h.repo.kind.Entity)
		return
	}
	response.OK(c, t)
}

// Create handles POST /admin/<kind>.
func (h *Handler) Create(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	t, err := h.repo.Create(c.Request.Context(), strings.TrimSpace(req.Name), req.slug())
	if err != nil {
		h.logger.Warn("create failed", zap.Error(err))
		response.Error(c, err, "failed to create "+h.repo.kind.Entity)
		return
	}
	h.invalidate(c)
	response.Created(c, t)
}

// Update handles PUT /admin/<kind>/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	t, err := h.repo.Update(c.Request.Context(), id, strings.TrimSpace(req.Name), req.slug())
	if err != nil {
		response.Error(c, err, "failed to update "+h.repo.kind.Entity)
		return
	}
	h.invalidate(c)
	response.OK(c, t)
}

// Delete handles DELETE /admin/<kind>/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete "+h.repo.kind.Entity)
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

func (h *Handler) invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), h.repo.kind.CacheTag); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Routes registers the CRUD routes on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
