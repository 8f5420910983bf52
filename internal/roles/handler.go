package roles

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/validation"
)

// Builtin roles cannot be renamed or deleted; authorization depends on their names.
var builtin = map[string]bool{
	models.RoleAdmin: true, models.RoleMentor: true, models.RoleStudent: true, models.RoleWriter: true,
}

// UpsertRequest is the body for create and update.
type UpsertRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=255"`
}

// Handler handles role admin endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a roles handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/roles.
func (h *Handler) List(c *gin.Context) {
	p := pagination.FromQuery(c)
	list, total, err := h.repo.List(c.Request.Context(), c.Query("search"), p)
	if err != nil {
		h.logger.Error("list roles failed", zap.Error(err))
		response.Error(c, err, "failed to list roles")
		return
	}
	response.Paginated(c, list, p.Page, p.Limit, total)
}

// Get handles GET /admin/roles/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	role, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load role")
		return
	}
	response.OK(c, role)
}

// Create handles POST /admin/roles.
func (h *Handler) Create(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	role, err := h.repo.Create(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Name)), req.Description)
	if err != nil {
		response.Error(c, err, "failed to create role")
		return
	}
	response.Created(c, role)
}

// Update handles PUT /admin/roles/:id.
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
	current, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load role")
		return
	}
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if builtin[current.Name] && name != current.Name {
		response.Error(c, apperr.Conflict("built-in roles cannot be renamed"), "")
		return
	}
	role, err := h.repo.Update(c.Request.Context(), id, name, req.Description)
	if err != nil {
		response.Error(c, err, "failed to update role")
		return
	}
	response.OK(c, role)
}

// Delete handles DELETE /admin/roles/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	current, err := h.repo.Get(c.Request.Context(), id)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		response.Error(c, err, "failed to delete role")
		return
	}
	if current != nil && builtin[current.Name] {
		response.Error(c, apperr.Conflict("built-in roles cannot be deleted"), "")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete role")
		return
	}
	response.NoContent(c)
}
