package courses

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

// CourseRequest is the body for course create and update.
type CourseRequest struct {
	Title        string          `json:"title" binding:"required,max=200"`
	Slug         string          `json:"slug" binding:"max=220"`
	Description  string          `json:"description"`
	ThumbnailURL *string         `json:"thumbnail_url" binding:"omitempty,url"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   *uuid.UUID      `json:"category_id"`
	TypeID       *uuid.UUID      `json:"type_id"`
	MentorID     *uuid.UUID      `json:"mentor_id"`
	IsPublished  bool            `json:"is_published"`
	ToolIDs      []uuid.UUID     `json:"tool_ids"`
}

func (r CourseRequest) fields() (Fields, string) {
	if r.Price.IsNegative() {
		return Fields{}, "price must not be negative"
	}
	if !r.Price.Equal(r.Price.Round(2)) {
		return Fields{}, "price must have at most two decimals"
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
		CategoryID:   r.CategoryID,
		TypeID:       r.TypeID,
		MentorID:     r.MentorID,
		IsPublished:  r.IsPublished,
		ToolIDs:      r.ToolIDs,
	}, ""
}

// ToolRequest is the body for tool create and update.
type ToolRequest struct {
	Name    string  `json:"name" binding:"required,max=100"`
	LogoURL *string `json:"logo_url" binding:"omitempty,url"`
}

// Handler exposes admin CRUD for courses and tools.
type Handler struct {
	repo   *Repository
	cache  cache.Invalidator
	logger *zap.Logger
}

// NewHandler creates a course handler.
func NewHandler(repo *Repository, inv cache.Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Handler{repo: repo, cache: inv, logger: logger}
}

// parseFilter reads the list query. The second return is a client error message.
func parseFilter(c *gin.Context) (ListFilter, string) {
	lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	for name, dst := range map[string]**uuid.UUID{"category_id": &lf.CategoryID, "type_id": &lf.TypeID, "mentor_id": &lf.MentorID} {
		if v := c.Query(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return lf, "invalid " + name
			}
			*dst = &id
		}
	}
	if v := c.Query("is_published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return lf, "invalid is_published"
		}
		lf.IsPublished = &b
	}
	return lf, ""
}

// List handles GET /admin/courses.
func (h *Handler) List(c *gin.Context) {
	lf, msg := parseFilter(c)
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	list, total, err := h.repo.List(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list courses failed", zap.Error(err))
		response.Error(c, err, "failed to list courses")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// Get handles GET /admin/courses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	course, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load course")
		return
	}
	response.OK(c, course)
}

// Create handles POST /admin/courses.
func (h *Handler) Create(c *gin.Context) {
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	course, err := h.repo.Create(c.Request.Context(), f)
	if err != nil {
		h.logger.Warn("create course failed", zap.String("slug", f.Slug), zap.Error(err))
		response.Error(c, err, "failed to create course")
		return
	}
	h.invalidate(c)
	response.Created(c, course)
}

// Update handles PUT /admin/courses/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	f, msg := req.fields()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	course, err := h.repo.Update(c.Request.Context(), id, f)
	if err != nil {
		h.logger.Warn("update course failed", zap.String("course_id", id.String()), zap.Error(err))
		response.Error(c, err, "failed to update course")
		return
	}
	h.invalidate(c)
	response.OK(c, course)
}

// Delete handles DELETE /admin/courses/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete course")
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

// ListTools handles GET /admin/tools.
func (h *Handler) ListTools(c *gin.Context) {
	p := pagination.FromQuery(c)
	list, total, err := h.repo.ListTools(c.Request.Context(), c.Query("search"), p)
	if err != nil {
		h.logger.Error("list tools failed", zap.Error(err))
		response.Error(c, err, "failed to list tools")
		return
	}
	response.Paginated(c, list, p.Page, p.Limit, total)
}

// GetTool handles GET /admin/tools/:id.
func (h *Handler) GetTool(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	t, err := h.repo.GetTool(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load tool")
		return
	}
	response.OK(c, t)
}

// CreateTool handles POST /admin/tools.
func (h *Handler) CreateTool(c *gin.Context) {
	var req ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	t, err := h.repo.CreateTool(c.Request.Context(), strings.TrimSpace(req.Name), req.LogoURL)
	if err != nil {
		response.Error(c, err, "failed to create tool")
		return
	}
	response.Created(c, t)
}

// UpdateTool handles PUT /admin/tools/:id.
func (h *Handler) UpdateTool(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	t, err := h.repo.UpdateTool(c.Request.Context(), id, strings.TrimSpace(req.Name), req.LogoURL)
	if err != nil {
		response.Error(c, err, "failed to update tool")
		return
	}
	h.invalidate(c)
	response.OK(c, t)
}

// DeleteTool handles DELETE /admin/tools/:id.
func (h *Handler) DeleteTool(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteTool(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete tool")
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

func (h *Handler) invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), cache.TagCourses); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Routes registers course CRUD on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// ToolRoutes registers tool CRUD on rg.
func (h *Handler) ToolRoutes(rg gin.IRoutes) {
	rg.GET("", h.ListTools)
	rg.GET("/:id", h.GetTool)
	rg.POST("", h.CreateTool)
	rg.PUT("/:id", h.UpdateTool)
	rg.DELETE("/:id", h.DeleteTool)
}
