package articles

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

var errNotOwner = apperr.NotFound("article not found")

// WriterResolver maps a user to their writer profile.
type WriterResolver interface {
	WriterIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// ArticleRequest is the body for article create and update.
type ArticleRequest struct {
	Title        string      `json:"title" binding:"required,max=200"`
	Slug         string      `json:"slug" binding:"max=220"`
	Content      string      `json:"content" binding:"required"`
	ThumbnailURL *string     `json:"thumbnail_url" binding:"omitempty,url"`
	CategoryID   *uuid.UUID  `json:"category_id"`
	WriterID     *uuid.UUID  `json:"writer_id"`
	IsPublished  bool        `json:"is_published"`
	TagIDs       []uuid.UUID `json:"tag_ids"`
}

func (r ArticleRequest) fields() Fields {
	slug := utils.Slugify(r.Slug)
	if slug == "" {
		slug = utils.Slugify(r.Title)
	}
	return Fields{
		Title:        strings.TrimSpace(r.Title),
		Slug:         slug,
		Content:      r.Content,
		ThumbnailURL: r.ThumbnailURL,
		CategoryID:   r.CategoryID,
		WriterID:     r.WriterID,
		IsPublished:  r.IsPublished,
		TagIDs:       r.TagIDs,
	}
}

// Handler exposes article CRUD to admins and writers.
type Handler struct {
	repo    *Repository
	writers WriterResolver
	cache   cache.Invalidator
	logger  *zap.Logger
}

// NewHandler creates an article handler.
func NewHandler(repo *Repository, writers WriterResolver, inv cache.Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Handler{repo: repo, writers: writers, cache: inv, logger: logger}
}

// owner returns the caller's writer ID when the caller is a writer, nil for admins.
func (h *Handler) owner(c *gin.Context) (*uuid.UUID, error) {
	if !middleware.HasRole(c, models.RoleWriter) {
		return nil, nil
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		return nil, apperr.Unauthorized("missing user context")
	}
	id, err := h.writers.WriterIDByUserID(c.Request.Context(), userID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Forbidden("writer profile required")
		}
		return nil, err
	}
	return &id, nil
}

func parseFilter(c *gin.Context) (ListFilter, string) {
	lf := ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	for name, dst := range map[string]**uuid.UUID{"category_id": &lf.CategoryID, "writer_id": &lf.WriterID, "tag_id": &lf.TagID} {
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

// List handles GET /admin/articles. Writers only see their own articles.
func (h *Handler) List(c *gin.Context) {
	lf, msg := parseFilter(c)
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	owner, err := h.owner(c)
	if err != nil {
		response.Error(c, err, "failed to resolve writer")
		return
	}
	if owner != nil {
		lf.WriterID = owner
	}
	list, total, err := h.repo.List(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list articles failed", zap.Error(err))
		response.Error(c, err, "failed to list articles")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// load fetches an article the caller may manage.
func (h *Handler) load(c *gin.Context, id uuid.UUID) (*models.Article, *uuid.UUID, error) {
	owner, err := h.owner(c)
	if err != nil {
		return nil, nil, err
	}
	a, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if owner != nil && (a.WriterID == nil || *a.WriterID != *owner) {
		return nil, nil, errNotOwner
	}
	return a, owner, nil
}

// Get handles GET /admin/articles/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	a, _, err := h.load(c, id)
	if err != nil {
		response.Error(c, err, "failed to load article")
		return
	}
	response.OK(c, a)
}

// Create handles POST /admin/articles. Writers always author their own articles.
func (h *Handler) Create(c *gin.Context) {
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	owner, err := h.owner(c)
	if err != nil {
		response.Error(c, err, "failed to resolve writer")
		return
	}
	f := req.fields()
	if owner != nil {
		f.WriterID = owner
	}
	a, err := h.repo.Create(c.Request.Context(), f)
	if err != nil {
		h.logger.Warn("create article failed", zap.String("slug", f.Slug), zap.Error(err))
		response.Error(c, err, "failed to create article")
		return
	}
	h.invalidate(c)
	response.Created(c, a)
}

// Update handles PUT /admin/articles/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	owner, err := h.owner(c)
	if err != nil {
		response.Error(c, err, "failed to resolve writer")
		return
	}
	f := req.fields()
	if owner != nil {
		f.WriterID = owner
	}
	a, err := h.repo.Update(c.Request.Context(), id, owner, f)
	if err != nil {
		response.Error(c, err, "failed to update article")
		return
	}
	h.invalidate(c)
	response.OK(c, a)
}

// Delete handles DELETE /admin/articles/:id. Writers may only delete their own articles.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	owner, err := h.owner(c)
	if err != nil {
		response.Error(c, err, "failed to resolve writer")
		return
	}
	if owner != nil {
		if _, _, err := h.load(c, id); err != nil {
			response.Error(c, err, "failed to delete article")
			return
		}
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete article")
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

func (h *Handler) invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), cache.TagArticles); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Routes registers article CRUD on rg.
func (h *Handler) Routes(rg gin.IRoutes) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
