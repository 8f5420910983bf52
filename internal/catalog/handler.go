package catalog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/articles"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/events"
	"github.com/learnhub/backend/internal/people"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
)

// Handler exposes the public catalog.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func optionalUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
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

// Home handles GET /catalog/home.
func (h *Handler) Home(c *gin.Context) {
	home, err := h.svc.Home(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to load home page")
		return
	}
	response.OK(c, home)
}

// Courses handles GET /catalog/courses.
func (h *Handler) Courses(c *gin.Context) {
	f := courses.ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	var ok bool
	if f.CategoryID, ok = optionalUUID(c, "category_id"); !ok {
		return
	}
	if f.TypeID, ok = optionalUUID(c, "type_id"); !ok {
		return
	}
	if f.MentorID, ok = optionalUUID(c, "mentor_id"); !ok {
		return
	}
	list, total, err := h.svc.src.Courses(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err, "failed to list courses")
		return
	}
	response.Paginated(c, list, f.Page.Page, f.Page.Limit, total)
}

// Course handles GET /catalog/courses/:slug.
func (h *Handler) Course(c *gin.Context) {
	d, err := h.svc.Course(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to load course")
		return
	}
	response.OK(c, d)
}

// Events handles GET /catalog/events.
func (h *Handler) Events(c *gin.Context) {
	f := events.ListFilter{Search: c.Query("search"), Upcoming: c.Query("upcoming") == "true", Page: pagination.FromQuery(c)}
	list, total, err := h.svc.src.Events(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err, "failed to list events")
		return
	}
	response.Paginated(c, list, f.Page.Page, f.Page.Limit, total)
}

// Event handles GET /catalog/events/:slug.
func (h *Handler) Event(c *gin.Context) {
	d, err := h.svc.Event(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to load event")
		return
	}
	response.OK(c, d)
}

// Articles handles GET /catalog/articles.
func (h *Handler) Articles(c *gin.Context) {
	f := articles.ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	var ok bool
	if f.CategoryID, ok = optionalUUID(c, "category_id"); !ok {
		return
	}
	if f.TagID, ok = optionalUUID(c, "tag_id"); !ok {
		return
	}
	list, total, err := h.svc.src.Articles(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err, "failed to list articles")
		return
	}
	response.Paginated(c, list, f.Page.Page, f.Page.Limit, total)
}

// Article handles GET /catalog/articles/:slug.
func (h *Handler) Article(c *gin.Context) {
	a, err := h.svc.src.ArticleBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err, "failed to load article")
		return
	}
	response.OK(c, a)
}

// Mentors handles GET /catalog/mentors.
func (h *Handler) Mentors(c *gin.Context) {
	f := people.ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
	list, total, err := h.svc.Mentors(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err, "failed to list mentors")
		return
	}
	response.Paginated(c, list, f.Page.Page, f.Page.Limit, total)
}

// Routes registers the catalog with each endpoint cached under the tags its
// payload depends on.
func (h *Handler) Routes(rg gin.IRoutes, rc *cache.Cache) {
	rg.GET("/home", rc.Middleware(cache.TagCourses, cache.TagEvents, cache.TagArticles, cache.TagMentors), h.Home)
	rg.GET("/courses", rc.Middleware(cache.TagCourses), h.Courses)
	rg.GET("/courses/:slug", rc.Middleware(cache.TagCourses, cache.TagReviews), h.Course)
	rg.GET("/events", rc.Middleware(cache.TagEvents), h.Events)
	rg.GET("/events/:slug", rc.Middleware(cache.TagEvents, cache.TagReviews), h.Event)
	rg.GET("/articles", rc.Middleware(cache.TagArticles), h.Articles)
	rg.GET("/articles/:slug", rc.Middleware(cache.TagArticles), h.Article)
	rg.GET("/mentors", rc.Middleware(cache.TagMentors), h.Mentors)
}
