package people

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/pagination"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

// AccountRequest carries the user fields of every profile body. Password is
// required on create and optional on update.
type AccountRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	FullName  string  `json:"full_name" binding:"required,max=150"`
	Phone     *string `json:"phone" binding:"omitempty,idphone"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url"`
	Password  string  `json:"password" binding:"omitempty,min=8,max=72"`
}

// MentorRequest is the body for mentor create and update.
type MentorRequest struct {
	AccountRequest
	Profession string  `json:"profession" binding:"max=150"`
	Bio        string  `json:"bio" binding:"max=5000"`
	PhotoURL   *string `json:"photo_url" binding:"omitempty,url"`
}

// StudentRequest is the body for student create and update.
type StudentRequest struct {
	AccountRequest
	Institution string `json:"institution" binding:"max=200"`
}

// WriterRequest is the body for writer create and update.
type WriterRequest struct {
	AccountRequest
	Bio string `json:"bio" binding:"max=5000"`
}

var errPasswordRequired = apperr.Validation("password is required")

func (r AccountRequest) account(create bool) (Account, error) {
	a := Account{Email: r.Email, FullName: r.FullName, Phone: r.Phone, AvatarURL: r.AvatarURL}
	if r.Password == "" {
		if create {
			return a, errPasswordRequired
		}
		return a, nil
	}
	hash, err := utils.HashPassword(r.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return a, apperr.Wrap(apperr.KindValidation, "password is too long", err)
		}
		return a, err
	}
	a.PasswordHash = &hash
	return a, nil
}

// Handler exposes admin CRUD for mentors, students and writers.
type Handler struct {
	repo   *Repository
	cache  cache.Invalidator
	logger *zap.Logger
}

// NewHandler creates a people handler.
func NewHandler(repo *Repository, inv cache.Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Handler{repo: repo, cache: inv, logger: logger}
}

func listFilter(c *gin.Context) ListFilter {
	return ListFilter{Search: c.Query("search"), Page: pagination.FromQuery(c)}
}

// ListMentors handles GET /admin/mentors.
func (h *Handler) ListMentors(c *gin.Context) {
	lf := listFilter(c)
	list, total, err := h.repo.ListMentors(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list mentors failed", zap.Error(err))
		response.Error(c, err, "failed to list mentors")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// GetMentor handles GET /admin/mentors/:id.
func (h *Handler) GetMentor(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	m, err := h.repo.GetMentor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load mentor")
		return
	}
	response.OK(c, m)
}

// CreateMentor handles POST /admin/mentors.
func (h *Handler) CreateMentor(c *gin.Context) {
	var req MentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(true)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	m, err := h.repo.CreateMentor(c.Request.Context(), a, MentorFields{Profession: req.Profession, Bio: req.Bio, PhotoURL: req.PhotoURL})
	if err != nil {
		h.logger.Warn("create mentor failed", zap.Error(err))
		response.Error(c, err, "failed to create mentor")
		return
	}
	h.invalidate(c)
	response.Created(c, m)
}

// UpdateMentor handles PUT /admin/mentors/:id.
func (h *Handler) UpdateMentor(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req MentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(false)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	m, err := h.repo.UpdateMentor(c.Request.Context(), id, a, MentorFields{Profession: req.Profession, Bio: req.Bio, PhotoURL: req.PhotoURL})
	if err != nil {
		response.Error(c, err, "failed to update mentor")
		return
	}
	h.invalidate(c)
	response.OK(c, m)
}

// DeleteMentor handles DELETE /admin/mentors/:id.
func (h *Handler) DeleteMentor(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteMentor(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete mentor")
		return
	}
	h.invalidate(c)
	response.NoContent(c)
}

// ListStudents handles GET /admin/students.
func (h *Handler) ListStudents(c *gin.Context) {
	lf := listFilter(c)
	list, total, err := h.repo.ListStudents(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list students failed", zap.Error(err))
		response.Error(c, err, "failed to list students")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// GetStudent handles GET /admin/students/:id.
func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	s, err := h.repo.GetStudent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load student")
		return
	}
	response.OK(c, s)
}

// CreateStudent handles POST /admin/students.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(true)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	s, err := h.repo.CreateStudent(c.Request.Context(), a, req.Institution)
	if err != nil {
		h.logger.Warn("create student failed", zap.Error(err))
		response.Error(c, err, "failed to create student")
		return
	}
	response.Created(c, s)
}

// UpdateStudent handles PUT /admin/students/:id.
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(false)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	s, err := h.repo.UpdateStudent(c.Request.Context(), id, a, req.Institution)
	if err != nil {
		response.Error(c, err, "failed to update student")
		return
	}
	response.OK(c, s)
}

// DeleteStudent handles DELETE /admin/students/:id.
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteStudent(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete student")
		return
	}
	response.NoContent(c)
}

// ListWriters handles GET /admin/writers.
func (h *Handler) ListWriters(c *gin.Context) {
	lf := listFilter(c)
	list, total, err := h.repo.ListWriters(c.Request.Context(), lf)
	if err != nil {
		h.logger.Error("list writers failed", zap.Error(err))
		response.Error(c, err, "failed to list writers")
		return
	}
	response.Paginated(c, list, lf.Page.Page, lf.Page.Limit, total)
}

// GetWriter handles GET /admin/writers/:id.
func (h *Handler) GetWriter(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.repo.GetWriter(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err, "failed to load writer")
		return
	}
	response.OK(c, w)
}

// CreateWriter handles POST /admin/writers.
func (h *Handler) CreateWriter(c *gin.Context) {
	var req WriterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(true)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	w, err := h.repo.CreateWriter(c.Request.Context(), a, req.Bio)
	if err != nil {
		h.logger.Warn("create writer failed", zap.Error(err))
		response.Error(c, err, "failed to create writer")
		return
	}
	response.Created(c, w)
}

// UpdateWriter handles PUT /admin/writers/:id.
func (h *Handler) UpdateWriter(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req WriterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	a, err := req.account(false)
	if err != nil {
		response.Error(c, err, "invalid password")
		return
	}
	w, err := h.repo.UpdateWriter(c.Request.Context(), id, a, req.Bio)
	if err != nil {
		response.Error(c, err, "failed to update writer")
		return
	}
	response.OK(c, w)
}

// DeleteWriter handles DELETE /admin/writers/:id.
func (h *Handler) DeleteWriter(c *gin.Context) {
	id, ok := response.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteWriter(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete writer")
		return
	}
	response.NoContent(c)
}

// invalidate drops cached catalog pages that embed mentor data.
func (h *Handler) invalidate(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context(), cache.TagMentors, cache.TagCourses); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// MentorRoutes registers mentor CRUD on rg.
func (h *Handler) MentorRoutes(rg gin.IRoutes) {
	rg.GET("", h.ListMentors)
	rg.GET("/:id", h.GetMentor)
	rg.POST("", h.CreateMentor)
	rg.PUT("/:id", h.UpdateMentor)
	rg.DELETE("/:id", h.DeleteMentor)
}

// StudentRoutes registers student CRUD on rg.
func (h *Handler) StudentRoutes(rg gin.IRoutes) {
	rg.GET("", h.ListStudents)
	rg.GET("/:id", h.GetStudent)
	rg.POST("", h.CreateStudent)
	rg.PUT("/:id", h.UpdateStudent)
	rg.DELETE("/:id", h.DeleteStudent)
}

// WriterRoutes registers writer CRUD on rg.
func (h *Handler) WriterRoutes(rg gin.IRoutes) {
	rg.GET("", h.ListWriters)
	rg.GET("/:id", h.GetWriter)
	rg.POST("", h.CreateWriter)
	rg.PUT("/:id", h.UpdateWriter)
	rg.DELETE("/:id", h.DeleteWriter)
}
