package people

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

func TestAccountRequestPassword(t *testing.T) {
	req := AccountRequest{Email: "a@b.id", FullName: "Ana"}

	_, err := req.account(true)
	assert.ErrorIs(t, err, errPasswordRequired)

	a, err := req.account(false)
	require.NoError(t, err)
	assert.Nil(t, a.PasswordHash, "update without password keeps the old hash")

	req.Password = "s3cret-pass"
	a, err = req.account(true)
	require.NoError(t, err)
	require.NotNil(t, a.PasswordHash)
	assert.True(t, utils.CheckPassword("s3cret-pass", *a.PasswordHash))
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())
	h := NewHandler(NewRepository(nil), nil, nil)
	r := gin.New()
	h.MentorRoutes(r.Group("/admin/mentors"))
	h.StudentRoutes(r.Group("/admin/students"))
	h.WriterRoutes(r.Group("/admin/writers"))
	return r
}

func TestCreateRequiresPassword(t *testing.T) {
	r := newRouter(t)
	for _, path := range []string{"/admin/mentors", "/admin/students", "/admin/writers"} {
		w := httptest.NewRecorder()
		body := `{"email":"new@learnhub.id","full_name":"New Person"}`
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "password is required", path)
	}
}

func TestCreateValidatesBody(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/mentors",
		strings.NewReader(`{"email":"not-an-email","full_name":"X","password":"longenough"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email must be a valid email")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/students",
		strings.NewReader(`{"email":"s@learnhub.id","full_name":"S","password":"longenough","phone":"12345"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "valid Indonesian mobile number")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/writers/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
