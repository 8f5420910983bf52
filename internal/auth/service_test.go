package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/utils"
	"github.com/learnhub/backend/pkg/validation"
)

type fakeStore struct {
	byEmail map[string]*models.User
}

func newFakeStore() *fakeStore { return &fakeStore{byEmail: map[string]*models.User{}} }

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeStore) RegisterStudent(_ context.Context, in NewUser, _ string) (*models.User, error) {
	key := strings.ToLower(in.Email)
	if _, ok := f.byEmail[key]; ok {
		return nil, ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: key, PasswordHash: in.PasswordHash, FullName: in.FullName, Phone: in.Phone, RoleName: in.Role}
	f.byEmail[key] = u
	return u, nil
}

func TestRegisterThenLogin(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, NewJWTService("k", 1), nil)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Email: "Budi@Example.com", Password: "password1", FullName: " Budi "})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, session.User.Role)
	assert.Equal(t, "Budi", session.User.FullName)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Register(ctx, RegisterInput{Email: "budi@example.com", Password: "password1", FullName: "B"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Login(ctx, "budi@example.com", "password1")
	assert.NoError(t, err)

	_, err = svc.Login(ctx, "budi@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ghost@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMe(t *testing.T) {
	store := newFakeStore()
	hash, _ := utils.HashPassword("pw-123456")
	u := &models.User{ID: uuid.New(), Email: "a@b.c", PasswordHash: hash, RoleName: models.RoleAdmin}
	store.byEmail["a@b.c"] = u
	svc := NewService(store, NewJWTService("k", 1), nil)

	me, err := svc.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, me.Role)

	_, err = svc.Me(context.Background(), uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegisterHandlerValidatesPhone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	h := NewHandler(NewService(newFakeStore(), NewJWTService("k", 1), nil), nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)

	body := `{"email":"c@d.e","password":"password1","full_name":"C","phone":"12345"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = `{"email":"c@d.e","password":"password1","full_name":"C","phone":"081234567890"}`
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool    `json:"success"`
		Data    Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "c@d.e", resp.Data.User.Email)
}
