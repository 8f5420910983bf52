package reviews

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
)

type key struct {
	product, student uuid.UUID
}

type fakeStore struct {
	paid    map[key]bool
	reviews map[uuid.UUID]*models.Review
}

func newFakeStore() *fakeStore {
	return &fakeStore{paid: map[key]bool{}, reviews: map[uuid.UUID]*models.Review{}}
}

func (f *fakeStore) Eligibility(_ context.Context, _ models.ProductKind, productID, studentID uuid.UUID) (bool, bool, error) {
	reviewed := false
	for _, rv := range f.reviews {
		if rv.ProductID == productID && rv.StudentID == studentID {
			reviewed = true
		}
	}
	return f.paid[key{productID, studentID}], reviewed, nil
}

func (f *fakeStore) Insert(_ context.Context, rv *models.Review) (bool, error) {
	for _, r := range f.reviews {
		if r.ProductID == rv.ProductID && r.StudentID == rv.StudentID {
			return false, nil
		}
	}
	rv.ID = uuid.New()
	cp := *rv
	f.reviews[rv.ID] = &cp
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, _ models.ProductKind, id uuid.UUID) (*models.Review, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return nil, apperr.NotFound("review not found")
	}
	cp := *rv
	return &cp, nil
}

func (f *fakeStore) SetApproved(_ context.Context, _ models.ProductKind, id uuid.UUID, approved bool) (bool, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return false, nil
	}
	changed := rv.IsApproved != approved
	rv.IsApproved = approved
	return changed, nil
}

func (f *fakeStore) Delete(_ context.Context, _ models.ProductKind, id uuid.UUID) error {
	delete(f.reviews, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, _ models.ProductKind, lf ListFilter) ([]models.Review, int64, error) {
	out := []models.Review{}
	for _, rv := range f.reviews {
		if lf.IsApproved != nil && rv.IsApproved != *lf.IsApproved {
			continue
		}
		if lf.ProductID != nil && rv.ProductID != *lf.ProductID {
			continue
		}
		out = append(out, *rv)
	}
	return out, int64(len(out)), nil
}

type recorder struct {
	keys []string
}

func (r *recorder) Publish(_ context.Context, key string, _ any) error {
	r.keys = append(r.keys, key)
	return nil
}

type invalidations struct {
	tags []string
}

func (i *invalidations) Invalidate(_ context.Context, tags ...string) error {
	i.tags = append(i.tags, tags...)
	return nil
}

func rating(n int) *int { return &n }

func TestSubmitCourseReview(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()
	course, student := uuid.New(), uuid.New()
	in := SubmitInput{Kind: models.ProductCourse, ProductID: course, StudentID: student, Rating: rating(5), Body: "  Great course  "}

	can, err := svc.CanReview(ctx, models.ProductCourse, course, student)
	require.NoError(t, err)
	assert.False(t, can)
	_, err = svc.Submit(ctx, in)
	assert.True(t, errors.Is(err, ErrNotEligible))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	store.paid[key{course, student}] = true
	can, _ = svc.CanReview(ctx, models.ProductCourse, course, student)
	assert.True(t, can)

	rv, err := svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Great course", rv.Body)
	assert.False(t, rv.IsApproved)
	assert.Equal(t, 5, *rv.Rating)

	_, err = svc.Submit(ctx, in)
	assert.True(t, errors.Is(err, ErrAlreadyReviewed))
	can, _ = svc.CanReview(ctx, models.ProductCourse, course, student)
	assert.False(t, can)
}

func TestSubmitValidation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, nil, nil)
	product, student := uuid.New(), uuid.New()
	store.paid[key{product, student}] = true

	cases := []struct {
		in   SubmitInput
		want error
	}{
		{SubmitInput{Kind: models.ProductCourse, Rating: rating(0), Body: "ok"}, ErrInvalidRating},
		{SubmitInput{Kind: models.ProductCourse, Rating: rating(6), Body: "ok"}, ErrInvalidRating},
		{SubmitInput{Kind: models.ProductCourse, Body: "ok"}, ErrInvalidRating},
		{SubmitInput{Kind: models.ProductCourse, Rating: rating(3), Body: "   "}, ErrBodyRequired},
		{SubmitInput{Kind: models.ProductCourse, Rating: rating(3), Body: strings.Repeat("é", MaxBodyLength+1)}, ErrBodyTooLong},
		{SubmitInput{Kind: models.ProductEvent, Rating: rating(3), Body: "ok"}, ErrRatingNotUsed},
		{SubmitInput{Kind: "podcast", Body: "ok"}, ErrUnknownKind},
	}
	for _, tc := range cases {
		tc.in.ProductID, tc.in.StudentID = product, student
		_, err := svc.Submit(context.Background(), tc.in)
		assert.True(t, errors.Is(err, tc.want), "%+v: %v", tc.in, err)
	}

	rv, err := svc.Submit(context.Background(), SubmitInput{
		Kind: models.ProductEvent, ProductID: product, StudentID: student, Body: strings.Repeat("é", MaxBodyLength),
	})
	require.NoError(t, err)
	assert.Nil(t, rv.Rating)
}

func TestModeration(t *testing.T) {
	store := newFakeStore()
	pub := &recorder{}
	inv := &invalidations{}
	svc := NewService(store, pub, inv, nil)
	ctx := context.Background()
	course, student := uuid.New(), uuid.New()
	store.paid[key{course, student}] = true
	rv, err := svc.Submit(ctx, SubmitInput{Kind: models.ProductCourse, ProductID: course, StudentID: student, Rating: rating(4), Body: "Solid"})
	require.NoError(t, err)

	got, err := svc.SetApproved(ctx, models.ProductCourse, rv.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsApproved)
	assert.Equal(t, []string{broker.KeyReviewApproved}, pub.keys)
	assert.ElementsMatch(t, []string{"reviews", "courses"}, inv.tags)

	_, err = svc.SetApproved(ctx, models.ProductCourse, rv.ID, true)
	require.NoError(t, err)
	assert.Len(t, pub.keys, 1, "re-approving publishes nothing")

	_, err = svc.SetApproved(ctx, models.ProductCourse, uuid.New(), true)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, svc.Delete(ctx, models.ProductCourse, rv.ID))
	assert.Empty(t, store.reviews)
}

func TestReviewEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	svc := NewService(store, nil, nil, nil)
	h := NewHandler(store, svc, nil)
	event, student := uuid.New(), uuid.New()
	store.paid[key{event, student}] = true

	r := gin.New()
	students := r.Group("/events/:id/reviews", func(c *gin.Context) {
		c.Set(middleware.ContextStudentID, student)
		c.Next()
	})
	h.StudentRoutes(students, models.ProductEvent)
	h.PublicRoutes(r.Group("/events/:id/reviews"), models.ProductEvent)
	h.AdminRoutes(r.Group("/admin/event-reviews"), models.ProductEvent)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		r.ServeHTTP(w, req)
		return w
	}
	base := "/events/" + event.String() + "/reviews"

	w := do(http.MethodGet, base+"/eligibility", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"can_review":true`)

	w = do(http.MethodPost, base, `{"body":"Loved the workshop"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(http.MethodPost, base, `{"body":"Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(http.MethodPost, base, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodGet, base, "")
	assert.Contains(t, w.Body.String(), `"total":0`, "unapproved reviews stay hidden")

	var id uuid.UUID
	for k := range store.reviews {
		id = k
	}
	w = do(http.MethodPatch, "/admin/event-reviews/"+id.String()+"/approve", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodGet, base, "")
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), "Loved the workshop")

	w = do(http.MethodDelete, "/admin/event-reviews/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
