package promocodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/money"
)

type fakeStore map[string]*models.PromoCode

func (f fakeStore) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	p, ok := f[NormalizeCode(code)]
	if !ok || p.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakePricer map[uuid.UUID]decimal.Decimal

func (f fakePricer) Price(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
	p, ok := f[id]
	if !ok {
		return decimal.Zero, apperr.NotFound("course not found")
	}
	return p, nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(store fakeStore, pricer fakePricer) *Service {
	s := NewService(store, pricer, metrics.MustNew(prometheus.NewRegistry()), nil)
	s.now = func() time.Time { return now }
	return s
}

func TestValidateSave10(t *testing.T) {
	save10 := &models.PromoCode{
		ID: uuid.New(), Code: "SAVE10", DiscountType: money.DiscountPercentage,
		Discount: decimal.NewFromInt(10), ValidUntil: now.Add(24 * time.Hour),
	}
	store := fakeStore{"SAVE10": save10}
	svc := newService(store, nil)

	p, err := svc.Validate(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", p.Code)

	save10.ValidUntil = now.Add(-24 * time.Hour)
	_, err = svc.Validate(context.Background(), "SAVE10")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidateOutcomes(t *testing.T) {
	deletedAt := now.Add(-time.Hour)
	store := fakeStore{
		"USED":    {Code: "USED", IsUsed: true, ValidUntil: now.Add(time.Hour)},
		"GONE":    {Code: "GONE", ValidUntil: now.Add(time.Hour), DeletedAt: &deletedAt},
		"EDGE":    {Code: "EDGE", ValidUntil: now},
		"LOWER10": {Code: "LOWER10", ValidUntil: now.Add(time.Hour)},
	}
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "USED")
	assert.ErrorIs(t, err, ErrUsed)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = svc.Validate(ctx, "GONE")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.Validate(ctx, "MISSING")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.Validate(ctx, "EDGE")
	assert.NoError(t, err, "valid_until equal to now is still redeemable")

	_, err = svc.Validate(ctx, "  lower10 ")
	assert.NoError(t, err)

	assert.Equal(t, "used", resultOf(ErrUsed))
	assert.Equal(t, "expired", resultOf(apperr.WithCause(ErrExpired, context.DeadlineExceeded)))
}

func TestQuote(t *testing.T) {
	courseID := uuid.New()
	store := fakeStore{"SAVE10": {
		Code: "SAVE10", DiscountType: money.DiscountPercentage,
		Discount: decimal.NewFromInt(10), ValidUntil: now.Add(time.Hour),
	}}
	svc := newService(store, fakePricer{courseID: decimal.NewFromInt(150000)})

	q, err := svc.Quote(context.Background(), "SAVE10", courseID)
	require.NoError(t, err)
	assert.True(t, q.OriginalPrice.Equal(decimal.NewFromInt(150000)))
	assert.True(t, q.Discount.Equal(decimal.NewFromInt(15000)))
	assert.True(t, q.FinalPrice.Equal(decimal.NewFromInt(135000)))

	_, err = svc.Quote(context.Background(), "SAVE10", uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPromoRequestFields(t *testing.T) {
	base := PromoRequest{Code: "new", DiscountType: money.DiscountPercentage, Discount: decimal.NewFromInt(20), ValidUntil: now}
	f, msg := base.fields()
	require.Empty(t, msg)
	assert.Equal(t, "new", f.Code)

	over := base
	over.Discount = decimal.NewFromInt(120)
	_, msg = over.fields()
	assert.NotEmpty(t, msg)

	zero := base
	zero.Discount = decimal.Zero
	_, msg = zero.fields()
	assert.Equal(t, "discount must be positive", msg)
}

func TestValidateEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := fakeStore{"SAVE10": {Code: "SAVE10", DiscountType: money.DiscountPercentage,
		Discount: decimal.NewFromInt(10), ValidUntil: now.Add(time.Hour)}}
	svc := newService(store, fakePricer{})
	h := NewHandler(nil, svc, nil)
	r := gin.New()
	r.GET("/promo-codes/:code/validate", h.Validate)
	r.POST("/promo-codes/:code/quote", h.Quote)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/promo-codes/SAVE10/validate", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discount_type":"percentage"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/promo-codes/NOPE/validate", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/promo-codes/SAVE10/quote", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
