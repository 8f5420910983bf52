package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/payment"
	"github.com/learnhub/backend/internal/promocodes"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/money"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	txs      map[uuid.UUID]*models.CourseTransaction
	promos   map[string]*models.PromoCode
	audits   []models.StatusAudit
	released []uuid.UUID
	stale    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{txs: map[uuid.UUID]*models.CourseTransaction{}, promos: map[string]*models.PromoCode{}}
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*models.CourseTransaction, error) {
	t, ok := f.txs[id]
	if !ok {
		return nil, apperr.NotFound("transaction not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, lf ListFilter) ([]models.CourseTransaction, int64, error) {
	var out []models.CourseTransaction
	for _, t := range f.txs {
		if lf.StudentID != nil && t.StudentID != *lf.StudentID {
			continue
		}
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) HasPaid(_ context.Context, courseID, studentID uuid.UUID) (bool, error) {
	for _, t := range f.txs {
		if t.CourseID == courseID && t.StudentID == studentID && t.Status == models.TransactionPaid {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Open(_ context.Context, p OpenParams) (*models.CourseTransaction, error) {
	price := money.NoDiscount(p.Price)
	t := &models.CourseTransaction{ID: uuid.New(), CourseID: p.CourseID, CourseTitle: "Go Basics", StudentID: p.StudentID, Status: models.TransactionUnpaid}
	if p.PromoCode != "" {
		promo, ok := f.promos[promocodes.NormalizeCode(p.PromoCode)]
		switch {
		case !ok:
			return nil, promocodes.ErrNotFound
		case promo.IsUsed:
			return nil, promocodes.ErrUsed
		case promo.ValidUntil.Before(p.Now):
			return nil, promocodes.ErrExpired
		}
		promo.IsUsed = true
		price = money.Compute(p.Price, promo.DiscountType, promo.Discount)
		t.PromoCodeID = &promo.ID
	}
	t.OriginalPrice, t.Discount, t.FinalPrice = price.OriginalPrice, price.Discount, price.FinalPrice
	f.txs[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) AttachPayment(_ context.Context, id uuid.UUID, token, redirectURL string) error {
	f.txs[id].PaymentToken, f.txs[id].PaymentRedirectURL = &token, &redirectURL
	return nil
}

func (f *fakeStore) Customer(context.Context, uuid.UUID) (payment.Customer, error) {
	return payment.Customer{FirstName: "Sari", Email: "sari@example.com"}, nil
}

func (f *fakeStore) Transition(_ context.Context, id uuid.UUID, from, to models.TransactionStatus, actor models.Actor, note string) (bool, error) {
	t, ok := f.txs[id]
	if !ok || t.Status != from || f.stale {
		return false, nil
	}
	if t.PromoCodeID != nil {
		promo := f.promoByID(*t.PromoCodeID)
		switch {
		case to.ReleasesPromo():
			f.released = append(f.released, *t.PromoCodeID)
			if promo != nil {
				promo.IsUsed = false
			}
		case from.ReleasesPromo() && promo != nil:
			if promo.IsUsed {
				return false, promocodes.ErrUsed
			}
			promo.IsUsed = true
		}
	}
	t.Status = to
	f.audits = append(f.audits, models.StatusAudit{SubjectID: id, FromStatus: string(from), ToStatus: string(to), ActorKind: actor.Kind, Note: note})
	return true, nil
}

func (f *fakeStore) promoByID(id uuid.UUID) *models.PromoCode {
	for _, p := range f.promos {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakeStore) Stale(_ context.Context, cutoff time.Time, limit int) ([]models.CourseTransaction, error) {
	var out []models.CourseTransaction
	for _, t := range f.txs {
		if (t.Status == models.TransactionUnpaid || t.Status == models.TransactionPending) && t.CreatedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakePricer map[uuid.UUID]decimal.Decimal

func (f fakePricer) Price(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
	p, ok := f[id]
	if !ok {
		return decimal.Zero, apperr.NotFound("course not found")
	}
	return p, nil
}

type fakeGateway struct {
	requests []payment.SnapRequest
	err      error
}

func (g *fakeGateway) CreateTransaction(_ context.Context, r payment.SnapRequest) (*payment.SnapResponse, error) {
	g.requests = append(g.requests, r)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.SnapResponse{
		Token:       "snap-token",
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token",
		Raw:         json.RawMessage(`{"token":"snap-token","redirect_url":"https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token"}`),
	}, nil
}

type fixture struct {
	store   *fakeStore
	gateway *fakeGateway
	svc     *Service
	course  uuid.UUID
	free    uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{store: newFakeStore(), gateway: &fakeGateway{}, course: uuid.New(), free: uuid.New()}
	pricer := fakePricer{f.course: decimal.NewFromInt(150000), f.free: decimal.Zero}
	f.svc = NewService(f.store, pricer, f.gateway, nil, nil, nil, nil)
	f.svc.now = func() time.Time { return now }
	f.store.promos["SAVE10"] = &models.PromoCode{
		ID: uuid.New(), Code: "SAVE10", DiscountType: money.DiscountPercentage,
		Discount: decimal.NewFromInt(10), ValidUntil: now.Add(24 * time.Hour),
	}
	return f
}

func TestCheckoutWithPromo(t *testing.T) {
	f := newFixture()
	student := uuid.New()

	tx, err := f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.course, StudentID: student, PromoCode: "save10"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, tx.Status)
	assert.True(t, tx.OriginalPrice.Equal(decimal.NewFromInt(150000)))
	assert.True(t, tx.Discount.Equal(decimal.NewFromInt(15000)))
	assert.True(t, tx.FinalPrice.Equal(decimal.NewFromInt(135000)))
	assert.True(t, tx.FinalPrice.Equal(tx.OriginalPrice.Sub(tx.Discount)))
	require.NotNil(t, tx.PaymentToken)
	assert.Equal(t, "snap-token", *tx.PaymentToken)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, tx.ID.String(), req.OrderID)
	assert.EqualValues(t, 135000, req.GrossAmount)
	assert.Equal(t, "sari@example.com", req.Customer.Email)
	assert.True(t, f.store.promos["SAVE10"].IsUsed)

	_, err = f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "SAVE10"})
	assert.True(t, errors.Is(err, promocodes.ErrUsed))
}

func TestCheckoutFreeCourseIsPaidWithoutGateway(t *testing.T) {
	f := newFixture()
	student := uuid.New()

	tx, err := f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.free, StudentID: student})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPaid, tx.Status)
	assert.Empty(t, f.gateway.requests)

	_, err = f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.free, StudentID: student})
	assert.True(t, errors.Is(err, ErrAlreadyPurchased))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCheckoutGatewayFailureReleasesPromo(t *testing.T) {
	f := newFixture()
	f.gateway.err = payment.ErrGateway

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "SAVE10"})
	assert.True(t, errors.Is(err, payment.ErrGateway))
	require.Len(t, f.store.txs, 1)
	for _, tx := range f.store.txs {
		assert.Equal(t, models.TransactionFailed, tx.Status)
	}
	assert.Equal(t, []uuid.UUID{f.store.promos["SAVE10"].ID}, f.store.released)
	assert.False(t, f.store.promos["SAVE10"].IsUsed)
}

func TestDeniedPaymentReleasesPromo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "SAVE10"})
	require.NoError(t, err)
	assert.True(t, f.store.promos["SAVE10"].IsUsed)

	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: first.ID.String(), TransactionStatus: "deny"}))
	assert.Equal(t, models.TransactionFailed, f.store.txs[first.ID].Status)
	assert.False(t, f.store.promos["SAVE10"].IsUsed)
	assert.True(t, f.store.promos["SAVE10"].Redeemable(now))

	second, err := f.svc.Checkout(ctx, CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "SAVE10"})
	require.NoError(t, err)
	assert.True(t, second.Discount.Equal(decimal.NewFromInt(15000)))

	// Retrying the failed order needs the code back, which the second checkout holds.
	_, err = f.svc.UpdateStatus(ctx, first.ID, models.TransactionPending, models.AdminActor(uuid.New()), "retry")
	assert.True(t, errors.Is(err, promocodes.ErrUsed))
	assert.Equal(t, models.TransactionFailed, f.store.txs[first.ID].Status)
}

func TestRetryFailedOrderReclaimsPromo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.Checkout(ctx, CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "SAVE10"})
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: first.ID.String(), TransactionStatus: "deny"}))

	got, err := f.svc.UpdateStatus(ctx, first.ID, models.TransactionPending, models.AdminActor(uuid.New()), "retry")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, got.Status)
	assert.True(t, f.store.promos["SAVE10"].IsUsed)
}

func TestCheckoutRejects(t *testing.T) {
	f := newFixture()
	f.store.promos["OLD"] = &models.PromoCode{ID: uuid.New(), Code: "OLD", DiscountType: money.DiscountFixed,
		Discount: decimal.NewFromInt(5000), ValidUntil: now.Add(-time.Hour)}

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CourseID: uuid.New(), StudentID: uuid.New()})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "OLD"})
	assert.True(t, errors.Is(err, promocodes.ErrExpired))

	_, err = f.svc.Checkout(context.Background(), CheckoutInput{CourseID: f.course, StudentID: uuid.New(), PromoCode: "NOPE"})
	assert.True(t, errors.Is(err, promocodes.ErrNotFound))
	assert.Empty(t, f.store.txs)
}

func seedTx(f *fixture, status models.TransactionStatus) *models.CourseTransaction {
	t := &models.CourseTransaction{
		ID: uuid.New(), CourseID: f.course, StudentID: uuid.New(), Status: status,
		OriginalPrice: decimal.NewFromInt(150000), FinalPrice: decimal.NewFromInt(150000), CreatedAt: now.Add(-time.Hour),
	}
	f.store.txs[t.ID] = t
	return t
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := models.AdminActor(uuid.New())
	tx := seedTx(f, models.TransactionUnpaid)

	got, err := f.svc.UpdateStatus(ctx, tx.ID, models.TransactionPaid, admin, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPaid, got.Status)
	require.Len(t, f.store.audits, 1)
	assert.Equal(t, "unpaid", f.store.audits[0].FromStatus)
	assert.Equal(t, models.ActorAdmin, f.store.audits[0].ActorKind)

	_, err = f.svc.UpdateStatus(ctx, tx.ID, models.TransactionPaid, admin, "")
	require.NoError(t, err)
	assert.Len(t, f.store.audits, 1)

	_, err = f.svc.UpdateStatus(ctx, tx.ID, models.TransactionPending, admin, "")
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	_, err = f.svc.UpdateStatus(ctx, tx.ID, "shipped", admin, "")
	assert.True(t, errors.Is(err, ErrUnknownStatus))

	_, err = f.svc.UpdateStatus(ctx, uuid.New(), models.TransactionPaid, admin, "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	other := seedTx(f, models.TransactionPending)
	f.store.stale = true
	_, err = f.svc.UpdateStatus(ctx, other.ID, models.TransactionCancelled, admin, "")
	assert.True(t, errors.Is(err, ErrConcurrentUpdate))
}

func TestTerminalStatuses(t *testing.T) {
	f := newFixture()
	admin := models.AdminActor(uuid.New())
	for _, st := range []models.TransactionStatus{models.TransactionCancelled, models.TransactionExpired, models.TransactionRefunded} {
		tx := seedTx(f, st)
		for _, to := range []models.TransactionStatus{models.TransactionPaid, models.TransactionPending, models.TransactionUnpaid} {
			_, err := f.svc.UpdateStatus(context.Background(), tx.ID, to, admin, "")
			assert.True(t, errors.Is(err, ErrIllegalTransition), "%s -> %s", st, to)
		}
	}
}

func TestApplyNotification(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx := seedTx(f, models.TransactionPending)

	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: tx.ID.String(), TransactionStatus: "settlement", GrossAmount: "150000.00"}))
	assert.Equal(t, models.TransactionPaid, f.store.txs[tx.ID].Status)
	assert.Equal(t, models.ActorGateway, f.store.audits[0].ActorKind)

	// A late expire for a paid order is dropped.
	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: tx.ID.String(), TransactionStatus: "expire"}))
	assert.Equal(t, models.TransactionPaid, f.store.txs[tx.ID].Status)

	other := seedTx(f, models.TransactionPending)
	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: other.ID.String(), TransactionStatus: "settlement", GrossAmount: "1000.00"}))
	assert.Equal(t, models.TransactionPending, f.store.txs[other.ID].Status, "amount mismatch ignored")

	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: other.ID.String(), TransactionStatus: "authorize"}))
	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: "not-a-uuid", TransactionStatus: "settlement"}))
	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: uuid.NewString(), TransactionStatus: "settlement"}))
	assert.Equal(t, models.TransactionPending, f.store.txs[other.ID].Status)

	require.NoError(t, f.svc.ApplyNotification(ctx, Notification{OrderID: other.ID.String(), TransactionStatus: "deny"}))
	assert.Equal(t, models.TransactionFailed, f.store.txs[other.ID].Status)
}

func TestExpireStale(t *testing.T) {
	f := newFixture()
	old := seedTx(f, models.TransactionPending)
	old.CreatedAt = now.Add(-48 * time.Hour)
	promoID := uuid.New()
	old.PromoCodeID = &promoID
	fresh := seedTx(f, models.TransactionUnpaid)
	paid := seedTx(f, models.TransactionPaid)
	paid.CreatedAt = now.Add(-72 * time.Hour)

	n, err := f.svc.ExpireStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.TransactionExpired, f.store.txs[old.ID].Status)
	assert.Equal(t, models.TransactionUnpaid, f.store.txs[fresh.ID].Status)
	assert.Equal(t, models.TransactionPaid, f.store.txs[paid.ID].Status)
	assert.Equal(t, []uuid.UUID{promoID}, f.store.released)
	assert.Equal(t, models.ActorSystem, f.store.audits[0].ActorKind)
}

func TestCheckoutEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	h := NewHandler(nil, f.svc, nil)
	student := uuid.New()

	r := gin.New()
	r.POST("/courses/:id/checkout", func(c *gin.Context) {
		c.Set(middleware.ContextStudentID, student)
		c.Next()
	}, h.Checkout)
	r.GET("/me/transactions", func(c *gin.Context) {
		c.Set(middleware.ContextStudentID, student)
		c.Next()
	}, h.MyTransactions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/courses/"+f.course.String()+"/checkout", strings.NewReader(`{"promo_code":"SAVE10"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"final_price":"135000"`)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.Contains(t, w.Body.String(), `"payment":{"token":"snap-token","redirect_url":"https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token"}`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/"+f.free.String()+"/checkout", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), `"payment"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/"+f.free.String()+"/checkout", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courses/nope/checkout", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/transactions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)
}

func TestAdminTransactionDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture()
	h := NewHandler(adminStore{f.store}, f.svc, nil)
	r := gin.New()
	h.Routes(r.Group("/admin/course-transactions"))
	pending := seedTx(f, models.TransactionPending)
	expired := seedTx(f, models.TransactionExpired)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/course-transactions/"+pending.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_statuses":["paid","failed","cancelled","expired"]`)
	assert.Contains(t, w.Body.String(), `"terminal":false`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/course-transactions/"+expired.ID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_statuses":[]`)
	assert.Contains(t, w.Body.String(), `"terminal":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/course-transactions?status=shipped", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cancelled, expired, failed, paid, pending, refunded, unpaid")
}

type adminStore struct{ *fakeStore }

func (adminStore) Audits(context.Context, uuid.UUID) ([]models.StatusAudit, error) { return nil, nil }
func (adminStore) Delete(context.Context, uuid.UUID) error                         { return nil }
