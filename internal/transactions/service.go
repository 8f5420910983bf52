// Package transactions implements course checkout and the course transaction
// status workflow.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/payment"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/fsm"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/money"
	"github.com/learnhub/backend/pkg/pagination"
)

var (
	ErrAlreadyPurchased  = apperr.Conflict("course already purchased")
	ErrIllegalTransition = apperr.Conflict("status transition not allowed")
	ErrUnknownStatus     = apperr.Validation("unknown transaction status")
	ErrConcurrentUpdate  = apperr.Conflict("transaction changed concurrently, reload and retry")
	ErrInconsistentPrice = apperr.Validation("order price does not add up")
)

// staleBatch bounds one expiry sweep.
const staleBatch = 500

var systemActor = models.Actor{Kind: models.ActorSystem}

// Store persists course transactions.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.CourseTransaction, error)
	List(ctx context.Context, f ListFilter) ([]models.CourseTransaction, int64, error)
	HasPaid(ctx context.Context, courseID, studentID uuid.UUID) (bool, error)
	Open(ctx context.Context, p OpenParams) (*models.CourseTransaction, error)
	AttachPayment(ctx context.Context, id uuid.UUID, token, redirectURL string) error
	Customer(ctx context.Context, studentID uuid.UUID) (payment.Customer, error)
	Transition(ctx context.Context, id uuid.UUID, from, to models.TransactionStatus, actor models.Actor, note string) (bool, error)
	Stale(ctx context.Context, cutoff time.Time, limit int) ([]models.CourseTransaction, error)
}

// CoursePricer returns the price of a purchasable course.
type CoursePricer interface {
	Price(ctx context.Context, courseID uuid.UUID) (decimal.Decimal, error)
}

// Gateway creates hosted payment pages.
type Gateway interface {
	CreateTransaction(ctx context.Context, r payment.SnapRequest) (*payment.SnapResponse, error)
}

// CheckoutInput starts a purchase.
type CheckoutInput struct {
	CourseID  uuid.UUID
	StudentID uuid.UUID
	PromoCode string
}

// CheckoutResult is a started purchase. Payment is the untouched gateway
// response and is absent for free orders.
type CheckoutResult struct {
	*models.CourseTransaction
	Payment json.RawMessage `json:"payment,omitempty"`
}

// Notification is a verified gateway status report.
type Notification struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	GrossAmount       string
}

// Service implements checkout and status changes.
type Service struct {
	store   Store
	courses CoursePricer
	gateway Gateway
	events  broker.Publisher
	cache   cache.Invalidator
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a transaction service.
func NewService(store Store, courses CoursePricer, gw Gateway, pub broker.Publisher, inv cache.Invalidator, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = broker.Nop{}
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Service{store: store, courses: courses, gateway: gw, events: pub, cache: inv, metrics: m, logger: logger, now: time.Now}
}

// Checkout prices the course server-side, claims the promo code and opens a
// transaction. Free orders are paid at once; others get a Snap payment page
// and move to pending. If the gateway fails the order is marked failed, which
// releases the promo code.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	price, err := s.courses.Price(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.HasPaid(ctx, in.CourseID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}
	t, err := s.store.Open(ctx, OpenParams{
		CourseID: in.CourseID, StudentID: in.StudentID, Price: price,
		PromoCode: strings.TrimSpace(in.PromoCode), Now: s.now(),
	})
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("transaction_id", t.ID.String()), zap.String("course_id", t.CourseID.String()))
	log.Info("checkout opened",
		zap.String("student_id", t.StudentID.String()),
		zap.String("final_price", t.FinalPrice.String()))

	if t.Breakdown().IsFree() {
		paid, err := s.UpdateStatus(ctx, t.ID, models.TransactionPaid, systemActor, "free checkout")
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{CourseTransaction: paid}, nil
	}

	resp, err := s.requestPayment(ctx, t)
	if err != nil {
		log.Warn("payment gateway rejected checkout", zap.Error(err))
		if _, ferr := s.UpdateStatus(ctx, t.ID, models.TransactionFailed, systemActor, "payment gateway error"); ferr != nil {
			log.Error("mark checkout failed", zap.Error(ferr))
		}
		return nil, err
	}
	if err := s.store.AttachPayment(ctx, t.ID, resp.Token, resp.RedirectURL); err != nil {
		return nil, err
	}
	pending, err := s.UpdateStatus(ctx, t.ID, models.TransactionPending, systemActor, "payment page created")
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{CourseTransaction: pending, Payment: resp.Raw}, nil
}

func (s *Service) requestPayment(ctx context.Context, t *models.CourseTransaction) (*payment.SnapResponse, error) {
	gross, err := money.GrossAmount(t.FinalPrice)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "order amount must be whole rupiah", err)
	}
	customer, err := s.store.Customer(ctx, t.StudentID)
	if err != nil {
		return nil, err
	}
	return s.gateway.CreateTransaction(ctx, payment.SnapRequest{
		OrderID:     t.ID.String(),
		GrossAmount: gross,
		Customer:    customer,
		Items:       []payment.Item{{ID: t.CourseID.String(), Name: t.CourseTitle, Price: gross, Quantity: 1}},
	})
}

// UpdateStatus applies a status change following TransactionTransitions.
// Writing the current status again is a no-op. Entering failed, cancelled or
// expired releases the promo code in the same store transaction.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to models.TransactionStatus, actor models.Actor, note string) (*models.CourseTransaction, error) {
	if !models.TransactionTransitions.Known(to) {
		return nil, ErrUnknownStatus
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := t.Status
	if from == to {
		return t, nil
	}
	if err := models.TransactionTransitions.Check(from, to); err != nil {
		var te *fsm.TransitionError[models.TransactionStatus]
		if errors.As(err, &te) {
			return nil, apperr.WithCause(ErrIllegalTransition, err)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "invalid transaction status", err)
	}
	moved, err := s.store.Transition(ctx, id, from, to, actor, note)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrConcurrentUpdate
	}

	s.metrics.Transition(models.SubjectCourseTransaction, string(from), string(to))
	s.logger.Info("transaction status changed",
		zap.String("transaction_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_kind", string(actor.Kind)))
	// Paid purchases feed the enrolment counts shown in the catalog.
	if from == models.TransactionPaid || to == models.TransactionPaid {
		if err := s.cache.Invalidate(ctx, cache.TagCourses); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	_ = s.events.Publish(ctx, broker.KeyTransactionStatusChanged, broker.StatusChanged{
		SubjectID: id, From: string(from), To: string(to), ActorKind: string(actor.Kind), ActorID: actor.ID, At: s.now().UTC(),
	})
	return s.store.Get(ctx, id)
}

// ApplyNotification applies a gateway status report. Reports that cannot be
// applied (unknown order, unmapped status, amount mismatch, illegal or
// duplicate transition) are logged and dropped; only store failures are
// returned so the job can be retried.
func (s *Service) ApplyNotification(ctx context.Context, n Notification) error {
	log := s.logger.With(zap.String("order_id", n.OrderID), zap.String("gateway_status", n.TransactionStatus))
	id, err := uuid.Parse(n.OrderID)
	if err != nil {
		log.Warn("notification for unknown order id format")
		return nil
	}
	to, ok := payment.MapStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		log.Info("notification status ignored")
		return nil
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Warn("notification for missing transaction")
			return nil
		}
		return err
	}
	if n.GrossAmount != "" {
		if gross, err := decimal.NewFromString(n.GrossAmount); err != nil || !gross.Equal(t.FinalPrice) {
			log.Warn("notification amount mismatch",
				zap.String("gross_amount", n.GrossAmount), zap.String("final_price", t.FinalPrice.String()))
			return nil
		}
	}
	_, err = s.UpdateStatus(ctx, id, to, models.Actor{Kind: models.ActorGateway}, "gateway: "+n.TransactionStatus)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrConcurrentUpdate):
		log.Info("notification dropped", zap.String("status", string(t.Status)), zap.Error(err))
		return nil
	default:
		return err
	}
}

// ExpireStale moves unpaid and pending transactions older than ttl to
// expired and returns how many moved.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := s.store.Stale(ctx, s.now().Add(-ttl), staleBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range stale {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.UpdateStatus(ctx, t.ID, models.TransactionExpired, systemActor, "checkout expired"); err != nil {
			if errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrConcurrentUpdate) {
				continue
			}
			s.metrics.TransactionsExpired(n)
			return n, err
		}
		n++
	}
	s.metrics.TransactionsExpired(n)
	if n > 0 {
		s.logger.Info("stale transactions expired", zap.Int("count", n), zap.Duration("ttl", ttl))
	}
	return n, nil
}

// ListForStudent returns the caller's purchases.
func (s *Service) ListForStudent(ctx context.Context, studentID uuid.UUID, p pagination.Params) ([]models.CourseTransaction, int64, error) {
	return s.store.List(ctx, ListFilter{StudentID: &studentID, Page: p})
}
