// Package promocodes validates, prices and administers one-time promo codes.
package promocodes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/money"
)

var (
	ErrNotFound = apperr.NotFound("promo code not found")
	ErrUsed     = apperr.Conflict("promo code has already been used")
	ErrExpired  = apperr.Validation("promo code has expired")
)

// redeemError explains why p cannot be redeemed at now, or returns nil.
func redeemError(p *models.PromoCode, now time.Time) error {
	if p != nil && p.Redeemable(now) {
		return nil
	}
	switch {
	case p == nil || p.DeletedAt != nil:
		return ErrNotFound
	case p.IsUsed:
		return ErrUsed
	}
	return ErrExpired
}

// Store reads promo codes.
type Store interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// CoursePricer returns the price of a purchasable course.
type CoursePricer interface {
	Price(ctx context.Context, courseID uuid.UUID) (decimal.Decimal, error)
}

// Quote previews the price breakdown of a course with a code.
type Quote struct {
	Code     string    `json:"code"`
	CourseID uuid.UUID `json:"course_id"`
	money.Breakdown
}

// Service validates promo codes.
type Service struct {
	store   Store
	courses CoursePricer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a promo code service.
func NewService(store Store, courses CoursePricer, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, courses: courses, metrics: m, logger: logger, now: time.Now}
}

// Validate returns the code if it exists, is not deleted, is unused and has
// not passed valid_until.
func (s *Service) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	p, err := s.store.GetByCode(ctx, code)
	if err != nil {
		s.metrics.PromoValidation(resultOf(err))
		return nil, err
	}
	if err := redeemError(p, s.now()); err != nil {
		s.metrics.PromoValidation(resultOf(err))
		return nil, err
	}
	s.metrics.PromoValidation("ok")
	return p, nil
}

// Quote validates code and applies it to the course price.
func (s *Service) Quote(ctx context.Context, code string, courseID uuid.UUID) (*Quote, error) {
	p, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}
	price, err := s.courses.Price(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Code:      p.Code,
		CourseID:  courseID,
		Breakdown: money.Compute(price, p.DiscountType, p.Discount),
	}, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsKind(err, apperr.KindNotFound):
		return "not_found"
	case errors.Is(err, ErrUsed):
		return "used"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
