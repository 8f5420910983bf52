// Package reviews implements review eligibility, submission and moderation
// for courses and events.
package reviews

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/cache"
)

// MaxBodyLength is the longest accepted review text, in characters.
const MaxBodyLength = 2000

var (
	ErrNotEligible     = apperr.Forbidden("only students who paid for this product can review it")
	ErrAlreadyReviewed = apperr.Conflict("you have already reviewed this product")
	ErrUnknownKind     = apperr.Validation("unknown review kind")
	ErrBodyRequired    = apperr.Validation("review body is required")
	ErrBodyTooLong     = apperr.Validation("review body must be at most 2000 characters")
	ErrInvalidRating   = apperr.Validation("rating must be between 1 and 5")
	ErrRatingNotUsed   = apperr.Validation("event reviews do not take a rating")
)

// Store persists reviews.
type Store interface {
	Eligibility(ctx context.Context, kind models.ProductKind, productID, studentID uuid.UUID) (purchased, reviewed bool, err error)
	Insert(ctx context.Context, rv *models.Review) (bool, error)
	Get(ctx context.Context, kind models.ProductKind, id uuid.UUID) (*models.Review, error)
	SetApproved(ctx context.Context, kind models.ProductKind, id uuid.UUID, approved bool) (bool, error)
	Delete(ctx context.Context, kind models.ProductKind, id uuid.UUID) error
}

// SubmitInput is a new review.
type SubmitInput struct {
	Kind      models.ProductKind
	ProductID uuid.UUID
	StudentID uuid.UUID
	Rating    *int
	Body      string
}

// Service implements the review workflow.
type Service struct {
	store  Store
	events broker.Publisher
	cache  cache.Invalidator
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a review service.
func NewService(store Store, pub broker.Publisher, inv cache.Invalidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = broker.Nop{}
	}
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Service{store: store, events: pub, cache: inv, logger: logger, now: time.Now}
}

// CanReview reports whether the student may review the product now.
func (s *Service) CanReview(ctx context.Context, kind models.ProductKind, productID, studentID uuid.UUID) (bool, error) {
	purchased, reviewed, err := s.store.Eligibility(ctx, kind, productID, studentID)
	if err != nil {
		return false, err
	}
	return purchased && !reviewed, nil
}

func validate(in *SubmitInput) error {
	in.Body = strings.TrimSpace(in.Body)
	switch {
	case in.Body == "":
		return ErrBodyRequired
	case utf8.RuneCountInString(in.Body) > MaxBodyLength:
		return ErrBodyTooLong
	}
	switch in.Kind {
	case models.ProductCourse:
		if in.Rating == nil || *in.Rating < 1 || *in.Rating > 5 {
			return ErrInvalidRating
		}
	case models.ProductEvent:
		if in.Rating != nil {
			return ErrRatingNotUsed
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// Submit stores an unapproved review after checking eligibility. The unique
// index on (product, student) settles concurrent submissions.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Review, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	purchased, reviewed, err := s.store.Eligibility(ctx, in.Kind, in.ProductID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if !purchased {
		return nil, ErrNotEligible
	}
	if reviewed {
		return nil, ErrAlreadyReviewed
	}
	rv := &models.Review{
		ProductKind: in.Kind,
		ProductID:   in.ProductID,
		StudentID:   in.StudentID,
		Rating:      in.Rating,
		Body:        in.Body,
	}
	created, err := s.store.Insert(ctx, rv)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrAlreadyReviewed
	}
	s.logger.Info("review submitted",
		zap.String("review_id", rv.ID.String()),
		zap.String("product_kind", string(in.Kind)),
		zap.String("product_id", in.ProductID.String()))
	return rv, nil
}

// SetApproved publishes or hides a review. Approving an approved review is a no-op.
func (s *Service) SetApproved(ctx context.Context, kind models.ProductKind, id uuid.UUID, approved bool) (*models.Review, error) {
	changed, err := s.store.SetApproved(ctx, kind, id, approved)
	if err != nil {
		return nil, err
	}
	rv, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return rv, nil
	}
	s.invalidate(ctx, kind)
	s.logger.Info("review moderated", zap.String("review_id", id.String()), zap.Bool("approved", approved))
	if approved {
		_ = s.events.Publish(ctx, broker.KeyReviewApproved, broker.ReviewApproved{
			ReviewID: rv.ID, ProductKind: string(kind), ProductID: rv.ProductID, At: s.now().UTC(),
		})
	}
	return rv, nil
}

// Delete soft-deletes a review.
func (s *Service) Delete(ctx context.Context, kind models.ProductKind, id uuid.UUID) error {
	if err := s.store.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.invalidate(ctx, kind)
	return nil
}

func (s *Service) invalidate(ctx context.Context, kind models.ProductKind) {
	product := cache.TagCourses
	if kind == models.ProductEvent {
		product = cache.TagEvents
	}
	if err := s.cache.Invalidate(ctx, cache.TagReviews, product); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}
