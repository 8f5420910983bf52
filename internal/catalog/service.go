// Package catalog serves the public, cacheable view of published courses,
// events, articles and mentors.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnhub/backend/internal/articles"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/events"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/people"
	"github.com/learnhub/backend/internal/reviews"
	"github.com/learnhub/backend/pkg/pagination"
)

// homeSize is how many items each home page section shows.
const homeSize = 6

// Source reads published content.
type Source interface {
	Courses(ctx context.Context, f courses.ListFilter) ([]models.Course, int64, error)
	CourseBySlug(ctx context.Context, slug string) (*models.Course, error)
	Enrolled(ctx context.Context, courseID uuid.UUID) (int64, error)
	Events(ctx context.Context, f events.ListFilter) ([]models.Event, int64, error)
	EventBySlug(ctx context.Context, slug string) (*models.Event, error)
	Articles(ctx context.Context, f articles.ListFilter) ([]models.Article, int64, error)
	ArticleBySlug(ctx context.Context, slug string) (*models.Article, error)
	Mentors(ctx context.Context, f people.ListFilter) ([]models.Mentor, int64, error)
}

// Reviews reads approved reviews.
type Reviews interface {
	List(ctx context.Context, kind models.ProductKind, lf reviews.ListFilter) ([]models.Review, int64, error)
	Summarize(ctx context.Context, kind models.ProductKind, productID uuid.UUID) (reviews.Summary, error)
}

// Mentor is the public mentor card; contact details stay private.
type Mentor struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Profession string    `json:"profession"`
	Bio        string    `json:"bio"`
	PhotoURL   *string   `json:"photo_url,omitempty"`
}

func publicMentors(list []models.Mentor) []Mentor {
	out := make([]Mentor, 0, len(list))
	for _, m := range list {
		out = append(out, Mentor{ID: m.ID, FullName: m.FullName, Profession: m.Profession, Bio: m.Bio, PhotoURL: m.PhotoURL})
	}
	return out
}

// Home is the landing page payload.
type Home struct {
	Courses  []models.Course  `json:"courses"`
	Events   []models.Event   `json:"events"`
	Articles []models.Article `json:"articles"`
	Mentors  []Mentor         `json:"mentors"`
}

// CourseDetail is a course page.
type CourseDetail struct {
	*models.Course
	Enrolled      int64           `json:"enrolled"`
	ReviewSummary reviews.Summary `json:"review_summary"`
	Reviews       []models.Review `json:"reviews"`
}

// EventDetail is an event page.
type EventDetail struct {
	*models.Event
	ReviewSummary reviews.Summary `json:"review_summary"`
	Reviews       []models.Review `json:"reviews"`
}

// Service assembles catalog pages.
type Service struct {
	src     Source
	reviews Reviews
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a catalog service.
func NewService(src Source, rv Reviews, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{src: src, reviews: rv, logger: logger, timeout: 5 * time.Second}
}

// Home loads the four landing sections concurrently. Any failing section fails the page.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	page := pagination.New(1, homeSize)
	var h Home
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, _, err := s.src.Courses(gctx, courses.ListFilter{Page: page})
		h.Courses = list
		return err
	})
	g.Go(func() error {
		list, _, err := s.src.Events(gctx, events.ListFilter{Upcoming: true, Page: page})
		h.Events = list
		return err
	})
	g.Go(func() error {
		list, _, err := s.src.Articles(gctx, articles.ListFilter{Page: page})
		h.Articles = list
		return err
	})
	g.Go(func() error {
		list, _, err := s.src.Mentors(gctx, people.ListFilter{Page: page})
		h.Mentors = publicMentors(list)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("catalog home failed", zap.Error(err))
		return nil, err
	}
	return &h, nil
}

// approved loads the first page of approved reviews with their summary.
func (s *Service) approved(ctx context.Context, kind models.ProductKind, id uuid.UUID) (reviews.Summary, []models.Review, error) {
	var (
		sum  reviews.Summary
		list []models.Review
	)
	yes := true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum, err = s.reviews.Summarize(gctx, kind, id)
		return err
	})
	g.Go(func() (err error) {
		list, _, err = s.reviews.List(gctx, kind, reviews.ListFilter{ProductID: &id, IsApproved: &yes, Page: pagination.New(1, 20)})
		return err
	})
	return sum, list, g.Wait()
}

// Course returns a published course with enrolment count and approved reviews.
func (s *Service) Course(ctx context.Context, slug string) (*CourseDetail, error) {
	c, err := s.src.CourseBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d := &CourseDetail{Course: c}
	if d.Enrolled, err = s.src.Enrolled(ctx, c.ID); err != nil {
		return nil, err
	}
	if d.ReviewSummary, d.Reviews, err = s.approved(ctx, models.ProductCourse, c.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// Event returns a published event with approved reviews.
func (s *Service) Event(ctx context.Context, slug string) (*EventDetail, error) {
	e, err := s.src.EventBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d := &EventDetail{Event: e}
	if d.ReviewSummary, d.Reviews, err = s.approved(ctx, models.ProductEvent, e.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// Mentors returns a page of public mentor cards.
func (s *Service) Mentors(ctx context.Context, f people.ListFilter) ([]Mentor, int64, error) {
	list, total, err := s.src.Mentors(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return publicMentors(list), total, nil
}
