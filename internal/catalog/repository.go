package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/articles"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/events"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/people"
	"github.com/learnhub/backend/pkg/database"
)

// Repository reads published content for anonymous visitors. Listings reuse
// the admin repositories with the published filter forced on.
type Repository struct {
	pool     *pgxpool.Pool
	courses  *courses.Repository
	events   *events.Repository
	articles *articles.Repository
	people   *people.Repository
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:     pool,
		courses:  courses.NewRepository(pool),
		events:   events.NewRepository(pool),
		articles: articles.NewRepository(pool),
		people:   people.NewRepository(pool),
	}
}

var published = true

func (r *Repository) Courses(ctx context.Context, f courses.ListFilter) ([]models.Course, int64, error) {
	f.IsPublished = &published
	return r.courses.List(ctx, f)
}

func (r *Repository) CourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	c, err := courses.ScanCourse(r.pool.QueryRow(ctx, courses.CourseSelect()+`
		WHERE c.slug = $1 AND c.is_published AND c.deleted_at IS NULL`, slug))
	if err != nil {
		return nil, database.Classify(err, "course")
	}
	if c.Tools, err = courses.CourseTools(ctx, r.pool, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Enrolled counts paid purchases of a course.
func (r *Repository) Enrolled(ctx context.Context, courseID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM course_transactions
		WHERE course_id = $1 AND status = 'paid' AND deleted_at IS NULL`, courseID).Scan(&n)
	return n, database.Classify(err, "transaction")
}

func (r *Repository) Events(ctx context.Context, f events.ListFilter) ([]models.Event, int64, error) {
	f.IsPublished = &published
	return r.events.List(ctx, f)
}

func (r *Repository) EventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	e, err := events.ScanEvent(r.pool.QueryRow(ctx, events.EventSelect()+`
		WHERE e.slug = $1 AND e.is_published AND e.deleted_at IS NULL`, slug))
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return e, nil
}

func (r *Repository) Articles(ctx context.Context, f articles.ListFilter) ([]models.Article, int64, error) {
	f.IsPublished = &published
	return r.articles.List(ctx, f)
}

func (r *Repository) ArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	a, err := articles.ScanArticle(r.pool.QueryRow(ctx, articles.ArticleSelect()+`
		WHERE a.slug = $1 AND a.is_published AND a.deleted_at IS NULL`, slug))
	if err != nil {
		return nil, database.Classify(err, "article")
	}
	if a.Tags, err = articles.ArticleTags(ctx, r.pool, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) Mentors(ctx context.Context, f people.ListFilter) ([]models.Mentor, int64, error) {
	return r.people.ListMentors(ctx, f)
}
