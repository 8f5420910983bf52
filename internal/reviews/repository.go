package reviews

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// ListFilter narrows review listings.
type ListFilter struct {
	ProductID  *uuid.UUID
	StudentID  *uuid.UUID
	IsApproved *bool
	Search     string
	Page       pagination.Params
}

// Summary is the approved review count and average course rating.
type Summary struct {
	Count         int64    `json:"count"`
	AverageRating *float64 `json:"average_rating,omitempty"`
}

// Repository handles course and event review persistence.
type Repository struct {
	pool database.Conn
}

// NewRepository creates a review repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// table describes where reviews of one product kind live.
type table struct {
	name     string
	product  string
	rating   string
	purchase string
}

func tableFor(kind models.ProductKind) (table, error) {
	switch kind {
	case models.ProductCourse:
		return table{
			name: "course_reviews", product: "course_id", rating: "r.rating",
			purchase: `SELECT 1 FROM course_transactions WHERE course_id = $1 AND student_id = $2
				AND status = 'paid' AND deleted_at IS NULL`,
		}, nil
	case models.ProductEvent:
		return table{
			name: "event_reviews", product: "event_id", rating: "NULL::smallint",
			purchase: `SELECT 1 FROM event_registrants WHERE event_id = $1 AND student_id = $2
				AND status = 'paid' AND deleted_at IS NULL`,
		}, nil
	}
	return table{}, ErrUnknownKind
}

func (t table) selectSQL(kind models.ProductKind) string {
	return fmt.Sprintf(`SELECT r.id, '%s', r.%s, r.student_id, u.full_name, %s, r.body, r.is_approved,
		r.created_at, r.updated_at
		FROM %s r
		JOIN students s ON s.id = r.student_id
		JOIN users u ON u.id = s.user_id`, kind, t.product, t.rating, t.name)
}

func scanReview(row interface{ Scan(...any) error }) (*models.Review, error) {
	var rv models.Review
	var rating *int16
	err := row.Scan(&rv.ID, &rv.ProductKind, &rv.ProductID, &rv.StudentID, &rv.StudentName, &rating,
		&rv.Body, &rv.IsApproved, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rating != nil {
		v := int(*rating)
		rv.Rating = &v
	}
	return &rv, nil
}

// Eligibility reports whether the student paid for the product and whether
// an active review by them already exists.
func (r *Repository) Eligibility(ctx context.Context, kind models.ProductKind, productID, studentID uuid.UUID) (purchased, reviewed bool, err error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, false, err
	}
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (`+t.purchase+`),
		EXISTS (SELECT 1 FROM `+t.name+` WHERE `+t.product+` = $1 AND student_id = $2 AND deleted_at IS NULL)`,
		productID, studentID).Scan(&purchased, &reviewed)
	if err != nil {
		return false, false, database.Classify(err, "review")
	}
	return purchased, reviewed, nil
}

// Insert stores an unapproved review unless the student already has one for
// the product; created is false in that case.
func (r *Repository) Insert(ctx context.Context, rv *models.Review) (bool, error) {
	t, err := tableFor(rv.ProductKind)
	if err != nil {
		return false, err
	}
	var row interface{ Scan(...any) error }
	if rv.ProductKind == models.ProductCourse {
		row = r.pool.QueryRow(ctx, `INSERT INTO course_reviews (course_id, student_id, rating, body)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (course_id, student_id) WHERE deleted_at IS NULL DO NOTHING
			RETURNING id, created_at, updated_at`, rv.ProductID, rv.StudentID, rv.Rating, rv.Body)
	} else {
		row = r.pool.QueryRow(ctx, `INSERT INTO `+t.name+` (`+t.product+`, student_id, body)
			VALUES ($1, $2, $3)
			ON CONFLICT (`+t.product+`, student_id) WHERE deleted_at IS NULL DO NOTHING
			RETURNING id, created_at, updated_at`, rv.ProductID, rv.StudentID, rv.Body)
	}
	err = row.Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, database.Classify(err, "review")
	}
	return true, nil
}

// Get returns a non-deleted review.
func (r *Repository) Get(ctx context.Context, kind models.ProductKind, id uuid.UUID) (*models.Review, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rv, err := scanReview(r.pool.QueryRow(ctx, t.selectSQL(kind)+` WHERE r.id = $1 AND r.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "review")
	}
	return rv, nil
}

// List returns a page of reviews, newest first.
func (r *Repository) List(ctx context.Context, kind models.ProductKind, lf ListFilter) ([]models.Review, int64, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}
	f := database.NewFilter("r").Search(lf.Search, "r.body", "u.full_name")
	if lf.ProductID != nil {
		f.Where("r."+t.product+" = ?", *lf.ProductID)
	}
	if lf.StudentID != nil {
		f.Where("r.student_id = ?", *lf.StudentID)
	}
	if lf.IsApproved != nil {
		f.Where("r.is_approved = ?", *lf.IsApproved)
	}
	var total int64
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+t.name+` r
		JOIN students s ON s.id = r.student_id
		JOIN users u ON u.id = s.user_id`+f.SQL(), f.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, database.Classify(err, "review")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, t.selectSQL(kind)+f.SQL()+` ORDER BY r.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "review")
	}
	defer rows.Close()
	list := []models.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "review")
		}
		list = append(list, *rv)
	}
	return list, total, database.Classify(rows.Err(), "review")
}

// SetApproved changes the moderation flag and reports whether it changed.
func (r *Repository) SetApproved(ctx context.Context, kind models.ProductKind, id uuid.UUID, approved bool) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+t.name+` SET is_approved = $2, updated_at = NOW()
		WHERE id = $1 AND is_approved <> $2 AND deleted_at IS NULL`, id, approved)
	if err != nil {
		return false, database.Classify(err, "review")
	}
	return tag.RowsAffected() == 1, nil
}

// Delete soft-deletes a review. Deleting twice succeeds.
func (r *Repository) Delete(ctx context.Context, kind models.ProductKind, id uuid.UUID) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	return database.SoftDelete(ctx, r.pool, t.name, "review", id)
}

// Summarize aggregates approved reviews of a product.
func (r *Repository) Summarize(ctx context.Context, kind models.ProductKind, productID uuid.UUID) (Summary, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*), AVG(`+t.rating+`)::float8 FROM `+t.name+` r
		WHERE r.`+t.product+` = $1 AND r.is_approved AND r.deleted_at IS NULL`, productID).
		Scan(&s.Count, &s.AverageRating)
	if err != nil {
		return Summary{}, database.Classify(err, "review")
	}
	return s, nil
}
