// Package taxonomy manages the name/slug lookup tables: course categories,
// course types, article categories and tags.
package taxonomy

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/cache"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Kind identifies one lookup table.
type Kind struct {
	Table    string
	Entity   string
	CacheTag string
}

var (
	CourseCategories  = Kind{Table: "course_categories", Entity: "course category", CacheTag: cache.TagCourses}
	CourseTypes       = Kind{Table: "course_types", Entity: "course type", CacheTag: cache.TagCourses}
	ArticleCategories = Kind{Table: "article_categories", Entity: "article category", CacheTag: cache.TagArticles}
	Tags              = Kind{Table: "tags", Entity: "tag", CacheTag: cache.TagArticles}
)

// Repository handles persistence of one Kind.
type Repository struct {
	pool *pgxpool.Pool
	kind Kind
}

// NewRepository creates a repository for kind.
func NewRepository(pool *pgxpool.Pool, kind Kind) *Repository {
	return &Repository{pool: pool, kind: kind}
}

// List returns a page of entries matching search on name or slug.
func (r *Repository) List(ctx context.Context, search string, p pagination.Params) ([]models.Taxonomy, int64, error) {
	f := database.NewFilter("t").Search(search, "t.name", "t.slug")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+r.kind.Table+` t`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, r.kind.Entity)
	}
	suffix, args := f.Page(p.Limit, p.Offset())
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.slug, t.created_at, t.updated_at FROM `+r.kind.Table+` t`+
		f.SQL()+` ORDER BY t.name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, r.kind.Entity)
	}
	defer rows.Close()
	list := []models.Taxonomy{}
	for rows.Next() {
		var t models.Taxonomy
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, database.Classify(err, r.kind.Entity)
		}
		list = append(list, t)
	}
	return list, total, database.Classify(rows.Err(), r.kind.Entity)
}

// Get returns a non-deleted entry.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Taxonomy, error) {
	var t models.Taxonomy
	err := r.pool.QueryRow(ctx, `SELECT id, name, slug, created_at, updated_at FROM `+r.kind.Table+`
		WHERE id = $1 AND `+database.NotDeleted, id).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, r.kind.Entity)
	}
	return &t, nil
}

// Create inserts an entry.
func (r *Repository) Create(ctx context.Context, name, slug string) (*models.Taxonomy, error) {
	var t models.Taxonomy
	err := r.pool.QueryRow(ctx, `INSERT INTO `+r.kind.Table+` (name, slug) VALUES ($1, $2)
		RETURNING id, name, slug, created_at, updated_at`, name, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, r.kind.Entity)
	}
	return &t, nil
}

// Update renames an entry.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, slug string) (*models.Taxonomy, error) {
	var t models.Taxonomy
	err := r.pool.QueryRow(ctx, `UPDATE `+r.kind.Table+` SET name = $2, slug = $3, updated_at = NOW()
		WHERE id = $1 AND `+database.NotDeleted+` RETURNING id, name, slug, created_at, updated_at`, id, name, slug).
		Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, r.kind.Entity)
	}
	return &t, nil
}

// Delete soft-deletes an entry.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, r.kind.Table, r.kind.Entity, id)
}
