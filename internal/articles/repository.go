// Package articles is the back-office for blog articles. Admins manage every
// article; writers manage their own.
package articles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Repository handles article persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an article repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Fields are the writable article columns.
type Fields struct {
	Title        string
	Slug         string
	Content      string
	ThumbnailURL *string
	CategoryID   *uuid.UUID
	WriterID     *uuid.UUID
	IsPublished  bool
	TagIDs       []uuid.UUID
}

// ListFilter narrows article listings.
type ListFilter struct {
	Search      string
	CategoryID  *uuid.UUID
	WriterID    *uuid.UUID
	TagID       *uuid.UUID
	IsPublished *bool
	Page        pagination.Params
}

const articleSelect = `SELECT a.id, a.title, a.slug, a.content, a.thumbnail_url, a.category_id, ac.name,
		a.writer_id, wu.full_name, a.is_published, a.published_at, a.created_at, a.updated_at
	FROM articles a
	LEFT JOIN article_categories ac ON ac.id = a.category_id
	LEFT JOIN writers w ON w.id = a.writer_id
	LEFT JOIN users wu ON wu.id = w.user_id`

// ArticleSelect is the joined article projection shared with the public catalog.
func ArticleSelect() string { return articleSelect }

// ScanArticle reads one row produced by ArticleSelect.
func ScanArticle(row interface{ Scan(...any) error }) (*models.Article, error) {
	var a models.Article
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.ThumbnailURL, &a.CategoryID, &a.CategoryName,
		&a.WriterID, &a.WriterName, &a.IsPublished, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (f ListFilter) build() *database.Filter {
	q := database.NewFilter("a").Search(f.Search, "a.title", "a.content")
	if f.CategoryID != nil {
		q.Where("a.category_id = ?", *f.CategoryID)
	}
	if f.WriterID != nil {
		q.Where("a.writer_id = ?", *f.WriterID)
	}
	if f.TagID != nil {
		q.Where("EXISTS (SELECT 1 FROM article_tags x WHERE x.article_id = a.id AND x.tag_id = ?)", *f.TagID)
	}
	if f.IsPublished != nil {
		q.Where("a.is_published = ?", *f.IsPublished)
	}
	return q
}

// List returns a page of articles without their content.
func (r *Repository) List(ctx context.Context, lf ListFilter) ([]models.Article, int64, error) {
	f := lf.build()
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles a`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "article")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, articleSelect+f.SQL()+` ORDER BY a.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "article")
	}
	defer rows.Close()
	list := []models.Article{}
	for rows.Next() {
		a, err := ScanArticle(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "article")
		}
		a.Content = ""
		list = append(list, *a)
	}
	return list, total, database.Classify(rows.Err(), "article")
}

// Get returns an article with its tags.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	a, err := ScanArticle(r.pool.QueryRow(ctx, articleSelect+` WHERE a.id = $1 AND a.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "article")
	}
	if a.Tags, err = ArticleTags(ctx, r.pool, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// ArticleTags lists the non-deleted tags of an article.
func ArticleTags(ctx context.Context, db database.DBTX, articleID uuid.UUID) ([]models.Taxonomy, error) {
	rows, err := db.Query(ctx, `SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM article_tags x JOIN tags t ON t.id = x.tag_id
		WHERE x.article_id = $1 AND t.deleted_at IS NULL ORDER BY t.name`, articleID)
	if err != nil {
		return nil, database.Classify(err, "tag")
	}
	defer rows.Close()
	tags := []models.Taxonomy{}
	for rows.Next() {
		var t models.Taxonomy
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, database.Classify(err, "tag")
		}
		tags = append(tags, t)
	}
	return tags, database.Classify(rows.Err(), "tag")
}

func setTags(ctx context.Context, tx database.DBTX, articleID uuid.UUID, tagIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM article_tags WHERE article_id = $1`, articleID); err != nil {
		return database.Classify(err, "article tag")
	}
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO article_tags (article_id, tag_id)
		SELECT $1, t.id FROM tags t WHERE t.id = ANY($2) AND t.deleted_at IS NULL
		ON CONFLICT DO NOTHING`, articleID, tagIDs)
	return database.Classify(err, "article tag")
}

// publishedAt returns the timestamp to store when an article is published.
func publishedAt(published bool, now time.Time) *time.Time {
	if !published {
		return nil
	}
	return &now
}

// Create inserts an article and its tag set.
func (r *Repository) Create(ctx context.Context, f Fields) (*models.Article, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		err := tx.QueryRow(ctx, `INSERT INTO articles
			(title, slug, content, thumbnail_url, category_id, writer_id, is_published, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			f.Title, f.Slug, f.Content, f.ThumbnailURL, f.CategoryID, f.WriterID, f.IsPublished,
			publishedAt(f.IsPublished, time.Now().UTC())).Scan(&id)
		if err != nil {
			return database.Classify(err, "article")
		}
		return setTags(ctx, tx, id, f.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update replaces the article fields and tag set. published_at is set on the
// first publish and cleared on unpublish. A non-nil owner restricts the update
// to that writer's articles.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, owner *uuid.UUID, f Fields) (*models.Article, error) {
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		tag, err := tx.Exec(ctx, `UPDATE articles SET title = $2, slug = $3, content = $4,
			thumbnail_url = COALESCE($5, thumbnail_url), category_id = $6, writer_id = $7, is_published = $8,
			published_at = CASE WHEN $8 THEN COALESCE(published_at, NOW()) ELSE NULL END, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL AND ($9::uuid IS NULL OR writer_id = $9)`,
			id, f.Title, f.Slug, f.Content, f.ThumbnailURL, f.CategoryID, f.WriterID, f.IsPublished, owner)
		if err != nil {
			return database.Classify(err, "article")
		}
		if tag.RowsAffected() == 0 {
			return database.Classify(database.ErrNoRows, "article")
		}
		return setTags(ctx, tx, id, f.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes an article.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "articles", "article", id)
}
