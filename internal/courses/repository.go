// Package courses is the admin back-office for courses and the tools they teach.
package courses

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Repository handles course and tool persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a course repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Fields are the writable course columns.
type Fields struct {
	Title        string
	Slug         string
	Description  string
	ThumbnailURL *string
	Price        decimal.Decimal
	CategoryID   *uuid.UUID
	TypeID       *uuid.UUID
	MentorID     *uuid.UUID
	IsPublished  bool
	ToolIDs      []uuid.UUID
}

// ListFilter narrows course listings.
type ListFilter struct {
	Search      string
	CategoryID  *uuid.UUID
	TypeID      *uuid.UUID
	MentorID    *uuid.UUID
	IsPublished *bool
	Page        pagination.Params
}

const courseSelect = `SELECT c.id, c.title, c.slug, c.description, c.thumbnail_url, c.price,
		c.category_id, cc.name, c.type_id, ct.name, c.mentor_id, mu.full_name,
		c.is_published, c.created_at, c.updated_at
	FROM courses c
	LEFT JOIN course_categories cc ON cc.id = c.category_id
	LEFT JOIN course_types ct ON ct.id = c.type_id
	LEFT JOIN mentors m ON m.id = c.mentor_id
	LEFT JOIN users mu ON mu.id = m.user_id`

// ScanCourse reads one row produced by CourseSelect.
func ScanCourse(row interface{ Scan(...any) error }) (*models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.ThumbnailURL, &c.Price,
		&c.CategoryID, &c.CategoryName, &c.TypeID, &c.TypeName, &c.MentorID, &c.MentorName,
		&c.IsPublished, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CourseSelect is the joined course projection shared with the public catalog.
func CourseSelect() string { return courseSelect }

func (f ListFilter) build() *database.Filter {
	q := database.NewFilter("c").Search(f.Search, "c.title", "c.description")
	if f.CategoryID != nil {
		q.Where("c.category_id = ?", *f.CategoryID)
	}
	if f.TypeID != nil {
		q.Where("c.type_id = ?", *f.TypeID)
	}
	if f.MentorID != nil {
		q.Where("c.mentor_id = ?", *f.MentorID)
	}
	if f.IsPublished != nil {
		q.Where("c.is_published = ?", *f.IsPublished)
	}
	return q
}

// List returns a page of courses.
func (r *Repository) List(ctx context.Context, lf ListFilter) ([]models.Course, int64, error) {
	f := lf.build()
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses c`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "course")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, courseSelect+f.SQL()+` ORDER BY c.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "course")
	}
	defer rows.Close()
	list := []models.Course{}
	for rows.Next() {
		c, err := ScanCourse(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "course")
		}
		list = append(list, *c)
	}
	return list, total, database.Classify(rows.Err(), "course")
}

// Get returns a course with its tools.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c, err := ScanCourse(r.pool.QueryRow(ctx, courseSelect+` WHERE c.id = $1 AND c.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "course")
	}
	if c.Tools, err = CourseTools(ctx, r.pool, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// CourseTools lists the non-deleted tools of a course.
func CourseTools(ctx context.Context, db database.DBTX, courseID uuid.UUID) ([]models.Tool, error) {
	rows, err := db.Query(ctx, `SELECT t.id, t.name, t.logo_url, t.created_at, t.updated_at
		FROM course_tools x JOIN tools t ON t.id = x.tool_id
		WHERE x.course_id = $1 AND t.deleted_at IS NULL ORDER BY t.name`, courseID)
	if err != nil {
		return nil, database.Classify(err, "tool")
	}
	defer rows.Close()
	tools := []models.Tool{}
	for rows.Next() {
		var t models.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, database.Classify(err, "tool")
		}
		tools = append(tools, t)
	}
	return tools, database.Classify(rows.Err(), "tool")
}

func setTools(ctx context.Context, tx database.DBTX, courseID uuid.UUID, toolIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM course_tools WHERE course_id = $1`, courseID); err != nil {
		return database.Classify(err, "course tool")
	}
	if len(toolIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO course_tools (course_id, tool_id)
		SELECT $1, t.id FROM tools t WHERE t.id = ANY($2) AND t.deleted_at IS NULL
		ON CONFLICT DO NOTHING`, courseID, toolIDs)
	return database.Classify(err, "course tool")
}

// Create inserts a course and its tool set.
func (r *Repository) Create(ctx context.Context, f Fields) (*models.Course, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		err := tx.QueryRow(ctx, `INSERT INTO courses
			(title, slug, description, thumbnail_url, price, category_id, type_id, mentor_id, is_published)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			f.Title, f.Slug, f.Description, f.ThumbnailURL, f.Price, f.CategoryID, f.TypeID, f.MentorID, f.IsPublished).Scan(&id)
		if err != nil {
			return database.Classify(err, "course")
		}
		return setTools(ctx, tx, id, f.ToolIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update replaces the course fields and tool set.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f Fields) (*models.Course, error) {
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		tag, err := tx.Exec(ctx, `UPDATE courses SET title = $2, slug = $3, description = $4,
			thumbnail_url = COALESCE($5, thumbnail_url), price = $6, category_id = $7, type_id = $8,
			mentor_id = $9, is_published = $10, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL`,
			id, f.Title, f.Slug, f.Description, f.ThumbnailURL, f.Price, f.CategoryID, f.TypeID, f.MentorID, f.IsPublished)
		if err != nil {
			return database.Classify(err, "course")
		}
		if tag.RowsAffected() == 0 {
			return database.Classify(database.ErrNoRows, "course")
		}
		return setTools(ctx, tx, id, f.ToolIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes a course.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "courses", "course", id)
}

// Price returns the current price of a non-deleted, published course.
func (r *Repository) Price(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT price FROM courses WHERE id = $1 AND is_published AND deleted_at IS NULL`, id).Scan(&price)
	return price, database.Classify(err, "course")
}

// Tools

// ListTools returns a page of tools.
func (r *Repository) ListTools(ctx context.Context, search string, p pagination.Params) ([]models.Tool, int64, error) {
	f := database.NewFilter("").Search(search, "name")
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tools`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "tool")
	}
	suffix, args := f.Page(p.Limit, p.Offset())
	rows, err := r.pool.Query(ctx, `SELECT id, name, logo_url, created_at, updated_at FROM tools`+f.SQL()+` ORDER BY name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "tool")
	}
	defer rows.Close()
	list := []models.Tool{}
	for rows.Next() {
		var t models.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, database.Classify(err, "tool")
		}
		list = append(list, t)
	}
	return list, total, database.Classify(rows.Err(), "tool")
}

// GetTool returns a tool by ID.
func (r *Repository) GetTool(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	var t models.Tool
	err := r.pool.QueryRow(ctx, `SELECT id, name, logo_url, created_at, updated_at FROM tools
		WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&t.ID, &t.Name, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "tool")
	}
	return &t, nil
}

// CreateTool inserts a tool.
func (r *Repository) CreateTool(ctx context.Context, name string, logoURL *string) (*models.Tool, error) {
	var t models.Tool
	err := r.pool.QueryRow(ctx, `INSERT INTO tools (name, logo_url) VALUES ($1, $2)
		RETURNING id, name, logo_url, created_at, updated_at`, name, logoURL).
		Scan(&t.ID, &t.Name, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "tool")
	}
	return &t, nil
}

// UpdateTool changes a tool. A nil logoURL keeps the current logo.
func (r *Repository) UpdateTool(ctx context.Context, id uuid.UUID, name string, logoURL *string) (*models.Tool, error) {
	var t models.Tool
	err := r.pool.QueryRow(ctx, `UPDATE tools SET name = $2, logo_url = COALESCE($3, logo_url), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, name, logo_url, created_at, updated_at`, id, name, logoURL).
		Scan(&t.ID, &t.Name, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "tool")
	}
	return &t, nil
}

// DeleteTool soft-deletes a tool.
func (r *Repository) DeleteTool(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "tools", "tool", id)
}
