package roles

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Repository handles role persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a roles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of roles.
func (r *Repository) List(ctx context.Context, search string, p pagination.Params) ([]models.Role, int64, error) {
	f := database.NewFilter("r").Search(search, "r.name", "r.description")
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles r`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "role")
	}
	suffix, args := f.Page(p.Limit, p.Offset())
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.description, r.created_at, r.updated_at FROM roles r`+
		f.SQL()+` ORDER BY r.name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "role")
	}
	defer rows.Close()
	list := []models.Role{}
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, database.Classify(err, "role")
		}
		list = append(list, role)
	}
	return list, total, database.Classify(rows.Err(), "role")
}

// Get returns a role by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles
		WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "role")
	}
	return &role, nil
}

// Create inserts a role.
func (r *Repository) Create(ctx context.Context, name, description string) (*models.Role, error) {
	var role models.Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "role")
	}
	return &role, nil
}

// Update changes a role.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description string) (*models.Role, error) {
	var role models.Role
	err := r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL RETURNING id, name, description, created_at, updated_at`, id, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, database.Classify(err, "role")
	}
	return &role, nil
}

// Delete soft-deletes a role.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "roles", "role", id)
}

// Seed inserts the given role names if missing and returns how many were created.
func Seed(ctx context.Context, db database.DBTX, names ...string) (int, error) {
	created := 0
	for _, name := range names {
		tag, err := db.Exec(ctx, `INSERT INTO roles (name, description)
			SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM roles WHERE name = $1 AND deleted_at IS NULL)`,
			name, name+" role")
		if err != nil {
			return created, database.Classify(err, "role")
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}
