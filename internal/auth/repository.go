package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/database"
)

const userColumns = `u.id, u.email, u.password_hash, u.full_name, u.phone, u.avatar_url, u.role_id, r.name, u.created_at, u.updated_at`

// NewUser holds the fields of an account being created.
type NewUser struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        *string
	AvatarURL    *string
	Role         string
}

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.AvatarURL,
		&u.RoleID, &u.RoleName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a non-deleted user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1 AND u.deleted_at IS NULL`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, database.Classify(err, "user")
	}
	return u, nil
}

// GetByEmail returns a non-deleted user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u JOIN roles r ON r.id = u.role_id
		WHERE lower(u.email) = lower($1) AND u.deleted_at IS NULL`
	u, err := scanUser(r.pool.QueryRow(ctx, q, strings.TrimSpace(email)))
	if err != nil {
		return nil, database.Classify(err, "user")
	}
	return u, nil
}

// RegisterStudent creates a student account and its profile in one transaction.
func (r *Repository) RegisterStudent(ctx context.Context, u NewUser, institution string) (*models.User, error) {
	var created *models.User
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		var err error
		created, err = InsertUser(ctx, tx, u)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO students (user_id, institution) VALUES ($1, $2)`, created.ID, institution)
		return database.Classify(err, "student")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// InsertUser creates a user row inside db, resolving u.Role by name.
func InsertUser(ctx context.Context, db database.DBTX, u NewUser) (*models.User, error) {
	roleID, err := RoleIDByName(ctx, db, u.Role)
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO users (email, password_hash, full_name, phone, avatar_url, role_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, password_hash, full_name, phone, avatar_url, role_id, created_at, updated_at`
	var out models.User
	err = db.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.FullName, u.Phone, u.AvatarURL, roleID).
		Scan(&out.ID, &out.Email, &out.PasswordHash, &out.FullName, &out.Phone, &out.AvatarURL, &out.RoleID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.WithCause(ErrEmailTaken, err)
		}
		return nil, database.Classify(err, "user")
	}
	out.RoleName = u.Role
	return &out, nil
}

// UpdateUser changes the account fields shared by every profile. A nil
// passwordHash keeps the current password.
func UpdateUser(ctx context.Context, db database.DBTX, id uuid.UUID, email, fullName string, phone, avatarURL, passwordHash *string) error {
	tag, err := db.Exec(ctx, `UPDATE users SET email = $2, full_name = $3, phone = $4,
		avatar_url = COALESCE($5, avatar_url), password_hash = COALESCE($6, password_hash), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, strings.ToLower(strings.TrimSpace(email)), fullName, phone, avatarURL, passwordHash)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.WithCause(ErrEmailTaken, err)
		}
		return database.Classify(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// RoleIDByName resolves a non-deleted role.
func RoleIDByName(ctx context.Context, db database.DBTX, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1 AND deleted_at IS NULL`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, database.Classify(err, "role "+name)
	}
	return id, nil
}
