// Package people manages the mentor, student and writer profiles. Each profile
// owns a user account; both rows are written in one transaction.
package people

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Account holds the user fields shared by every profile.
type Account struct {
	Email        string
	FullName     string
	Phone        *string
	AvatarURL    *string
	PasswordHash *string // required on create; nil on update keeps the password
}

// Repository handles profile persistence.
type Repository struct {
	pool database.Conn
}

// NewRepository creates a people repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilter narrows profile listings.
type ListFilter struct {
	Search string
	Page   pagination.Params
}

func (r *Repository) count(ctx context.Context, table string, f *database.Filter, entity string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` p JOIN users u ON u.id = p.user_id`+f.SQL(), f.Args()...).Scan(&total)
	return total, database.Classify(err, entity)
}

func (r *Repository) createAccount(ctx context.Context, tx database.DBTX, role string, a Account) (uuid.UUID, error) {
	hash := ""
	if a.PasswordHash != nil {
		hash = *a.PasswordHash
	}
	u, err := auth.InsertUser(ctx, tx, auth.NewUser{
		Email: a.Email, PasswordHash: hash, FullName: strings.TrimSpace(a.FullName),
		Phone: a.Phone, AvatarURL: a.AvatarURL, Role: role,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (r *Repository) userIDOf(ctx context.Context, tx database.DBTX, table, entity string, id uuid.UUID) (uuid.UUID, error) {
	var userID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT user_id FROM `+table+` WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&userID)
	return userID, database.Classify(err, entity)
}

// deleteProfile tombstones the profile and its user.
func (r *Repository) deleteProfile(ctx context.Context, table, entity string, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT user_id FROM `+table+` WHERE id = $1`, id).Scan(&userID)
		if err != nil {
			return database.Classify(err, entity)
		}
		if err := database.SoftDelete(ctx, tx, table, entity, id); err != nil {
			return err
		}
		return database.SoftDelete(ctx, tx, "users", "user", userID)
	})
}

// Mentors

const mentorSelect = `SELECT p.id, p.user_id, u.email, u.full_name, u.phone, p.profession, p.bio, p.photo_url, p.created_at, p.updated_at
	FROM mentors p JOIN users u ON u.id = p.user_id`

func scanMentor(row interface{ Scan(...any) error }) (*models.Mentor, error) {
	var m models.Mentor
	if err := row.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Phone, &m.Profession, &m.Bio, &m.PhotoURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMentors returns a page of mentors.
func (r *Repository) ListMentors(ctx context.Context, lf ListFilter) ([]models.Mentor, int64, error) {
	f := database.NewFilter("p").Search(lf.Search, "u.full_name", "u.email", "p.profession")
	total, err := r.count(ctx, "mentors", f, "mentor")
	if err != nil {
		return nil, 0, err
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, mentorSelect+f.SQL()+` ORDER BY u.full_name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "mentor")
	}
	defer rows.Close()
	list := []models.Mentor{}
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "mentor")
		}
		list = append(list, *m)
	}
	return list, total, database.Classify(rows.Err(), "mentor")
}

// GetMentor returns a mentor by ID.
func (r *Repository) GetMentor(ctx context.Context, id uuid.UUID) (*models.Mentor, error) {
	m, err := scanMentor(r.pool.QueryRow(ctx, mentorSelect+` WHERE p.id = $1 AND p.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "mentor")
	}
	return m, nil
}

// MentorFields are the profile-specific mentor fields.
type MentorFields struct {
	Profession string
	Bio        string
	PhotoURL   *string
}

// CreateMentor creates the account and the mentor profile.
func (r *Repository) CreateMentor(ctx context.Context, a Account, mf MentorFields) (*models.Mentor, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.createAccount(ctx, tx, models.RoleMentor, a)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `INSERT INTO mentors (user_id, profession, bio, photo_url) VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, mf.Profession, mf.Bio, mf.PhotoURL).Scan(&id)
		return database.Classify(err, "mentor")
	})
	if err != nil {
		return nil, err
	}
	return r.GetMentor(ctx, id)
}

// UpdateMentor updates the account and the mentor profile.
func (r *Repository) UpdateMentor(ctx context.Context, id uuid.UUID, a Account, mf MentorFields) (*models.Mentor, error) {
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.userIDOf(ctx, tx, "mentors", "mentor", id)
		if err != nil {
			return err
		}
		if err := auth.UpdateUser(ctx, tx, userID, a.Email, strings.TrimSpace(a.FullName), a.Phone, a.AvatarURL, a.PasswordHash); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE mentors SET profession = $2, bio = $3, photo_url = COALESCE($4, photo_url), updated_at = NOW()
			WHERE id = $1`, id, mf.Profession, mf.Bio, mf.PhotoURL)
		return database.Classify(err, "mentor")
	})
	if err != nil {
		return nil, err
	}
	return r.GetMentor(ctx, id)
}

// DeleteMentor soft-deletes a mentor and their account.
func (r *Repository) DeleteMentor(ctx context.Context, id uuid.UUID) error {
	return r.deleteProfile(ctx, "mentors", "mentor", id)
}

// Students

const studentSelect = `SELECT p.id, p.user_id, u.email, u.full_name, u.phone, p.institution, p.created_at, p.updated_at
	FROM students p JOIN users u ON u.id = p.user_id`

func scanStudent(row interface{ Scan(...any) error }) (*models.Student, error) {
	var s models.Student
	if err := row.Scan(&s.ID, &s.UserID, &s.Email, &s.FullName, &s.Phone, &s.Institution, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStudents returns a page of students.
func (r *Repository) ListStudents(ctx context.Context, lf ListFilter) ([]models.Student, int64, error) {
	f := database.NewFilter("p").Search(lf.Search, "u.full_name", "u.email", "p.institution")
	total, err := r.count(ctx, "students", f, "student")
	if err != nil {
		return nil, 0, err
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, studentSelect+f.SQL()+` ORDER BY u.full_name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "student")
	}
	defer rows.Close()
	list := []models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "student")
		}
		list = append(list, *s)
	}
	return list, total, database.Classify(rows.Err(), "student")
}

// GetStudent returns a student by ID.
func (r *Repository) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx, studentSelect+` WHERE p.id = $1 AND p.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "student")
	}
	return s, nil
}

// StudentIDByUserID resolves the student profile of a user.
func (r *Repository) StudentIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM students WHERE user_id = $1 AND deleted_at IS NULL`, userID).Scan(&id)
	return id, database.Classify(err, "student")
}

// CreateStudent creates the account and the student profile.
func (r *Repository) CreateStudent(ctx context.Context, a Account, institution string) (*models.Student, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.createAccount(ctx, tx, models.RoleStudent, a)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `INSERT INTO students (user_id, institution) VALUES ($1, $2) RETURNING id`, userID, institution).Scan(&id)
		return database.Classify(err, "student")
	})
	if err != nil {
		return nil, err
	}
	return r.GetStudent(ctx, id)
}

// UpdateStudent updates the account and the student profile.
func (r *Repository) UpdateStudent(ctx context.Context, id uuid.UUID, a Account, institution string) (*models.Student, error) {
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.userIDOf(ctx, tx, "students", "student", id)
		if err != nil {
			return err
		}
		if err := auth.UpdateUser(ctx, tx, userID, a.Email, strings.TrimSpace(a.FullName), a.Phone, a.AvatarURL, a.PasswordHash); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE students SET institution = $2, updated_at = NOW() WHERE id = $1`, id, institution)
		return database.Classify(err, "student")
	})
	if err != nil {
		return nil, err
	}
	return r.GetStudent(ctx, id)
}

// DeleteStudent soft-deletes a student and their account.
func (r *Repository) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	return r.deleteProfile(ctx, "students", "student", id)
}

// Writers

const writerSelect = `SELECT p.id, p.user_id, u.email, u.full_name, u.phone, p.bio, p.created_at, p.updated_at
	FROM writers p JOIN users u ON u.id = p.user_id`

func scanWriter(row interface{ Scan(...any) error }) (*models.Writer, error) {
	var w models.Writer
	if err := row.Scan(&w.ID, &w.UserID, &w.Email, &w.FullName, &w.Phone, &w.Bio, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWriters returns a page of writers.
func (r *Repository) ListWriters(ctx context.Context, lf ListFilter) ([]models.Writer, int64, error) {
	f := database.NewFilter("p").Search(lf.Search, "u.full_name", "u.email")
	total, err := r.count(ctx, "writers", f, "writer")
	if err != nil {
		return nil, 0, err
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, writerSelect+f.SQL()+` ORDER BY u.full_name`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "writer")
	}
	defer rows.Close()
	list := []models.Writer{}
	for rows.Next() {
		w, err := scanWriter(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "writer")
		}
		list = append(list, *w)
	}
	return list, total, database.Classify(rows.Err(), "writer")
}

// GetWriter returns a writer by ID.
func (r *Repository) GetWriter(ctx context.Context, id uuid.UUID) (*models.Writer, error) {
	w, err := scanWriter(r.pool.QueryRow(ctx, writerSelect+` WHERE p.id = $1 AND p.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "writer")
	}
	return w, nil
}

// WriterIDByUserID resolves the writer profile of a user.
func (r *Repository) WriterIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM writers WHERE user_id = $1 AND deleted_at IS NULL`, userID).Scan(&id)
	return id, database.Classify(err, "writer")
}

// CreateWriter creates the account and the writer profile.
func (r *Repository) CreateWriter(ctx context.Context, a Account, bio string) (*models.Writer, error) {
	var id uuid.UUID
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.createAccount(ctx, tx, models.RoleWriter, a)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `INSERT INTO writers (user_id, bio) VALUES ($1, $2) RETURNING id`, userID, bio).Scan(&id)
		return database.Classify(err, "writer")
	})
	if err != nil {
		return nil, err
	}
	return r.GetWriter(ctx, id)
}

// UpdateWriter updates the account and the writer profile.
func (r *Repository) UpdateWriter(ctx context.Context, id uuid.UUID, a Account, bio string) (*models.Writer, error) {
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		userID, err := r.userIDOf(ctx, tx, "writers", "writer", id)
		if err != nil {
			return err
		}
		if err := auth.UpdateUser(ctx, tx, userID, a.Email, strings.TrimSpace(a.FullName), a.Phone, a.AvatarURL, a.PasswordHash); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE writers SET bio = $2, updated_at = NOW() WHERE id = $1`, id, bio)
		return database.Classify(err, "writer")
	})
	if err != nil {
		return nil, err
	}
	return r.GetWriter(ctx, id)
}

// DeleteWriter soft-deletes a writer and their account.
func (r *Repository) DeleteWriter(ctx context.Context, id uuid.UUID) error {
	return r.deleteProfile(ctx, "writers", "writer", id)
}
