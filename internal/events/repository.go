package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/audit"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/pagination"
)

// Fields are the writable event columns.
type Fields struct {
	Title        string
	Slug         string
	Description  string
	ThumbnailURL *string
	Price        *decimal.Decimal
	Location     string
	StartsAt     time.Time
	EndsAt       *time.Time
	IsPublished  bool
}

// ListFilter narrows event listings. Upcoming keeps events that have not started.
type ListFilter struct {
	Search      string
	IsPublished *bool
	Upcoming    bool
	Page        pagination.Params
}

// RegistrantFilter narrows registrant listings.
type RegistrantFilter struct {
	EventID   *uuid.UUID
	StudentID *uuid.UUID
	Status    *models.RegistrantStatus
	Search    string
	Page      pagination.Params
}

// Repository handles event and registrant persistence.
type Repository struct {
	pool database.Conn
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `e.id, e.title, e.slug, e.description, e.thumbnail_url, e.price, e.location,
	e.starts_at, e.ends_at, e.is_published, e.created_at, e.updated_at`

// EventSelect is the event projection shared with the public catalog.
func EventSelect() string { return `SELECT ` + eventColumns + ` FROM events e` }

// ScanEvent reads one row produced by EventSelect.
func ScanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.Description, &e.ThumbnailURL, &e.Price, &e.Location,
		&e.StartsAt, &e.EndsAt, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns a page of events, soonest first.
func (r *Repository) List(ctx context.Context, lf ListFilter) ([]models.Event, int64, error) {
	f := database.NewFilter("e").Search(lf.Search, "e.title", "e.location")
	if lf.IsPublished != nil {
		f.Where("e.is_published = ?", *lf.IsPublished)
	}
	if lf.Upcoming {
		f.Where("e.starts_at >= NOW()")
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "event")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, EventSelect()+f.SQL()+` ORDER BY e.starts_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "event")
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := ScanEvent(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "event")
		}
		list = append(list, *e)
	}
	return list, total, database.Classify(rows.Err(), "event")
}

// Get returns a non-deleted event.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := ScanEvent(r.pool.QueryRow(ctx, EventSelect()+` WHERE e.id = $1 AND e.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return e, nil
}

// GetPublished returns an event open for registration.
func (r *Repository) GetPublished(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := ScanEvent(r.pool.QueryRow(ctx, EventSelect()+` WHERE e.id = $1 AND e.is_published AND e.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, f Fields) (*models.Event, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `INSERT INTO events
		(title, slug, description, thumbnail_url, price, location, starts_at, ends_at, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		f.Title, f.Slug, f.Description, f.ThumbnailURL, f.Price, f.Location, f.StartsAt, f.EndsAt, f.IsPublished).Scan(&id)
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	return r.Get(ctx, id)
}

// Update replaces the event fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f Fields) (*models.Event, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET title = $2, slug = $3, description = $4,
		thumbnail_url = COALESCE($5, thumbnail_url), price = $6, location = $7, starts_at = $8, ends_at = $9,
		is_published = $10, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, f.Title, f.Slug, f.Description, f.ThumbnailURL, f.Price, f.Location, f.StartsAt, f.EndsAt, f.IsPublished)
	if err != nil {
		return nil, database.Classify(err, "event")
	}
	if tag.RowsAffected() == 0 {
		return nil, database.Classify(database.ErrNoRows, "event")
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes an event.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "events", "event", id)
}

// Registrants

const registrantSelect = `SELECT er.id, er.event_id, e.title, er.student_id, u.full_name, er.phone,
		er.payment_proof_url, er.payment_proof_id, er.status, er.created_at, er.updated_at
	FROM event_registrants er
	JOIN events e ON e.id = er.event_id
	JOIN students s ON s.id = er.student_id
	JOIN users u ON u.id = s.user_id`

func scanRegistrant(row interface{ Scan(...any) error }) (*models.EventRegistrant, error) {
	var r models.EventRegistrant
	err := row.Scan(&r.ID, &r.EventID, &r.EventTitle, &r.StudentID, &r.StudentName, &r.Phone,
		&r.PaymentProofURL, &r.PaymentProofID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRegistrant creates the registration unless the student already holds
// an active one for the event; created is false in that case. The partial
// unique index on (event_id, student_id) makes this safe under concurrency.
func (r *Repository) InsertRegistrant(ctx context.Context, reg *models.EventRegistrant) (bool, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO event_registrants
		(event_id, student_id, phone, payment_proof_url, payment_proof_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, student_id) WHERE deleted_at IS NULL DO NOTHING
		RETURNING id, created_at, updated_at`,
		reg.EventID, reg.StudentID, reg.Phone, reg.PaymentProofURL, reg.PaymentProofID, reg.Status).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, database.Classify(err, "event registration")
	}
	return true, nil
}

// GetRegistrant returns a non-deleted registration.
func (r *Repository) GetRegistrant(ctx context.Context, id uuid.UUID) (*models.EventRegistrant, error) {
	reg, err := scanRegistrant(r.pool.QueryRow(ctx, registrantSelect+` WHERE er.id = $1 AND er.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "event registration")
	}
	return reg, nil
}

// ListRegistrants returns a page of registrations, newest first.
func (r *Repository) ListRegistrants(ctx context.Context, rf RegistrantFilter) ([]models.EventRegistrant, int64, error) {
	f := database.NewFilter("er").Search(rf.Search, "u.full_name", "er.phone", "e.title")
	if rf.EventID != nil {
		f.Where("er.event_id = ?", *rf.EventID)
	}
	if rf.StudentID != nil {
		f.Where("er.student_id = ?", *rf.StudentID)
	}
	if rf.Status != nil {
		f.Where("er.status = ?", *rf.Status)
	}
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_registrants er
		JOIN events e ON e.id = er.event_id
		JOIN students s ON s.id = er.student_id
		JOIN users u ON u.id = s.user_id`+f.SQL(), f.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, database.Classify(err, "event registration")
	}
	suffix, args := f.Page(rf.Page.Limit, rf.Page.Offset())
	rows, err := r.pool.Query(ctx, registrantSelect+f.SQL()+` ORDER BY er.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "event registration")
	}
	defer rows.Close()
	list := []models.EventRegistrant{}
	for rows.Next() {
		reg, err := scanRegistrant(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "event registration")
		}
		list = append(list, *reg)
	}
	return list, total, database.Classify(rows.Err(), "event registration")
}

// TransitionRegistrant moves a registration from -> to if it is still in
// from, writing the audit row in the same transaction. It reports false when
// the row changed concurrently.
func (r *Repository) TransitionRegistrant(ctx context.Context, id uuid.UUID, from, to models.RegistrantStatus, actor models.Actor, note string) (bool, error) {
	moved := false
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		tag, err := tx.Exec(ctx, `UPDATE event_registrants SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2 AND deleted_at IS NULL`, id, from, to)
		if err != nil {
			return database.Classify(err, "event registration")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		moved = true
		return audit.Record(ctx, tx, models.SubjectEventRegistrant, id, string(from), string(to), actor, note)
	})
	return moved, err
}

// RegistrantAudits returns the status history of a registration.
func (r *Repository) RegistrantAudits(ctx context.Context, id uuid.UUID) ([]models.StatusAudit, error) {
	return audit.List(ctx, r.pool, models.SubjectEventRegistrant, id)
}

// DeleteRegistrant soft-deletes a registration, freeing the (event, student) slot.
func (r *Repository) DeleteRegistrant(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "event_registrants", "event registration", id)
}
