package transactions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/audit"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/payment"
	"github.com/learnhub/backend/internal/promocodes"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/money"
	"github.com/learnhub/backend/pkg/pagination"
)

// ListFilter narrows transaction listings.
type ListFilter struct {
	Status    *models.TransactionStatus
	CourseID  *uuid.UUID
	StudentID *uuid.UUID
	Search    string
	Page      pagination.Params
}

// OpenParams describes a new checkout. Price is the current course price.
type OpenParams struct {
	CourseID  uuid.UUID
	StudentID uuid.UUID
	Price     decimal.Decimal
	PromoCode string
	Now       time.Time
}

// Repository handles course transaction persistence.
type Repository struct {
	pool database.Conn
}

// NewRepository creates a transaction repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txSelect = `SELECT t.id, t.course_id, c.title, t.student_id, u.full_name,
	t.original_price, t.discount, t.final_price, t.status, t.promo_code_id,
	t.payment_token, t.payment_redirect_url, t.created_at, t.updated_at
	FROM course_transactions t
	JOIN courses c ON c.id = t.course_id
	JOIN students s ON s.id = t.student_id
	JOIN users u ON u.id = s.user_id`

func scanTx(row interface{ Scan(...any) error }) (*models.CourseTransaction, error) {
	var t models.CourseTransaction
	err := row.Scan(&t.ID, &t.CourseID, &t.CourseTitle, &t.StudentID, &t.StudentName,
		&t.OriginalPrice, &t.Discount, &t.FinalPrice, &t.Status, &t.PromoCodeID,
		&t.PaymentToken, &t.PaymentRedirectURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns a page of transactions, newest first.
func (r *Repository) List(ctx context.Context, lf ListFilter) ([]models.CourseTransaction, int64, error) {
	f := database.NewFilter("t").Search(lf.Search, "c.title", "u.full_name", "u.email")
	if lf.Status != nil {
		f.Where("t.status = ?", *lf.Status)
	}
	if lf.CourseID != nil {
		f.Where("t.course_id = ?", *lf.CourseID)
	}
	if lf.StudentID != nil {
		f.Where("t.student_id = ?", *lf.StudentID)
	}
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM course_transactions t
		JOIN courses c ON c.id = t.course_id
		JOIN students s ON s.id = t.student_id
		JOIN users u ON u.id = s.user_id`+f.SQL(), f.Args()...).Scan(&total)
	if err != nil {
		return nil, 0, database.Classify(err, "transaction")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, txSelect+f.SQL()+` ORDER BY t.created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "transaction")
	}
	defer rows.Close()
	list := []models.CourseTransaction{}
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "transaction")
		}
		list = append(list, *t)
	}
	return list, total, database.Classify(rows.Err(), "transaction")
}

// Get returns a non-deleted transaction.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.CourseTransaction, error) {
	t, err := scanTx(r.pool.QueryRow(ctx, txSelect+` WHERE t.id = $1 AND t.deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "transaction")
	}
	return t, nil
}

// HasPaid reports whether the student already owns the course.
func (r *Repository) HasPaid(ctx context.Context, courseID, studentID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM course_transactions
		WHERE course_id = $1 AND student_id = $2 AND status = 'paid' AND deleted_at IS NULL)`,
		courseID, studentID).Scan(&ok)
	return ok, database.Classify(err, "transaction")
}

// Open claims the promo code (if any), prices the order and inserts it as
// unpaid, all in one database transaction. A failed insert un-claims the code.
func (r *Repository) Open(ctx context.Context, p OpenParams) (*models.CourseTransaction, error) {
	t := &models.CourseTransaction{CourseID: p.CourseID, StudentID: p.StudentID, Status: models.TransactionUnpaid}
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		price := money.NoDiscount(p.Price)
		if code := strings.TrimSpace(p.PromoCode); code != "" {
			promo, err := promocodes.Claim(ctx, tx, code, p.Now)
			if err != nil {
				return err
			}
			price = money.Compute(p.Price, promo.DiscountType, promo.Discount)
			t.PromoCodeID = &promo.ID
		}
		if !price.Consistent() {
			return ErrInconsistentPrice
		}
		t.OriginalPrice, t.Discount, t.FinalPrice = price.OriginalPrice, price.Discount, price.FinalPrice
		err := tx.QueryRow(ctx, `INSERT INTO course_transactions
			(course_id, student_id, original_price, discount, final_price, status, promo_code_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			t.CourseID, t.StudentID, t.OriginalPrice, t.Discount, t.FinalPrice, t.Status, t.PromoCodeID).
			Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return database.Classify(err, "transaction")
		}
		if t.PromoCodeID != nil {
			return promocodes.RecordRedemption(ctx, tx, *t.PromoCodeID, t.StudentID, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AttachPayment stores the gateway token and redirect URL.
func (r *Repository) AttachPayment(ctx context.Context, id uuid.UUID, token, redirectURL string) error {
	_, err := r.pool.Exec(ctx, `UPDATE course_transactions
		SET payment_token = $2, payment_redirect_url = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, token, redirectURL)
	return database.Classify(err, "transaction")
}

// Customer returns the buyer details sent to the gateway.
func (r *Repository) Customer(ctx context.Context, studentID uuid.UUID) (payment.Customer, error) {
	var c payment.Customer
	var phone *string
	err := r.pool.QueryRow(ctx, `SELECT u.full_name, u.email, u.phone FROM students s
		JOIN users u ON u.id = s.user_id WHERE s.id = $1`, studentID).Scan(&c.FirstName, &c.Email, &phone)
	if err != nil {
		return c, database.Classify(err, "student")
	}
	if phone != nil {
		c.Phone = *phone
	}
	return c, nil
}

// Transition moves a transaction from -> to if it is still in from. The audit
// row and the promo code release (or reclaim, when a failed order is retried)
// commit in the same database transaction. It reports false when the row
// changed concurrently.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to models.TransactionStatus, actor models.Actor, note string) (bool, error) {
	moved := false
	err := database.WithTx(ctx, r.pool, func(tx database.DBTX) error {
		tag, err := tx.Exec(ctx, `UPDATE course_transactions SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2 AND deleted_at IS NULL`, id, from, to)
		if err != nil {
			return database.Classify(err, "transaction")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		moved = true
		if err := audit.Record(ctx, tx, models.SubjectCourseTransaction, id, string(from), string(to), actor, note); err != nil {
			return err
		}
		switch {
		case to.ReleasesPromo():
			return promocodes.ReleaseForTransaction(ctx, tx, id)
		case from.ReleasesPromo():
			return promocodes.ReclaimForTransaction(ctx, tx, id)
		}
		return nil
	})
	return moved, err
}

// Stale returns unpaid or pending transactions created before cutoff, oldest first.
func (r *Repository) Stale(ctx context.Context, cutoff time.Time, limit int) ([]models.CourseTransaction, error) {
	rows, err := r.pool.Query(ctx, txSelect+` WHERE t.deleted_at IS NULL
		AND t.status IN ('unpaid', 'pending') AND t.created_at < $1
		ORDER BY t.created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, database.Classify(err, "transaction")
	}
	defer rows.Close()
	var list []models.CourseTransaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, database.Classify(err, "transaction")
		}
		list = append(list, *t)
	}
	return list, database.Classify(rows.Err(), "transaction")
}

// Audits returns the status history of a transaction.
func (r *Repository) Audits(ctx context.Context, id uuid.UUID) ([]models.StatusAudit, error) {
	return audit.List(ctx, r.pool, models.SubjectCourseTransaction, id)
}

// Delete soft-deletes a transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "course_transactions", "transaction", id)
}
