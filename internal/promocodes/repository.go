package promocodes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/money"
	"github.com/learnhub/backend/pkg/pagination"
)

// Fields are the writable promo code columns.
type Fields struct {
	Code         string
	DiscountType money.DiscountType
	Discount     decimal.Decimal
	ValidUntil   time.Time
}

// ListFilter narrows promo code listings. Active means redeemable right now.
type ListFilter struct {
	Search string
	IsUsed *bool
	Active *bool
	Page   pagination.Params
}

// NormalizeCode trims and upper-cases a code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const promoColumns = `id, code, discount_type, discount, valid_until, is_used, created_at, updated_at, deleted_at`

func scanPromo(row interface{ Scan(...any) error }) (*models.PromoCode, error) {
	var p models.PromoCode
	if err := row.Scan(&p.ID, &p.Code, &p.DiscountType, &p.Discount, &p.ValidUntil, &p.IsUsed, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Repository handles promo code persistence.
type Repository struct {
	pool database.Conn
}

// NewRepository creates a promo code repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of promo codes.
func (r *Repository) List(ctx context.Context, lf ListFilter) ([]models.PromoCode, int64, error) {
	f := database.NewFilter("").Search(lf.Search, "code")
	if lf.IsUsed != nil {
		f.Where("is_used = ?", *lf.IsUsed)
	}
	if lf.Active != nil {
		if *lf.Active {
			f.Where("is_used = FALSE AND valid_until >= NOW()")
		} else {
			f.Where("(is_used OR valid_until < NOW())")
		}
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promo_codes`+f.SQL(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, database.Classify(err, "promo code")
	}
	suffix, args := f.Page(lf.Page.Limit, lf.Page.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+promoColumns+` FROM promo_codes`+f.SQL()+` ORDER BY created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, database.Classify(err, "promo code")
	}
	defer rows.Close()
	list := []models.PromoCode{}
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, 0, database.Classify(err, "promo code")
		}
		list = append(list, *p)
	}
	return list, total, database.Classify(rows.Err(), "promo code")
}

// Get returns a non-deleted promo code by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	p, err := scanPromo(r.pool.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, database.Classify(err, "promo code")
	}
	return p, nil
}

// GetByCode returns the non-deleted promo code with exactly this code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return GetByCode(ctx, r.pool, code)
}

// GetByCode looks a code up inside db.
func GetByCode(ctx context.Context, db database.DBTX, code string) (*models.PromoCode, error) {
	p, err := scanPromo(db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 AND deleted_at IS NULL`, NormalizeCode(code)))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.WithCause(ErrNotFound, err)
		}
		return nil, database.Classify(err, "promo code")
	}
	return p, nil
}

// Create inserts a promo code.
func (r *Repository) Create(ctx context.Context, f Fields) (*models.PromoCode, error) {
	p, err := scanPromo(r.pool.QueryRow(ctx, `INSERT INTO promo_codes (code, discount_type, discount, valid_until)
		VALUES ($1, $2, $3, $4) RETURNING `+promoColumns, NormalizeCode(f.Code), f.DiscountType, f.Discount, f.ValidUntil))
	if err != nil {
		return nil, database.Classify(err, "promo code")
	}
	return p, nil
}

// Update changes a promo code. The used flag is only changed by claims.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f Fields) (*models.PromoCode, error) {
	p, err := scanPromo(r.pool.QueryRow(ctx, `UPDATE promo_codes SET code = $2, discount_type = $3, discount = $4,
		valid_until = $5, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL RETURNING `+promoColumns,
		id, NormalizeCode(f.Code), f.DiscountType, f.Discount, f.ValidUntil))
	if err != nil {
		return nil, database.Classify(err, "promo code")
	}
	return p, nil
}

// Delete soft-deletes a promo code.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.SoftDelete(ctx, r.pool, "promo_codes", "promo code", id)
}

// Claim marks the code used if it is still redeemable. The conditional update
// is the only redemption path, so two concurrent claims cannot both succeed.
// When nothing is claimed the code is re-read to report why; a code that
// reads back redeemable was claimed by a concurrent checkout in between.
func Claim(ctx context.Context, tx database.DBTX, code string, now time.Time) (*models.PromoCode, error) {
	p, err := scanPromo(tx.QueryRow(ctx, `UPDATE promo_codes SET is_used = TRUE, updated_at = NOW()
		WHERE code = $1 AND is_used = FALSE AND valid_until >= $2 AND deleted_at IS NULL
		RETURNING `+promoColumns, NormalizeCode(code), now))
	if err == nil {
		return p, nil
	}
	if !database.IsNoRows(err) {
		return nil, database.Classify(err, "promo code")
	}
	current, lookupErr := GetByCode(ctx, tx, code)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if err := redeemError(current, now); err != nil {
		return nil, err
	}
	return nil, ErrUsed
}

// RecordRedemption stores who redeemed a code on which transaction.
func RecordRedemption(ctx context.Context, tx database.DBTX, promoID, studentID, transactionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `INSERT INTO promo_code_redemptions (promo_code_id, student_id, course_transaction_id)
		VALUES ($1, $2, $3)`, promoID, studentID, transactionID)
	return database.Classify(err, "promo code redemption")
}

// ReleaseForTransaction returns the code claimed by a course transaction, if
// any, to the pool.
func ReleaseForTransaction(ctx context.Context, db database.DBTX, transactionID uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE promo_codes SET is_used = FALSE, updated_at = NOW()
		WHERE id = (SELECT promo_code_id FROM course_transactions WHERE id = $1) AND is_used`, transactionID)
	return database.Classify(err, "promo code")
}

// ReclaimForTransaction marks the code of a course transaction used again
// when the order is retried. It fails with ErrUsed if another checkout took
// the code meanwhile.
func ReclaimForTransaction(ctx context.Context, tx database.DBTX, transactionID uuid.UUID) error {
	var promoID *uuid.UUID
	err := tx.QueryRow(ctx, `SELECT promo_code_id FROM course_transactions WHERE id = $1`, transactionID).Scan(&promoID)
	if err != nil {
		return database.Classify(err, "transaction")
	}
	if promoID == nil {
		return nil
	}
	tag, err := tx.Exec(ctx, `UPDATE promo_codes SET is_used = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_used = FALSE AND deleted_at IS NULL`, *promoID)
	if err != nil {
		return database.Classify(err, "promo code")
	}
	if tag.RowsAffected() == 0 {
		return ErrUsed
	}
	return nil
}
