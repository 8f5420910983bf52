package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/promocodes"
	"github.com/learnhub/backend/pkg/database/dbtest"
	"github.com/learnhub/backend/pkg/money"
)

func TestRepositoryTransitionReleasesPromo(t *testing.T) {
	id := uuid.New()
	db := dbtest.New(t,
		dbtest.Step{Match: "UPDATE course_transactions SET status = $3", Tag: "UPDATE 1"},
		dbtest.Step{Match: "INSERT INTO status_audits", Tag: "INSERT 0 1"},
		dbtest.Step{Match: "UPDATE promo_codes SET is_used = FALSE", Tag: "UPDATE 1"},
	)
	r := &Repository{pool: db}

	moved, err := r.Transition(context.Background(), id, models.TransactionPending, models.TransactionFailed, models.Actor{Kind: models.ActorGateway}, "gateway: deny")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, db.Committed)
	assert.Zero(t, db.Remaining())
	assert.Equal(t, id, db.Calls[2].Args[0])
}

func TestRepositoryTransitionLostRace(t *testing.T) {
	db := dbtest.New(t, dbtest.Step{Match: "UPDATE course_transactions SET status", Tag: "UPDATE 0"})
	r := &Repository{pool: db}

	moved, err := r.Transition(context.Background(), uuid.New(), models.TransactionPending, models.TransactionExpired, systemActor, "")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Len(t, db.Calls, 1, "no audit or promo release for a row that did not move")
}

func TestRepositoryTransitionRetryReclaimsPromo(t *testing.T) {
	promoID := uuid.New()
	steps := func(tag string) []dbtest.Step {
		return []dbtest.Step{
			{Match: "UPDATE course_transactions SET status", Tag: "UPDATE 1"},
			{Match: "INSERT INTO status_audits", Tag: "INSERT 0 1"},
			{Match: "SELECT promo_code_id FROM course_transactions", Row: []any{promoID}},
			{Match: "UPDATE promo_codes SET is_used = TRUE", Tag: tag},
		}
	}

	db := dbtest.New(t, steps("UPDATE 1")...)
	moved, err := (&Repository{pool: db}).Transition(context.Background(), uuid.New(), models.TransactionFailed, models.TransactionPending, systemActor, "retry")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, promoID, db.Calls[3].Args[0])

	db = dbtest.New(t, steps("UPDATE 0")...)
	_, err = (&Repository{pool: db}).Transition(context.Background(), uuid.New(), models.TransactionFailed, models.TransactionPending, systemActor, "retry")
	assert.True(t, errors.Is(err, promocodes.ErrUsed))
	assert.True(t, db.RolledBack)
	assert.False(t, db.Committed)
}

func TestRepositoryOpenWithPromo(t *testing.T) {
	promoID, txID := uuid.New(), uuid.New()
	db := dbtest.New(t,
		dbtest.Step{Match: "UPDATE promo_codes SET is_used = TRUE", Row: []any{
			promoID, "SAVE10", money.DiscountPercentage, decimal.NewFromInt(10), now.Add(24 * time.Hour), true, now, now, nil,
		}},
		dbtest.Step{Match: "INSERT INTO course_transactions", Row: []any{txID, now, now}},
		dbtest.Step{Match: "INSERT INTO promo_code_redemptions", Tag: "INSERT 0 1"},
	)
	r := &Repository{pool: db}

	tx, err := r.Open(context.Background(), OpenParams{
		CourseID: uuid.New(), StudentID: uuid.New(), Price: decimal.NewFromInt(150000), PromoCode: "save10", Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, txID, tx.ID)
	assert.True(t, tx.FinalPrice.Equal(decimal.NewFromInt(135000)))
	require.NotNil(t, tx.PromoCodeID)
	assert.Equal(t, promoID, *tx.PromoCodeID)
	assert.True(t, db.Committed)
}

func TestRepositoryOpenLosesPromoRace(t *testing.T) {
	// The claim matched nothing, yet the code reads back redeemable.
	db := dbtest.New(t,
		dbtest.Step{Match: "UPDATE promo_codes SET is_used = TRUE"},
		dbtest.Step{Match: "FROM promo_codes WHERE code = $1", Row: []any{
			uuid.New(), "SAVE10", money.DiscountPercentage, decimal.NewFromInt(10), now.Add(24 * time.Hour), false, now, now, nil,
		}},
	)
	r := &Repository{pool: db}

	tx, err := r.Open(context.Background(), OpenParams{
		CourseID: uuid.New(), StudentID: uuid.New(), Price: decimal.NewFromInt(150000), PromoCode: "SAVE10", Now: now,
	})
	assert.Nil(t, tx)
	assert.True(t, errors.Is(err, promocodes.ErrUsed))
	assert.True(t, db.RolledBack)
	assert.Zero(t, db.Remaining())
}
