package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/database/dbtest"
)

func TestInsertRegistrant(t *testing.T) {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	db := dbtest.New(t,
		dbtest.Step{Match: "ON CONFLICT (event_id, student_id) WHERE deleted_at IS NULL DO NOTHING", Row: []any{id, created, created}},
		// The second insert hits the partial unique index and returns nothing.
		dbtest.Step{Match: "ON CONFLICT (event_id, student_id) WHERE deleted_at IS NULL DO NOTHING"},
	)
	r := &Repository{pool: db}
	reg := &models.EventRegistrant{EventID: uuid.New(), StudentID: uuid.New(), Phone: "08123456789", Status: models.RegistrantPending}

	ok, err := r.InsertRegistrant(context.Background(), reg)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, reg.ID)
	assert.Equal(t, created, reg.CreatedAt)

	dup := *reg
	dup.ID = uuid.Nil
	ok, err = r.InsertRegistrant(context.Background(), &dup)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, dup.ID)
}

func TestDeleteRegistrantIsIdempotent(t *testing.T) {
	id := uuid.New()
	db := dbtest.New(t,
		dbtest.Step{Match: "UPDATE event_registrants SET deleted_at = NOW()", Tag: "UPDATE 1"},
		dbtest.Step{Match: "UPDATE event_registrants SET deleted_at = NOW()", Tag: "UPDATE 0"},
		dbtest.Step{Match: "SELECT EXISTS(SELECT 1 FROM event_registrants", Row: []any{true}},
		dbtest.Step{Match: "UPDATE event_registrants SET deleted_at = NOW()", Tag: "UPDATE 0"},
		dbtest.Step{Match: "SELECT EXISTS(SELECT 1 FROM event_registrants", Row: []any{false}},
	)
	r := &Repository{pool: db}
	ctx := context.Background()

	require.NoError(t, r.DeleteRegistrant(ctx, id))
	require.NoError(t, r.DeleteRegistrant(ctx, id), "deleting twice succeeds")

	err := r.DeleteRegistrant(ctx, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Zero(t, db.Remaining())
}
