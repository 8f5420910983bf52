package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/pkg/apperr"
	"github.com/learnhub/backend/pkg/database/dbtest"
)

func TestWithTx(t *testing.T) {
	db := dbtest.New(t, dbtest.Step{Match: "UPDATE courses", Tag: "UPDATE 1"})
	err := WithTx(context.Background(), db, func(tx DBTX) error {
		_, err := tx.Exec(context.Background(), "UPDATE courses SET title = $1", "Go")
		return err
	})
	require.NoError(t, err)
	assert.True(t, db.Committed)
	assert.False(t, db.RolledBack)

	boom := errors.New("boom")
	db = dbtest.New(t)
	err = WithTx(context.Background(), db, func(DBTX) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, db.RolledBack)
	assert.False(t, db.Committed)
}

func TestSoftDelete(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name  string
		steps []dbtest.Step
		kind  apperr.Kind
	}{
		{"live row", []dbtest.Step{{Match: "UPDATE courses SET deleted_at = NOW()", Tag: "UPDATE 1"}}, ""},
		{"already deleted", []dbtest.Step{
			{Match: "WHERE id = $1 AND deleted_at IS NULL", Tag: "UPDATE 0"},
			{Match: "SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)", Row: []any{true}},
		}, ""},
		{"missing", []dbtest.Step{
			{Match: "UPDATE courses", Tag: "UPDATE 0"},
			{Match: "SELECT EXISTS", Row: []any{false}},
		}, apperr.KindNotFound},
		{"storage failure", []dbtest.Step{{Match: "UPDATE courses", Err: errors.New("conn closed")}}, apperr.KindPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.New(t, tt.steps...)
			err := SoftDelete(context.Background(), db, "courses", "course", id)
			if tt.kind == "" {
				require.NoError(t, err)
			} else {
				assert.Equal(t, tt.kind, apperr.KindOf(err))
			}
			assert.Zero(t, db.Remaining())
			assert.Equal(t, id, db.Calls[0].Args[0])
		})
	}
}
