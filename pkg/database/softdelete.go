package database

import (
	"context"

	"github.com/google/uuid"
)

// NotDeleted is the tombstone predicate for unaliased queries.
const NotDeleted = "deleted_at IS NULL"

// Active returns the tombstone predicate for a table alias.
func Active(alias string) string {
	if alias == "" {
		return NotDeleted
	}
	return alias + ".deleted_at IS NULL"
}

// SoftDelete tombstones the row with id in table. Deleting an already deleted
// row is a no-op that keeps the original deleted_at; a missing row is NotFound.
// table must be a constant owned by the calling repository.
func SoftDelete(ctx context.Context, db DBTX, table, entity string, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `UPDATE `+table+` SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return Classify(err, entity)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Classify(err, entity)
	}
	if !exists {
		return Classify(ErrNoRows, entity)
	}
	return nil
}
