// Package audit records accepted status transitions.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/pkg/database"
)

// Record inserts an audit row. It runs inside the caller's transaction so the
// row commits together with the status change it describes.
func Record(ctx context.Context, tx database.DBTX, subjectKind string, subjectID uuid.UUID, from, to string, actor models.Actor, note string) error {
	_, err := tx.Exec(ctx, `INSERT INTO status_audits
		(subject_kind, subject_id, from_status, to_status, actor_kind, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		subjectKind, subjectID, from, to, actor.Kind, actor.ID, note)
	return database.Classify(err, "status audit")
}

// List returns the audit trail of a subject, oldest first.
func List(ctx context.Context, db database.DBTX, subjectKind string, subjectID uuid.UUID) ([]models.StatusAudit, error) {
	rows, err := db.Query(ctx, `SELECT id, subject_kind, subject_id, from_status, to_status, actor_kind, actor_id, note, created_at
		FROM status_audits WHERE subject_kind = $1 AND subject_id = $2 ORDER BY created_at, id`, subjectKind, subjectID)
	if err != nil {
		return nil, database.Classify(err, "status audit")
	}
	defer rows.Close()
	out := []models.StatusAudit{}
	for rows.Next() {
		var a models.StatusAudit
		if err := rows.Scan(&a.ID, &a.SubjectKind, &a.SubjectID, &a.FromStatus, &a.ToStatus, &a.ActorKind, &a.ActorID, &a.Note, &a.CreatedAt); err != nil {
			return nil, database.Classify(err, "status audit")
		}
		out = append(out, a)
	}
	return out, database.Classify(rows.Err(), "status audit")
}
