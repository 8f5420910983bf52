package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/learnhub/backend/pkg/apperr"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ErrNoRows is pgx.ErrNoRows, re-exported for repositories that detect misses via rows affected.
var ErrNoRows = pgx.ErrNoRows

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify converts a storage error into the apperr taxonomy using entity as
// the subject of the client-facing message. Already classified errors pass through.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	switch {
	case IsNoRows(err):
		return apperr.Wrap(apperr.KindNotFound, entity+" not found", err)
	case IsUniqueViolation(err):
		return apperr.Wrap(apperr.KindConflict, entity+" already exists", err)
	case IsForeignKeyViolation(err):
		return apperr.Wrap(apperr.KindValidation, "referenced record does not exist", err)
	default:
		return apperr.Wrap(apperr.KindPersistence, entity+" storage failure", err)
	}
}
