package repositories

import (
	"errors"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// mapErr translates driver errors into the shared error kinds.
func mapErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.New(errs.KindNotFound, "%s not found", entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errs.Wrap(errs.KindStorageConflict, err, entity+" already exists")
	}
	return err
}

// IsConflict reports whether err is a unique-constraint violation.
func IsConflict(err error) bool {
	return errors.Is(err, errs.ErrStorageConflict)
}
