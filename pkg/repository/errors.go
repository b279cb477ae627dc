package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes surfaced to domain packages.
const (
	pgDuplicateKeyCode   = "23505"
	pgForeignKeyCode     = "23503"
	pgCheckViolationCode = "23514"
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr and PostgreSQL unique violation (23505)
// to duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if PgCode(err) == pgDuplicateKeyCode {
		return duplicateErr
	}

	return err
}

// PgCode returns the SQLSTATE of a wrapped *pgconn.PgError, or "" when err
// did not originate from PostgreSQL.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsForeignKeyViolation reports whether err is a foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	return PgCode(err) == pgForeignKeyCode
}

// IsCheckViolation reports whether err is a check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return PgCode(err) == pgCheckViolationCode
}
