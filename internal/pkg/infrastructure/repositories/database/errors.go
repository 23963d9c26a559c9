package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrRepositoryError = errors.New("could not fetch data from repository")

	ErrConstraintViolation = errors.New("constraint violation")
	ErrUniqueViolation     = errors.New("unique constraint violated")
	ErrCheckViolation      = errors.New("check constraint violated")
	ErrProtected           = errors.New("record is referenced by other records")
)

// ConstraintError is returned when a write is rejected by a uniqueness, check
// or foreign key constraint. It matches both ErrConstraintViolation and its
// Kind when compared with errors.Is.
type ConstraintError struct {
	Constraint string
	Kind       error
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrConstraintViolation.Error(), e.Kind.Error())
	if e.Constraint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Constraint)
	}
	return msg
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation || target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// MapError translates gorm and driver errors into the error kinds exposed by
// the repositories. Unknown errors are returned wrapped in ErrRepositoryError.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &ConstraintError{Kind: ErrUniqueViolation, Err: err}
		case sqlite3.ErrConstraintCheck:
			return &ConstraintError{Kind: ErrCheckViolation, Err: err}
		case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintTrigger:
			return &ConstraintError{Kind: ErrProtected, Err: err}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Constraint: pgErr.ConstraintName, Kind: ErrUniqueViolation, Err: err}
		case "23514":
			return &ConstraintError{Constraint: pgErr.ConstraintName, Kind: ErrCheckViolation, Err: err}
		case "23503", "23001":
			return &ConstraintError{Constraint: pgErr.ConstraintName, Kind: ErrProtected, Err: err}
		}
	}

	return fmt.Errorf("%w: %s", ErrRepositoryError, err.Error())
}
