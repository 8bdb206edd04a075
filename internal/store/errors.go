package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable is returned when the database cannot be reached
	ErrUnavailable = errors.New("storage unavailable")

	// ErrUndefinedTable is returned when the expected schema is missing
	ErrUndefinedTable = errors.New("undefined table")
)

// ConvertDBError converts driver-specific errors to store errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// PostgreSQL errors through pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return convertSQLState(pgErr.Code, pgErr.Message, err)
	}

	// PostgreSQL errors through lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return convertSQLState(string(pqErr.Code), pqErr.Message, err)
	}

	return err
}

func convertSQLState(code, message string, err error) error {
	switch {
	case code == "42P01": // undefined_table
		return fmt.Errorf("%w: %s", ErrUndefinedTable, message)
	case len(code) == 5 && code[:2] == "08": // connection_exception class
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	case code == "57P03": // cannot_connect_now
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	}
	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
