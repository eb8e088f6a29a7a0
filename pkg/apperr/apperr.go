// Package apperr defines the error taxonomy shared by every operation of the
// order-processing core. Business-rule violations (missing entity, duplicate,
// insufficient stock) are distinct types so callers can branch on them;
// infrastructure failures are always wrapped in StorageError, never collapsed
// into a bare boolean.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Entity kinds used in NotFoundError and DuplicateError.
const (
	KindCustomer = "customer"
	KindProduct  = "product"
	KindOrder    = "order"
)

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

type DuplicateError struct {
	Kind  string
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// StorageError wraps connection- and statement-level failures. The failing
// operation name is kept so logs stay useful after the error crosses package
// boundaries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError unless it already carries a typed
// business error.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var dup *DuplicateError
	var stock *InsufficientStockError
	if errors.As(err, &nf) || errors.As(err, &dup) || errors.As(err, &stock) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsDuplicate(err error) bool {
	var e *DuplicateError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

// IsUniqueViolation reports whether err is a Postgres UNIQUE violation.
// Duplicates are pre-checked proactively; this is the backstop for races
// between the pre-check and the insert.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
