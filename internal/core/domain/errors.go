package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is. Every typed error below matches exactly one.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrReferentialConflict = errors.New("referential conflict")
	ErrOutOfStock          = errors.New("out of stock")
	ErrAlreadyReturned     = errors.New("already returned")
	ErrNotFound            = errors.New("not found")
	ErrStorage             = errors.New("storage failure")
	ErrDuplicateRequest    = errors.New("duplicate request")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type DuplicateKeyError struct {
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// ReferentialConflictError blocks a delete while open loans reference the row.
type ReferentialConflictError struct {
	Entity    string
	ID        int64
	OpenLoans int
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("%s %d has %d open borrowing(s)", e.Entity, e.ID, e.OpenLoans)
}

func (e *ReferentialConflictError) Is(target error) bool { return target == ErrReferentialConflict }

type OutOfStockError struct {
	BookID int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("book %d has no available copies", e.BookID)
}

func (e *OutOfStockError) Is(target error) bool { return target == ErrOutOfStock }

type AlreadyReturnedError struct {
	BorrowingID int64
	ReturnDate  time.Time
}

func (e *AlreadyReturnedError) Error() string {
	return fmt.Sprintf("borrowing %d was already returned on %s", e.BorrowingID, e.ReturnDate.Format(DateLayout))
}

func (e *AlreadyReturnedError) Is(target error) bool { return target == ErrAlreadyReturned }

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError is a transaction or connectivity failure. The operation was
// rolled back in full and may be resubmitted by the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

type DuplicateRequestError struct {
	Key string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("request %q was already submitted", e.Key)
}

func (e *DuplicateRequestError) Is(target error) bool { return target == ErrDuplicateRequest }
