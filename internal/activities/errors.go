package activities

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound indicates that no record carries the requested id.
	ErrRecordNotFound = errors.New("activities: record not found")
	// ErrMissingBackend indicates a store operation before any backend was bound.
	ErrMissingBackend = errors.New("activities: persistence backend is required")
)

// StorageError reports a failed read, write or delete against a backend.
type StorageError struct {
	code string
	err  error
}

func (e *StorageError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation.reason code.
func (e *StorageError) Code() string {
	return e.code
}

const (
	opStoreNew  = "activities.store.new"
	opRebind    = "activities.rebind"
	opAdd       = "activities.add"
	opAddAt     = "activities.add_at"
	opUpdate    = "activities.update"
	opDelete    = "activities.delete"
	opDeleteAll = "activities.delete_all"
)

func newStorageError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StorageError{code: code, err: cause}
}

// IsStorageError reports whether err wraps a StorageError.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
