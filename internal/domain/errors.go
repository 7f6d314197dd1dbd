package domain

import "errors"

// Domain errors. Cryptographic failures surface as the integrity and
// key-configuration errors from pkg/crypto; everything else a store can
// raise is one of these.
var (
	// ErrNotFound is returned when a record's backing file is absent.
	ErrNotFound = errors.New("record not found")

	// ErrSerialization is returned when decrypted plaintext is not valid
	// JSON for the expected record shape. Listings skip such records;
	// direct gets surface the error.
	ErrSerialization = errors.New("record data is corrupt")
)

// StoreError wraps an error with entity-class and operation context.
type StoreError struct {
	Class EntityClass
	Op    string
	ID    string
	Err   error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return string(e.Class) + " " + e.Op + " [" + e.ID + "]: " + e.Err.Error()
	}
	return string(e.Class) + " " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(class EntityClass, op, id string, err error) *StoreError {
	return &StoreError{
		Class: class,
		Op:    op,
		ID:    id,
		Err:   err,
	}
}
