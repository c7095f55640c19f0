package profile

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistence matches every error raised while reading or writing profiles.
var ErrPersistence = errors.New("profile persistence failed")

// PersistenceError records which store operation failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistenceErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Store is the profile table contract: at most one row per user.
type Store interface {
	// Get returns the user's profile, or nil when no row exists.
	Get(ctx context.Context, userID string) (*Profile, error)
	// Upsert inserts the row or replaces every preference field of the
	// existing one, returning the stored row.
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
}
