package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for ranking errors.
var (
	ErrInvalidDay = errors.New("invalid ranking day")
	ErrClosed     = errors.New("ranking store closed")
)

// PersistenceError wraps a failed read or write of the ranking store.
type PersistenceError struct {
	Op  string
	Day string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ranking %s %s: %v", e.Op, e.Day, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
