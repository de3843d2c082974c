package repository

import "github.com/okian/dronesoccer/internal/domain/failure"

var (
	// ErrInvalidRecord is returned for rows missing their key.
	ErrInvalidRecord = failure.New(failure.Validation, "invalid_record", "record is missing its key")
	// ErrStoreClosed is returned by a store after Close.
	ErrStoreClosed = failure.New(failure.Unavailable, "store_closed", "store is closed")
)
