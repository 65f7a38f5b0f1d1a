package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSeatsUnavailable  = errors.New("some seats unavailable")
	ErrSeatStateConflict = errors.New("seat state changed concurrently")
)
