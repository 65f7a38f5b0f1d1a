package holds

import "errors"

var (
	ErrShowNotFound     = errors.New("show not found")
	ErrSeatsUnavailable = errors.New("some seats are unavailable")
	ErrDraftConflict    = errors.New("user already has a pending draft")
	ErrDraftNotFound    = errors.New("draft not found")
	ErrNotOwner         = errors.New("draft does not belong to the caller")
	ErrNoSeatsSelected  = errors.New("no seats selected")
)
