package settlement

import "errors"

var (
	ErrDraftNotFound       = errors.New("draft not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrNotOwner            = errors.New("resource does not belong to the caller")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDraftExpired        = errors.New("draft no longer holds its seats")
	ErrTooLateToCancel     = errors.New("too late to cancel this booking")
	ErrUserNotFound        = errors.New("user not found")
)
