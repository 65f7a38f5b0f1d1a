package catalog

import "errors"

var (
	ErrMovieNotFound  = errors.New("movie not found")
	ErrScreenNotFound = errors.New("screen not found")
	ErrShowNotFound   = errors.New("show not found")
	ErrMovieExists    = errors.New("movie already exists")
	ErrScreenExists   = errors.New("screen already exists")
	ErrShowInPast     = errors.New("show time is in the past")
	ErrShowOverlap    = errors.New("show overlaps with another show on this screen")
	ErrBadLayout      = errors.New("invalid screen layout")
)
