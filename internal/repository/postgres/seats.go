package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/repository"
)

// SeatRepo owns seat state transitions. Seats only move between states here,
// in the settlement repo and in the sweeper's release path, always behind a
// conditional UPDATE so two writers cannot both win the same seat.
type SeatRepo struct {
	store *Store
}

// Lock moves every requested seat of the show from 'available' to 'locked'.
// If any seat is missing, belongs to another show or is not available, no
// seat is locked and repository.ErrSeatsUnavailable is returned.
func (r *SeatRepo) Lock(
	ctx context.Context,
	tx DB,
	showID int64,
	seatIDs []uuid.UUID,
	lockedAt time.Time,
) error {
	const op = "postgresrepo.SeatRepo.Lock"

	db := r.store.handle(tx)

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'locked', locked_at = $3
      	 WHERE show_id = $1
        	AND id = ANY($2)
        	AND state = 'available'`,
		showID, seatIDs, lockedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if int(tag.RowsAffected()) != len(seatIDs) {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatsUnavailable)
	}

	return nil
}

// Release returns seats to 'available' and clears the lock timestamp.
// Releasing an already-available seat is a no-op, not an error.
func (r *SeatRepo) Release(ctx context.Context, tx DB, seatIDs []uuid.UUID) error {
	const op = "postgresrepo.SeatRepo.Release"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'available', locked_at = NULL
      	 WHERE id = ANY($1)
        	AND state = 'locked'`,
		seatIDs,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Book moves locked seats to 'booked'. Every seat must still be locked; if
// the sweeper released any of them in between, the whole call fails with
// repository.ErrSeatStateConflict.
func (r *SeatRepo) Book(ctx context.Context, tx DB, seatIDs []uuid.UUID) error {
	const op = "postgresrepo.SeatRepo.Book"

	db := r.store.handle(tx)

	tag, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'booked', locked_at = NULL
      	 WHERE id = ANY($1)
        	AND state = 'locked'`,
		seatIDs,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if int(tag.RowsAffected()) != len(seatIDs) {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatStateConflict)
	}

	return nil
}

// Unbook is the inverse of Book, used by cancellation.
func (r *SeatRepo) Unbook(ctx context.Context, tx DB, seatIDs []uuid.UUID) error {
	const op = "postgresrepo.SeatRepo.Unbook"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`UPDATE seats
        	SET state = 'available', locked_at = NULL
      	 WHERE id = ANY($1)
        	AND state = 'booked'`,
		seatIDs,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
