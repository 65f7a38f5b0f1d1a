package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/repository"
)

// DraftRepo persists draft bookings. The draft_bookings table carries a
// UNIQUE constraint on user_id, which is what actually enforces the
// one-draft-per-user invariant under concurrent createDraft calls.
type DraftRepo struct {
	store *Store
}

// Create inserts the draft row and its seat references. A second outstanding
// draft for the same user violates the unique constraint and surfaces as
// repository.ErrConflict.
func (r *DraftRepo) Create(ctx context.Context, tx DB, d *domain.Draft) error {
	const op = "postgresrepo.DraftRepo.Create"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`INSERT INTO draft_bookings(id, user_id, show_id, created_at)
       	 VALUES ($1, $2, $3, $4)`,
		d.ID, d.UserID, d.ShowID, d.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	batch := &pgx.Batch{}
	for _, sid := range d.SeatIDs {
		batch.Queue(
			`INSERT INTO draft_seats(draft_id, seat_id)
         	 VALUES ($1, $2)`,
			d.ID, sid,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ByID loads a draft together with its seat ids.
func (r *DraftRepo) ByID(ctx context.Context, tx DB, id string) (*domain.Draft, error) {
	const op = "postgresrepo.DraftRepo.ByID"

	db := r.store.handle(tx)

	var d domain.Draft
	err := db.QueryRow(ctx,
		`SELECT id, user_id, show_id, created_at
       	 FROM draft_bookings WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.UserID, &d.ShowID, &d.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT seat_id FROM draft_seats WHERE draft_id = $1`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var sid uuid.UUID
		if err := rows.Scan(&sid); err != nil {
			return nil, wrapDBErr(op, err)
		}
		d.SeatIDs = append(d.SeatIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &d, nil
}

// Delete removes the draft and its seat references. Deleting a draft that is
// already gone (consumed by a concurrent confirm or sweep) reports
// repository.ErrNotFound so callers can treat it as already handled.
func (r *DraftRepo) Delete(ctx context.Context, tx DB, id string) error {
	const op = "postgresrepo.DraftRepo.Delete"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`DELETE FROM draft_seats WHERE draft_id = $1`, id,
	); err != nil {
		return wrapDBErr(op, err)
	}

	ct, err := db.Exec(ctx, `DELETE FROM draft_bookings WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// ExpiredBefore lists ids of drafts created at or before the cutoff. The
// sweeper releases each of them through the same path as an explicit delete.
func (r *DraftRepo) ExpiredBefore(ctx context.Context, tx DB, cutoff time.Time, limit int) ([]string, error) {
	const op = "postgresrepo.DraftRepo.ExpiredBefore"

	db := r.store.handle(tx)

	rows, err := db.Query(ctx,
		`SELECT id FROM draft_bookings
      	 WHERE created_at <= $1
      	 ORDER BY created_at
      	 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return ids, nil
}
