package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/repository"
)

// SettlementRepo owns the user balance ledger and confirmed bookings with
// their history rows. Balance is only ever read with FOR UPDATE inside a
// transaction, so concurrent settlements for one user serialize on the row.
type SettlementRepo struct {
	store *Store
}

// BalanceForUpdate reads the user's balance and takes a row lock on it.
func (r *SettlementRepo) BalanceForUpdate(ctx context.Context, tx DB, userID uuid.UUID) (float64, error) {
	const op = "postgresrepo.SettlementRepo.BalanceForUpdate"

	db := r.store.handle(tx)

	var balance float64
	err := db.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return balance, nil
}

// AddToBalance applies a signed delta to the user's balance. Callers hold the
// row lock from BalanceForUpdate.
func (r *SettlementRepo) AddToBalance(ctx context.Context, tx DB, userID uuid.UUID, delta float64) error {
	const op = "postgresrepo.SettlementRepo.AddToBalance"

	db := r.store.handle(tx)

	ct, err := db.Exec(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1`,
		userID, delta,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// SetBalance overwrites the user's balance, used by refill.
func (r *SettlementRepo) SetBalance(ctx context.Context, tx DB, userID uuid.UUID, balance float64) error {
	const op = "postgresrepo.SettlementRepo.SetBalance"

	db := r.store.handle(tx)

	ct, err := db.Exec(ctx,
		`UPDATE users SET balance = $2 WHERE id = $1`,
		userID, balance,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// DraftTotal recomputes the charge for a draft using the literal pricing
// formula: sum of seat prices multiplied by the show's base price.
func (r *SettlementRepo) DraftTotal(ctx context.Context, tx DB, draftID string) (float64, error) {
	const op = "postgresrepo.SettlementRepo.DraftTotal"

	db := r.store.handle(tx)

	var total float64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(s.price), 0) * sh.base_price
       	 FROM draft_bookings d
       	 JOIN shows sh ON sh.id = d.show_id
       	 JOIN draft_seats ds ON ds.draft_id = d.id
       	 JOIN seats s ON s.id = ds.seat_id
      	 WHERE d.id = $1
      	 GROUP BY sh.base_price`,
		draftID,
	).Scan(&total)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return total, nil
}

// CreateBooking writes the booking, its seat references and the denormalized
// history row in one go. All three live and die together.
func (r *SettlementRepo) CreateBooking(ctx context.Context, tx DB, b *domain.Booking, h *domain.HistoryEntry) error {
	const op = "postgresrepo.SettlementRepo.CreateBooking"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(id, user_id, show_id, total_amount, created_at)
       	 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.UserID, b.ShowID, b.TotalAmount, b.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	batch := &pgx.Batch{}
	for _, sid := range b.SeatIDs {
		batch.Queue(
			`INSERT INTO booking_seats(booking_id, seat_id)
         	 VALUES ($1, $2)`,
			b.ID, sid,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO booking_history(booking_id, user_id, movie_title, show_starts_at, seat_codes, total_amount)
       	 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.BookingID, h.UserID, h.MovieTitle, h.ShowStartsAt, h.SeatCodes, h.TotalAmount,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// BookingByID loads a booking together with its seat ids.
func (r *SettlementRepo) BookingByID(ctx context.Context, tx DB, id string) (*domain.Booking, error) {
	const op = "postgresrepo.SettlementRepo.BookingByID"

	db := r.store.handle(tx)

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT id, user_id, show_id, total_amount, created_at
       	 FROM bookings WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.UserID, &b.ShowID, &b.TotalAmount, &b.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = $1`,
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
		b.SeatIDs = append(b.SeatIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &b, nil
}

// DeleteBooking hard-deletes the booking, its seat references and the
// matching history row. The read model never outlives the booking.
func (r *SettlementRepo) DeleteBooking(ctx context.Context, tx DB, id string) error {
	const op = "postgresrepo.SettlementRepo.DeleteBooking"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`DELETE FROM booking_seats WHERE booking_id = $1`, id,
	); err != nil {
		return wrapDBErr(op, err)
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM booking_history WHERE booking_id = $1`, id,
	); err != nil {
		return wrapDBErr(op, err)
	}

	ct, err := db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
