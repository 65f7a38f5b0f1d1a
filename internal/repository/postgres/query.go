package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/domain"
)

type QueryRepo struct {
	store *Store
}

func (r *QueryRepo) ShowByID(ctx context.Context, tx DB, id int64) (*domain.Show, error) {
	const op = "postgresrepo.QueryRepo.ShowByID"

	db := r.store.handle(tx)

	var s domain.Show
	err := db.QueryRow(ctx,
		`SELECT id, movie_id, screen_number, starts_at, base_price
       	 FROM shows WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.MovieID, &s.ScreenNumber, &s.StartsAt, &s.BasePrice)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// ShowWithMovieTitle loads a show plus the title of its movie, which the
// settlement path denormalizes into the booking history row.
func (r *QueryRepo) ShowWithMovieTitle(ctx context.Context, tx DB, id int64) (*domain.Show, string, error) {
	const op = "postgresrepo.QueryRepo.ShowWithMovieTitle"

	db := r.store.handle(tx)

	var s domain.Show
	var title string
	err := db.QueryRow(ctx,
		`SELECT sh.id, sh.movie_id, sh.screen_number, sh.starts_at, sh.base_price, m.title
       	 FROM shows sh
       	 JOIN movies m ON m.id = sh.movie_id
      	 WHERE sh.id = $1`,
		id,
	).Scan(&s.ID, &s.MovieID, &s.ScreenNumber, &s.StartsAt, &s.BasePrice, &title)
	if err != nil {
		return nil, "", wrapDBErr(op, err)
	}

	return &s, title, nil
}

func (r *QueryRepo) ListMovies(ctx context.Context, tx DB, limit, offset int) ([]domain.Movie, error) {
	const op = "postgresrepo.QueryRepo.ListMovies"

	db := r.store.handle(tx)

	rows, err := db.Query(ctx,
		`SELECT id, imdb_id, title, description, duration_min, language, poster_url
       	 FROM movies
      	 ORDER BY title
      	 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Movie
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(&m.ID, &m.ImdbID, &m.Title, &m.Description, &m.DurationMin, &m.Language, &m.PosterURL); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *QueryRepo) ShowsByMovie(ctx context.Context, tx DB, imdbID string) ([]domain.Show, error) {
	const op = "postgresrepo.QueryRepo.ShowsByMovie"

	db := r.store.handle(tx)

	rows, err := db.Query(ctx,
		`SELECT sh.id, sh.movie_id, sh.screen_number, sh.starts_at, sh.base_price
       	 FROM shows sh
       	 JOIN movies m ON m.id = sh.movie_id
      	 WHERE m.imdb_id = $1
      	 ORDER BY sh.starts_at`,
		imdbID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Show
	for rows.Next() {
		var s domain.Show
		if err := rows.Scan(&s.ID, &s.MovieID, &s.ScreenNumber, &s.StartsAt, &s.BasePrice); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *QueryRepo) ListShowSeats(
	ctx context.Context,
	tx DB,
	showID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.Seat, error) {
	const op = "postgresrepo.QueryRepo.ListShowSeats"

	db := r.store.handle(tx)

	q := `SELECT id, show_id, code, "row", col, seat_type, price, state, locked_at
       	  FROM seats
      	  WHERE show_id = $1
      	  ORDER BY "row", col
      	  LIMIT $2 OFFSET $3`
	if onlyAvailable {
		q = `SELECT id, show_id, code, "row", col, seat_type, price, state, locked_at
       	 	 FROM seats
      	 	 WHERE show_id = $1 AND state = 'available'
      	 	 ORDER BY "row", col
      	 	 LIMIT $2 OFFSET $3`
	}

	rows, err := db.Query(ctx, q, showID, limit, offset)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.ID, &s.ShowID, &s.Code, &s.Row, &s.Col, &s.Type, &s.Price, &s.State, &s.LockedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SeatCodes resolves display codes for a set of seat ids, ordered by row and
// column for stable ticket output.
func (r *QueryRepo) SeatCodes(ctx context.Context, tx DB, seatIDs []uuid.UUID) ([]string, error) {
	const op = "postgresrepo.QueryRepo.SeatCodes"

	db := r.store.handle(tx)

	rows, err := db.Query(ctx,
		`SELECT code FROM seats WHERE id = ANY($1) ORDER BY "row", col`,
		seatIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, wrapDBErr(op, err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return codes, nil
}

func (r *QueryRepo) CountsByState(ctx context.Context, tx DB, showID int64) (*domain.ShowCounts, error) {
	const op = "postgresrepo.QueryRepo.CountsByState"

	db := r.store.handle(tx)

	var sc domain.ShowCounts
	err := db.QueryRow(ctx,
		`SELECT
       	 	COALESCE(SUM(CASE WHEN state = 'available' THEN 1 ELSE 0 END), 0),
    	 	COALESCE(SUM(CASE WHEN state = 'locked' THEN 1 ELSE 0 END), 0),
       	 	COALESCE(SUM(CASE WHEN state = 'booked' THEN 1 ELSE 0 END), 0)
     	 FROM seats
     	 WHERE show_id = $1`,
		showID,
	).Scan(&sc.Available, &sc.Locked, &sc.Booked)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	sc.Total = sc.Available + sc.Locked + sc.Booked

	return &sc, nil
}

// HistoryByUser lists the denormalized booking history rows for one user.
func (r *QueryRepo) HistoryByUser(ctx context.Context, tx DB, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	const op = "postgresrepo.QueryRepo.HistoryByUser"

	db := r.store.handle(tx)

	rows, err := db.Query(ctx,
		`SELECT booking_id, user_id, movie_title, show_starts_at, seat_codes, total_amount
       	 FROM booking_history
      	 WHERE user_id = $1
      	 ORDER BY show_starts_at`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.BookingID, &h.UserID, &h.MovieTitle, &h.ShowStartsAt, &h.SeatCodes, &h.TotalAmount); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *QueryRepo) UserByID(ctx context.Context, tx DB, id uuid.UUID) (*domain.User, error) {
	const op = "postgresrepo.QueryRepo.UserByID"

	db := r.store.handle(tx)

	var u domain.User
	err := db.QueryRow(ctx,
		`SELECT id, email, balance FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Balance)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &u, nil
}
