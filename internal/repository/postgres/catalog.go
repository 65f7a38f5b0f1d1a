package postgresrepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avoronin/cineseat/internal/domain"
)

// CatalogRepo manages movies, screens and shows. The core treats shows as
// read-only; writes here come from schedule management only.
type CatalogRepo struct {
	store *Store
}

func (r *CatalogRepo) CreateMovie(ctx context.Context, tx DB, m *domain.Movie) (int64, error) {
	const op = "postgresrepo.CatalogRepo.CreateMovie"

	db := r.store.handle(tx)

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO movies(imdb_id, title, description, duration_min, language, poster_url)
       	 VALUES ($1, $2, $3, $4, $5, $6)
     	 RETURNING id`,
		m.ImdbID, m.Title, m.Description, m.DurationMin, m.Language, m.PosterURL,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) MovieByImdbID(ctx context.Context, tx DB, imdbID string) (*domain.Movie, error) {
	const op = "postgresrepo.CatalogRepo.MovieByImdbID"

	db := r.store.handle(tx)

	var m domain.Movie
	err := db.QueryRow(ctx,
		`SELECT id, imdb_id, title, description, duration_min, language, poster_url
       	 FROM movies WHERE imdb_id = $1`,
		imdbID,
	).Scan(&m.ID, &m.ImdbID, &m.Title, &m.Description, &m.DurationMin, &m.Language, &m.PosterURL)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &m, nil
}

func (r *CatalogRepo) DeleteMovie(ctx context.Context, tx DB, imdbID string) (int64, error) {
	const op = "postgresrepo.CatalogRepo.DeleteMovie"

	db := r.store.handle(tx)

	ct, err := db.Exec(ctx, `DELETE FROM movies WHERE imdb_id = $1`, imdbID)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return ct.RowsAffected(), nil
}

func (r *CatalogRepo) CreateScreen(ctx context.Context, tx DB, number int, layoutJSON []byte) error {
	const op = "postgresrepo.CatalogRepo.CreateScreen"

	db := r.store.handle(tx)

	if _, err := db.Exec(ctx,
		`INSERT INTO screens(number, layout)
       	 VALUES ($1, $2)`,
		number, layoutJSON,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CatalogRepo) ScreenByNumber(ctx context.Context, tx DB, number int) (*domain.Screen, error) {
	const op = "postgresrepo.CatalogRepo.ScreenByNumber"

	db := r.store.handle(tx)

	var s domain.Screen
	err := db.QueryRow(ctx,
		`SELECT number, layout FROM screens WHERE number = $1`,
		number,
	).Scan(&s.Number, &s.Layout)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// CountOverlappingShows counts shows on the same screen whose start time
// falls inside the given window around starts.
func (r *CatalogRepo) CountOverlappingShows(
	ctx context.Context,
	tx DB,
	screenNumber int,
	starts time.Time,
	window time.Duration,
) (int64, error) {
	const op = "postgresrepo.CatalogRepo.CountOverlappingShows"

	db := r.store.handle(tx)

	var n int64
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM shows
      	 WHERE screen_number = $1
        	AND starts_at BETWEEN $2 AND $3`,
		screenNumber, starts.Add(-window), starts.Add(window),
	).Scan(&n)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *CatalogRepo) CreateShow(ctx context.Context, tx DB, s *domain.Show) (int64, error) {
	const op = "postgresrepo.CatalogRepo.CreateShow"

	db := r.store.handle(tx)

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO shows(movie_id, screen_number, starts_at, base_price)
       	 VALUES ($1, $2, $3, $4)
     	 RETURNING id`,
		s.MovieID, s.ScreenNumber, s.StartsAt, s.BasePrice,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// BatchCreateSeats materializes a show's seats from its screen layout.
// Disabled seats arrive already in state 'booked'; the hold flow can never
// reach them.
func (r *CatalogRepo) BatchCreateSeats(ctx context.Context, tx DB, seats []domain.Seat) error {
	const op = "postgresrepo.CatalogRepo.BatchCreateSeats"

	db := r.store.handle(tx)

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO seats(id, show_id, code, "row", col, seat_type, price, state)
         	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, s.ShowID, s.Code, s.Row, s.Col, s.Type, s.Price, s.State,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// DeleteShow removes the show and everything hanging off it.
func (r *CatalogRepo) DeleteShow(ctx context.Context, tx DB, showID int64) (int64, error) {
	const op = "postgresrepo.CatalogRepo.DeleteShow"

	db := r.store.handle(tx)

	for _, q := range []string{
		`DELETE FROM draft_seats WHERE seat_id IN (SELECT id FROM seats WHERE show_id = $1)`,
		`DELETE FROM draft_bookings WHERE show_id = $1`,
		`DELETE FROM booking_seats WHERE seat_id IN (SELECT id FROM seats WHERE show_id = $1)`,
		`DELETE FROM booking_history WHERE booking_id IN (SELECT id FROM bookings WHERE show_id = $1)`,
		`DELETE FROM bookings WHERE show_id = $1`,
		`DELETE FROM seats WHERE show_id = $1`,
	} {
		if _, err := db.Exec(ctx, q, showID); err != nil {
			return 0, wrapDBErr(op, err)
		}
	}

	ct, err := db.Exec(ctx, `DELETE FROM shows WHERE id = $1`, showID)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return ct.RowsAffected(), nil
}
