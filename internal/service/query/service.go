// Package query serves the read side: movies, shows, seat maps,
// availability counters and per-user booking history. Hot show
// projections are cached in Redis and rebuilt on demand.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/domain"
	redisx "github.com/avoronin/cineseat/internal/redis"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	redisrepo "github.com/avoronin/cineseat/internal/repository/redis"
)

type Config struct {
	ShowTTL         time.Duration
	AvailabilityTTL time.Duration
	SeatMapTTL      time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func NewService(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.ShowTTL <= 0 {
		cfg.ShowTTL = 5 * time.Minute
	}
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 3 * time.Second
	}
	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}
	return &Service{store: store, cache: cache, cfg: cfg}
}

func (s *Service) GetShow(ctx context.Context, id int64) (domain.Show, error) {
	const op = "service.query.GetShow"

	show, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyShowSummary(id), s.cfg.ShowTTL,
		func(ctx context.Context) (domain.Show, error) {
			sh, err := s.store.Query().ShowByID(ctx, nil, id)
			if err != nil {
				return domain.Show{}, err
			}
			return *sh, nil
		})
	if err != nil {
		return domain.Show{}, fmt.Errorf("%s: %w", op, err)
	}
	return show, nil
}

// Availability reports the per-state seat counters for a show. The counters
// are cached briefly; invalidation on every seat transition keeps them from
// going stale for longer than the TTL.
func (s *Service) Availability(ctx context.Context, showID int64) (domain.ShowCounts, error) {
	const op = "service.query.Availability"

	counts, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyShowAvailability(showID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.ShowCounts, error) {
			if _, err := s.store.Query().ShowByID(ctx, nil, showID); err != nil {
				return domain.ShowCounts{}, err
			}
			sc, err := s.store.Query().CountsByState(ctx, nil, showID)
			if err != nil {
				return domain.ShowCounts{}, err
			}
			return *sc, nil
		})
	if err != nil {
		return domain.ShowCounts{}, fmt.Errorf("%s: %w", op, err)
	}
	return counts, nil
}

// ListShowSeats returns the seat map for a show. The full map is cached as
// one projection; filtering and paging happen on the cached copy.
func (s *Service) ListShowSeats(ctx context.Context, showID int64, onlyAvailable bool, limit, offset int) ([]domain.Seat, error) {
	const op = "service.query.ListShowSeats"

	seats, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyShowSeatMap(showID), s.cfg.SeatMapTTL,
		func(ctx context.Context) ([]domain.Seat, error) {
			if _, err := s.store.Query().ShowByID(ctx, nil, showID); err != nil {
				return nil, err
			}
			return s.store.Query().ListShowSeats(ctx, nil, showID, false, maxSeatsPerShow, 0)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if onlyAvailable {
		filtered := make([]domain.Seat, 0, len(seats))
		for _, seat := range seats {
			if seat.State == domain.SeatAvailable {
				filtered = append(filtered, seat)
			}
		}
		seats = filtered
	}

	return page(seats, limit, offset), nil
}

func (s *Service) ListMovies(ctx context.Context, limit, offset int) ([]domain.Movie, error) {
	const op = "service.query.ListMovies"

	movies, err := s.store.Query().ListMovies(ctx, nil, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return movies, nil
}

func (s *Service) MovieShows(ctx context.Context, imdbID string) ([]domain.Show, error) {
	const op = "service.query.MovieShows"

	shows, err := s.store.Query().ShowsByMovie(ctx, nil, imdbID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return shows, nil
}

// UserBookings lists the caller's booking history. History rows are deleted
// with their bookings, so this only ever shows live bookings.
func (s *Service) UserBookings(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	const op = "service.query.UserBookings"

	entries, err := s.store.Query().HistoryByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// maxSeatsPerShow bounds the cached seat map projection. Screens in the
// layout format top out well below this.
const maxSeatsPerShow = 2048

func page(seats []domain.Seat, limit, offset int) []domain.Seat {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(seats) {
		return nil
	}
	seats = seats[offset:]
	if limit > 0 && limit < len(seats) {
		seats = seats[:limit]
	}
	return seats
}
