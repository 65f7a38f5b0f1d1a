// Package catalog is the schedule-management side: movies, screens and
// shows. Creating a show also materializes its seats from the screen's
// layout document.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronin/cineseat/internal/domain"
	redisx "github.com/avoronin/cineseat/internal/redis"
	"github.com/avoronin/cineseat/internal/repository"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	redisrepo "github.com/avoronin/cineseat/internal/repository/redis"
	"github.com/avoronin/cineseat/internal/uow"
)

// OverlapWindow is the no-other-show margin around a show's start time on
// the same screen, in both directions.
const OverlapWindow = 180 * time.Minute

type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	cache  *redisrepo.Cache
	pubsub *redisx.ShowsPubSub
	log    *slog.Logger
}

func NewService(store *postgresrepo.Store, u *uow.UoW, cache *redisrepo.Cache, pubsub *redisx.ShowsPubSub, log *slog.Logger) *Service {
	return &Service{store: store, uow: u, cache: cache, pubsub: pubsub, log: log}
}

func (s *Service) AddMovie(ctx context.Context, m domain.Movie) (int64, error) {
	const op = "service.catalog.AddMovie"

	id, err := s.store.Catalog().CreateMovie(ctx, nil, &m)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s: %w", op, ErrMovieExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Service) DeleteMovie(ctx context.Context, imdbID string) error {
	const op = "service.catalog.DeleteMovie"

	n, err := s.store.Catalog().DeleteMovie(ctx, nil, imdbID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrMovieNotFound)
	}
	return nil
}

// AddScreen validates the layout document before storing it, so a broken
// layout is rejected here rather than at the first AddShow.
func (s *Service) AddScreen(ctx context.Context, number int, layoutJSON []byte) error {
	const op = "service.catalog.AddScreen"

	if _, err := SeatsFromLayout(0, layoutJSON); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Catalog().CreateScreen(ctx, nil, number, layoutJSON); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s: %w", op, ErrScreenExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type AddShowInput struct {
	ImdbID       string
	ScreenNumber int
	StartsAt     time.Time
	BasePrice    float64
}

// AddShow schedules a show and materializes its seats. The start time must
// be in the future and at least OverlapWindow away from every other show on
// the same screen.
func (s *Service) AddShow(ctx context.Context, in AddShowInput) (int64, error) {
	const op = "service.catalog.AddShow"

	if in.StartsAt.Before(time.Now()) {
		return 0, fmt.Errorf("%s: %w", op, ErrShowInPast)
	}

	var showID int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		movie, err := s.store.Catalog().MovieByImdbID(ctx, tx, in.ImdbID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrMovieNotFound
			}
			return err
		}
		screen, err := s.store.Catalog().ScreenByNumber(ctx, tx, in.ScreenNumber)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrScreenNotFound
			}
			return err
		}

		n, err := s.store.Catalog().CountOverlappingShows(ctx, tx, in.ScreenNumber, in.StartsAt, OverlapWindow)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrShowOverlap
		}

		showID, err = s.store.Catalog().CreateShow(ctx, tx, &domain.Show{
			MovieID:      movie.ID,
			ScreenNumber: screen.Number,
			StartsAt:     in.StartsAt,
			BasePrice:    in.BasePrice,
		})
		if err != nil {
			return err
		}

		seats, err := SeatsFromLayout(showID, screen.Layout)
		if err != nil {
			return err
		}
		return s.store.Catalog().BatchCreateSeats(ctx, tx, seats)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("show scheduled",
		slog.Int64("show_id", showID),
		slog.String("imdb_id", in.ImdbID),
		slog.Int("screen", in.ScreenNumber),
		slog.Time("starts_at", in.StartsAt))
	return showID, nil
}

// DeleteShow removes the show with every seat, draft and booking attached
// to it, then drops the show's cached projections.
func (s *Service) DeleteShow(ctx context.Context, showID int64) error {
	const op = "service.catalog.DeleteShow"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		n, err := s.store.Catalog().DeleteShow(ctx, tx, showID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShowNotFound
		}
		after(func(ctx context.Context) {
			if err := s.cache.InvalidateShow(ctx, showID); err != nil {
				s.log.Warn("failed to invalidate show cache",
					slog.Int64("show_id", showID),
					slog.String("error", err.Error()))
			}
			if err := s.pubsub.PublishShowChanged(ctx, showID); err != nil {
				s.log.Warn("failed to publish show change",
					slog.Int64("show_id", showID),
					slog.String("error", err.Error()))
			}
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
