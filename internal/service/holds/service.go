// Package holds manages draft bookings: taking seat holds, releasing
// them on user request and reclaiming the ones that went stale.
package holds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/repository"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	"github.com/avoronin/cineseat/internal/token"
	"github.com/avoronin/cineseat/internal/uow"
)

// TxRunner executes fn inside a single database transaction. Hooks
// registered through after run only if the transaction commits.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type SeatStore interface {
	Lock(ctx context.Context, tx postgresrepo.DB, showID int64, seatIDs []uuid.UUID, lockedAt time.Time) error
	Release(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error
}

type DraftStore interface {
	Create(ctx context.Context, tx postgresrepo.DB, d *domain.Draft) error
	ByID(ctx context.Context, tx postgresrepo.DB, id string) (*domain.Draft, error)
	Delete(ctx context.Context, tx postgresrepo.DB, id string) error
	ExpiredBefore(ctx context.Context, tx postgresrepo.DB, cutoff time.Time, limit int) ([]string, error)
}

type ShowReader interface {
	ShowByID(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Show, error)
}

type Cache interface {
	InvalidateShow(ctx context.Context, showID int64) error
}

type Publisher interface {
	PublishShowChanged(ctx context.Context, showID int64) error
}

type Config struct {
	// HoldTimeout is how long a draft may sit unconfirmed before the
	// sweeper reclaims its seats.
	HoldTimeout time.Duration
	// SweepBatch caps how many expired drafts a single sweep handles.
	SweepBatch int
}

type Service struct {
	uow    TxRunner
	seats  SeatStore
	drafts DraftStore
	shows  ShowReader
	cache  Cache
	pubsub Publisher
	cfg    Config
	log    *slog.Logger
}

func NewService(u TxRunner, seats SeatStore, drafts DraftStore, shows ShowReader, cache Cache, pubsub Publisher, cfg Config, log *slog.Logger) *Service {
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &Service{
		uow:    u,
		seats:  seats,
		drafts: drafts,
		shows:  shows,
		cache:  cache,
		pubsub: pubsub,
		cfg:    cfg,
		log:    log,
	}
}

// CreateDraft locks the requested seats and records a draft booking for
// the user. Either every seat is locked and the draft exists, or nothing
// changed. A user can have at most one draft at a time.
func (s *Service) CreateDraft(ctx context.Context, userID uuid.UUID, showID int64, seatIDs []uuid.UUID) (*domain.Draft, error) {
	const op = "service.holds.CreateDraft"

	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSeatsSelected)
	}

	draft := &domain.Draft{
		ID:        token.New(token.DefaultLen),
		UserID:    userID,
		ShowID:    showID,
		SeatIDs:   seatIDs,
		CreatedAt: time.Now().UTC(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if _, err := s.shows.ShowByID(ctx, tx, showID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrShowNotFound
			}
			return err
		}
		// The draft row goes in first: the unique constraint on the
		// user turns concurrent "second draft" attempts into a clean
		// conflict before any seat changes state.
		if err := s.drafts.Create(ctx, tx, draft); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrDraftConflict
			}
			return err
		}
		if err := s.seats.Lock(ctx, tx, showID, seatIDs, draft.CreatedAt); err != nil {
			if errors.Is(err, repository.ErrSeatsUnavailable) {
				return ErrSeatsUnavailable
			}
			return err
		}
		after(s.showChangedHook(showID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return draft, nil
}

// DeleteDraft releases the draft's seats and removes the draft. Only the
// draft's owner may delete it.
func (s *Service) DeleteDraft(ctx context.Context, userID uuid.UUID, draftID string) error {
	const op = "service.holds.DeleteDraft"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		draft, err := s.drafts.ByID(ctx, tx, draftID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDraftNotFound
			}
			return err
		}
		if draft.UserID != userID {
			return ErrNotOwner
		}
		if err := s.releaseDraft(ctx, tx, draft); err != nil {
			return err
		}
		after(s.showChangedHook(draft.ShowID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReleaseExpired reclaims drafts older than the hold timeout. Each draft
// is handled in its own transaction so one failure does not hold up the
// rest of the batch. Returns how many drafts were released.
func (s *Service) ReleaseExpired(ctx context.Context) (int, error) {
	const op = "service.holds.ReleaseExpired"

	cutoff := time.Now().UTC().Add(-s.cfg.HoldTimeout)
	ids, err := s.drafts.ExpiredBefore(ctx, nil, cutoff, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	released := 0
	for _, id := range ids {
		if err := s.releaseOne(ctx, id); err != nil {
			// Someone confirmed or deleted the draft between the scan
			// and our transaction. Nothing to reclaim.
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			s.log.Error("failed to release expired draft",
				slog.String("draft_id", id),
				slog.String("error", err.Error()))
			continue
		}
		released++
	}
	return released, nil
}

func (s *Service) releaseOne(ctx context.Context, draftID string) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		draft, err := s.drafts.ByID(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if err := s.releaseDraft(ctx, tx, draft); err != nil {
			return err
		}
		after(s.showChangedHook(draft.ShowID))
		return nil
	})
}

// releaseDraft is the single path that takes a draft apart: seats go
// back to available, then the draft rows go away.
func (s *Service) releaseDraft(ctx context.Context, tx postgresrepo.DB, draft *domain.Draft) error {
	if err := s.seats.Release(ctx, tx, draft.SeatIDs); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, tx, draft.ID)
}

func (s *Service) showChangedHook(showID int64) uow.AfterCommit {
	return func(ctx context.Context) {
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
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
