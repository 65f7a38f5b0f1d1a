// Package settlement turns drafts into paid bookings and unwinds bookings
// on cancellation. Every money movement happens in the same transaction as
// the seat and booking writes it pays for.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/notify"
	"github.com/avoronin/cineseat/internal/repository"
	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
	"github.com/avoronin/cineseat/internal/token"
	"github.com/avoronin/cineseat/internal/uow"
)

type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type LedgerStore interface {
	BalanceForUpdate(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID) (float64, error)
	AddToBalance(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID, delta float64) error
	SetBalance(ctx context.Context, tx postgresrepo.DB, userID uuid.UUID, balance float64) error
	DraftTotal(ctx context.Context, tx postgresrepo.DB, draftID string) (float64, error)
	CreateBooking(ctx context.Context, tx postgresrepo.DB, b *domain.Booking, h *domain.HistoryEntry) error
	BookingByID(ctx context.Context, tx postgresrepo.DB, id string) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, tx postgresrepo.DB, id string) error
}

type DraftStore interface {
	ByID(ctx context.Context, tx postgresrepo.DB, id string) (*domain.Draft, error)
	Delete(ctx context.Context, tx postgresrepo.DB, id string) error
}

type SeatStore interface {
	Book(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error
	Unbook(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) error
}

type CatalogReader interface {
	ShowWithMovieTitle(ctx context.Context, tx postgresrepo.DB, id int64) (*domain.Show, string, error)
	SeatCodes(ctx context.Context, tx postgresrepo.DB, seatIDs []uuid.UUID) ([]string, error)
	UserByID(ctx context.Context, tx postgresrepo.DB, id uuid.UUID) (*domain.User, error)
}

type Cache interface {
	InvalidateShow(ctx context.Context, showID int64) error
}

type Publisher interface {
	PublishShowChanged(ctx context.Context, showID int64) error
}

type EventProducer interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type Config struct {
	// CancelCutoff is how close to showtime a booking can still be cancelled.
	CancelCutoff time.Duration
	// RefundRate is the fraction of the charge returned on cancellation.
	RefundRate float64
	// DefaultBalance is the amount a refill resets the user's balance to.
	DefaultBalance float64
	// NotificationsTopic receives booking events for ticket delivery.
	NotificationsTopic string
}

type Service struct {
	uow      TxRunner
	ledger   LedgerStore
	drafts   DraftStore
	seats    SeatStore
	catalog  CatalogReader
	cache    Cache
	pubsub   Publisher
	producer EventProducer
	cfg      Config
	log      *slog.Logger
}

func NewService(
	u TxRunner,
	ledger LedgerStore,
	drafts DraftStore,
	seats SeatStore,
	catalog CatalogReader,
	cache Cache,
	pubsub Publisher,
	producer EventProducer,
	cfg Config,
	log *slog.Logger,
) *Service {
	return &Service{
		uow:      u,
		ledger:   ledger,
		drafts:   drafts,
		seats:    seats,
		catalog:  catalog,
		cache:    cache,
		pubsub:   pubsub,
		producer: producer,
		cfg:      cfg,
		log:      log,
	}
}

// Confirm settles a draft: the user pays the recomputed total, the seats
// move to booked, the booking and its history row appear and the draft is
// consumed, all in one transaction. On insufficient balance nothing changes
// and the seats stay locked until the draft expires or is deleted.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, draftID string) (*domain.Booking, error) {
	const op = "service.settlement.Confirm"

	var booking *domain.Booking
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

		show, movieTitle, err := s.catalog.ShowWithMovieTitle(ctx, tx, draft.ShowID)
		if err != nil {
			return err
		}

		balance, err := s.ledger.BalanceForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		total, err := s.ledger.DraftTotal(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if balance < total {
			return ErrInsufficientBalance
		}

		if err := s.ledger.AddToBalance(ctx, tx, userID, -total); err != nil {
			return err
		}
		if err := s.seats.Book(ctx, tx, draft.SeatIDs); err != nil {
			if errors.Is(err, repository.ErrSeatStateConflict) {
				return ErrDraftExpired
			}
			return err
		}

		codes, err := s.catalog.SeatCodes(ctx, tx, draft.SeatIDs)
		if err != nil {
			return err
		}

		booking = &domain.Booking{
			ID:          token.New(token.DefaultLen),
			UserID:      userID,
			ShowID:      draft.ShowID,
			SeatIDs:     draft.SeatIDs,
			TotalAmount: total,
			CreatedAt:   time.Now().UTC(),
		}
		history := &domain.HistoryEntry{
			BookingID:    booking.ID,
			UserID:       userID,
			MovieTitle:   movieTitle,
			ShowStartsAt: show.StartsAt,
			SeatCodes:    codes,
			TotalAmount:  total,
		}
		if err := s.ledger.CreateBooking(ctx, tx, booking, history); err != nil {
			return err
		}
		if err := s.drafts.Delete(ctx, tx, draftID); err != nil {
			return err
		}

		user, err := s.catalog.UserByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		after(s.showChangedHook(draft.ShowID))
		after(s.publishHook(notify.BookingEvent{
			Type:         notify.EventBookingConfirmed,
			BookingID:    booking.ID,
			UserEmail:    user.Email,
			MovieTitle:   movieTitle,
			ShowStartsAt: show.StartsAt,
			SeatCodes:    codes,
			TotalAmount:  total,
		}))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return booking, nil
}

// Cancel unwinds a confirmed booking before the cutoff: seats go back to
// available, the user gets the partial refund and the booking with its
// history row disappears. Returns the refunded amount.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID, bookingID string) (float64, error) {
	const op = "service.settlement.Cancel"

	var refund float64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		booking, err := s.ledger.BookingByID(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.UserID != userID {
			return ErrNotOwner
		}

		show, movieTitle, err := s.catalog.ShowWithMovieTitle(ctx, tx, booking.ShowID)
		if err != nil {
			return err
		}
		if show.StartsAt.Before(time.Now().Add(s.cfg.CancelCutoff)) {
			return ErrTooLateToCancel
		}

		refund = booking.TotalAmount * s.cfg.RefundRate

		if _, err := s.ledger.BalanceForUpdate(ctx, tx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.ledger.AddToBalance(ctx, tx, userID, refund); err != nil {
			return err
		}
		if err := s.seats.Unbook(ctx, tx, booking.SeatIDs); err != nil {
			return err
		}
		if err := s.ledger.DeleteBooking(ctx, tx, bookingID); err != nil {
			return err
		}

		user, err := s.catalog.UserByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		codes, err := s.catalog.SeatCodes(ctx, tx, booking.SeatIDs)
		if err != nil {
			return err
		}

		after(s.showChangedHook(booking.ShowID))
		after(s.publishHook(notify.BookingEvent{
			Type:         notify.EventBookingCancelled,
			BookingID:    booking.ID,
			UserEmail:    user.Email,
			MovieTitle:   movieTitle,
			ShowStartsAt: show.StartsAt,
			SeatCodes:    codes,
			TotalAmount:  booking.TotalAmount,
			RefundAmount: refund,
		}))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return refund, nil
}

// Refill resets the user's balance to the default amount and returns it.
func (s *Service) Refill(ctx context.Context, userID uuid.UUID) (float64, error) {
	const op = "service.settlement.Refill"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if _, err := s.ledger.BalanceForUpdate(ctx, tx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return s.ledger.SetBalance(ctx, tx, userID, s.cfg.DefaultBalance)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return s.cfg.DefaultBalance, nil
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

// publishHook hands the booking event to the notifications topic. The
// settlement already committed; a broker error is logged and dropped.
func (s *Service) publishHook(ev notify.BookingEvent) uow.AfterCommit {
	return func(ctx context.Context) {
		if s.producer == nil {
			return
		}
		if err := s.producer.Publish(ctx, s.cfg.NotificationsTopic, ev.BookingID, ev); err != nil {
			s.log.Error("failed to publish booking event",
				slog.String("type", ev.Type),
				slog.String("booking_id", ev.BookingID),
				slog.String("error", err.Error()))
		}
	}
}
