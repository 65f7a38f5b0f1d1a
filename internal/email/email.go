// Package email delivers ticket mails for confirmed bookings. Delivery
// failures are reported to the caller and never affect booking state.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avoronin/cineseat/internal/notify"
)

type Sender struct {
	log *slog.Logger
}

func NewSender(log *slog.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, ev notify.BookingEvent) error {
	if ev.UserEmail == "" {
		return fmt.Errorf("event %s has no recipient", ev.BookingID)
	}

	subject := fmt.Sprintf("Your tickets for %s", ev.MovieTitle)
	if ev.Type == notify.EventBookingCancelled {
		subject = fmt.Sprintf("Booking %s cancelled", ev.BookingID)
	}

	s.log.Info("sending ticket email",
		"to", ev.UserEmail,
		"subject", subject,
		"booking_id", ev.BookingID,
		"show_starts_at", ev.ShowStartsAt,
		"seats", strings.Join(ev.SeatCodes, " "),
		"amount", ev.TotalAmount,
	)

	return nil
}
