package notify

import "time"

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

// BookingEvent is the ticket-delivery payload published after a settlement
// commits. Delivery failures never roll the booking back, so consumers must
// tolerate events for bookings that were since cancelled.
type BookingEvent struct {
	Type         string    `json:"type"`
	BookingID    string    `json:"booking_id"`
	UserEmail    string    `json:"user_email"`
	MovieTitle   string    `json:"movie_title"`
	ShowStartsAt time.Time `json:"show_starts_at"`
	SeatCodes    []string  `json:"seat_codes"`
	TotalAmount  float64   `json:"total_amount"`
	RefundAmount float64   `json:"refund_amount,omitempty"`
}
