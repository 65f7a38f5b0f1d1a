package httpgin

import (
	"encoding/json"
	"time"
)

type CreateDraftRequest struct {
	ShowID  int64    `json:"show_id" binding:"required"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}

type CreateDraftResponse struct {
	DraftID string `json:"draft_id"`
}

type ConfirmDraftResponse struct {
	BookingID   string  `json:"booking_id"`
	TotalAmount float64 `json:"total_amount"`
}

type CancelBookingResponse struct {
	RefundAmount float64 `json:"refund_amount"`
}

type RefillBalanceResponse struct {
	Balance float64 `json:"balance"`
}

type AddMovieRequest struct {
	ImdbID      string `json:"imdb_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	DurationMin int    `json:"duration_min" binding:"gte=0"`
	Language    string `json:"language"`
	PosterURL   string `json:"poster_url"`
}

type AddMovieResponse struct {
	MovieID int64 `json:"movie_id"`
}

type AddScreenRequest struct {
	Number int             `json:"number" binding:"required,gt=0"`
	Layout json.RawMessage `json:"layout" binding:"required"`
}

type AddShowRequest struct {
	ImdbID       string  `json:"imdb_id" binding:"required"`
	ScreenNumber int     `json:"screen_number" binding:"required,gt=0"`
	StartsAt     string  `json:"starts_at" binding:"required"`
	BasePrice    float64 `json:"base_price" binding:"required,gt=0"`
}

type AddShowResponse struct {
	ShowID int64 `json:"show_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
