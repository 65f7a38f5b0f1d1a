package domain

import (
	"time"

	"github.com/google/uuid"
)

type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatLocked    SeatState = "locked"
	SeatBooked    SeatState = "booked"
)

type SeatType string

const (
	SeatStandard SeatType = "standard"
	SeatVIP      SeatType = "vip"
	SeatPremium  SeatType = "premium"
	SeatDisabled SeatType = "disabled"
)

type Movie struct {
	ID          int64
	ImdbID      string
	Title       string
	Description string
	DurationMin int
	Language    string
	PosterURL   string
}

type Screen struct {
	Number int
	Layout []byte // jsonb raw
}

type Show struct {
	ID           int64
	MovieID      int64
	ScreenNumber int
	StartsAt     time.Time
	BasePrice    float64
}

type Seat struct {
	ID       uuid.UUID
	ShowID   int64
	Code     string
	Row      string
	Col      int
	Type     SeatType
	Price    float64
	State    SeatState
	LockedAt *time.Time
}

type ShowCounts struct {
	Available int64
	Locked    int64
	Booked    int64
	Total     int64
}

// Draft is a time-limited hold on seats prior to payment. A user has at
// most one outstanding draft.
type Draft struct {
	ID        string
	UserID    uuid.UUID
	ShowID    int64
	SeatIDs   []uuid.UUID
	CreatedAt time.Time
}

type Booking struct {
	ID          string
	UserID      uuid.UUID
	ShowID      int64
	SeatIDs     []uuid.UUID
	TotalAmount float64
	CreatedAt   time.Time
}

// HistoryEntry is the denormalized per-user record of a confirmed booking,
// written and deleted in the same transaction as the booking itself.
type HistoryEntry struct {
	BookingID    string
	UserID       uuid.UUID
	MovieTitle   string
	ShowStartsAt time.Time
	SeatCodes    []string
	TotalAmount  float64
}

type User struct {
	ID      uuid.UUID
	Email   string
	Balance float64
}
