package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/avoronin/cineseat/internal/domain"
)

// screenLayout is the JSON document stored per screen. Each row entry
// describes one physical row; columns are numbered from 1. A column listed
// in "disabled" is a wheelchair-companion or structurally blocked spot.
//
//	{"rows": [
//	  {"row": "A", "cols": 10, "type": "vip", "price": 2},
//	  {"row": "B", "cols": 12, "disabled": [6, 7]}
//	]}
type screenLayout struct {
	Rows []layoutRow `json:"rows"`
}

type layoutRow struct {
	Row      string  `json:"row"`
	Cols     int     `json:"cols"`
	Type     string  `json:"type,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Disabled []int   `json:"disabled,omitempty"`
}

var seatTypes = map[string]domain.SeatType{
	"":         domain.SeatStandard,
	"standard": domain.SeatStandard,
	"vip":      domain.SeatVIP,
	"premium":  domain.SeatPremium,
	"disabled": domain.SeatDisabled,
}

// SeatsFromLayout materializes the seat rows a show gets at creation.
// Disabled seats are created already booked so the hold flow can never
// take them.
func SeatsFromLayout(showID int64, layout []byte) ([]domain.Seat, error) {
	var doc screenLayout
	if err := json.Unmarshal(layout, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLayout, err)
	}
	if len(doc.Rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadLayout)
	}

	seenRows := make(map[string]struct{}, len(doc.Rows))
	var seats []domain.Seat
	for _, row := range doc.Rows {
		if row.Row == "" {
			return nil, fmt.Errorf("%w: row without a label", ErrBadLayout)
		}
		if _, dup := seenRows[row.Row]; dup {
			return nil, fmt.Errorf("%w: duplicate row %q", ErrBadLayout, row.Row)
		}
		seenRows[row.Row] = struct{}{}

		if row.Cols < 1 {
			return nil, fmt.Errorf("%w: row %q has no columns", ErrBadLayout, row.Row)
		}
		rowType, ok := seatTypes[row.Type]
		if !ok {
			return nil, fmt.Errorf("%w: row %q has unknown seat type %q", ErrBadLayout, row.Row, row.Type)
		}
		price := row.Price
		if price <= 0 {
			price = 1
		}

		disabled := make(map[int]struct{}, len(row.Disabled))
		for _, col := range row.Disabled {
			if col < 1 || col > row.Cols {
				return nil, fmt.Errorf("%w: row %q disables column %d outside 1..%d", ErrBadLayout, row.Row, col, row.Cols)
			}
			disabled[col] = struct{}{}
		}

		for col := 1; col <= row.Cols; col++ {
			seat := domain.Seat{
				ID:     uuid.New(),
				ShowID: showID,
				Code:   fmt.Sprintf("%s%d", row.Row, col),
				Row:    row.Row,
				Col:    col,
				Type:   rowType,
				Price:  price,
				State:  domain.SeatAvailable,
			}
			if _, off := disabled[col]; off {
				seat.Type = domain.SeatDisabled
			}
			if seat.Type == domain.SeatDisabled {
				seat.State = domain.SeatBooked
			}
			seats = append(seats, seat)
		}
	}

	return seats, nil
}
