package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avoronin/cineseat/internal/domain"
)

func TestSeatsFromLayout_MaterializesRows(t *testing.T) {
	layout := []byte(`{"rows": [
		{"row": "A", "cols": 3, "type": "vip", "price": 2},
		{"row": "B", "cols": 4}
	]}`)

	seats, err := SeatsFromLayout(7, layout)

	assert.NoError(t, err)
	assert.Len(t, seats, 7)

	a1 := seats[0]
	assert.Equal(t, int64(7), a1.ShowID)
	assert.Equal(t, "A1", a1.Code)
	assert.Equal(t, "A", a1.Row)
	assert.Equal(t, 1, a1.Col)
	assert.Equal(t, domain.SeatVIP, a1.Type)
	assert.Equal(t, 2.0, a1.Price)
	assert.Equal(t, domain.SeatAvailable, a1.State)
	assert.NotEqual(t, a1.ID, seats[1].ID)

	// row B falls back to standard type and unit price
	b1 := seats[3]
	assert.Equal(t, "B1", b1.Code)
	assert.Equal(t, domain.SeatStandard, b1.Type)
	assert.Equal(t, 1.0, b1.Price)
}

func TestSeatsFromLayout_DisabledSeatsArriveBooked(t *testing.T) {
	layout := []byte(`{"rows": [
		{"row": "A", "cols": 4, "disabled": [2, 3]}
	]}`)

	seats, err := SeatsFromLayout(1, layout)

	assert.NoError(t, err)
	assert.Len(t, seats, 4)

	assert.Equal(t, domain.SeatAvailable, seats[0].State)
	assert.Equal(t, domain.SeatDisabled, seats[1].Type)
	assert.Equal(t, domain.SeatBooked, seats[1].State)
	assert.Equal(t, domain.SeatBooked, seats[2].State)
	assert.Equal(t, domain.SeatAvailable, seats[3].State)
}

func TestSeatsFromLayout_DisabledRowType(t *testing.T) {
	layout := []byte(`{"rows": [
		{"row": "Z", "cols": 2, "type": "disabled"}
	]}`)

	seats, err := SeatsFromLayout(1, layout)

	assert.NoError(t, err)
	for _, s := range seats {
		assert.Equal(t, domain.SeatDisabled, s.Type)
		assert.Equal(t, domain.SeatBooked, s.State)
	}
}

func TestSeatsFromLayout_Rejections(t *testing.T) {
	testCases := []struct {
		name   string
		layout string
	}{
		{"not json", `{`},
		{"no rows", `{"rows": []}`},
		{"row without label", `{"rows": [{"row": "", "cols": 2}]}`},
		{"duplicate row", `{"rows": [{"row": "A", "cols": 2}, {"row": "A", "cols": 2}]}`},
		{"no columns", `{"rows": [{"row": "A", "cols": 0}]}`},
		{"unknown type", `{"rows": [{"row": "A", "cols": 2, "type": "sofa"}]}`},
		{"disabled out of range", `{"rows": [{"row": "A", "cols": 2, "disabled": [3]}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seats, err := SeatsFromLayout(1, []byte(tc.layout))
			assert.ErrorIs(t, err, ErrBadLayout)
			assert.Nil(t, seats)
		})
	}
}
