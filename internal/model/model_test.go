package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints(t *testing.T) {
	assert.Equal(t, 3, Points(3, 1.0))
	assert.Equal(t, 10, Points(5, 2.0))
	assert.Equal(t, 8, Points(3, 2.5), "7.5 rounds half away from zero")
	assert.Equal(t, 0, Points(0, 2.0))
	assert.Equal(t, 0, Points(4, 0))
}

func TestNextBookingStatus(t *testing.T) {
	from, to, ok := NextBookingStatus("approve")
	assert.True(t, ok)
	assert.Equal(t, BookingPending, from)
	assert.Equal(t, BookingVerified, to)

	from, to, ok = NextBookingStatus("redeem")
	assert.True(t, ok)
	assert.Equal(t, BookingVerified, from)
	assert.Equal(t, BookingRedeemed, to)

	_, _, ok = NextBookingStatus("cancel")
	assert.False(t, ok)
}
