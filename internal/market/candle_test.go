package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesValidate(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ordered := Series{
		{OpenTime: base, Close: 1},
		{OpenTime: base.Add(time.Hour), Close: 2},
		{OpenTime: base.Add(2 * time.Hour), Close: 3},
	}
	assert.NoError(t, ordered.Validate())

	duplicate := Series{
		{OpenTime: base, Close: 1},
		{OpenTime: base, Close: 2},
	}
	assert.Error(t, duplicate.Validate(), "duplicate timestamps are invalid")

	backwards := Series{
		{OpenTime: base.Add(time.Hour), Close: 1},
		{OpenTime: base, Close: 2},
	}
	assert.Error(t, backwards.Validate())

	assert.NoError(t, Series{}.Validate(), "an empty series is trivially ordered")
}

func TestSeriesAccessors(t *testing.T) {
	var empty Series
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.Zero(t, empty.LastClose())

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		{OpenTime: base, High: 12, Low: 8, Close: 10},
		{OpenTime: base.Add(time.Hour), High: 15, Low: 9, Close: 12},
	}

	last, ok := s.Last()
	require.True(t, ok)
	assert.InDelta(t, 12, last.Close, 1e-9)
	assert.InDelta(t, 12, s.LastClose(), 1e-9)
	assert.Equal(t, []float64{10, 12}, s.Closes())
	assert.InDelta(t, (15.0+9.0+12.0)/3, s.TypicalPrice(1), 1e-9)
}
