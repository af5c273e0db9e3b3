package market

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar for a single instrument and timeframe.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Series is a time-ordered sequence of candles for one instrument/timeframe.
// Timestamps must be strictly increasing; Validate enforces this.
type Series []Candle

// Validate checks ordering and duplicate timestamps.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].OpenTime.After(s[i-1].OpenTime) {
			return fmt.Errorf("candle series not strictly increasing at index %d (%s vs %s)",
				i, s[i-1].OpenTime.Format(time.RFC3339), s[i].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Last returns the most recent candle. ok is false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// LastClose returns the most recent close, or 0 for an empty series.
func (s Series) LastClose() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}

// Closes extracts the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// TypicalPrice returns (high+low+close)/3 for the candle at index i.
func (s Series) TypicalPrice(i int) float64 {
	return (s[i].High + s[i].Low + s[i].Close) / 3
}
