package indicator

import (
	"math"

	"trading-core/internal/market"
)

// ATR calculates the Wilder-smoothed Average True Range.
func ATR(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	series := atrSeries(candles, period)
	return series[len(series)-1], true
}

// ATRPercent returns ATR as a percentage of the latest close, with its tier
// (low below 2%, high above 5%).
func ATRPercent(candles market.Series, period int) (float64, VolatilityTier, bool) {
	atr, ok := ATR(candles, period)
	if !ok {
		return 0, "", false
	}
	close := candles.LastClose()
	if close == 0 {
		return 0, "", false
	}

	pct := atr / close * 100
	tier := VolatilityMedium
	if pct < 2 {
		tier = VolatilityLow
	} else if pct > 5 {
		tier = VolatilityHigh
	}
	return pct, tier, true
}

// atrSeries computes the Wilder ATR for every bar from the seed onward.
// Returned slice has len(candles)-period entries.
func atrSeries(candles market.Series, period int) []float64 {
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		trs = append(trs, math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose))))
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	atr := sum / float64(period)

	out := make([]float64, 0, len(trs)-period+1)
	out = append(out, atr)
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
		out = append(out, atr)
	}
	return out
}

// BollingerResult holds the bands plus derived width and position metrics.
type BollingerResult struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Width    float64 `json:"width"`     // band width as % of middle
	PercentB float64 `json:"percent_b"` // price position in band, 0..100
	Squeeze  bool    `json:"squeeze"`   // width below 2%
}

// Bollinger calculates Bollinger Bands (SMA middle, k standard deviations).
func Bollinger(candles market.Series, period int, stdDevMultiplier float64) (*BollingerResult, bool) {
	middle, ok := SMA(candles, period)
	if !ok {
		return nil, false
	}

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	result := &BollingerResult{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
	if middle != 0 {
		result.Width = (result.Upper - result.Lower) / middle * 100
	}
	if band := result.Upper - result.Lower; band != 0 {
		result.PercentB = (candles.LastClose() - result.Lower) / band * 100
	} else {
		result.PercentB = 50
	}
	result.Squeeze = result.Width < 2
	return result, true
}

// KeltnerResult holds the EMA/ATR channel.
type KeltnerResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Keltner calculates Keltner Channels (EMA middle, ATR envelope).
func Keltner(candles market.Series, emaPeriod, atrPeriod int, multiplier float64) (*KeltnerResult, bool) {
	middle, ok := EMA(candles, emaPeriod)
	if !ok {
		return nil, false
	}
	atr, ok := ATR(candles, atrPeriod)
	if !ok {
		return nil, false
	}

	return &KeltnerResult{
		Upper:  middle + multiplier*atr,
		Middle: middle,
		Lower:  middle - multiplier*atr,
	}, true
}

// DonchianResult holds the rolling high/low channel.
type DonchianResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Donchian calculates Donchian Channels (rolling max high / min low).
func Donchian(candles market.Series, period int) (*DonchianResult, bool) {
	if period <= 0 || len(candles) < period {
		return nil, false
	}

	startIdx := len(candles) - period
	upper := candles[startIdx].High
	lower := candles[startIdx].Low
	for i := startIdx; i < len(candles); i++ {
		if candles[i].High > upper {
			upper = candles[i].High
		}
		if candles[i].Low < lower {
			lower = candles[i].Low
		}
	}

	return &DonchianResult{
		Upper:  upper,
		Middle: (upper + lower) / 2,
		Lower:  lower,
	}, true
}
