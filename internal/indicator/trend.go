package indicator

import (
	"math"

	"trading-core/internal/market"
)

// DMIResult holds the directional movement index values.
type DMIResult struct {
	ADX      float64       `json:"adx"`
	PlusDI   float64       `json:"plus_di"`
	MinusDI  float64       `json:"minus_di"`
	Strength TrendStrength `json:"strength"`
	Signal   Direction     `json:"signal"`
}

// DMI calculates ADX with +DI/-DI using Wilder smoothing.
// Requires at least 2*period+1 candles.
func DMI(candles market.Series, period int) (*DMIResult, bool) {
	if period <= 0 || len(candles) < 2*period+1 {
		return nil, false
	}

	var smoothTR, smoothPlusDM, smoothMinusDM float64
	var adx float64
	dxCount := 0

	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevHigh := candles[i-1].High
		prevLow := candles[i-1].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))

		upMove := high - prevHigh
		downMove := prevLow - low
		plusDM := 0.0
		minusDM := 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}

		if i <= period {
			smoothTR += tr
			smoothPlusDM += plusDM
			smoothMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			smoothTR = smoothTR - smoothTR/float64(period) + tr
			smoothPlusDM = smoothPlusDM - smoothPlusDM/float64(period) + plusDM
			smoothMinusDM = smoothMinusDM - smoothMinusDM/float64(period) + minusDM
		}

		if smoothTR == 0 {
			continue
		}
		plusDI := 100 * smoothPlusDM / smoothTR
		minusDI := 100 * smoothMinusDM / smoothTR
		diSum := plusDI + minusDI
		if diSum == 0 {
			continue
		}
		dx := 100 * math.Abs(plusDI-minusDI) / diSum

		dxCount++
		if dxCount == 1 {
			adx = dx
		} else if dxCount <= period {
			adx = (adx*float64(dxCount-1) + dx) / float64(dxCount)
		} else {
			adx = (adx*float64(period-1) + dx) / float64(period)
		}
	}

	if smoothTR == 0 {
		return nil, false
	}

	result := &DMIResult{
		ADX:     adx,
		PlusDI:  100 * smoothPlusDM / smoothTR,
		MinusDI: 100 * smoothMinusDM / smoothTR,
	}
	result.Strength = classifyADX(adx)
	switch {
	case result.PlusDI > result.MinusDI:
		result.Signal = Bullish
	case result.MinusDI > result.PlusDI:
		result.Signal = Bearish
	default:
		result.Signal = Neutral
	}
	return result, true
}

// classifyADX maps ADX onto the ordinal strength tiers (20/25/40/50).
func classifyADX(adx float64) TrendStrength {
	switch {
	case adx < 20:
		return TrendRanging
	case adx < 25:
		return TrendWeak
	case adx < 40:
		return TrendModerate
	case adx < 50:
		return TrendStrong
	default:
		return TrendVeryStrong
	}
}

// SupertrendResult holds the volatility-adaptive band follower state.
type SupertrendResult struct {
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
	Flipped   bool      `json:"flipped"`
}

// Supertrend calculates the ATR band trend follower. Direction flips when
// close crosses the carried band.
func Supertrend(candles market.Series, period int, multiplier float64) (*SupertrendResult, bool) {
	if period <= 0 || len(candles) < period+2 {
		return nil, false
	}

	atrs := atrSeries(candles, period)
	offset := len(candles) - len(atrs)

	var finalUpper, finalLower float64
	direction := Bullish
	prevDirection := direction
	value := 0.0

	for j, atr := range atrs {
		i := offset + j
		mid := (candles[i].High + candles[i].Low) / 2
		upper := mid + multiplier*atr
		lower := mid - multiplier*atr

		if j == 0 {
			finalUpper = upper
			finalLower = lower
		} else {
			prevClose := candles[i-1].Close
			if upper < finalUpper || prevClose > finalUpper {
				finalUpper = upper
			}
			if lower > finalLower || prevClose < finalLower {
				finalLower = lower
			}
		}

		prevDirection = direction
		if candles[i].Close > finalUpper {
			direction = Bullish
		} else if candles[i].Close < finalLower {
			direction = Bearish
		}

		if direction == Bullish {
			value = finalLower
		} else {
			value = finalUpper
		}
	}

	return &SupertrendResult{
		Value:     value,
		Direction: direction,
		Flipped:   direction != prevDirection,
	}, true
}

// IchimokuResult holds the cloud system lines and price classification.
type IchimokuResult struct {
	Tenkan        float64   `json:"tenkan"`
	Kijun         float64   `json:"kijun"`
	SenkouA       float64   `json:"senkou_a"`
	SenkouB       float64   `json:"senkou_b"`
	Chikou        float64   `json:"chikou"`
	PriceVsCloud  string    `json:"price_vs_cloud"` // above_cloud, in_cloud, below_cloud
	Signal        Direction `json:"signal"`
}

// Ichimoku calculates the cloud system with the standard 9/26/52 windows.
// The cloud under the current bar uses the midpoints projected 26 bars ago.
func Ichimoku(candles market.Series) (*IchimokuResult, bool) {
	const (
		tenkanPeriod = 9
		kijunPeriod  = 26
		senkouPeriod = 52
	)
	if len(candles) < senkouPeriod+kijunPeriod {
		return nil, false
	}

	last := len(candles)
	result := &IchimokuResult{
		Tenkan: midpoint(candles[last-tenkanPeriod:]),
		Kijun:  midpoint(candles[last-kijunPeriod:]),
		Chikou: candles[last-1].Close,
	}

	// Cloud in effect now was drawn kijunPeriod bars back.
	shifted := candles[:last-kijunPeriod]
	tenkanPast := midpoint(shifted[len(shifted)-tenkanPeriod:])
	kijunPast := midpoint(shifted[len(shifted)-kijunPeriod:])
	result.SenkouA = (tenkanPast + kijunPast) / 2
	result.SenkouB = midpoint(shifted[len(shifted)-senkouPeriod:])

	cloudTop := math.Max(result.SenkouA, result.SenkouB)
	cloudBottom := math.Min(result.SenkouA, result.SenkouB)
	price := candles[last-1].Close

	switch {
	case price > cloudTop:
		result.PriceVsCloud = "above_cloud"
		result.Signal = Bullish
	case price < cloudBottom:
		result.PriceVsCloud = "below_cloud"
		result.Signal = Bearish
	default:
		result.PriceVsCloud = "in_cloud"
		result.Signal = Neutral
	}
	return result, true
}

// midpoint returns (highest high + lowest low) / 2 over the window.
func midpoint(window market.Series) float64 {
	high := window[0].High
	low := window[0].Low
	for _, c := range window {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return (high + low) / 2
}
