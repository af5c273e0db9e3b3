package indicator

import "trading-core/internal/market"

// SMA calculates the Simple Moving Average over the last period candles.
// ok is false when the series is shorter than the period.
func SMA(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), true
}

// EMA calculates the Exponential Moving Average, seeded with an SMA.
func EMA(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	series := emaSeries(candles.Closes(), period)
	return series[len(series)-1], true
}

// WMA calculates the linearly Weighted Moving Average (most recent bar
// carries the largest weight).
func WMA(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	sum := 0.0
	weightSum := 0.0
	startIdx := len(candles) - period
	for i := 0; i < period; i++ {
		weight := float64(i + 1)
		sum += candles[startIdx+i].Close * weight
		weightSum += weight
	}
	return sum / weightSum, true
}

// VWMA calculates the Volume Weighted Moving Average.
func VWMA(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	priceVolume := 0.0
	volume := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		priceVolume += candles[i].Close * candles[i].Volume
		volume += candles[i].Volume
	}
	if volume == 0 {
		return 0, false
	}
	return priceVolume / volume, true
}

// emaSeries computes the EMA across the full value slice. The first period
// values collapse into the SMA seed; the returned slice has
// len(values)-period+1 entries, one per bar from the seed onward.
func emaSeries(values []float64, period int) []float64 {
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, ema)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out = append(out, ema)
	}
	return out
}
