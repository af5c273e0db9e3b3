package indicator

import "trading-core/internal/market"

// OBVResult holds On-Balance Volume with its moving-average trend and a
// price divergence flag.
type OBVResult struct {
	Value      float64   `json:"value"`
	Trend      Direction `json:"trend"`      // OBV vs its own moving average
	Divergence Direction `json:"divergence"` // OBV vs price over the MA window
}

// OBV calculates On-Balance Volume. Trend compares the latest OBV against
// its maPeriod SMA; divergence compares OBV slope against price slope.
func OBV(candles market.Series, maPeriod int) (*OBVResult, bool) {
	if maPeriod <= 0 || len(candles) < maPeriod+1 {
		return nil, false
	}

	series := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			series[i] = series[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			series[i] = series[i-1] - candles[i].Volume
		default:
			series[i] = series[i-1]
		}
	}

	sum := 0.0
	for i := len(series) - maPeriod; i < len(series); i++ {
		sum += series[i]
	}
	ma := sum / float64(maPeriod)

	obvNow := series[len(series)-1]
	result := &OBVResult{Value: obvNow, Trend: Neutral, Divergence: Neutral}
	if obvNow > ma {
		result.Trend = Bullish
	} else if obvNow < ma {
		result.Trend = Bearish
	}

	obvStart := series[len(series)-maPeriod]
	priceStart := candles[len(candles)-maPeriod].Close
	priceNow := candles.LastClose()
	if priceNow < priceStart && obvNow > obvStart {
		result.Divergence = Bullish
	} else if priceNow > priceStart && obvNow < obvStart {
		result.Divergence = Bearish
	}
	return result, true
}

// CMF calculates Chaikin Money Flow. Readings above +0.05 are bullish,
// below -0.05 bearish.
func CMF(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	mfVolume := 0.0
	volume := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		rng := c.High - c.Low
		if rng == 0 {
			continue
		}
		multiplier := ((c.Close - c.Low) - (c.High - c.Close)) / rng
		mfVolume += multiplier * c.Volume
		volume += c.Volume
	}
	if volume == 0 {
		return 0, false
	}
	return mfVolume / volume, true
}

// MFI calculates the Money Flow Index (volume-weighted RSI). 20/80 mark
// oversold/overbought.
func MFI(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}

	positive := 0.0
	negative := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		tp := candles.TypicalPrice(i)
		prevTP := candles.TypicalPrice(i - 1)
		flow := tp * candles[i].Volume
		if tp > prevTP {
			positive += flow
		} else if tp < prevTP {
			negative += flow
		}
	}
	if negative == 0 {
		if positive == 0 {
			return 50, true
		}
		return 100, true
	}
	ratio := positive / negative
	return 100 - 100/(1+ratio), true
}

// VolumeRatio compares the latest bar's volume against the average of the
// preceding period bars and tiers it (>1.5 high, <0.5 low).
func VolumeRatio(candles market.Series, period int) (float64, VolumeTier, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, "", false
	}

	sum := 0.0
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0, "", false
	}

	ratio := candles[len(candles)-1].Volume / avg
	tier := VolumeNormal
	if ratio > 1.5 {
		tier = VolumeHigh
	} else if ratio < 0.5 {
		tier = VolumeLow
	}
	return ratio, tier, true
}
