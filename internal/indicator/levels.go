package indicator

import "trading-core/internal/market"

// SwingHighLow finds the highest high and lowest low over the lookback
// window.
func SwingHighLow(candles market.Series, lookback int) (high, low float64, ok bool) {
	if lookback <= 0 || len(candles) < lookback {
		return 0, 0, false
	}

	startIdx := len(candles) - lookback
	high = candles[startIdx].High
	low = candles[startIdx].Low
	for i := startIdx; i < len(candles); i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return high, low, true
}

// PivotPoints holds pivot levels in any of the three variants.
type PivotPoints struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	R3 float64 `json:"r3"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
	S3 float64 `json:"s3"`
}

// StandardPivots calculates classic pivot points from the latest candle.
func StandardPivots(candles market.Series) (*PivotPoints, bool) {
	last, ok := candles.Last()
	if !ok {
		return nil, false
	}

	pp := (last.High + last.Low + last.Close) / 3
	return &PivotPoints{
		PP: pp,
		R1: 2*pp - last.Low,
		S1: 2*pp - last.High,
		R2: pp + (last.High - last.Low),
		S2: pp - (last.High - last.Low),
		R3: last.High + 2*(pp-last.Low),
		S3: last.Low - 2*(last.High-pp),
	}, true
}

// FibonacciPivots calculates Fibonacci-ratio pivot points.
func FibonacciPivots(candles market.Series) (*PivotPoints, bool) {
	last, ok := candles.Last()
	if !ok {
		return nil, false
	}

	pp := (last.High + last.Low + last.Close) / 3
	rng := last.High - last.Low
	return &PivotPoints{
		PP: pp,
		R1: pp + rng*0.382,
		R2: pp + rng*0.618,
		R3: pp + rng*1.000,
		S1: pp - rng*0.382,
		S2: pp - rng*0.618,
		S3: pp - rng*1.000,
	}, true
}

// CamarillaPivots calculates Camarilla pivot points.
func CamarillaPivots(candles market.Series) (*PivotPoints, bool) {
	last, ok := candles.Last()
	if !ok {
		return nil, false
	}

	rng := last.High - last.Low
	return &PivotPoints{
		PP: (last.High + last.Low + last.Close) / 3,
		R1: last.Close + rng*1.1/12,
		R2: last.Close + rng*1.1/6,
		R3: last.Close + rng*1.1/4,
		S1: last.Close - rng*1.1/12,
		S2: last.Close - rng*1.1/6,
		S3: last.Close - rng*1.1/4,
	}, true
}

// FibRetracement holds the retracement levels between a swing high and low.
type FibRetracement struct {
	Level0   float64 `json:"level_0"`
	Level236 float64 `json:"level_236"`
	Level382 float64 `json:"level_382"`
	Level50  float64 `json:"level_50"`
	Level618 float64 `json:"level_618"`
	Level786 float64 `json:"level_786"`
	Level100 float64 `json:"level_100"`
}

// FibonacciRetracement anchors retracement levels to the swing high/low over
// the lookback. In an uptrend, level 0 sits at the swing high and retraces
// downward; in a downtrend, level 0 sits at the swing low.
func FibonacciRetracement(candles market.Series, lookback int, uptrend bool) (*FibRetracement, bool) {
	high, low, ok := SwingHighLow(candles, lookback)
	if !ok {
		return nil, false
	}

	diff := high - low
	if uptrend {
		return &FibRetracement{
			Level0:   high,
			Level236: high - diff*0.236,
			Level382: high - diff*0.382,
			Level50:  high - diff*0.50,
			Level618: high - diff*0.618,
			Level786: high - diff*0.786,
			Level100: low,
		}, true
	}
	return &FibRetracement{
		Level0:   low,
		Level236: low + diff*0.236,
		Level382: low + diff*0.382,
		Level50:  low + diff*0.50,
		Level618: low + diff*0.618,
		Level786: low + diff*0.786,
		Level100: high,
	}, true
}

// SARResult holds the Parabolic SAR state.
type SARResult struct {
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
	Flipped   bool      `json:"flipped"` // trend flipped on the latest bar
}

// ParabolicSAR calculates Parabolic SAR with the acceleration factor ramping
// from step up to max on new extremes.
func ParabolicSAR(candles market.Series, step, max float64) (*SARResult, bool) {
	if len(candles) < 5 || step <= 0 || max < step {
		return nil, false
	}

	uptrend := candles[1].Close > candles[0].Close
	sar := candles[0].Low
	ep := candles[0].High
	if !uptrend {
		sar = candles[0].High
		ep = candles[0].Low
	}
	af := step
	flipped := false

	for i := 1; i < len(candles); i++ {
		sar = sar + af*(ep-sar)
		flipped = false

		if uptrend {
			// SAR can never sit above the prior two lows.
			if sar > candles[i-1].Low {
				sar = candles[i-1].Low
			}
			if i >= 2 && sar > candles[i-2].Low {
				sar = candles[i-2].Low
			}
			if candles[i].Low < sar {
				uptrend = false
				flipped = true
				sar = ep
				ep = candles[i].Low
				af = step
			} else if candles[i].High > ep {
				ep = candles[i].High
				af += step
				if af > max {
					af = max
				}
			}
		} else {
			if sar < candles[i-1].High {
				sar = candles[i-1].High
			}
			if i >= 2 && sar < candles[i-2].High {
				sar = candles[i-2].High
			}
			if candles[i].High > sar {
				uptrend = true
				flipped = true
				sar = ep
				ep = candles[i].High
				af = step
			} else if candles[i].Low < ep {
				ep = candles[i].Low
				af += step
				if af > max {
					af = max
				}
			}
		}
	}

	result := &SARResult{Value: sar, Flipped: flipped}
	if uptrend {
		result.Direction = Bullish
	} else {
		result.Direction = Bearish
	}
	return result, true
}
