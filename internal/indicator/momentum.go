package indicator

import (
	"math"

	"trading-core/internal/market"
)

// RSI calculates the Wilder-smoothed Relative Strength Index.
func RSI(candles market.Series, period int) (float64, bool) {
	series, ok := rsiSeries(candles, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

// rsiSeries computes Wilder RSI for every bar from the seed onward.
func rsiSeries(candles market.Series, period int) ([]float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return nil, false
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	out := make([]float64, 0, len(candles)-period)
	out = append(out, rsiValue(avgGain, avgLoss))
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out, true
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RSIDivergence detects price/RSI divergence over the lookback window.
// Price falling while RSI rises is bullish; price rising while RSI falls is
// bearish.
func RSIDivergence(candles market.Series, period, lookback int) (Direction, bool) {
	series, ok := rsiSeries(candles, period)
	if !ok || len(series) < lookback || lookback < 2 {
		return Neutral, false
	}

	priceStart := candles[len(candles)-lookback].Close
	priceEnd := candles.LastClose()
	rsiStart := series[len(series)-lookback]
	rsiEnd := series[len(series)-1]

	if priceEnd < priceStart && rsiEnd > rsiStart {
		return Bullish, true
	}
	if priceEnd > priceStart && rsiEnd < rsiStart {
		return Bearish, true
	}
	return Neutral, true
}

// StochasticResult holds the smoothed %K and its %D signal line.
type StochasticResult struct {
	K      float64   `json:"k"`
	D      float64   `json:"d"`
	Signal Direction `json:"signal"`
}

// Stochastic calculates the stochastic oscillator: raw %K over kPeriod,
// smoothed by kSmooth, with %D as an SMA of the smoothed %K.
func Stochastic(candles market.Series, kPeriod, kSmooth, dPeriod int) (*StochasticResult, bool) {
	needed := kPeriod + kSmooth + dPeriod - 2
	if kPeriod <= 0 || kSmooth <= 0 || dPeriod <= 0 || len(candles) < needed {
		return nil, false
	}

	rawK := func(end int) float64 {
		highest := candles[end-kPeriod+1].High
		lowest := candles[end-kPeriod+1].Low
		for i := end - kPeriod + 1; i <= end; i++ {
			if candles[i].High > highest {
				highest = candles[i].High
			}
			if candles[i].Low < lowest {
				lowest = candles[i].Low
			}
		}
		if highest == lowest {
			return 50
		}
		return (candles[end].Close - lowest) / (highest - lowest) * 100
	}

	smoothK := func(end int) float64 {
		sum := 0.0
		for i := 0; i < kSmooth; i++ {
			sum += rawK(end - i)
		}
		return sum / float64(kSmooth)
	}

	last := len(candles) - 1
	k := smoothK(last)
	dSum := 0.0
	for i := 0; i < dPeriod; i++ {
		dSum += smoothK(last - i)
	}
	d := dSum / float64(dPeriod)

	result := &StochasticResult{K: k, D: d, Signal: Neutral}
	if k < 20 {
		result.Signal = Bullish // oversold
	} else if k > 80 {
		result.Signal = Bearish // overbought
	}
	return result, true
}

// MACDResult holds the MACD line, signal line and histogram plus crossover
// edge flags (crossed on this bar, not on the previous one).
type MACDResult struct {
	MACD        float64 `json:"macd"`
	Signal      float64 `json:"signal"`
	Histogram   float64 `json:"histogram"`
	CrossedUp   bool    `json:"crossed_up"`
	CrossedDown bool    `json:"crossed_down"`
}

// MACD calculates MACD with a real signal EMA over the MACD line history.
func MACD(candles market.Series, fastPeriod, slowPeriod, signalPeriod int) (*MACDResult, bool) {
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || signalPeriod <= 0 {
		return nil, false
	}
	if len(candles) < slowPeriod+signalPeriod {
		return nil, false
	}

	closes := candles.Closes()
	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD line defined from the slow EMA seed onward.
	macdLine := make([]float64, len(slow))
	shift := slowPeriod - fastPeriod
	for i := range slow {
		macdLine[i] = fast[i+shift] - slow[i]
	}

	signalLine := emaSeries(macdLine, signalPeriod)

	n := len(signalLine)
	macdNow := macdLine[len(macdLine)-1]
	signalNow := signalLine[n-1]
	histNow := macdNow - signalNow

	result := &MACDResult{
		MACD:      macdNow,
		Signal:    signalNow,
		Histogram: histNow,
	}
	if n >= 2 {
		histPrev := macdLine[len(macdLine)-2] - signalLine[n-2]
		result.CrossedUp = histNow > 0 && histPrev <= 0
		result.CrossedDown = histNow < 0 && histPrev >= 0
	}
	return result, true
}

// WilliamsR calculates Williams %R. Bounded in [-100, 0]; above -20 is
// overbought, below -80 oversold.
func WilliamsR(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	startIdx := len(candles) - period
	highest := candles[startIdx].High
	lowest := candles[startIdx].Low
	for i := startIdx; i < len(candles); i++ {
		if candles[i].High > highest {
			highest = candles[i].High
		}
		if candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}
	if highest == lowest {
		return -50, true
	}
	return (highest - candles.LastClose()) / (highest - lowest) * -100, true
}

// CCI calculates the Commodity Channel Index over typical prices.
func CCI(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}

	startIdx := len(candles) - period
	sum := 0.0
	for i := startIdx; i < len(candles); i++ {
		sum += candles.TypicalPrice(i)
	}
	mean := sum / float64(period)

	meanDev := 0.0
	for i := startIdx; i < len(candles); i++ {
		meanDev += math.Abs(candles.TypicalPrice(i) - mean)
	}
	meanDev /= float64(period)
	if meanDev == 0 {
		return 0, true
	}

	tp := candles.TypicalPrice(len(candles) - 1)
	return (tp - mean) / (0.015 * meanDev), true
}

// ROC calculates the rate of change in percent over the period.
func ROC(candles market.Series, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	past := candles[len(candles)-period-1].Close
	if past == 0 {
		return 0, false
	}
	return (candles.LastClose() - past) / past * 100, true
}
