package indicator

import "fmt"

// CompositeSignal aggregates the weighted indicator votes into one bias.
type CompositeSignal struct {
	Overall    Direction `json:"overall"`
	Strength   float64   `json:"strength"`   // winning percentage, 0-100
	Confidence float64   `json:"confidence"` // same scale as strength
	BullScore  int       `json:"bull_score"`
	BearScore  int       `json:"bear_score"`
	NetScore   int       `json:"net_score"` // bull minus bear, signed
	Reasons    []string  `json:"reasons"`
}

// Composite tallies the weighted votes from ADX direction, Supertrend, RSI,
// Stochastic, MACD (double weight on a crossover) and CMF. Overall bias
// requires more than 60% weighted agreement; strength and confidence are the
// winning percentage.
func (s *Snapshot) Composite() *CompositeSignal {
	c := &CompositeSignal{Overall: Neutral}

	vote := func(dir Direction, weight int, reason string) {
		switch dir {
		case Bullish:
			c.BullScore += weight
			c.Reasons = append(c.Reasons, reason)
		case Bearish:
			c.BearScore += weight
			c.Reasons = append(c.Reasons, reason)
		}
	}

	if s.DMI != nil {
		vote(s.DMI.Signal, 1, fmt.Sprintf("ADX %.1f (%s) with %s DI", s.DMI.ADX, s.DMI.Strength, s.DMI.Signal))
	}
	if s.Supertrend != nil {
		vote(s.Supertrend.Direction, 1, fmt.Sprintf("supertrend %s at %.4f", s.Supertrend.Direction, s.Supertrend.Value))
	}
	if s.RSI != nil {
		switch {
		case *s.RSI < 30:
			vote(Bullish, 1, fmt.Sprintf("RSI %.1f oversold", *s.RSI))
		case *s.RSI > 70:
			vote(Bearish, 1, fmt.Sprintf("RSI %.1f overbought", *s.RSI))
		}
	}
	if s.Stochastic != nil {
		if s.Stochastic.Signal != Neutral {
			vote(s.Stochastic.Signal, 1, fmt.Sprintf("stochastic %%K %.1f %s", s.Stochastic.K, s.Stochastic.Signal))
		}
	}
	if s.MACD != nil {
		switch {
		case s.MACD.CrossedUp:
			vote(Bullish, 2, "MACD crossed above signal")
		case s.MACD.CrossedDown:
			vote(Bearish, 2, "MACD crossed below signal")
		case s.MACD.Histogram > 0:
			vote(Bullish, 1, "MACD histogram positive")
		case s.MACD.Histogram < 0:
			vote(Bearish, 1, "MACD histogram negative")
		}
	}
	if s.CMF != nil {
		switch {
		case *s.CMF > 0.05:
			vote(Bullish, 1, fmt.Sprintf("CMF %.3f shows accumulation", *s.CMF))
		case *s.CMF < -0.05:
			vote(Bearish, 1, fmt.Sprintf("CMF %.3f shows distribution", *s.CMF))
		}
	}

	c.NetScore = c.BullScore - c.BearScore
	total := c.BullScore + c.BearScore
	if total == 0 {
		return c
	}

	bullPct := float64(c.BullScore) / float64(total) * 100
	bearPct := float64(c.BearScore) / float64(total) * 100
	switch {
	case bullPct > 60:
		c.Overall = Bullish
		c.Strength = bullPct
	case bearPct > 60:
		c.Overall = Bearish
		c.Strength = bearPct
	default:
		c.Strength = 50
	}
	c.Confidence = c.Strength
	return c
}
