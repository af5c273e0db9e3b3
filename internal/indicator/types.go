package indicator

import "errors"

// ErrInsufficientData is returned when a series is shorter than the window an
// indicator needs. The batch engine treats it as "skip", never as fatal.
var ErrInsufficientData = errors.New("insufficient candle data")

// Category groups indicators by what they measure.
type Category string

const (
	CategoryTrend      Category = "trend"
	CategoryMomentum   Category = "momentum"
	CategoryVolatility Category = "volatility"
	CategoryVolume     Category = "volume"
	CategoryLevels     Category = "levels"
)

// Direction is the signal an indicator reading leans toward.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// TrendStrength is the ordinal ADX tier.
type TrendStrength string

const (
	TrendRanging    TrendStrength = "ranging"
	TrendWeak       TrendStrength = "weak"
	TrendModerate   TrendStrength = "moderate"
	TrendStrong     TrendStrength = "strong"
	TrendVeryStrong TrendStrength = "very_strong"
)

// VolatilityTier classifies ATR as a percentage of price.
type VolatilityTier string

const (
	VolatilityLow    VolatilityTier = "low"
	VolatilityMedium VolatilityTier = "medium"
	VolatilityHigh   VolatilityTier = "high"
)

// VolumeTier classifies current volume against its recent average.
type VolumeTier string

const (
	VolumeHigh   VolumeTier = "high"
	VolumeNormal VolumeTier = "normal"
	VolumeLow    VolumeTier = "low"
)

// Reading is one named indicator value with its semantic category and lean.
type Reading struct {
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Signal   Direction `json:"signal"`
	Value    float64   `json:"value"`
}
