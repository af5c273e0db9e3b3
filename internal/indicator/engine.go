package indicator

import (
	"fmt"
	"strings"

	"trading-core/internal/market"
)

// Default windows, shared across the batch engine and the orchestrator.
const (
	DefaultMAPeriod      = 20
	DefaultRSIPeriod     = 14
	DefaultATRPeriod     = 14
	DefaultADXPeriod     = 14
	DefaultSwingLookback = 20

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Snapshot is the batch result of every indicator family over one series.
// Nil pointers mean the indicator was unavailable for this series; Skipped
// names them.
type Snapshot struct {
	LastClose float64

	SMA   *float64
	EMA   *float64
	WMA   *float64
	VWMA  *float64
	EMA50 *float64

	DMI        *DMIResult
	Supertrend *SupertrendResult
	Ichimoku   *IchimokuResult

	RSI           *float64
	RSIDivergence Direction
	Stochastic    *StochasticResult
	MACD          *MACDResult
	WilliamsR     *float64
	CCI           *float64
	ROC           *float64

	ATR            *float64
	ATRPercent     *float64
	VolatilityTier VolatilityTier
	Bollinger      *BollingerResult
	Keltner        *KeltnerResult
	Donchian       *DonchianResult

	OBV         *OBVResult
	CMF         *float64
	MFI         *float64
	VolumeRatio *float64
	VolumeTier  VolumeTier

	SwingHigh *float64
	SwingLow  *float64
	Pivots    *PivotPoints
	FibPivots *PivotPoints
	CamPivots *PivotPoints
	Fib       *FibRetracement
	SAR       *SARResult

	Skipped []string
}

// Compute runs the full indicator batch over the series. A single indicator
// without enough data is skipped, never fatal; the snapshot always comes
// back with whatever could be computed.
func Compute(candles market.Series) *Snapshot {
	s := &Snapshot{
		LastClose:     candles.LastClose(),
		RSIDivergence: Neutral,
	}

	keep := func(name string, ok bool) bool {
		if !ok {
			s.Skipped = append(s.Skipped, name)
		}
		return ok
	}

	if v, ok := SMA(candles, DefaultMAPeriod); keep("sma", ok) {
		s.SMA = &v
	}
	if v, ok := EMA(candles, DefaultMAPeriod); keep("ema", ok) {
		s.EMA = &v
	}
	if v, ok := WMA(candles, DefaultMAPeriod); keep("wma", ok) {
		s.WMA = &v
	}
	if v, ok := VWMA(candles, DefaultMAPeriod); keep("vwma", ok) {
		s.VWMA = &v
	}
	if v, ok := EMA(candles, 50); keep("ema50", ok) {
		s.EMA50 = &v
	}

	if v, ok := DMI(candles, DefaultADXPeriod); keep("dmi", ok) {
		s.DMI = v
	}
	if v, ok := Supertrend(candles, DefaultATRPeriod, 3); keep("supertrend", ok) {
		s.Supertrend = v
	}
	if v, ok := Ichimoku(candles); keep("ichimoku", ok) {
		s.Ichimoku = v
	}

	if v, ok := RSI(candles, DefaultRSIPeriod); keep("rsi", ok) {
		s.RSI = &v
	}
	if v, ok := RSIDivergence(candles, DefaultRSIPeriod, DefaultSwingLookback); keep("rsi_divergence", ok) {
		s.RSIDivergence = v
	}
	if v, ok := Stochastic(candles, 14, 3, 3); keep("stochastic", ok) {
		s.Stochastic = v
	}
	if v, ok := MACD(candles, macdFast, macdSlow, macdSignal); keep("macd", ok) {
		s.MACD = v
	}
	if v, ok := WilliamsR(candles, DefaultRSIPeriod); keep("williams_r", ok) {
		s.WilliamsR = &v
	}
	if v, ok := CCI(candles, DefaultMAPeriod); keep("cci", ok) {
		s.CCI = &v
	}
	if v, ok := ROC(candles, DefaultRSIPeriod); keep("roc", ok) {
		s.ROC = &v
	}

	if v, ok := ATR(candles, DefaultATRPeriod); keep("atr", ok) {
		s.ATR = &v
	}
	if pct, tier, ok := ATRPercent(candles, DefaultATRPeriod); keep("atr_percent", ok) {
		s.ATRPercent = &pct
		s.VolatilityTier = tier
	}
	if v, ok := Bollinger(candles, DefaultMAPeriod, 2); keep("bollinger", ok) {
		s.Bollinger = v
	}
	if v, ok := Keltner(candles, DefaultMAPeriod, DefaultATRPeriod, 2); keep("keltner", ok) {
		s.Keltner = v
	}
	if v, ok := Donchian(candles, DefaultMAPeriod); keep("donchian", ok) {
		s.Donchian = v
	}

	if v, ok := OBV(candles, DefaultMAPeriod); keep("obv", ok) {
		s.OBV = v
	}
	if v, ok := CMF(candles, DefaultMAPeriod); keep("cmf", ok) {
		s.CMF = &v
	}
	if v, ok := MFI(candles, DefaultRSIPeriod); keep("mfi", ok) {
		s.MFI = &v
	}
	if ratio, tier, ok := VolumeRatio(candles, DefaultMAPeriod); keep("volume_ratio", ok) {
		s.VolumeRatio = &ratio
		s.VolumeTier = tier
	}

	if high, low, ok := SwingHighLow(candles, DefaultSwingLookback); keep("swing", ok) {
		s.SwingHigh = &high
		s.SwingLow = &low
	}
	if v, ok := StandardPivots(candles); keep("pivots", ok) {
		s.Pivots = v
	}
	if v, ok := FibonacciPivots(candles); keep("fib_pivots", ok) {
		s.FibPivots = v
	}
	if v, ok := CamarillaPivots(candles); keep("camarilla_pivots", ok) {
		s.CamPivots = v
	}
	uptrend := s.EMA != nil && s.LastClose > *s.EMA
	if v, ok := FibonacciRetracement(candles, DefaultSwingLookback, uptrend); keep("fib_retracement", ok) {
		s.Fib = v
	}
	if v, ok := ParabolicSAR(candles, 0.02, 0.2); keep("parabolic_sar", ok) {
		s.SAR = v
	}

	return s
}

// Summary renders the snapshot as a compact text block for analyzer prompts.
func (s *Snapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last close: %.6f\n", s.LastClose)
	if s.RSI != nil {
		fmt.Fprintf(&b, "RSI(14): %.1f\n", *s.RSI)
	}
	if s.MACD != nil {
		fmt.Fprintf(&b, "MACD: %.6f signal %.6f histogram %.6f\n", s.MACD.MACD, s.MACD.Signal, s.MACD.Histogram)
	}
	if s.DMI != nil {
		fmt.Fprintf(&b, "ADX: %.1f (%s), +DI %.1f, -DI %.1f\n", s.DMI.ADX, s.DMI.Strength, s.DMI.PlusDI, s.DMI.MinusDI)
	}
	if s.Supertrend != nil {
		fmt.Fprintf(&b, "Supertrend: %s at %.6f\n", s.Supertrend.Direction, s.Supertrend.Value)
	}
	if s.Bollinger != nil {
		fmt.Fprintf(&b, "Bollinger: %.6f / %.6f / %.6f (width %.2f%%)\n",
			s.Bollinger.Upper, s.Bollinger.Middle, s.Bollinger.Lower, s.Bollinger.Width)
	}
	if s.ATRPercent != nil {
		fmt.Fprintf(&b, "ATR: %.2f%% of price (%s volatility)\n", *s.ATRPercent, s.VolatilityTier)
	}
	if s.CMF != nil {
		fmt.Fprintf(&b, "CMF: %.3f\n", *s.CMF)
	}
	if s.VolumeRatio != nil {
		fmt.Fprintf(&b, "Volume: %.2fx 20-bar average (%s)\n", *s.VolumeRatio, s.VolumeTier)
	}
	if s.SwingHigh != nil && s.SwingLow != nil {
		fmt.Fprintf(&b, "Swing high/low: %.6f / %.6f\n", *s.SwingHigh, *s.SwingLow)
	}
	comp := s.Composite()
	fmt.Fprintf(&b, "Composite: %s (strength %.0f%%)\n", comp.Overall, comp.Strength)
	return b.String()
}
