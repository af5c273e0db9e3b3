package signal

import (
	"time"

	"trading-core/internal/market"
)

// Action is the trading verdict of an evaluation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Source labels where a signal came from so downstream consumers can
// distinguish analyzer-driven from rule-driven outcomes.
type Source string

const (
	SourceAnalyzer Source = "analyzer"
	SourceCached   Source = "analyzer_cached"
	SourceRules    Source = "rules"
)

// Recommendation carries the optional trade plan attached to a signal.
type Recommendation struct {
	EntryPrice float64  `json:"entry_price"`
	StopLoss   float64  `json:"stop_loss"`
	TakeProfit float64  `json:"take_profit"`
	Strategy   string   `json:"strategy"`
	RiskReward *float64 `json:"risk_reward,omitempty"`
}

// TradeSignal is the immutable outcome of one evaluation.
type TradeSignal struct {
	Symbol         string          `json:"symbol"`
	Action         Action          `json:"action"`
	Confidence     float64         `json:"confidence"` // 0..1
	Reason         string          `json:"reason"`
	Source         Source          `json:"source"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Request is one evaluation input: candles per configured timeframe, with
// the first timeframe treated as primary.
type Request struct {
	Symbol     string
	Timeframes []string
	Candles    map[string]market.Series
}
