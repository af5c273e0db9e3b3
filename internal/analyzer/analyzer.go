// Package analyzer abstracts the external reasoning service that turns
// market context into a structured trading recommendation. The orchestrator
// and risk engine only depend on the Analyzer interface; the LLM adapter is
// one implementation.
package analyzer

import (
	"context"
	"errors"

	"trading-core/internal/market"
)

// ErrUnavailable signals that the analyzer could not produce a usable
// result (timeout, malformed response, missing credentials). Callers
// recover by falling back to the rule-based path.
var ErrUnavailable = errors.New("analyzer unavailable")

// Recommendation is a validated analyzer verdict on a market. Action is one
// of BUY/SELL/HOLD and Confidence sits in [0,1] after normalization.
type Recommendation struct {
	Action     string   `json:"action"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	EntryPrice *float64 `json:"entry_price,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
	RiskReward *float64 `json:"risk_reward,omitempty"`
}

// MarketContext carries everything the analyzer sees for a market call.
type MarketContext struct {
	Symbol     string
	Timeframes []string
	Candles    map[string]market.Series
	Summaries  map[string]string // indicator summary per timeframe
}

// RiskContext carries a proposed trade plus account state for a risk call.
type RiskContext struct {
	Symbol        string
	Action        string
	Confidence    float64
	EntryPrice    float64
	StopLoss      *float64
	TakeProfit    *float64
	TotalBalance  float64
	OpenExposure  float64 // absolute notional of open positions
	CustomPrompt  string  // policy-supplied prompt, empty = default
	MinStopLoss   float64
	MaxStopLoss   float64
	MinTakeProfit float64
	MaxTakeProfit float64
}

// RiskVerdict is the analyzer's structured risk decision before clamping.
type RiskVerdict struct {
	Approved        bool     `json:"approved"`
	Reason          string   `json:"reason"`
	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`
	PositionSizePct *float64 `json:"position_size_pct,omitempty"`
	RiskReward      *float64 `json:"risk_reward,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Analyzer is the pluggable reasoning capability.
type Analyzer interface {
	// AnalyzeMarket returns a recommendation or ErrUnavailable-wrapped
	// failure. Implementations honor ctx deadlines.
	AnalyzeMarket(ctx context.Context, mc *MarketContext) (*Recommendation, error)

	// AssessRisk returns a structured risk verdict for AI_PROMPT policies.
	AssessRisk(ctx context.Context, rc *RiskContext) (*RiskVerdict, error)

	// Configured reports whether the analyzer can be called at all.
	Configured() bool
}
