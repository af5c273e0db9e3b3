package signal

import (
	"fmt"
	"time"

	"trading-core/internal/indicator"
)

// RuleConfig parameterizes the rule-based fallback scorer. The vote
// thresholds and confidence step mirror the historical fixed constants but
// stay configurable.
type RuleConfig struct {
	BuyThreshold   int     `yaml:"buy_threshold" default:"4"`
	SellThreshold  int     `yaml:"sell_threshold" default:"4"` // applied as negative
	ConfidenceStep float64 `yaml:"confidence_step" default:"12"`
	TakeProfitPct  float64 `yaml:"take_profit_pct" default:"4"`
	StopLossPct    float64 `yaml:"stop_loss_pct" default:"2"`
}

// ruleSignal converts the composite vote tally into a trade signal with a
// synthesized recommendation.
func ruleSignal(cfg RuleConfig, symbol string, snapshot *indicator.Snapshot, now time.Time) *TradeSignal {
	comp := snapshot.Composite()
	net := comp.NetScore

	action := ActionHold
	if net >= cfg.BuyThreshold {
		action = ActionBuy
	} else if net <= -cfg.SellThreshold {
		action = ActionSell
	}

	magnitude := net
	if magnitude < 0 {
		magnitude = -magnitude
	}
	confidence := float64(magnitude) * cfg.ConfidenceStep
	if confidence > 100 {
		confidence = 100
	}

	sig := &TradeSignal{
		Symbol:     symbol,
		Action:     action,
		Confidence: confidence / 100,
		Reason:     fmt.Sprintf("rule score %+d: %s", net, joinReasons(comp.Reasons)),
		Source:     SourceRules,
		CreatedAt:  now,
	}

	if action == ActionHold {
		return sig
	}

	entry := snapshot.LastClose
	rec := &Recommendation{EntryPrice: entry, Strategy: "composite-vote"}
	if action == ActionBuy {
		rec.TakeProfit = entry * (1 + cfg.TakeProfitPct/100)
		rec.StopLoss = entry * (1 - cfg.StopLossPct/100)
	} else {
		rec.TakeProfit = entry * (1 - cfg.TakeProfitPct/100)
		rec.StopLoss = entry * (1 + cfg.StopLossPct/100)
	}
	if cfg.StopLossPct > 0 {
		rr := cfg.TakeProfitPct / cfg.StopLossPct
		rec.RiskReward = &rr
	}
	sig.Recommendation = rec
	return sig
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "no indicator votes"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}

// directionOf maps a signal action onto a composite direction for the
// multi-timeframe agreement check.
func directionOf(action Action) indicator.Direction {
	switch action {
	case ActionBuy:
		return indicator.Bullish
	case ActionSell:
		return indicator.Bearish
	default:
		return indicator.Neutral
	}
}
