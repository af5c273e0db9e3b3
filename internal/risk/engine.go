package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"trading-core/internal/analyzer"
	"trading-core/internal/logging"
	"trading-core/internal/metrics"
	"trading-core/internal/signal"
)

// Position is one open position's absolute notional exposure.
type Position struct {
	Symbol   string  `json:"symbol"`
	Notional float64 `json:"notional"`
}

// AccountSnapshot is the account state at evaluation time, supplied by the
// exchange-account collaborator.
type AccountSnapshot struct {
	TotalBalance     float64    `json:"total_balance"`
	AvailableBalance float64    `json:"available_balance"`
	OpenPositions    []Position `json:"open_positions"`
}

func (a *AccountSnapshot) exposurePct() float64 {
	if a.TotalBalance <= 0 {
		return 0
	}
	total := 0.0
	for _, p := range a.OpenPositions {
		total += math.Abs(p.Notional)
	}
	return total / a.TotalBalance * 100
}

// Decision is the immutable outcome of one risk evaluation. Approved=false
// is an expected result, not an error.
type Decision struct {
	EvaluationID    string    `json:"evaluation_id"`
	Approved        bool      `json:"approved"`
	Reason          string    `json:"reason"`
	StopLossPrice   *float64  `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64  `json:"take_profit_price,omitempty"`
	PositionSizePct *float64  `json:"position_size_pct,omitempty"`
	RiskReward      *float64  `json:"risk_reward,omitempty"`
	MaxLeverage     int       `json:"max_leverage,omitempty"`
	TrailingActive  bool      `json:"trailing_stop_active"`
	Warnings        []string  `json:"warnings,omitempty"`
	Source          string    `json:"source"` // "rules" or "ai"
	CreatedAt       time.Time `json:"created_at"`
}

// Engine evaluates trade signals against a policy and keeps the
// per-subscription counters current.
type Engine struct {
	states   StateStore
	analyzer analyzer.Analyzer // nil disables AI_PROMPT assessments
	logger   logging.Logger
	now      func() time.Time
}

// NewEngine wires a risk engine. analyzer may be nil; AI_PROMPT policies
// then always use their fallback rules.
func NewEngine(states StateStore, az analyzer.Analyzer, logger logging.Logger) *Engine {
	return &Engine{
		states:   states,
		analyzer: az,
		logger:   logger.Component("risk"),
		now:      time.Now,
	}
}

// Evaluate runs every gate in order against the signal. A failing gate
// short-circuits to a rejection with its reason. Only a malformed policy
// or a state-store failure returns an error.
func (e *Engine) Evaluate(ctx context.Context, subscriptionID string, policy *Policy, sig *signal.TradeSignal, account *AccountSnapshot) (*Decision, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	state, err := e.states.Get(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	state.resetIfNewDay(now)

	var d *Decision
	if policy.Mode == ModeAIPrompt {
		d = e.evaluateAI(ctx, policy.AIPrompt, state, sig, account, now)
	} else {
		d = e.evaluateRules(policy.Default, state, sig, account, now)
	}
	d.EvaluationID = uuid.NewString()
	d.CreatedAt = now

	if err := e.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save risk state: %w", err)
	}

	e.logger.Info("risk evaluation",
		"subscription_id", subscriptionID,
		"symbol", sig.Symbol,
		"approved", d.Approved,
		"reason", d.Reason,
		"source", d.Source)
	return d, nil
}

// evaluateRules is the DEFAULT-mode gate chain.
func (e *Engine) evaluateRules(rules *DefaultRules, state *State, sig *signal.TradeSignal, account *AccountSnapshot, now time.Time) *Decision {
	d := &Decision{Source: "rules"}

	if sig.Action == signal.ActionHold {
		d.Reason = "hold signal, nothing to execute"
		return d
	}

	if !rules.Window.Allows(now) {
		return reject(d, "window", fmt.Sprintf("outside trading window (%02d:00-%02d:00)", rules.Window.StartHour, rules.Window.EndHour))
	}

	if cooling, remaining := state.inCooldown(now); cooling {
		return reject(d, "cooldown", fmt.Sprintf("cooldown active after %d consecutive losses, %d minutes remaining",
			state.ConsecutiveLosses, int(math.Ceil(remaining.Minutes()))))
	}

	if rules.DailyLossLimitPct > 0 && account.TotalBalance > 0 {
		limit := account.TotalBalance * rules.DailyLossLimitPct / 100
		if state.DailyLossAmount >= limit {
			return reject(d, "daily_loss", fmt.Sprintf("daily loss limit reached (%.2f of %.2f allowed)", state.DailyLossAmount, limit))
		}
	}

	entry, stop, target := tradeLevels(rules, sig)
	if stop > 0 {
		d.StopLossPrice = &stop
	}
	if target > 0 {
		d.TakeProfitPrice = &target
	}

	sizePct := positionSizePct(rules, entry, stop)
	d.PositionSizePct = &sizePct

	if rules.MinRiskReward > 0 && entry > 0 && stop > 0 && target > 0 {
		rr := math.Abs(target-entry) / math.Abs(entry-stop)
		d.RiskReward = &rr
		if rr < rules.MinRiskReward {
			return reject(d, "risk_reward", fmt.Sprintf("risk/reward %.2f below minimum %.2f", rr, rules.MinRiskReward))
		}
	}

	if rules.MaxPortfolioExposure > 0 {
		projected := account.exposurePct() + sizePct
		if projected > rules.MaxPortfolioExposure {
			return reject(d, "exposure", fmt.Sprintf("portfolio exposure %.1f%% would exceed limit %.1f%%", projected, rules.MaxPortfolioExposure))
		}
		if projected > rules.MaxPortfolioExposure*0.8 {
			d.Warnings = append(d.Warnings, fmt.Sprintf("portfolio exposure %.1f%% is above 80%% of the %.1f%% limit", projected, rules.MaxPortfolioExposure))
		}
	}

	d.MaxLeverage = rules.MaxLeverage
	if d.MaxLeverage == 0 {
		d.MaxLeverage = 1
	}
	if rules.Trailing.Enabled {
		d.TrailingActive = true
		d.Warnings = append(d.Warnings, fmt.Sprintf("trailing stop active (activation %.1f%%, distance %.1f%%)",
			rules.Trailing.ActivationPercent, rules.Trailing.TrailingPercent))
	}

	d.Approved = true
	d.Reason = "all risk gates passed"
	return d
}

func reject(d *Decision, gate, reason string) *Decision {
	metrics.RiskRejections.WithLabelValues(gate).Inc()
	d.Approved = false
	d.Reason = reason
	return d
}

// tradeLevels returns entry, stop and target prices, synthesizing the
// stop/target from the rule percentages when the signal carries none.
func tradeLevels(rules *DefaultRules, sig *signal.TradeSignal) (entry, stop, target float64) {
	if sig.Recommendation == nil {
		return 0, 0, 0
	}
	entry = sig.Recommendation.EntryPrice
	stop = sig.Recommendation.StopLoss
	target = sig.Recommendation.TakeProfit
	if entry <= 0 {
		return entry, stop, target
	}

	long := sig.Action == signal.ActionBuy
	if stop <= 0 && rules.StopLossPercent > 0 {
		if long {
			stop = entry * (1 - rules.StopLossPercent/100)
		} else {
			stop = entry * (1 + rules.StopLossPercent/100)
		}
	}
	if target <= 0 && rules.TakeProfitPercent > 0 {
		if long {
			target = entry * (1 + rules.TakeProfitPercent/100)
		} else {
			target = entry * (1 - rules.TakeProfitPercent/100)
		}
	}
	return entry, stop, target
}

// positionSizePct sizes the trade as a percentage of balance. With a known
// stop distance the size scales the configured risk over that distance;
// otherwise the risk percentage is used as-is. Always capped.
func positionSizePct(rules *DefaultRules, entry, stop float64) float64 {
	pct := rules.RiskPerTradePercent

	switch rules.SizingMethod {
	case SizingFixed:
		// pct stays as configured
	case SizingKelly:
		pct = kellyPct()
	default:
		if entry > 0 && stop > 0 && entry != stop {
			stopDistance := math.Abs(entry-stop) / entry
			pct = rules.RiskPerTradePercent / stopDistance
		}
	}

	if pct > rules.MaxPositionSizePct {
		pct = rules.MaxPositionSizePct
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// kellyPct is the half-Kelly fraction from a conservative assumed edge
// (55% win rate, 1.5:1 payoff), capped at 25% of balance.
func kellyPct() float64 {
	const (
		winRate = 0.55
		payoff  = 1.5
	)
	kelly := (payoff*winRate - (1 - winRate)) / payoff
	if kelly < 0 {
		return 0
	}
	half := kelly / 2
	if half > 0.25 {
		half = 0.25
	}
	return half * 100
}

// RecordOutcome applies a closed trade's result to the subscription's
// counters. Losses accumulate and may trigger a cooldown; a win clears the
// streak and any active cooldown immediately.
func (e *Engine) RecordOutcome(ctx context.Context, subscriptionID string, policy *Policy, profitLoss float64, wasWin bool) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	rules := policy.Default
	if policy.Mode == ModeAIPrompt {
		rules = &policy.AIPrompt.Fallback
	}

	now := e.now()
	state, err := e.states.Get(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load risk state: %w", err)
	}
	state.resetIfNewDay(now)

	if wasWin {
		state.ConsecutiveLosses = 0
		state.CooldownUntil = time.Time{}
	} else {
		state.ConsecutiveLosses++
		state.DailyLossAmount += math.Abs(profitLoss)
		if rules.Cooldown.Enabled && state.ConsecutiveLosses >= rules.Cooldown.TriggerLossCount {
			state.CooldownUntil = now.Add(time.Duration(rules.Cooldown.CooldownMinutes) * time.Minute)
			e.logger.Warn("cooldown triggered",
				"subscription_id", subscriptionID,
				"consecutive_losses", state.ConsecutiveLosses,
				"cooldown_until", state.CooldownUntil)
		}
	}
	state.UpdatedAt = now

	if err := e.states.Save(ctx, state); err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}
