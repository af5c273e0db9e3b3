package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"trading-core/internal/analyzer"
	"trading-core/internal/signal"
)

// evaluateAI is the AI_PROMPT-mode path. The stateful gates (window,
// cooldown, daily loss) still come from the fallback rules; past those the
// reasoning service issues the verdict. Any analyzer failure degrades to
// the fallback rule chain, never to a hard error.
func (e *Engine) evaluateAI(ctx context.Context, spec *AIPromptSpec, state *State, sig *signal.TradeSignal, account *AccountSnapshot, now time.Time) *Decision {
	rules := &spec.Fallback

	if sig.Action == signal.ActionHold {
		return &Decision{Source: "ai", Reason: "hold signal, nothing to execute"}
	}
	if !rules.Window.Allows(now) {
		return reject(&Decision{Source: "ai"}, "window",
			fmt.Sprintf("outside trading window (%02d:00-%02d:00)", rules.Window.StartHour, rules.Window.EndHour))
	}
	if cooling, remaining := state.inCooldown(now); cooling {
		return reject(&Decision{Source: "ai"}, "cooldown",
			fmt.Sprintf("cooldown active after %d consecutive losses, %d minutes remaining",
				state.ConsecutiveLosses, int(math.Ceil(remaining.Minutes()))))
	}
	if rules.DailyLossLimitPct > 0 && account.TotalBalance > 0 {
		limit := account.TotalBalance * rules.DailyLossLimitPct / 100
		if state.DailyLossAmount >= limit {
			return reject(&Decision{Source: "ai"}, "daily_loss",
				fmt.Sprintf("daily loss limit reached (%.2f of %.2f allowed)", state.DailyLossAmount, limit))
		}
	}

	if e.analyzer == nil || !e.analyzer.Configured() {
		e.logger.Warn("no analyzer for AI_PROMPT policy, using fallback rules", "symbol", sig.Symbol)
		return e.evaluateRules(rules, state, sig, account, now)
	}

	verdict, err := e.analyzer.AssessRisk(ctx, buildRiskContext(spec, sig, account))
	if err != nil {
		e.logger.Warn("risk assessment failed, using fallback rules", "symbol", sig.Symbol, "error", err)
		return e.evaluateRules(rules, state, sig, account, now)
	}

	d := &Decision{
		Source:   "ai",
		Approved: verdict.Approved,
		Reason:   verdict.Reason,
		Warnings: verdict.Warnings,
	}
	if !d.Approved {
		if d.Reason == "" {
			d.Reason = "rejected by risk assessment"
		}
		return d
	}

	if spec.AllowOverride {
		d.StopLossPrice = clampLevel(verdict.StopLossPrice, spec.MinStopLoss, spec.MaxStopLoss, "stop-loss", d)
		d.TakeProfitPrice = clampLevel(verdict.TakeProfitPrice, spec.MinTakeProfit, spec.MaxTakeProfit, "take-profit", d)
	} else {
		// Overrides disabled: levels come from the fallback rules, the
		// assessment only decided approval.
		_, stop, target := tradeLevels(rules, sig)
		if stop > 0 {
			d.StopLossPrice = &stop
		}
		if target > 0 {
			d.TakeProfitPrice = &target
		}
	}

	if verdict.PositionSizePct != nil && *verdict.PositionSizePct > 0 {
		pct := *verdict.PositionSizePct
		if pct > rules.MaxPositionSizePct {
			pct = rules.MaxPositionSizePct
			d.Warnings = append(d.Warnings, fmt.Sprintf("position size capped at %.1f%%", pct))
		}
		d.PositionSizePct = &pct
	} else {
		entry, stop, _ := tradeLevels(rules, sig)
		pct := positionSizePct(rules, entry, stop)
		d.PositionSizePct = &pct
	}
	if verdict.RiskReward != nil && *verdict.RiskReward > 0 {
		rr := *verdict.RiskReward
		d.RiskReward = &rr
	}

	d.MaxLeverage = rules.MaxLeverage
	if d.MaxLeverage == 0 {
		d.MaxLeverage = 1
	}
	if rules.Trailing.Enabled {
		d.TrailingActive = true
	}
	if d.Reason == "" {
		d.Reason = "approved by risk assessment"
	}
	return d
}

// clampLevel pulls a level into [min,max] and records a warning whenever a
// clamp fires. Zero bounds are open-ended; a nil level stays nil.
func clampLevel(value *float64, min, max float64, name string, d *Decision) *float64 {
	if value == nil {
		return nil
	}
	v := *value
	if min > 0 && v < min {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%s %.4f raised to configured minimum %.4f", name, v, min))
		v = min
	}
	if max > 0 && v > max {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%s %.4f lowered to configured maximum %.4f", name, v, max))
		v = max
	}
	return &v
}

func buildRiskContext(spec *AIPromptSpec, sig *signal.TradeSignal, account *AccountSnapshot) *analyzer.RiskContext {
	rc := &analyzer.RiskContext{
		Symbol:        sig.Symbol,
		Action:        string(sig.Action),
		Confidence:    sig.Confidence,
		TotalBalance:  account.TotalBalance,
		OpenExposure:  account.exposurePct(),
		CustomPrompt:  spec.Prompt,
		MinStopLoss:   spec.MinStopLoss,
		MaxStopLoss:   spec.MaxStopLoss,
		MinTakeProfit: spec.MinTakeProfit,
		MaxTakeProfit: spec.MaxTakeProfit,
	}
	if sig.Recommendation != nil {
		rc.EntryPrice = sig.Recommendation.EntryPrice
		if sig.Recommendation.StopLoss > 0 {
			sl := sig.Recommendation.StopLoss
			rc.StopLoss = &sl
		}
		if sig.Recommendation.TakeProfit > 0 {
			tp := sig.Recommendation.TakeProfit
			rc.TakeProfit = &tp
		}
	}
	return rc
}
