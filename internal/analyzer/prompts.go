package analyzer

import (
	"fmt"
	"strings"

	"trading-core/internal/market"
)

// System prompts for the two analyzer calls.
const (
	systemPromptMarket = `You are an expert cryptocurrency trading analyst. Analyze the provided market data across all given timeframes and give one clear trading recommendation.

Your response must be valid JSON with the following structure:
{
  "action": "BUY" | "SELL" | "HOLD",
  "confidence": 0.0-1.0,
  "entry_price": number or null,
  "stop_loss": number or null,
  "take_profit": number or null,
  "strategy": "short label for the setup",
  "risk_reward": number or null,
  "reasoning": "brief explanation"
}

Be conservative with confidence scores. Only suggest high confidence (>0.7) when multiple indicators align across timeframes.
Always suggest stop loss levels - risk management comes first.`

	systemPromptRisk = `You are a cryptocurrency trading risk analyst. Decide whether the proposed trade should proceed and under which stop-loss/take-profit levels.

Your response must be valid JSON:
{
  "approved": true | false,
  "reason": "brief explanation",
  "stop_loss_price": number or null,
  "take_profit_price": number or null,
  "position_size_pct": number or null,
  "risk_reward": number or null,
  "warnings": ["list of concerns"]
}

Prioritize capital preservation. Reject trades whose risk/reward or exposure is unfavorable.`
)

// buildMarketPrompt renders the per-timeframe candles and indicator
// summaries into the user prompt.
func buildMarketPrompt(mc *MarketContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\nTimeframes: %s\n", mc.Symbol, strings.Join(mc.Timeframes, ", "))

	for _, tf := range mc.Timeframes {
		fmt.Fprintf(&b, "\n=== %s ===\n", tf)
		if summary, ok := mc.Summaries[tf]; ok {
			b.WriteString("Indicators:\n")
			b.WriteString(summary)
		}
		if candles, ok := mc.Candles[tf]; ok {
			b.WriteString("Recent candles (time open high low close volume):\n")
			b.WriteString(formatCandles(candles, 20))
		}
	}

	b.WriteString("\nProvide your trading recommendation as JSON.")
	return b.String()
}

// buildRiskPrompt renders the proposed trade plus account snapshot. A
// policy-supplied custom prompt replaces the preamble when present.
func buildRiskPrompt(rc *RiskContext) string {
	var b strings.Builder
	if rc.CustomPrompt != "" {
		b.WriteString(rc.CustomPrompt)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Proposed trade:\n- Symbol: %s\n- Action: %s\n- Confidence: %.2f\n- Entry: %.6f\n",
		rc.Symbol, rc.Action, rc.Confidence, rc.EntryPrice)
	if rc.StopLoss != nil {
		fmt.Fprintf(&b, "- Stop loss: %.6f\n", *rc.StopLoss)
	}
	if rc.TakeProfit != nil {
		fmt.Fprintf(&b, "- Take profit: %.6f\n", *rc.TakeProfit)
	}
	fmt.Fprintf(&b, "\nAccount:\n- Total balance: %.2f\n- Open exposure: %.2f\n", rc.TotalBalance, rc.OpenExposure)

	if rc.MaxStopLoss > 0 || rc.MaxTakeProfit > 0 {
		fmt.Fprintf(&b, "\nBounds:\n- Stop loss %%: %.2f to %.2f\n- Take profit %%: %.2f to %.2f\n",
			rc.MinStopLoss, rc.MaxStopLoss, rc.MinTakeProfit, rc.MaxTakeProfit)
	}

	b.WriteString("\nProvide your risk decision as JSON.")
	return b.String()
}

// formatCandles renders the tail of a series, most recent last.
func formatCandles(candles market.Series, limit int) string {
	start := 0
	if len(candles) > limit {
		start = len(candles) - limit
	}

	var b strings.Builder
	for _, c := range candles[start:] {
		fmt.Fprintf(&b, "%s %.6f %.6f %.6f %.6f %.2f\n",
			c.OpenTime.UTC().Format("2006-01-02T15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return b.String()
}
