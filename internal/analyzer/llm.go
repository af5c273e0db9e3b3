package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"trading-core/internal/logging"
)

// Action values accepted from the analyzer after normalization.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// codeFence matches ```json ... ``` wrappers some providers add around JSON.
var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// stripCodeFence removes markdown code block formatting from LLM responses.
func stripCodeFence(response string) string {
	response = strings.TrimSpace(response)
	if matches := codeFence.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return response
}

// LLM implements Analyzer on top of the chat-completion client.
type LLM struct {
	client *Client
	logger logging.Logger
}

// NewLLM creates the LLM-backed analyzer.
func NewLLM(cfg *ClientConfig, logger logging.Logger) *LLM {
	return &LLM{
		client: NewClient(cfg),
		logger: logger.Component("analyzer"),
	}
}

// Configured reports whether credentials are present.
func (l *LLM) Configured() bool {
	return l.client.IsConfigured()
}

// AnalyzeMarket asks the LLM for a trading recommendation and validates the
// structured response. Any failure comes back wrapped in ErrUnavailable so
// callers can fall back to the rule path.
func (l *LLM) AnalyzeMarket(ctx context.Context, mc *MarketContext) (*Recommendation, error) {
	if !l.Configured() {
		return nil, fmt.Errorf("%w: missing credentials", ErrUnavailable)
	}

	response, err := l.client.Complete(ctx, systemPromptMarket, buildMarketPrompt(mc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &rec); err != nil {
		l.logger.Warn("unparseable analyzer response", "symbol", mc.Symbol, "error", err)
		return nil, fmt.Errorf("%w: unparseable response: %v", ErrUnavailable, err)
	}

	action, ok := NormalizeAction(rec.Action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrUnavailable, rec.Action)
	}
	rec.Action = action
	rec.Confidence = clamp01(rec.Confidence)
	return &rec, nil
}

// AssessRisk asks the LLM for a structured risk decision.
func (l *LLM) AssessRisk(ctx context.Context, rc *RiskContext) (*RiskVerdict, error) {
	if !l.Configured() {
		return nil, fmt.Errorf("%w: missing credentials", ErrUnavailable)
	}

	response, err := l.client.Complete(ctx, systemPromptRisk, buildRiskPrompt(rc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var verdict RiskVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &verdict); err != nil {
		l.logger.Warn("unparseable risk verdict", "symbol", rc.Symbol, "error", err)
		return nil, fmt.Errorf("%w: unparseable response: %v", ErrUnavailable, err)
	}
	return &verdict, nil
}

// NormalizeAction coerces analyzer action synonyms into BUY/SELL/HOLD.
// CLOSE-like verbs map to SELL; unknown verbs are rejected.
func NormalizeAction(action string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionBuy, "LONG", "OPEN_LONG":
		return ActionBuy, true
	case ActionSell, "SHORT", "OPEN_SHORT", "CLOSE", "CLOSE_LONG", "EXIT":
		return ActionSell, true
	case ActionHold, "WAIT", "NEUTRAL", "NONE":
		return ActionHold, true
	default:
		return "", false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
