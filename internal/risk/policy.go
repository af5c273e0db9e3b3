// Package risk turns a trade signal into an approved, sized decision or a
// rejection, and tracks per-subscription loss counters.
package risk

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolicy marks a malformed policy. An evaluation against an
// invalid policy fails outright instead of silently approving.
var ErrInvalidPolicy = errors.New("invalid risk policy")

// Mode selects how a policy evaluates trades.
type Mode string

const (
	// ModeDefault applies the explicit numeric rules.
	ModeDefault Mode = "DEFAULT"
	// ModeAIPrompt delegates the verdict to the reasoning service,
	// bounded by the override limits, with the default rules as fallback.
	ModeAIPrompt Mode = "AI_PROMPT"
)

// SizingMethod selects how position size is derived.
type SizingMethod string

const (
	SizingRisk  SizingMethod = "risk"  // risk-per-trade over stop distance
	SizingFixed SizingMethod = "fixed" // risk-per-trade percent as-is
	SizingKelly SizingMethod = "kelly" // half-Kelly from assumed edge
)

// TradingWindow restricts when trades may open. Hour ranges may wrap past
// midnight (e.g. 22 to 6). An empty Days slice allows every weekday.
type TradingWindow struct {
	Enabled   bool           `yaml:"enabled" json:"enabled"`
	StartHour int            `yaml:"start_hour" json:"start_hour" validate:"min=0,max=23"`
	EndHour   int            `yaml:"end_hour" json:"end_hour" validate:"min=0,max=23"`
	Days      []time.Weekday `yaml:"days" json:"days"`
}

// Allows reports whether t falls inside the window.
func (w TradingWindow) Allows(t time.Time) bool {
	if !w.Enabled {
		return true
	}
	if len(w.Days) > 0 {
		ok := false
		for _, d := range w.Days {
			if t.Weekday() == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	h := t.Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	// Wraps midnight.
	return h >= w.StartHour || h < w.EndHour
}

// CooldownConfig suspends trading after a losing streak.
type CooldownConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	TriggerLossCount int  `yaml:"trigger_loss_count" json:"trigger_loss_count" default:"3"`
	CooldownMinutes  int  `yaml:"cooldown_minutes" json:"cooldown_minutes" default:"60"`
}

// TrailingConfig describes the trailing stop attached to approved trades.
// The engine only annotates decisions with it; the execution collaborator
// moves the actual stop.
type TrailingConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	TrailingPercent   float64 `yaml:"trailing_percent" json:"trailing_percent" default:"1.5"`
	ActivationPercent float64 `yaml:"activation_percent" json:"activation_percent" default:"1"`
	UseATRMultiplier  bool    `yaml:"use_atr_multiplier" json:"use_atr_multiplier"`
	ATRMultiplier     float64 `yaml:"atr_multiplier" json:"atr_multiplier" default:"2"`
}

// DefaultRules are the explicit numeric rules of ModeDefault.
type DefaultRules struct {
	StopLossPercent      float64 `yaml:"stop_loss_percent" json:"stop_loss_percent" default:"2"`
	TakeProfitPercent    float64 `yaml:"take_profit_percent" json:"take_profit_percent" default:"4"`
	RiskPerTradePercent  float64 `yaml:"risk_per_trade_percent" json:"risk_per_trade_percent" default:"1"`
	MaxPositionSizePct   float64 `yaml:"max_position_size_pct" json:"max_position_size_pct" default:"10"`
	MaxLeverage          int     `yaml:"max_leverage" json:"max_leverage" default:"1"`
	MaxPortfolioExposure float64 `yaml:"max_portfolio_exposure" json:"max_portfolio_exposure" default:"50"`
	DailyLossLimitPct    float64 `yaml:"daily_loss_limit_pct" json:"daily_loss_limit_pct" default:"5"`
	MinRiskReward        float64 `yaml:"min_risk_reward" json:"min_risk_reward"`

	SizingMethod SizingMethod   `yaml:"sizing_method" json:"sizing_method" default:"risk"`
	Trailing     TrailingConfig `yaml:"trailing" json:"trailing"`
	Window       TradingWindow  `yaml:"window" json:"window"`
	Cooldown     CooldownConfig `yaml:"cooldown" json:"cooldown"`
}

// AIPromptSpec configures ModeAIPrompt. Fallback always goes through
// Fallback (the default rules), so it is required.
type AIPromptSpec struct {
	Prompt        string  `yaml:"prompt" json:"prompt"`
	AllowOverride bool    `yaml:"allow_override" json:"allow_override"`
	MinStopLoss   float64 `yaml:"min_stop_loss" json:"min_stop_loss"`
	MaxStopLoss   float64 `yaml:"max_stop_loss" json:"max_stop_loss"`
	MinTakeProfit float64 `yaml:"min_take_profit" json:"min_take_profit"`
	MaxTakeProfit float64 `yaml:"max_take_profit" json:"max_take_profit"`

	Fallback DefaultRules `yaml:"fallback" json:"fallback"`
}

// Policy is a tagged variant: exactly one of Default or AIPrompt is set,
// matching Mode.
type Policy struct {
	Mode     Mode          `yaml:"mode" json:"mode"`
	Default  *DefaultRules `yaml:"default,omitempty" json:"default,omitempty"`
	AIPrompt *AIPromptSpec `yaml:"ai_prompt,omitempty" json:"ai_prompt,omitempty"`
}

// Validate checks the variant invariant and the numeric ranges.
func (p *Policy) Validate() error {
	switch p.Mode {
	case ModeDefault:
		if p.Default == nil || p.AIPrompt != nil {
			return fmt.Errorf("%w: DEFAULT mode requires default rules only", ErrInvalidPolicy)
		}
		return p.Default.validate()
	case ModeAIPrompt:
		if p.AIPrompt == nil || p.Default != nil {
			return fmt.Errorf("%w: AI_PROMPT mode requires ai_prompt settings only", ErrInvalidPolicy)
		}
		if p.AIPrompt.MinStopLoss > p.AIPrompt.MaxStopLoss && p.AIPrompt.MaxStopLoss > 0 {
			return fmt.Errorf("%w: min_stop_loss above max_stop_loss", ErrInvalidPolicy)
		}
		if p.AIPrompt.MinTakeProfit > p.AIPrompt.MaxTakeProfit && p.AIPrompt.MaxTakeProfit > 0 {
			return fmt.Errorf("%w: min_take_profit above max_take_profit", ErrInvalidPolicy)
		}
		return p.AIPrompt.Fallback.validate()
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode)
	}
}

func (r *DefaultRules) validate() error {
	if r.RiskPerTradePercent <= 0 || r.RiskPerTradePercent > 100 {
		return fmt.Errorf("%w: risk_per_trade_percent must be in (0,100]", ErrInvalidPolicy)
	}
	if r.MaxPositionSizePct <= 0 || r.MaxPositionSizePct > 100 {
		return fmt.Errorf("%w: max_position_size_pct must be in (0,100]", ErrInvalidPolicy)
	}
	if r.DailyLossLimitPct < 0 || r.DailyLossLimitPct > 100 {
		return fmt.Errorf("%w: daily_loss_limit_pct must be in [0,100]", ErrInvalidPolicy)
	}
	if r.MaxPortfolioExposure < 0 {
		return fmt.Errorf("%w: max_portfolio_exposure must not be negative", ErrInvalidPolicy)
	}
	if r.MaxLeverage < 0 {
		return fmt.Errorf("%w: max_leverage must not be negative", ErrInvalidPolicy)
	}
	if r.Window.Enabled {
		if r.Window.StartHour < 0 || r.Window.StartHour > 23 || r.Window.EndHour < 0 || r.Window.EndHour > 23 {
			return fmt.Errorf("%w: window hours must be in [0,23]", ErrInvalidPolicy)
		}
	}
	if r.Cooldown.Enabled && r.Cooldown.TriggerLossCount <= 0 {
		return fmt.Errorf("%w: cooldown trigger_loss_count must be positive", ErrInvalidPolicy)
	}
	return nil
}
