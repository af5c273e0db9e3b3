package risk

import (
	"context"
	"time"
)

// State holds the mutable per-subscription risk counters. It is loaded,
// mutated, and saved on every evaluation and outcome; cross-subscription
// state is never shared.
type State struct {
	SubscriptionID    string    `json:"subscription_id"`
	DailyLossAmount   float64   `json:"daily_loss_amount"`
	LastLossResetDate time.Time `json:"last_loss_reset_date"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	CooldownUntil     time.Time `json:"cooldown_until"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// resetIfNewDay clears the daily loss accumulator when the calendar day
// changed since the last reset.
func (s *State) resetIfNewDay(now time.Time) {
	y1, m1, d1 := s.LastLossResetDate.Date()
	y2, m2, d2 := now.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		s.DailyLossAmount = 0
		s.LastLossResetDate = now
	}
}

// inCooldown reports whether trading is suspended, and for how much longer.
func (s *State) inCooldown(now time.Time) (bool, time.Duration) {
	if s.CooldownUntil.IsZero() || !s.CooldownUntil.After(now) {
		return false, 0
	}
	return true, s.CooldownUntil.Sub(now)
}

// StateStore persists risk state per subscription. Get returns a fresh
// zero-counter State when the subscription has no record yet.
type StateStore interface {
	Get(ctx context.Context, subscriptionID string) (*State, error)
	Save(ctx context.Context, state *State) error
}
