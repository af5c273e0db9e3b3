package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trading-core/internal/risk"
	"trading-core/internal/signal"
)

// Repository provides data access for risk state and the decision ledger.
// It satisfies risk.StateStore.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// Get loads the risk state for a subscription, returning a fresh
// zero-counter state when none exists yet.
func (r *Repository) Get(ctx context.Context, subscriptionID string) (*risk.State, error) {
	query := `
		SELECT subscription_id, daily_loss_amount, last_loss_reset_date,
		       consecutive_losses, cooldown_until, updated_at
		FROM risk_states
		WHERE subscription_id = $1
	`
	state := &risk.State{}
	var cooldownUntil *time.Time
	err := r.db.Pool.QueryRow(ctx, query, subscriptionID).Scan(
		&state.SubscriptionID, &state.DailyLossAmount, &state.LastLossResetDate,
		&state.ConsecutiveLosses, &cooldownUntil, &state.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return &risk.State{
			SubscriptionID:    subscriptionID,
			LastLossResetDate: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query risk state: %w", err)
	}
	if cooldownUntil != nil {
		state.CooldownUntil = *cooldownUntil
	}
	return state, nil
}

// Save upserts the risk state. The row-level upsert keeps concurrent
// evaluations of the same subscription consistent.
func (r *Repository) Save(ctx context.Context, state *risk.State) error {
	query := `
		INSERT INTO risk_states (subscription_id, daily_loss_amount, last_loss_reset_date,
		                         consecutive_losses, cooldown_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (subscription_id) DO UPDATE SET
			daily_loss_amount = EXCLUDED.daily_loss_amount,
			last_loss_reset_date = EXCLUDED.last_loss_reset_date,
			consecutive_losses = EXCLUDED.consecutive_losses,
			cooldown_until = EXCLUDED.cooldown_until,
			updated_at = CURRENT_TIMESTAMP
	`
	var cooldownUntil *time.Time
	if !state.CooldownUntil.IsZero() {
		cooldownUntil = &state.CooldownUntil
	}
	_, err := r.db.Pool.Exec(
		ctx, query,
		state.SubscriptionID, state.DailyLossAmount, state.LastLossResetDate,
		state.ConsecutiveLosses, cooldownUntil,
	)
	if err != nil {
		return fmt.Errorf("upsert risk state: %w", err)
	}
	return nil
}

// SaveDecision appends an evaluation outcome to the decision ledger.
func (r *Repository) SaveDecision(ctx context.Context, subscriptionID string, sig *signal.TradeSignal, decision *risk.Decision) error {
	warnings, err := json.Marshal(decision.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	query := `
		INSERT INTO trade_decisions (evaluation_id, subscription_id, symbol, action, confidence,
		                             signal_source, approved, reason, stop_loss_price,
		                             take_profit_price, position_size_pct, risk_reward,
		                             max_leverage, trailing_stop_active, warnings, decision_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		decision.EvaluationID, subscriptionID, sig.Symbol, string(sig.Action), sig.Confidence,
		string(sig.Source), decision.Approved, decision.Reason, decision.StopLossPrice,
		decision.TakeProfitPrice, decision.PositionSizePct, decision.RiskReward,
		decision.MaxLeverage, decision.TrailingActive, warnings, decision.Source,
	)
	if err != nil {
		return fmt.Errorf("insert trade decision: %w", err)
	}
	return nil
}

// RecentDecisions returns the latest ledger entries for a subscription.
func (r *Repository) RecentDecisions(ctx context.Context, subscriptionID string, limit int) ([]*DecisionRecord, error) {
	query := `
		SELECT evaluation_id, symbol, action, confidence, signal_source, approved,
		       reason, position_size_pct, decision_source, created_at
		FROM trade_decisions
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade decisions: %w", err)
	}
	defer rows.Close()

	var records []*DecisionRecord
	for rows.Next() {
		rec := &DecisionRecord{}
		if err := rows.Scan(
			&rec.EvaluationID, &rec.Symbol, &rec.Action, &rec.Confidence, &rec.SignalSource,
			&rec.Approved, &rec.Reason, &rec.PositionSizePct, &rec.DecisionSource, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade decision: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DecisionRecord is one row of the decision ledger.
type DecisionRecord struct {
	EvaluationID    string    `json:"evaluation_id"`
	Symbol          string    `json:"symbol"`
	Action          string    `json:"action"`
	Confidence      float64   `json:"confidence"`
	SignalSource    string    `json:"signal_source"`
	Approved        bool      `json:"approved"`
	Reason          string    `json:"reason"`
	PositionSizePct *float64  `json:"position_size_pct,omitempty"`
	DecisionSource  string    `json:"decision_source"`
	CreatedAt       time.Time `json:"created_at"`
}
