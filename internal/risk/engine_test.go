package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-core/internal/analyzer"
	"trading-core/internal/logging"
	"trading-core/internal/signal"
)

type memStates struct {
	m   map[string]*State
	now func() time.Time
}

func newMemStates(now func() time.Time) *memStates {
	return &memStates{m: make(map[string]*State), now: now}
}

func (s *memStates) Get(_ context.Context, id string) (*State, error) {
	if st, ok := s.m[id]; ok {
		copied := *st
		return &copied, nil
	}
	return &State{SubscriptionID: id, LastLossResetDate: s.now()}, nil
}

func (s *memStates) Save(_ context.Context, st *State) error {
	copied := *st
	s.m[st.SubscriptionID] = &copied
	return nil
}

type stubRiskAnalyzer struct {
	verdict *analyzer.RiskVerdict
	err     error
}

func (s *stubRiskAnalyzer) AnalyzeMarket(context.Context, *analyzer.MarketContext) (*analyzer.Recommendation, error) {
	return nil, analyzer.ErrUnavailable
}

func (s *stubRiskAnalyzer) AssessRisk(context.Context, *analyzer.RiskContext) (*analyzer.RiskVerdict, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.verdict, nil
}

func (s *stubRiskAnalyzer) Configured() bool { return true }

func baseRules() *DefaultRules {
	return &DefaultRules{
		StopLossPercent:      2,
		TakeProfitPercent:    4,
		RiskPerTradePercent:  1,
		MaxPositionSizePct:   10,
		MaxLeverage:          3,
		MaxPortfolioExposure: 50,
		DailyLossLimitPct:    5,
		SizingMethod:         SizingRisk,
		Cooldown:             CooldownConfig{Enabled: true, TriggerLossCount: 3, CooldownMinutes: 60},
	}
}

func defaultPolicy() *Policy {
	return &Policy{Mode: ModeDefault, Default: baseRules()}
}

func buySignal() *signal.TradeSignal {
	return &signal.TradeSignal{
		Symbol:     "BTCUSDT",
		Action:     signal.ActionBuy,
		Confidence: 0.8,
		Source:     signal.SourceRules,
		Recommendation: &signal.Recommendation{
			EntryPrice: 100,
			StopLoss:   98,
			TakeProfit: 104,
		},
	}
}

func testAccount() *AccountSnapshot {
	return &AccountSnapshot{TotalBalance: 10000, AvailableBalance: 10000}
}

func newTestEngine(az analyzer.Analyzer) (*Engine, *memStates) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	engine := &Engine{analyzer: az, logger: logging.Nop(), now: func() time.Time { return now }}
	states := newMemStates(engine.now)
	engine.states = states
	return engine, states
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		policy *Policy
		valid  bool
	}{
		{"default mode", defaultPolicy(), true},
		{"unknown mode", &Policy{Mode: "YOLO"}, false},
		{"default without rules", &Policy{Mode: ModeDefault}, false},
		{"default with ai block", &Policy{Mode: ModeDefault, Default: baseRules(), AIPrompt: &AIPromptSpec{}}, false},
		{"ai without spec", &Policy{Mode: ModeAIPrompt}, false},
		{"ai valid", &Policy{Mode: ModeAIPrompt, AIPrompt: &AIPromptSpec{Fallback: *baseRules()}}, true},
		{"negative risk per trade", &Policy{Mode: ModeDefault, Default: func() *DefaultRules {
			r := baseRules()
			r.RiskPerTradePercent = -1
			return r
		}()}, false},
		{"inverted stop bounds", &Policy{Mode: ModeAIPrompt, AIPrompt: &AIPromptSpec{
			MinStopLoss: 10, MaxStopLoss: 5, Fallback: *baseRules(),
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			}
		})
	}
}

func TestEvaluateRejectsInvalidPolicy(t *testing.T) {
	engine, _ := newTestEngine(nil)
	_, err := engine.Evaluate(context.Background(), "sub-1", &Policy{Mode: "BROKEN"}, buySignal(), testAccount())
	assert.ErrorIs(t, err, ErrInvalidPolicy, "a malformed policy must never silently approve")
}

func TestTradingWindow(t *testing.T) {
	w := TradingWindow{Enabled: true, StartHour: 22, EndHour: 6}
	assert.True(t, w.Allows(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)))
	assert.True(t, w.Allows(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)), "window wraps past midnight")
	assert.False(t, w.Allows(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))

	monday := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	weekdays := TradingWindow{Enabled: true, StartHour: 0, EndHour: 23, Days: []time.Weekday{time.Monday}}
	assert.True(t, weekdays.Allows(monday))
	assert.False(t, weekdays.Allows(monday.AddDate(0, 0, 1)))
}

func TestWindowGateRejects(t *testing.T) {
	engine, _ := newTestEngine(nil) // engine clock reads 12:00
	policy := defaultPolicy()
	policy.Default.Window = TradingWindow{Enabled: true, StartHour: 14, EndHour: 18}

	d, err := engine.Evaluate(context.Background(), "sub-1", policy, buySignal(), testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "trading window")
}

func TestDailyLossGateAndReset(t *testing.T) {
	engine, states := newTestEngine(nil)
	states.m["sub-1"] = &State{
		SubscriptionID:    "sub-1",
		DailyLossAmount:   500, // exactly 5% of 10000
		LastLossResetDate: engine.now(),
	}

	d, err := engine.Evaluate(context.Background(), "sub-1", defaultPolicy(), buySignal(), testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "daily loss limit")

	// Next calendar day the accumulator resets and approval resumes.
	tomorrow := engine.now().Add(24 * time.Hour)
	engine.now = func() time.Time { return tomorrow }

	d, err = engine.Evaluate(context.Background(), "sub-1", defaultPolicy(), buySignal(), testAccount())
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.Zero(t, states.m["sub-1"].DailyLossAmount, "reset must be persisted")
}

func TestCooldownTriggersAndClears(t *testing.T) {
	engine, states := newTestEngine(nil)
	ctx := context.Background()
	policy := defaultPolicy()

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.RecordOutcome(ctx, "sub-1", policy, -50, false))
	}
	st := states.m["sub-1"]
	assert.Equal(t, 3, st.ConsecutiveLosses)
	assert.InDelta(t, 150, st.DailyLossAmount, 1e-9)
	assert.False(t, st.CooldownUntil.IsZero(), "third straight loss starts the cooldown")

	d, err := engine.Evaluate(ctx, "sub-1", policy, buySignal(), testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "cooldown")
	assert.Contains(t, d.Reason, "minutes remaining")

	// One win clears the streak and the cooldown immediately.
	require.NoError(t, engine.RecordOutcome(ctx, "sub-1", policy, 80, true))
	st = states.m["sub-1"]
	assert.Zero(t, st.ConsecutiveLosses)
	assert.True(t, st.CooldownUntil.IsZero())

	d, err = engine.Evaluate(ctx, "sub-1", policy, buySignal(), testAccount())
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestPositionSizing(t *testing.T) {
	rules := baseRules()

	// 1% risk over a 2% stop distance = 50% of balance, capped at 10%.
	assert.InDelta(t, 10, positionSizePct(rules, 100, 98), 1e-9)

	rules.MaxPositionSizePct = 100
	assert.InDelta(t, 50, positionSizePct(rules, 100, 98), 1e-9)

	// No stop known: the risk percentage is used directly.
	assert.InDelta(t, 1, positionSizePct(rules, 100, 0), 1e-9)

	rules.SizingMethod = SizingFixed
	assert.InDelta(t, 1, positionSizePct(rules, 100, 98), 1e-9)

	rules.SizingMethod = SizingKelly
	assert.InDelta(t, 12.5, positionSizePct(rules, 100, 98), 1e-9, "half-Kelly of the assumed edge")
}

func TestRiskRewardGate(t *testing.T) {
	engine, _ := newTestEngine(nil)
	policy := defaultPolicy()
	policy.Default.MinRiskReward = 2

	sig := buySignal()
	sig.Recommendation.TakeProfit = 103 // rr 1.5
	d, err := engine.Evaluate(context.Background(), "sub-1", policy, sig, testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "risk/reward")

	sig.Recommendation.TakeProfit = 105 // rr 2.5
	d, err = engine.Evaluate(context.Background(), "sub-1", policy, sig, testAccount())
	require.NoError(t, err)
	assert.True(t, d.Approved)
	require.NotNil(t, d.RiskReward)
	assert.GreaterOrEqual(t, *d.RiskReward, 2.0)

	// Round-trip: the decision's own levels reproduce a passing ratio.
	rr := (*d.TakeProfitPrice - 100) / (100 - *d.StopLossPrice)
	assert.GreaterOrEqual(t, rr, policy.Default.MinRiskReward)
}

func TestExposureGate(t *testing.T) {
	engine, _ := newTestEngine(nil)
	policy := defaultPolicy()

	over := testAccount()
	over.OpenPositions = []Position{{Symbol: "ETHUSDT", Notional: 4500}}
	d, err := engine.Evaluate(context.Background(), "sub-1", policy, buySignal(), over)
	require.NoError(t, err)
	assert.False(t, d.Approved, "45 percent open plus 10 percent new exceeds the 50 percent limit")
	assert.Contains(t, d.Reason, "exposure")

	warm := testAccount()
	warm.OpenPositions = []Position{{Symbol: "ETHUSDT", Notional: 3500}}
	d, err = engine.Evaluate(context.Background(), "sub-1", policy, buySignal(), warm)
	require.NoError(t, err)
	assert.True(t, d.Approved)
	require.NotEmpty(t, d.Warnings, "above 80 percent of the limit warns without rejecting")
	assert.Contains(t, d.Warnings[0], "exposure")
}

func TestApprovedDecisionAnnotations(t *testing.T) {
	engine, _ := newTestEngine(nil)
	policy := defaultPolicy()
	policy.Default.Trailing = TrailingConfig{Enabled: true, TrailingPercent: 1.5, ActivationPercent: 1}

	d, err := engine.Evaluate(context.Background(), "sub-1", policy, buySignal(), testAccount())
	require.NoError(t, err)
	require.True(t, d.Approved)
	assert.Equal(t, 3, d.MaxLeverage)
	assert.True(t, d.TrailingActive)
	assert.NotEmpty(t, d.EvaluationID)
	require.NotNil(t, d.StopLossPrice)
	assert.InDelta(t, 98, *d.StopLossPrice, 1e-9)
	require.NotNil(t, d.PositionSizePct)
	assert.InDelta(t, 10, *d.PositionSizePct, 1e-9)
}

func TestHoldSignalIsNotExecutable(t *testing.T) {
	engine, _ := newTestEngine(nil)
	sig := buySignal()
	sig.Action = signal.ActionHold
	sig.Recommendation = nil

	d, err := engine.Evaluate(context.Background(), "sub-1", defaultPolicy(), sig, testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "hold")
}

func aiPolicy(allowOverride bool) *Policy {
	return &Policy{
		Mode: ModeAIPrompt,
		AIPrompt: &AIPromptSpec{
			Prompt:        "assess this trade conservatively",
			AllowOverride: allowOverride,
			MinStopLoss:   95,
			MaxStopLoss:   99,
			MinTakeProfit: 102,
			MaxTakeProfit: 110,
			Fallback:      *baseRules(),
		},
	}
}

func TestAIModeClampsLevels(t *testing.T) {
	sl := 90.0  // below min 95
	tp := 120.0 // above max 110
	az := &stubRiskAnalyzer{verdict: &analyzer.RiskVerdict{
		Approved:        true,
		Reason:          "trend supports entry",
		StopLossPrice:   &sl,
		TakeProfitPrice: &tp,
	}}
	engine, _ := newTestEngine(az)

	d, err := engine.Evaluate(context.Background(), "sub-1", aiPolicy(true), buySignal(), testAccount())
	require.NoError(t, err)
	require.True(t, d.Approved)
	assert.Equal(t, "ai", d.Source)
	require.NotNil(t, d.StopLossPrice)
	assert.InDelta(t, 95, *d.StopLossPrice, 1e-9)
	require.NotNil(t, d.TakeProfitPrice)
	assert.InDelta(t, 110, *d.TakeProfitPrice, 1e-9)
	assert.Len(t, d.Warnings, 2, "one warning per clamp")
}

func TestAIModeInRangeLevelsPassThrough(t *testing.T) {
	sl := 97.0
	tp := 106.0
	az := &stubRiskAnalyzer{verdict: &analyzer.RiskVerdict{
		Approved:        true,
		StopLossPrice:   &sl,
		TakeProfitPrice: &tp,
	}}
	engine, _ := newTestEngine(az)

	d, err := engine.Evaluate(context.Background(), "sub-1", aiPolicy(true), buySignal(), testAccount())
	require.NoError(t, err)
	require.True(t, d.Approved)
	assert.InDelta(t, 97, *d.StopLossPrice, 1e-9)
	assert.InDelta(t, 106, *d.TakeProfitPrice, 1e-9)
	assert.Empty(t, d.Warnings)
}

func TestAIModeRejectionPassesThrough(t *testing.T) {
	az := &stubRiskAnalyzer{verdict: &analyzer.RiskVerdict{Approved: false, Reason: "volatility too high"}}
	engine, _ := newTestEngine(az)

	d, err := engine.Evaluate(context.Background(), "sub-1", aiPolicy(true), buySignal(), testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Equal(t, "volatility too high", d.Reason)
}

func TestAIModeFallsBackOnAnalyzerFailure(t *testing.T) {
	az := &stubRiskAnalyzer{err: analyzer.ErrUnavailable}
	engine, _ := newTestEngine(az)

	d, err := engine.Evaluate(context.Background(), "sub-1", aiPolicy(true), buySignal(), testAccount())
	require.NoError(t, err, "an unavailable analyzer degrades, never hard-fails")
	assert.True(t, d.Approved)
	assert.Equal(t, "rules", d.Source)
}

func TestAIModeCooldownStillApplies(t *testing.T) {
	az := &stubRiskAnalyzer{verdict: &analyzer.RiskVerdict{Approved: true}}
	engine, states := newTestEngine(az)
	states.m["sub-1"] = &State{
		SubscriptionID:    "sub-1",
		ConsecutiveLosses: 3,
		CooldownUntil:     engine.now().Add(30 * time.Minute),
		LastLossResetDate: engine.now(),
	}

	d, err := engine.Evaluate(context.Background(), "sub-1", aiPolicy(true), buySignal(), testAccount())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Contains(t, d.Reason, "cooldown")
}

func TestRecordOutcomeDailyAccumulation(t *testing.T) {
	engine, states := newTestEngine(nil)
	ctx := context.Background()
	policy := defaultPolicy()

	require.NoError(t, engine.RecordOutcome(ctx, "sub-1", policy, -120, false))
	require.NoError(t, engine.RecordOutcome(ctx, "sub-1", policy, -80, false))

	st := states.m["sub-1"]
	assert.InDelta(t, 200, st.DailyLossAmount, 1e-9)
	assert.Equal(t, 2, st.ConsecutiveLosses)
	assert.True(t, st.CooldownUntil.IsZero(), "two losses stay under the trigger")
}

func TestRecordOutcomeErrorOnInvalidPolicy(t *testing.T) {
	engine, _ := newTestEngine(nil)
	err := engine.RecordOutcome(context.Background(), "sub-1", &Policy{Mode: "NOPE"}, -10, false)
	assert.True(t, errors.Is(err, ErrInvalidPolicy))
}
