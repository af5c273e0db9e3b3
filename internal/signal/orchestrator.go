package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"trading-core/internal/analyzer"
	"trading-core/internal/cache"
	"trading-core/internal/circuit"
	"trading-core/internal/indicator"
	"trading-core/internal/logging"
	"trading-core/internal/metrics"
)

// Config parameterizes the orchestrator.
type Config struct {
	UseAnalyzer        bool           `yaml:"use_analyzer" default:"true"`
	CacheBucket        time.Duration  `yaml:"cache_bucket" default:"60s"`
	CacheTTL           time.Duration  `yaml:"cache_ttl" default:"60s"`
	LockLease          time.Duration  `yaml:"lock_lease" default:"300s"`
	LockWait           time.Duration  `yaml:"lock_wait" default:"2s"`
	AnalyzerTimeout    time.Duration  `yaml:"analyzer_timeout" default:"90s"`
	AgreementThreshold float64        `yaml:"agreement_threshold" default:"0.667"`
	Breaker            circuit.Config `yaml:"breaker"`
	Rules              RuleConfig     `yaml:"rules"`
}

// cacheEntry is the analysis result shared across workers for one
// (symbol, timeframe set, time bucket).
type cacheEntry struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Orchestrator produces one TradeSignal per evaluation request. The
// indicator engine and rule scorer are pure and re-entrant; only the
// analyzer path coordinates through the shared cache and lock so that
// concurrent workers never duplicate an expensive analysis of the same
// instrument.
type Orchestrator struct {
	cfg      Config
	analyzer analyzer.Analyzer // nil when no analyzer is wired
	store    cache.Store
	breaker  *circuit.Breaker
	logger   logging.Logger
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator. analyzer may be nil; store must
// not be nil when an analyzer is set.
func NewOrchestrator(cfg Config, az analyzer.Analyzer, store cache.Store, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		analyzer: az,
		store:    store,
		breaker:  circuit.New(cfg.Breaker),
		logger:   logger.Component("signal"),
		now:      time.Now,
	}
}

// Evaluate runs one evaluation: indicators per timeframe, then either the
// analyzer path (cache, single-flight lock) or the rule-based fallback.
func (o *Orchestrator) Evaluate(ctx context.Context, req *Request) (*TradeSignal, error) {
	if req.Symbol == "" || len(req.Timeframes) == 0 {
		return nil, fmt.Errorf("evaluation request needs a symbol and at least one timeframe")
	}

	snapshots := make(map[string]*indicator.Snapshot, len(req.Timeframes))
	for _, tf := range req.Timeframes {
		candles, ok := req.Candles[tf]
		if !ok {
			return nil, fmt.Errorf("no candles for timeframe %s", tf)
		}
		if err := candles.Validate(); err != nil {
			return nil, fmt.Errorf("timeframe %s: %w", tf, err)
		}
		snapshots[tf] = indicator.Compute(candles)
	}

	if o.analyzerEnabled() {
		if sig, ok := o.analyzerPath(ctx, req, snapshots); ok {
			metrics.Evaluations.WithLabelValues(string(sig.Source)).Inc()
			return sig, nil
		}
	}

	sig := o.rulePath(req, snapshots)
	metrics.Evaluations.WithLabelValues(string(sig.Source)).Inc()
	return sig, nil
}

func (o *Orchestrator) analyzerEnabled() bool {
	return o.cfg.UseAnalyzer && o.analyzer != nil && o.analyzer.Configured() && o.store != nil
}

// analyzerPath tries the cache, then the single-flight lock, then the
// analyzer itself. ok=false means the caller should take the rule path.
func (o *Orchestrator) analyzerPath(ctx context.Context, req *Request, snapshots map[string]*indicator.Snapshot) (*TradeSignal, bool) {
	key := o.cacheKey(req.Symbol, req.Timeframes)
	if sig := o.checkCache(ctx, key, req.Symbol); sig != nil {
		return sig, true
	}

	if !o.breaker.Allow() {
		o.logger.Debug("analyzer breaker open, using rule path", "symbol", req.Symbol)
		return nil, false
	}

	lockKey := "analysis:lock:" + req.Symbol
	acquired, err := o.store.SetIfAbsent(ctx, lockKey, uuid.NewString(), o.cfg.LockLease)
	if err != nil {
		o.logger.Warn("lock store unavailable, using rule path", "symbol", req.Symbol, "error", err)
		return nil, false
	}

	if !acquired {
		// Someone else is analyzing this instrument. Wait once, re-check
		// the cache, then give up and use rules. Never an error.
		metrics.LockContention.Inc()
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(o.cfg.LockWait):
		}
		if sig := o.checkCache(ctx, key, req.Symbol); sig != nil {
			return sig, true
		}
		return nil, false
	}

	rec, err := o.callAnalyzer(ctx, req, snapshots)
	if err != nil {
		// Release the lock so the next bucket is not blocked, then fall
		// back. Lease expiry covers us if this delete fails.
		if delErr := o.store.Delete(ctx, lockKey); delErr != nil {
			o.logger.Warn("lock release failed", "symbol", req.Symbol, "error", delErr)
		}
		metrics.AnalyzerFailures.Inc()
		o.breaker.RecordFailure()
		o.logger.Warn("analyzer failed, using rule path", "symbol", req.Symbol, "error", err)
		return nil, false
	}
	o.breaker.RecordSuccess()

	entry := cacheEntry{Action: rec.Action, Confidence: rec.Confidence, Reasoning: rec.Reasoning}
	if data, err := json.Marshal(entry); err == nil {
		if err := o.store.Set(ctx, key, string(data), o.cfg.CacheTTL); err != nil {
			o.logger.Warn("analysis cache write failed", "symbol", req.Symbol, "error", err)
		}
	}
	if err := o.store.Delete(ctx, lockKey); err != nil {
		o.logger.Warn("lock release failed", "symbol", req.Symbol, "error", err)
	}

	return o.signalFromRecommendation(req, snapshots, rec), true
}

func (o *Orchestrator) callAnalyzer(ctx context.Context, req *Request, snapshots map[string]*indicator.Snapshot) (*analyzer.Recommendation, error) {
	summaries := make(map[string]string, len(snapshots))
	for tf, snap := range snapshots {
		summaries[tf] = snap.Summary()
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AnalyzerTimeout)
	defer cancel()

	metrics.AnalyzerCalls.Inc()
	return o.analyzer.AnalyzeMarket(callCtx, &analyzer.MarketContext{
		Symbol:     req.Symbol,
		Timeframes: req.Timeframes,
		Candles:    req.Candles,
		Summaries:  summaries,
	})
}

// checkCache returns a cached-analysis signal, or nil on miss.
func (o *Orchestrator) checkCache(ctx context.Context, key, symbol string) *TradeSignal {
	raw, found, err := o.store.Get(ctx, key)
	if err != nil {
		o.logger.Warn("analysis cache read failed", "symbol", symbol, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil
	}

	metrics.CacheHits.Inc()
	return &TradeSignal{
		Symbol:     symbol,
		Action:     Action(entry.Action),
		Confidence: entry.Confidence,
		Reason:     entry.Reasoning,
		Source:     SourceCached,
		CreatedAt:  o.now(),
	}
}

func (o *Orchestrator) signalFromRecommendation(req *Request, snapshots map[string]*indicator.Snapshot, rec *analyzer.Recommendation) *TradeSignal {
	sig := &TradeSignal{
		Symbol:     req.Symbol,
		Action:     Action(rec.Action),
		Confidence: rec.Confidence,
		Reason:     rec.Reasoning,
		Source:     SourceAnalyzer,
		CreatedAt:  o.now(),
	}

	if sig.Action == ActionHold {
		return sig
	}

	entry := snapshots[req.Timeframes[0]].LastClose
	if rec.EntryPrice != nil && *rec.EntryPrice > 0 {
		entry = *rec.EntryPrice
	}
	r := &Recommendation{EntryPrice: entry, Strategy: rec.Strategy, RiskReward: rec.RiskReward}
	if rec.StopLoss != nil {
		r.StopLoss = *rec.StopLoss
	}
	if rec.TakeProfit != nil {
		r.TakeProfit = *rec.TakeProfit
	}
	sig.Recommendation = r
	return sig
}

// rulePath scores the primary timeframe and damps confidence when the
// non-primary timeframes disagree. Disagreement never forces HOLD.
func (o *Orchestrator) rulePath(req *Request, snapshots map[string]*indicator.Snapshot) *TradeSignal {
	primary := req.Timeframes[0]
	sig := ruleSignal(o.cfg.Rules, req.Symbol, snapshots[primary], o.now())

	if sig.Action == ActionHold || len(req.Timeframes) < 2 {
		return sig
	}

	want := directionOf(sig.Action)
	agreeing := 0
	total := 0
	for _, tf := range req.Timeframes[1:] {
		total++
		if snapshots[tf].Composite().Overall == want {
			agreeing++
		}
	}

	agreement := float64(agreeing) / float64(total)
	if agreement < o.cfg.AgreementThreshold {
		sig.Confidence *= 0.5 + 0.5*agreement
		sig.Reason += fmt.Sprintf(" (only %d/%d higher timeframes agree)", agreeing, total)
	}
	return sig
}

// cacheKey buckets time so all workers in the same window share one
// analysis. The timeframe set is sorted so ordering never splits the key.
func (o *Orchestrator) cacheKey(symbol string, timeframes []string) string {
	sorted := make([]string, len(timeframes))
	copy(sorted, timeframes)
	sort.Strings(sorted)

	bucket := o.now().Unix() / int64(o.cfg.CacheBucket/time.Second)
	return fmt.Sprintf("analysis:%s:%s:%d", symbol, strings.Join(sorted, ","), bucket)
}
