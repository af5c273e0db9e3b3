package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"trading-core/config"
	"trading-core/internal/analyzer"
	"trading-core/internal/cache"
	"trading-core/internal/logging"
	"trading-core/internal/market"
	"trading-core/internal/metrics"
	"trading-core/internal/risk"
	"trading-core/internal/signal"
	"trading-core/internal/store"
)

// The decision core is a library; this binary is a thin harness that wires
// the pieces together and runs one evaluation over a candle file, which is
// useful for smoke-testing a deployment's config, Redis and database.
func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file")
		candleFile = flag.String("candles", "", "JSON file with candles per timeframe")
		symbol     = flag.String("symbol", "BTCUSDT", "instrument symbol")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component("main")

	ctx := context.Background()

	var cacheStore cache.Store
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(cfg.Redis.Store())
		if err != nil {
			log.Error("redis unavailable, using in-memory cache", "error", err)
			cacheStore = cache.NewMemoryStore()
		} else {
			defer redisStore.Close()
			cacheStore = redisStore
		}
	} else {
		cacheStore = cache.NewMemoryStore()
	}

	var states risk.StateStore = newMemoryStates()
	var repo *store.Repository
	db, err := store.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		log.Warn("database unavailable, risk state will not persist", "error", err)
	} else {
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		repo = store.NewRepository(db)
		states = repo
	}

	llm := analyzer.NewLLM(cfg.Analyzer.Client(), logger)
	orchestrator := signal.NewOrchestrator(cfg.Signal.Orchestrator(), llm, cacheStore, logger)
	engine := risk.NewEngine(states, llm, logger)

	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics endpoint listening", "address", cfg.Metrics.Address)
			if err := http.ListenAndServe(cfg.Metrics.Address, metrics.Handler()); err != nil {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	if *candleFile == "" {
		log.Info("no candle file given, nothing to evaluate")
		return
	}

	candles, err := loadCandles(*candleFile)
	if err != nil {
		log.Error("failed to load candles", "file", *candleFile, "error", err)
		os.Exit(1)
	}
	timeframes := make([]string, 0, len(candles))
	for tf := range candles {
		timeframes = append(timeframes, tf)
	}

	sig, err := orchestrator.Evaluate(ctx, &signal.Request{
		Symbol:     *symbol,
		Timeframes: timeframes,
		Candles:    candles,
	})
	if err != nil {
		log.Error("evaluation failed", "error", err)
		os.Exit(1)
	}
	log.Info("signal", "action", sig.Action, "confidence", sig.Confidence, "source", sig.Source, "reason", sig.Reason)

	policy := &risk.Policy{Mode: risk.ModeDefault, Default: &risk.DefaultRules{
		StopLossPercent:      2,
		TakeProfitPercent:    4,
		RiskPerTradePercent:  1,
		MaxPositionSizePct:   10,
		MaxLeverage:          1,
		MaxPortfolioExposure: 50,
		DailyLossLimitPct:    5,
	}}
	account := &risk.AccountSnapshot{TotalBalance: 10000, AvailableBalance: 10000}

	decision, err := engine.Evaluate(ctx, "smoke-test", policy, sig, account)
	if err != nil {
		log.Error("risk evaluation failed", "error", err)
		os.Exit(1)
	}
	log.Info("decision", "approved", decision.Approved, "reason", decision.Reason, "warnings", decision.Warnings)

	if repo != nil {
		if err := repo.SaveDecision(ctx, "smoke-test", sig, decision); err != nil {
			log.Warn("failed to persist decision", "error", err)
		}
	}
}

func loadCandles(path string) (map[string]market.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var candles map[string]market.Series
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, err
	}
	for tf, series := range candles {
		if err := series.Validate(); err != nil {
			return nil, fmt.Errorf("timeframe %s: %w", tf, err)
		}
	}
	return candles, nil
}

// memoryStates keeps risk state in-process when no database is configured.
type memoryStates struct {
	states map[string]*risk.State
}

func newMemoryStates() *memoryStates {
	return &memoryStates{states: make(map[string]*risk.State)}
}

func (m *memoryStates) Get(_ context.Context, subscriptionID string) (*risk.State, error) {
	if s, ok := m.states[subscriptionID]; ok {
		copied := *s
		return &copied, nil
	}
	return &risk.State{SubscriptionID: subscriptionID, LastLossResetDate: time.Now()}, nil
}

func (m *memoryStates) Save(_ context.Context, state *risk.State) error {
	copied := *state
	m.states[state.SubscriptionID] = &copied
	return nil
}
