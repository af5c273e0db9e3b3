package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-core/internal/logging"
	"trading-core/internal/market"
)

func claudeServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))

		body := map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

func testLLM(t *testing.T, responseText string) *LLM {
	t.Helper()
	srv := claudeServer(t, responseText)
	t.Cleanup(srv.Close)

	llm := NewLLM(&ClientConfig{
		Provider:  ProviderClaude,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 256,
		Timeout:   5 * time.Second,
	}, logging.Nop())
	llm.client.baseURL = srv.URL
	return llm
}

func marketContext() *MarketContext {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := market.Series{
		{OpenTime: base, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{OpenTime: base.Add(time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 1200},
	}
	return &MarketContext{
		Symbol:     "BTCUSDT",
		Timeframes: []string{"1h"},
		Candles:    map[string]market.Series{"1h": candles},
		Summaries:  map[string]string{"1h": "RSI(14): 55.0\n"},
	}
}

func TestAnalyzeMarketParsesFencedJSON(t *testing.T) {
	payload := "```json\n" + `{"action":"long","confidence":0.72,"reasoning":"breakout","entry_price":101.5,"stop_loss":99.5,"take_profit":105.0}` + "\n```"
	llm := testLLM(t, payload)

	rec, err := llm.AnalyzeMarket(context.Background(), marketContext())
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, rec.Action, "LONG normalizes to BUY")
	assert.InDelta(t, 0.72, rec.Confidence, 1e-9)
	require.NotNil(t, rec.StopLoss)
	assert.InDelta(t, 99.5, *rec.StopLoss, 1e-9)
}

func TestAnalyzeMarketClampsConfidence(t *testing.T) {
	llm := testLLM(t, `{"action":"BUY","confidence":1.8,"reasoning":"x"}`)

	rec, err := llm.AnalyzeMarket(context.Background(), marketContext())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)
}

func TestAnalyzeMarketRejectsUnknownAction(t *testing.T) {
	llm := testLLM(t, `{"action":"MOON","confidence":0.9,"reasoning":"x"}`)

	_, err := llm.AnalyzeMarket(context.Background(), marketContext())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyzeMarketMalformedResponse(t *testing.T) {
	llm := testLLM(t, "the market looks bullish to me")

	_, err := llm.AnalyzeMarket(context.Background(), marketContext())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyzeMarketWithoutCredentials(t *testing.T) {
	llm := NewLLM(&ClientConfig{Provider: ProviderClaude}, logging.Nop())

	assert.False(t, llm.Configured())
	_, err := llm.AnalyzeMarket(context.Background(), marketContext())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAssessRiskParsesVerdict(t *testing.T) {
	llm := testLLM(t, `{"approved":true,"reason":"acceptable risk","stop_loss_price":98.0,"warnings":["tight stop"]}`)

	sl := 97.0
	verdict, err := llm.AssessRisk(context.Background(), &RiskContext{
		Symbol: "BTCUSDT", Action: "BUY", Confidence: 0.8,
		EntryPrice: 100, StopLoss: &sl, TotalBalance: 10000,
	})
	require.NoError(t, err)
	assert.True(t, verdict.Approved)
	require.NotNil(t, verdict.StopLossPrice)
	assert.InDelta(t, 98, *verdict.StopLossPrice, 1e-9)
	assert.Equal(t, []string{"tight stop"}, verdict.Warnings)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.want, stripCodeFence(tt.in), fmt.Sprintf("case %d", i))
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"BUY", ActionBuy, true},
		{"long", ActionBuy, true},
		{"OPEN_LONG", ActionBuy, true},
		{"SELL", ActionSell, true},
		{"short", ActionSell, true},
		{"CLOSE", ActionSell, true},
		{"close_long", ActionSell, true},
		{"EXIT", ActionSell, true},
		{"HOLD", ActionHold, true},
		{"wait", ActionHold, true},
		{" neutral ", ActionHold, true},
		{"MOON", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeAction(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBuildMarketPromptIncludesTimeframes(t *testing.T) {
	prompt := buildMarketPrompt(marketContext())
	assert.Contains(t, prompt, "BTCUSDT")
	assert.Contains(t, prompt, "=== 1h ===")
	assert.Contains(t, prompt, "RSI(14)")
	assert.Contains(t, prompt, "Recent candles")
}

func TestBuildRiskPromptIncludesBoundsAndCustomPrompt(t *testing.T) {
	prompt := buildRiskPrompt(&RiskContext{
		Symbol: "BTCUSDT", Action: "BUY", Confidence: 0.8, EntryPrice: 100,
		TotalBalance: 10000, CustomPrompt: "be extremely conservative",
		MinStopLoss: 95, MaxStopLoss: 99, MinTakeProfit: 102, MaxTakeProfit: 110,
	})
	assert.Contains(t, prompt, "be extremely conservative")
	assert.Contains(t, prompt, "Bounds:")
	assert.Contains(t, prompt, "BTCUSDT")
}
