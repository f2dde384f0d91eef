package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"whaletracker/internal/marketdata"
	"whaletracker/internal/models"
	"whaletracker/internal/papertrade"
	"whaletracker/internal/poller"
	"whaletracker/internal/recommendation"
	"whaletracker/internal/repository/memory"
	"whaletracker/internal/scoring"
	"whaletracker/internal/service"
)

type brokenStore struct {
	*memory.Store
}

func (b *brokenStore) ListActiveRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error) {
	return nil, errors.New("connection refused")
}

func (b *brokenStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func newEngine(register ...interface{ Register(*gin.Engine) }) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, h := range register {
		h.Register(r)
	}
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func seedRecommendations(t *testing.T, repo *memory.Store) []models.Recommendation {
	t.Helper()
	ctx := context.Background()
	for _, m := range []models.Market{{ID: "m1", Question: "Will it rain?"}, {ID: "m2", Question: "Will it snow?"}} {
		m := m
		if err := repo.UpsertMarket(ctx, &m); err != nil {
			t.Fatalf("UpsertMarket err=%v", err)
		}
	}
	now := time.Now().UTC()
	items := []models.Recommendation{
		{MarketID: "m1", Direction: models.DirectionYes, WhaleScore: 60, Confidence: models.ConfidenceMedium, SignalsFired: []byte(`["volume_spike"]`), IsActive: true, CreatedAt: now},
		{MarketID: "m2", Direction: models.DirectionNo, WhaleScore: 85, Confidence: models.ConfidenceHigh, SignalsFired: []byte(`["book_imbalance","large_order"]`), IsActive: true, CreatedAt: now},
	}
	if err := repo.ReplaceActiveRecommendations(ctx, items); err != nil {
		t.Fatalf("ReplaceActiveRecommendations err=%v", err)
	}
	return items
}

func TestRecommendations_RankedWithMarket(t *testing.T) {
	repo := memory.New()
	seedRecommendations(t, repo)
	r := newEngine(&RecommendationHandler{Repo: repo})

	code, env := do(t, r, http.MethodGet, "/api/v1/recommendations?limit=5", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	var items []recommendationView
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode err=%v", err)
	}
	if len(items) != 2 || items[0].MarketID != "m2" || items[0].Question != "Will it snow?" {
		t.Fatalf("items=%+v", items)
	}
	if len(items[0].SignalsFired) != 2 || items[0].SignalsFired[1] != models.SignalLargeOrder {
		t.Fatalf("signals_fired=%v", items[0].SignalsFired)
	}
}

func TestRecommendations_ErrorStatuses(t *testing.T) {
	code, _ := do(t, newEngine(&RecommendationHandler{}), http.MethodGet, "/api/v1/recommendations", "")
	if code != http.StatusInternalServerError {
		t.Fatalf("nil repo code=%d want=500", code)
	}
	code, env := do(t, newEngine(&RecommendationHandler{Repo: &brokenStore{Store: memory.New()}}), http.MethodGet, "/api/v1/recommendations", "")
	if code != http.StatusBadGateway || env.Code != http.StatusBadGateway {
		t.Fatalf("store failure code=%d want=502", code)
	}
}

func TestSignals_FiltersAndValidatesType(t *testing.T) {
	repo := memory.New()
	now := time.Now().UTC()
	err := repo.InsertSignals(context.Background(), []models.Signal{
		{MarketID: "m1", SignalType: models.SignalVolumeSpike, Value: 6, Threshold: 5, DetectedAt: now.Add(-time.Hour)},
		{MarketID: "m2", SignalType: models.SignalLargeOrder, Value: 60000, Threshold: 50000, DetectedAt: now.Add(-2 * time.Hour)},
		{MarketID: "m1", SignalType: models.SignalBookImbalance, Value: 0.8, Threshold: 0.7, DetectedAt: now.Add(-48 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("InsertSignals err=%v", err)
	}
	r := newEngine(&SignalHandler{Repo: repo}, &MarketHandler{Repo: repo})

	code, env := do(t, r, http.MethodGet, "/api/v1/signals?hours=24", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	var items []signalView
	_ = json.Unmarshal(env.Data, &items)
	if len(items) != 2 || items[0].MarketID != "m1" {
		t.Fatalf("items=%+v want 2, newest first", items)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/markets/m1/signals?hours=72", "")
	_ = json.Unmarshal(env.Data, &items)
	if len(items) != 2 || items[1].SignalType != models.SignalBookImbalance {
		t.Fatalf("market items=%+v", items)
	}

	code, _ = do(t, r, http.MethodGet, "/api/v1/signals?type=whale_song", "")
	if code != http.StatusBadRequest {
		t.Fatalf("code=%d want=400", code)
	}
}

func TestMarkets_GetAndNotFound(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	if err := repo.UpsertMarket(ctx, &models.Market{ID: "m1", Question: "Q?"}); err != nil {
		t.Fatalf("UpsertMarket err=%v", err)
	}
	if err := repo.InsertSnapshot(ctx, &models.Snapshot{MarketID: "m1", Timestamp: time.Now().UTC(), YesPrice: 0.62, NoPrice: 0.38}); err != nil {
		t.Fatalf("InsertSnapshot err=%v", err)
	}
	r := newEngine(&MarketHandler{Repo: repo})

	code, env := do(t, r, http.MethodGet, "/api/v1/markets", "")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	var items []marketView
	_ = json.Unmarshal(env.Data, &items)
	if len(items) != 1 || items[0].Latest == nil || items[0].Latest.YesPrice != 0.62 {
		t.Fatalf("items=%+v", items)
	}
	code, _ = do(t, r, http.MethodGet, "/api/v1/markets/missing", "")
	if code != http.StatusNotFound {
		t.Fatalf("code=%d want=404", code)
	}
}

func TestPaperTrading_CloseLifecycle(t *testing.T) {
	repo := memory.New()
	recs := seedRecommendations(t, repo)
	sim := &papertrade.Simulator{Repo: repo, BetSize: decimal.NewFromInt(100), Hold: 24 * time.Hour, HighScore: 75}
	trade, err := sim.Enter(context.Background(), papertrade.EnterParams{
		RecommendationID: recs[0].ID,
		EntryPrice:       decimal.RequireFromString("0.60"),
		WhaleScore:       recs[0].WhaleScore,
	})
	if err != nil {
		t.Fatalf("Enter err=%v", err)
	}
	r := newEngine(&PaperTradingHandler{Simulator: sim})
	path := "/api/v1/paper-trading/positions/" + strconv.FormatUint(trade.ID, 10) + "/close"

	code, _ := do(t, r, http.MethodPost, "/api/v1/paper-trading/positions/999/close", `{"exit_price":"0.8"}`)
	if code != http.StatusNotFound {
		t.Fatalf("missing code=%d want=404", code)
	}
	code, _ = do(t, r, http.MethodPost, path, `{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("missing exit_price code=%d want=400", code)
	}
	if got, _ := repo.GetPaperTradeByID(context.Background(), trade.ID); got == nil || got.IsClosed {
		t.Fatalf("trade closed without an exit price: %+v", got)
	}
	code, _ = do(t, r, http.MethodPost, path, `{"exit_price":"1.5"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("out of range code=%d want=400", code)
	}
	code, env := do(t, r, http.MethodPost, path, `{"exit_price":"0.8"}`)
	if code != http.StatusOK {
		t.Fatalf("close code=%d want=200", code)
	}
	var closed paperTradeView
	_ = json.Unmarshal(env.Data, &closed)
	if closed.PnL == nil || !closed.PnL.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("pnl=%v want=20", closed.PnL)
	}
	code, _ = do(t, r, http.MethodPost, path, `{"exit_price":"0.9"}`)
	if code != http.StatusConflict {
		t.Fatalf("double close code=%d want=409", code)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/paper-trading/stats?days=7", "")
	if code != http.StatusOK {
		t.Fatalf("stats code=%d want=200", code)
	}
	var stats papertrade.Stats
	_ = json.Unmarshal(env.Data, &stats)
	if stats.TotalTrades != 1 || stats.WinningTrades != 1 || stats.WinRate != 100 {
		t.Fatalf("stats=%+v", stats)
	}
	_, env = do(t, r, http.MethodGet, "/api/v1/paper-trading/positions", "")
	var open []paperTradeView
	_ = json.Unmarshal(env.Data, &open)
	if len(open) != 0 {
		t.Fatalf("open=%d want=0", len(open))
	}
}

func TestSettings_Switches(t *testing.T) {
	repo := memory.New()
	r := newEngine(&SettingsHandler{Settings: &service.SystemSettingsService{Repo: repo}})

	code, _ := do(t, r, http.MethodPut, "/api/v1/settings/switches/teleport", `{"enabled":true}`)
	if code != http.StatusNotFound {
		t.Fatalf("unknown code=%d want=404", code)
	}
	code, _ = do(t, r, http.MethodPut, "/api/v1/settings/switches/alerts", `{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("empty body code=%d want=400", code)
	}
	code, _ = do(t, r, http.MethodPut, "/api/v1/settings/switches/alerts", `{"enabled":false}`)
	if code != http.StatusOK {
		t.Fatalf("put code=%d want=200", code)
	}
	svc := &service.SystemSettingsService{Repo: repo}
	if svc.IsEnabled(context.Background(), service.FeatureAlerts, true) {
		t.Fatalf("alerts still enabled")
	}
}

func TestHealthAndStatus(t *testing.T) {
	r := newEngine(&HealthHandler{Store: memory.New()}, &StatusHandler{Poller: &poller.Poller{}})
	if code, _ := do(t, r, http.MethodGet, "/readyz", ""); code != http.StatusOK {
		t.Fatalf("readyz code=%d want=200", code)
	}
	code, env := do(t, r, http.MethodGet, "/api/v1/status", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"ran":false`) {
		t.Fatalf("status code=%d data=%s", code, env.Data)
	}

	r = newEngine(&HealthHandler{Store: &brokenStore{Store: memory.New()}})
	if code, _ := do(t, r, http.MethodGet, "/readyz", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz code=%d want=503", code)
	}
}

type oneMarketProvider struct{}

func (oneMarketProvider) ActiveMarkets(ctx context.Context, limit int, minVolume float64) ([]marketdata.Market, error) {
	return []marketdata.Market{{ID: "m1", YesTokenID: "y1", Question: "Q?", Volume: 600000, YesPrice: 0.5}}, nil
}

func (oneMarketProvider) Observe(ctx context.Context, market marketdata.Market) (*marketdata.Observation, error) {
	return &marketdata.Observation{TotalBuyVolume: 50, TotalSellVolume: 50}, nil
}

func (oneMarketProvider) RecentTrades(ctx context.Context, market marketdata.Market, since time.Time) ([]marketdata.Trade, error) {
	return nil, nil
}

func TestPoll_SurvivesClientDisconnect(t *testing.T) {
	repo := memory.New()
	p := &poller.Poller{
		Provider:        oneMarketProvider{},
		Repo:            repo,
		Scorer:          scoring.NewScorer(nil),
		Recommendations: &recommendation.Manager{Repo: repo},
	}
	r := newEngine(&StatusHandler{Poller: p})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/poll", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d want=200 body=%s", w.Code, w.Body.String())
	}
	report := p.LastReport()
	if report == nil || report.Processed != 1 || report.Error != "" {
		t.Fatalf("report=%+v want one processed market", report)
	}
}
