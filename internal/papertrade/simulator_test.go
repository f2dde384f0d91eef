package papertrade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"whaletracker/internal/models"
	"whaletracker/internal/repository/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSim(t *testing.T) (*Simulator, *memory.Store, *clock) {
	t.Helper()
	repo := memory.New()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return &Simulator{
		Repo:      repo,
		BetSize:   decimal.NewFromInt(100),
		Hold:      24 * time.Hour,
		HighScore: 75,
		Now:       clk.now,
	}, repo, clk
}

func seedRecommendation(t *testing.T, repo *memory.Store, marketID string, dir models.Direction, score int) models.Recommendation {
	t.Helper()
	items := []models.Recommendation{{MarketID: marketID, Direction: dir, WhaleScore: score, IsActive: true}}
	if err := repo.ReplaceActiveRecommendations(context.Background(), items); err != nil {
		t.Fatalf("seed err=%v", err)
	}
	return items[0]
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPnL(t *testing.T) {
	bet := decimal.NewFromInt(100)
	if got := PnL(models.DirectionYes, dec("0.60"), dec("0.80"), bet); !got.Equal(dec("20")) {
		t.Fatalf("yes pnl=%s want=20", got)
	}
	if got := PnL(models.DirectionNo, dec("0.60"), dec("0.80"), bet); !got.Equal(dec("-20")) {
		t.Fatalf("no pnl=%s want=-20", got)
	}
	if got := PnL(models.DirectionNeutral, dec("0.60"), dec("0.80"), bet); !got.IsZero() {
		t.Fatalf("neutral pnl=%s want=0", got)
	}
}

func TestEnter_MissingRecommendation(t *testing.T) {
	sim, _, _ := newSim(t)
	_, err := sim.Enter(context.Background(), EnterParams{RecommendationID: 42, EntryPrice: dec("0.5")})
	if !errors.Is(err, ErrRecommendationNotFound) {
		t.Fatalf("err=%v want=ErrRecommendationNotFound", err)
	}
}

func TestEnterAndClose(t *testing.T) {
	ctx := context.Background()
	sim, _, _ := newSim(t)
	rec := seedRecommendation(t, sim.Repo.(*memory.Store), "m1", models.DirectionYes, 80)

	trade, err := sim.Enter(ctx, EnterParams{RecommendationID: rec.ID, EntryPrice: dec("0.60"), WhaleScore: 80})
	if err != nil {
		t.Fatalf("Enter err=%v", err)
	}
	if !trade.BetSize.Equal(decimal.NewFromInt(100)) || trade.Direction != models.DirectionYes || trade.MarketID != "m1" {
		t.Fatalf("trade=%+v", trade)
	}

	closed, err := sim.Close(ctx, trade.ID, dec("0.80"))
	if err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if closed.PnL == nil || !closed.PnL.Equal(dec("20")) {
		t.Fatalf("pnl=%v want=20", closed.PnL)
	}
	if _, err := sim.Close(ctx, trade.ID, dec("0.10")); !errors.Is(err, ErrTradeClosed) {
		t.Fatalf("second close err=%v want=ErrTradeClosed", err)
	}
	stored, _ := sim.Repo.GetPaperTradeByID(ctx, trade.ID)
	if !stored.PnL.Equal(dec("20")) || !stored.ExitPrice.Equal(dec("0.80")) {
		t.Fatalf("stored trade mutated: pnl=%s exit=%s", stored.PnL, stored.ExitPrice)
	}
	if _, err := sim.Close(ctx, 999, dec("0.5")); !errors.Is(err, ErrTradeNotFound) {
		t.Fatalf("err=%v want=ErrTradeNotFound", err)
	}
}

func TestEnter_CustomBetSize(t *testing.T) {
	sim, repo, _ := newSim(t)
	rec := seedRecommendation(t, repo, "m1", models.DirectionNo, 90)
	trade, err := sim.Enter(context.Background(), EnterParams{RecommendationID: rec.ID, EntryPrice: dec("0.3"), BetSize: decimal.NewFromInt(250)})
	if err != nil {
		t.Fatalf("Enter err=%v", err)
	}
	if !trade.BetSize.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("bet=%s want=250", trade.BetSize)
	}
}

func TestAutoCloseExpired_AgeGuardAndMissingPrice(t *testing.T) {
	ctx := context.Background()
	sim, repo, clk := newSim(t)
	rec := seedRecommendation(t, repo, "m1", models.DirectionYes, 80)
	other := seedRecommendation(t, repo, "m2", models.DirectionYes, 80)

	old, _ := sim.Enter(ctx, EnterParams{RecommendationID: rec.ID, EntryPrice: dec("0.5"), WhaleScore: 80})
	noPrice, _ := sim.Enter(ctx, EnterParams{RecommendationID: other.ID, EntryPrice: dec("0.5"), WhaleScore: 80})
	clk.t = clk.t.Add(23 * time.Hour)
	young, _ := sim.Enter(ctx, EnterParams{RecommendationID: rec.ID, EntryPrice: dec("0.5"), WhaleScore: 80})
	clk.t = clk.t.Add(time.Hour)

	res, err := sim.AutoCloseExpired(ctx, map[string]float64{"m1": 0.7})
	if err != nil {
		t.Fatalf("AutoCloseExpired err=%v", err)
	}
	if res.Expired != 2 || res.Closed != 1 || res.Skipped != 1 {
		t.Fatalf("result=%+v want expired=2 closed=1 skipped=1", res)
	}
	for _, tc := range []struct {
		id     uint64
		closed bool
	}{{old.ID, true}, {noPrice.ID, false}, {young.ID, false}} {
		got, _ := repo.GetPaperTradeByID(ctx, tc.id)
		if got.IsClosed != tc.closed {
			t.Fatalf("trade %d closed=%v want=%v", tc.id, got.IsClosed, tc.closed)
		}
	}

	res, err = sim.AutoCloseExpired(ctx, map[string]float64{"m1": 0.7})
	if err != nil {
		t.Fatalf("AutoCloseExpired err=%v", err)
	}
	if res.Closed != 0 {
		t.Fatalf("second sweep closed=%d want=0", res.Closed)
	}
}

func TestPerformanceStats_Empty(t *testing.T) {
	sim, _, _ := newSim(t)
	stats, err := sim.PerformanceStats(context.Background(), 7)
	if err != nil {
		t.Fatalf("PerformanceStats err=%v", err)
	}
	if stats.TotalTrades != 0 || stats.WinRate != 0 || !stats.TotalPnL.IsZero() || stats.BestTrade != nil {
		t.Fatalf("stats=%+v want zero", stats)
	}
}

func TestSummarize_HighScoreDenominator(t *testing.T) {
	pnl := func(s string) *decimal.Decimal { d := dec(s); return &d }
	trades := []models.PaperTrade{
		{ID: 1, MarketID: "a", WhaleScore: 90, PnL: pnl("20")},
		{ID: 2, MarketID: "b", WhaleScore: 80, PnL: pnl("-10")},
		{ID: 3, MarketID: "c", WhaleScore: 60, PnL: pnl("5")},
		{ID: 4, MarketID: "d", WhaleScore: 55, PnL: pnl("0")},
	}
	stats := Summarize(trades, 75)
	if stats.TotalTrades != 4 || stats.WinningTrades != 2 || stats.LosingTrades != 1 {
		t.Fatalf("counts=%d/%d/%d", stats.TotalTrades, stats.WinningTrades, stats.LosingTrades)
	}
	if stats.WinRate != 50 {
		t.Fatalf("win rate=%v want=50", stats.WinRate)
	}
	if stats.HighScoreTrades != 2 || stats.HighScoreWinRate != 50 {
		t.Fatalf("high score trades=%d rate=%v want=2/50", stats.HighScoreTrades, stats.HighScoreWinRate)
	}
	if !stats.TotalPnL.Equal(dec("15")) || !stats.AvgPnL.Equal(dec("3.75")) {
		t.Fatalf("total=%s avg=%s want=15/3.75", stats.TotalPnL, stats.AvgPnL)
	}
	if stats.BestTrade.TradeID != 1 || stats.WorstTrade.TradeID != 2 {
		t.Fatalf("best=%d worst=%d want=1/2", stats.BestTrade.TradeID, stats.WorstTrade.TradeID)
	}
	if stats.AvgWhaleScore != 71.3 {
		t.Fatalf("avg score=%v want=71.3", stats.AvgWhaleScore)
	}
}

func TestRollupDay(t *testing.T) {
	ctx := context.Background()
	sim, repo, clk := newSim(t)
	rec := seedRecommendation(t, repo, "m1", models.DirectionYes, 80)
	trade, _ := sim.Enter(ctx, EnterParams{RecommendationID: rec.ID, EntryPrice: dec("0.5"), WhaleScore: 80})
	if _, err := sim.Close(ctx, trade.ID, dec("0.6")); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	clk.t = clk.t.Add(24 * time.Hour)
	if err := sim.RollupPreviousDay(ctx); err != nil {
		t.Fatalf("RollupPreviousDay err=%v", err)
	}
	metrics, err := sim.DailyMetrics(ctx, 7)
	if err != nil {
		t.Fatalf("DailyMetrics err=%v", err)
	}
	if len(metrics) != 1 || metrics[0].TotalTrades != 1 || !metrics[0].TotalPnL.Equal(dec("10")) {
		t.Fatalf("metrics=%+v", metrics)
	}
}
