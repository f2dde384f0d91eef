package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"whaletracker/internal/config"
	"whaletracker/internal/models"
	"whaletracker/internal/repository"
	"whaletracker/internal/repository/memory"
)

func openTrade(t *testing.T, repo *memory.Store, marketID string, bet int64, at time.Time) *models.PaperTrade {
	t.Helper()
	trade := &models.PaperTrade{
		MarketID:   marketID,
		Direction:  models.DirectionYes,
		EntryPrice: decimal.RequireFromString("0.5"),
		EntryTime:  at,
		BetSize:    decimal.NewFromInt(bet),
		WhaleScore: 80,
	}
	if err := repo.InsertPaperTrade(context.Background(), trade); err != nil {
		t.Fatalf("InsertPaperTrade err=%v", err)
	}
	return trade
}

func TestCheck_NoLimitsAllowsRequested(t *testing.T) {
	g := &Guard{Repo: memory.New()}
	d, err := g.Check(context.Background(), "m1", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Check err=%v", err)
	}
	if !d.Allowed || !d.BetSize.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("decision=%+v", d)
	}
}

func TestCheck_TrimsToRemainingExposure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.New()
	openTrade(t, repo, "m1", 100, now.Add(-time.Hour))
	openTrade(t, repo, "m2", 100, now.Add(-time.Hour))
	g := &Guard{
		Repo:   repo,
		Now:    func() time.Time { return now },
		Config: config.RiskConfig{MaxTotalExposure: 250, MaxPerMarket: 120},
	}

	d, _ := g.Check(context.Background(), "m3", decimal.NewFromInt(100))
	if !d.Allowed || !d.BetSize.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("bet=%s want=50", d.BetSize)
	}
	if len(d.Warnings) != 1 || d.Warnings[0] != "total_exposure_cap" {
		t.Fatalf("warnings=%v", d.Warnings)
	}

	g.Config.MaxTotalExposure = 0
	d, _ = g.Check(context.Background(), "m1", decimal.NewFromInt(100))
	if !d.BetSize.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("bet=%s want=20", d.BetSize)
	}

	g.Config.MaxPerMarket = 100
	d, _ = g.Check(context.Background(), "m1", decimal.NewFromInt(100))
	if d.Allowed || d.Reason != "market_exposure_cap" {
		t.Fatalf("decision=%+v want market_exposure_cap", d)
	}
}

func TestCheck_PositionLimits(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.New()
	openTrade(t, repo, "m1", 100, now.Add(-time.Hour))
	g := &Guard{Repo: repo, Now: func() time.Time { return now }, Config: config.RiskConfig{OnePerMarket: true}}

	if d, _ := g.Check(context.Background(), "m1", decimal.NewFromInt(100)); d.Allowed || d.Reason != "market_already_open" {
		t.Fatalf("decision=%+v want market_already_open", d)
	}
	if d, _ := g.Check(context.Background(), "m2", decimal.NewFromInt(100)); !d.Allowed {
		t.Fatalf("decision=%+v want allowed", d)
	}

	g.Config.MaxOpenPositions = 1
	if d, _ := g.Check(context.Background(), "m2", decimal.NewFromInt(100)); d.Allowed || d.Reason != "max_open_positions" {
		t.Fatalf("decision=%+v want max_open_positions", d)
	}
}

func TestCheck_DailyLossLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.New()
	trade := openTrade(t, repo, "m1", 100, now.Add(-2*time.Hour))
	ok, err := repo.ClosePaperTrade(context.Background(), repository.ClosePaperTradeParams{
		ID:        trade.ID,
		ExitPrice: decimal.RequireFromString("0.1"),
		ExitTime:  now.Add(-time.Hour),
		PnL:       decimal.NewFromInt(-40),
	})
	if err != nil || !ok {
		t.Fatalf("ClosePaperTrade ok=%v err=%v", ok, err)
	}
	g := &Guard{Repo: repo, Now: func() time.Time { return now }, Config: config.RiskConfig{MaxDailyLoss: 40}}

	d, err := g.Check(context.Background(), "m2", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Check err=%v", err)
	}
	if d.Allowed || d.Reason != "daily_loss_limit" {
		t.Fatalf("decision=%+v want daily_loss_limit", d)
	}

	g2 := &Guard{Repo: repo, Now: func() time.Time { return now }, Config: config.RiskConfig{MaxDailyLoss: 50}}
	if d, _ := g2.Check(context.Background(), "m2", decimal.NewFromInt(100)); !d.Allowed {
		t.Fatalf("decision=%+v want allowed", d)
	}
}
