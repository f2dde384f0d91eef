// Package risk caps the simulated exposure that auto-entered paper trades can
// build up.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"whaletracker/internal/config"
	"whaletracker/internal/repository"
)

type Guard struct {
	Config config.RiskConfig
	Repo   repository.Repository
	Logger *zap.Logger
	Now    func() time.Time

	mu         sync.Mutex
	lastPnLAt  time.Time
	lastPnLDay time.Time
	cachedPnL  decimal.Decimal
}

// Decision is the outcome of a pre-entry check. BetSize may be smaller than
// the requested size when a cap trims it.
type Decision struct {
	Allowed  bool            `json:"allowed"`
	BetSize  decimal.Decimal `json:"bet_size"`
	Reason   string          `json:"reason,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

type exposure struct {
	Open     int
	Total    decimal.Decimal
	ByMarket map[string]decimal.Decimal
}

// Check decides whether a new paper trade of size requested may be opened on
// marketID. A zero config value disables the matching limit.
func (g *Guard) Check(ctx context.Context, marketID string, requested decimal.Decimal) (Decision, error) {
	if g == nil || g.Repo == nil {
		return Decision{Allowed: true, BetSize: requested}, nil
	}
	if requested.LessThanOrEqual(decimal.Zero) {
		return Decision{Reason: "non_positive_size"}, nil
	}
	now := g.now()

	if reason, err := g.rejectDailyLoss(ctx, now); err != nil {
		return Decision{}, err
	} else if reason != "" {
		return Decision{Reason: reason}, nil
	}

	exp, err := g.exposures(ctx, now)
	if err != nil {
		return Decision{}, err
	}
	if g.Config.MaxOpenPositions > 0 && exp.Open >= g.Config.MaxOpenPositions {
		return Decision{Reason: "max_open_positions"}, nil
	}
	if g.Config.OnePerMarket && exp.ByMarket[marketID].GreaterThan(decimal.Zero) {
		return Decision{Reason: "market_already_open"}, nil
	}

	size, warnings := limitBetSize(g.Config, exp, marketID, requested)
	if size.LessThanOrEqual(decimal.Zero) {
		reason := "exposure_cap"
		if len(warnings) > 0 {
			reason = warnings[len(warnings)-1]
		}
		return Decision{Reason: reason, Warnings: warnings}, nil
	}
	return Decision{Allowed: true, BetSize: size, Warnings: warnings}, nil
}

func (g *Guard) exposures(ctx context.Context, now time.Time) (exposure, error) {
	out := exposure{Total: decimal.Zero, ByMarket: map[string]decimal.Decimal{}}
	open, err := g.Repo.ListOpenPaperTradesEnteredBefore(ctx, now.Add(time.Second))
	if err != nil {
		return out, fmt.Errorf("load open paper trades: %w", err)
	}
	for _, t := range open {
		out.Open++
		out.Total = out.Total.Add(t.BetSize)
		out.ByMarket[t.MarketID] = out.ByMarket[t.MarketID].Add(t.BetSize)
	}
	return out, nil
}

func limitBetSize(cfg config.RiskConfig, exp exposure, marketID string, requested decimal.Decimal) (decimal.Decimal, []string) {
	warnings := []string{}
	size := requested

	if cfg.MaxTotalExposure > 0 {
		remaining := decimal.NewFromFloat(cfg.MaxTotalExposure).Sub(exp.Total)
		if remaining.LessThan(decimal.Zero) {
			remaining = decimal.Zero
		}
		if size.GreaterThan(remaining) {
			size = remaining
			warnings = append(warnings, "total_exposure_cap")
		}
	}
	if cfg.MaxPerMarket > 0 {
		remaining := decimal.NewFromFloat(cfg.MaxPerMarket).Sub(exp.ByMarket[marketID])
		if remaining.LessThan(decimal.Zero) {
			remaining = decimal.Zero
		}
		if size.GreaterThan(remaining) {
			size = remaining
			warnings = append(warnings, "market_exposure_cap")
		}
	}
	return size, warnings
}

// rejectDailyLoss blocks new entries once today's realized paper PnL is at or
// below -MaxDailyLoss. The sum is cached for a minute.
func (g *Guard) rejectDailyLoss(ctx context.Context, now time.Time) (string, error) {
	if g.Config.MaxDailyLoss <= 0 {
		return "", nil
	}
	pnl, err := g.dailyPnL(ctx, now)
	if err != nil {
		return "", err
	}
	if pnl.LessThanOrEqual(decimal.NewFromFloat(-g.Config.MaxDailyLoss)) {
		g.logger().Warn("paper daily loss limit reached",
			zap.String("daily_pnl", pnl.StringFixed(2)),
			zap.Float64("max_daily_loss", g.Config.MaxDailyLoss),
		)
		return "daily_loss_limit", nil
	}
	return "", nil
}

func (g *Guard) dailyPnL(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	g.mu.Lock()
	if g.lastPnLDay.Equal(day) && now.Sub(g.lastPnLAt) < time.Minute {
		v := g.cachedPnL
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()

	closed, err := g.Repo.ListClosedPaperTradesSince(ctx, day)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load closed paper trades: %w", err)
	}
	sum := decimal.Zero
	for _, t := range closed {
		if t.PnL != nil {
			sum = sum.Add(*t.PnL)
		}
	}

	g.mu.Lock()
	g.lastPnLAt = now
	g.lastPnLDay = day
	g.cachedPnL = sum
	g.mu.Unlock()
	return sum, nil
}

func (g *Guard) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Guard) logger() *zap.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop()
}
