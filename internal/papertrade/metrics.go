package papertrade

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"whaletracker/internal/models"
)

// RollupDay stores the PerformanceMetric for trades closed on the UTC day
// containing day. Re-running a day overwrites its row.
func (s *Simulator) RollupDay(ctx context.Context, day time.Time) (*models.PerformanceMetric, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("paper trade repo not configured")
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	trades, err := s.Repo.ListClosedPaperTradesSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("list closed trades: %w", err)
	}
	sameDay := trades[:0]
	for _, t := range trades {
		if t.ExitTime != nil && t.ExitTime.Before(end) {
			sameDay = append(sameDay, t)
		}
	}
	stats := Summarize(sameDay, s.HighScore)
	item := &models.PerformanceMetric{
		Date:          start,
		TotalTrades:   stats.TotalTrades,
		WinningTrades: stats.WinningTrades,
		LosingTrades:  stats.LosingTrades,
		WinRate:       stats.WinRate,
		TotalPnL:      stats.TotalPnL,
		AvgWhaleScore: stats.AvgWhaleScore,
	}
	if err := s.Repo.UpsertPerformanceMetric(ctx, item); err != nil {
		return nil, fmt.Errorf("upsert performance metric: %w", err)
	}
	s.logger().Info("performance metric rolled up",
		zap.String("date", start.Format("2006-01-02")),
		zap.Int("trades", item.TotalTrades),
		zap.String("total_pnl", item.TotalPnL.StringFixed(2)),
	)
	return item, nil
}

// RollupPreviousDay is the cron entry point: it rolls up yesterday (UTC).
func (s *Simulator) RollupPreviousDay(ctx context.Context) error {
	_, err := s.RollupDay(ctx, s.now().AddDate(0, 0, -1))
	return err
}

func (s *Simulator) DailyMetrics(ctx context.Context, days int) ([]models.PerformanceMetric, error) {
	if days <= 0 {
		days = 30
	}
	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	return s.Repo.ListPerformanceMetrics(ctx, since)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
