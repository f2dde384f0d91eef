// Package papertrade simulates positions opened from high-confidence
// recommendations and reports how they performed.
package papertrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"whaletracker/internal/models"
	"whaletracker/internal/paas"
	"whaletracker/internal/repository"
)

var (
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrTradeNotFound          = errors.New("paper trade not found")
	ErrTradeClosed            = errors.New("paper trade already closed")
)

type Simulator struct {
	Repo   repository.Repository
	Logger *zap.Logger

	BetSize decimal.Decimal
	Hold    time.Duration
	// HighScore is the whale score from which trades count toward the
	// high-score win rate.
	HighScore int
	Now       func() time.Time
}

type EnterParams struct {
	RecommendationID uint64
	EntryPrice       decimal.Decimal
	WhaleScore       int
	// BetSize falls back to the simulator default when zero.
	BetSize decimal.Decimal
}

// Enter opens a trade in the direction of the recommendation.
func (s *Simulator) Enter(ctx context.Context, params EnterParams) (*models.PaperTrade, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("paper trade repo not configured")
	}
	rec, err := s.Repo.GetRecommendationByID(ctx, params.RecommendationID)
	if err != nil {
		return nil, fmt.Errorf("load recommendation: %w", err)
	}
	if rec == nil {
		return nil, ErrRecommendationNotFound
	}
	bet := params.BetSize
	if bet.IsZero() {
		bet = s.BetSize
	}
	trade := &models.PaperTrade{
		RecommendationID: rec.ID,
		MarketID:         rec.MarketID,
		Direction:        rec.Direction,
		EntryPrice:       params.EntryPrice,
		EntryTime:        s.now(),
		BetSize:          bet,
		WhaleScore:       params.WhaleScore,
	}
	if err := s.Repo.InsertPaperTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert paper trade: %w", err)
	}
	paas.Audit(ctx, "whale_paper_trade_opened", "info", map[string]any{
		"trade_id":    trade.ID,
		"market_id":   trade.MarketID,
		"direction":   trade.Direction,
		"entry_price": trade.EntryPrice.String(),
		"whale_score": trade.WhaleScore,
	})
	s.logger().Info("paper trade opened",
		zap.Uint64("trade_id", trade.ID),
		zap.String("market_id", trade.MarketID),
		zap.String("direction", string(trade.Direction)),
		zap.String("entry_price", trade.EntryPrice.StringFixed(3)),
		zap.Int("whale_score", trade.WhaleScore),
	)
	return trade, nil
}

// Close settles an open trade at exitPrice. Closing a closed trade returns
// ErrTradeClosed, also when another caller wins the race.
func (s *Simulator) Close(ctx context.Context, tradeID uint64, exitPrice decimal.Decimal) (*models.PaperTrade, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("paper trade repo not configured")
	}
	trade, err := s.Repo.GetPaperTradeByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("load paper trade: %w", err)
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}
	if trade.IsClosed {
		return nil, ErrTradeClosed
	}
	pnl := PnL(trade.Direction, trade.EntryPrice, exitPrice, trade.BetSize)
	exitTime := s.now()
	ok, err := s.Repo.ClosePaperTrade(ctx, repository.ClosePaperTradeParams{
		ID:        trade.ID,
		ExitPrice: exitPrice,
		ExitTime:  exitTime,
		PnL:       pnl,
	})
	if err != nil {
		return nil, fmt.Errorf("close paper trade: %w", err)
	}
	if !ok {
		return nil, ErrTradeClosed
	}
	trade.ExitPrice = &exitPrice
	trade.ExitTime = &exitTime
	trade.PnL = &pnl
	trade.IsClosed = true

	s.logger().Info("paper trade closed",
		zap.Uint64("trade_id", trade.ID),
		zap.String("exit_price", exitPrice.StringFixed(3)),
		zap.String("pnl", pnl.StringFixed(2)),
	)
	return trade, nil
}

// PnL is the realized profit of a position of bet shares.
func PnL(direction models.Direction, entry, exit, bet decimal.Decimal) decimal.Decimal {
	switch direction {
	case models.DirectionYes:
		return exit.Sub(entry).Mul(bet)
	case models.DirectionNo:
		return entry.Sub(exit).Mul(bet)
	default:
		return decimal.Zero
	}
}

type AutoCloseResult struct {
	Expired int `json:"expired"`
	Closed  int `json:"closed"`
	// Skipped trades had no known price and stay open.
	Skipped int `json:"skipped"`
}

// AutoCloseExpired closes every open trade held for at least Hold using the
// YES price of its market from prices.
func (s *Simulator) AutoCloseExpired(ctx context.Context, prices map[string]float64) (AutoCloseResult, error) {
	var out AutoCloseResult
	if s == nil || s.Repo == nil {
		return out, fmt.Errorf("paper trade repo not configured")
	}
	expired, err := s.Repo.ListOpenPaperTradesEnteredBefore(ctx, s.now().Add(-s.Hold))
	if err != nil {
		return out, fmt.Errorf("list expired trades: %w", err)
	}
	out.Expired = len(expired)
	for _, trade := range expired {
		price, ok := prices[trade.MarketID]
		if !ok {
			out.Skipped++
			s.logger().Warn("no current price, auto-close skipped",
				zap.Uint64("trade_id", trade.ID),
				zap.String("market_id", trade.MarketID),
			)
			continue
		}
		if _, err := s.Close(ctx, trade.ID, decimal.NewFromFloat(price)); err != nil {
			if errors.Is(err, ErrTradeClosed) {
				continue
			}
			return out, err
		}
		out.Closed++
	}
	return out, nil
}

type TradeRef struct {
	TradeID    uint64          `json:"trade_id"`
	MarketID   string          `json:"market_id"`
	PnL        decimal.Decimal `json:"pnl"`
	WhaleScore int             `json:"whale_score"`
}

type Stats struct {
	Days             int             `json:"days"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	WinRate          float64         `json:"win_rate"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	AvgPnL           decimal.Decimal `json:"avg_pnl"`
	BestTrade        *TradeRef       `json:"best_trade"`
	WorstTrade       *TradeRef       `json:"worst_trade"`
	AvgWhaleScore    float64         `json:"avg_whale_score"`
	HighScoreTrades  int             `json:"high_score_trades"`
	HighScoreWinRate float64         `json:"high_score_win_rate"`
}

// PerformanceStats aggregates trades closed in the last days days.
func (s *Simulator) PerformanceStats(ctx context.Context, days int) (Stats, error) {
	if s == nil || s.Repo == nil {
		return Stats{}, fmt.Errorf("paper trade repo not configured")
	}
	if days <= 0 {
		days = 7
	}
	trades, err := s.Repo.ListClosedPaperTradesSince(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return Stats{}, fmt.Errorf("list closed trades: %w", err)
	}
	stats := Summarize(trades, s.HighScore)
	stats.Days = days
	return stats, nil
}

// Summarize computes Stats over closed trades. An empty input gives the zero
// value with zero decimals.
func Summarize(trades []models.PaperTrade, highScore int) Stats {
	stats := Stats{TotalPnL: decimal.Zero, AvgPnL: decimal.Zero}
	var scoreSum, highWins int
	for _, t := range trades {
		if t.PnL == nil {
			continue
		}
		pnl := *t.PnL
		stats.TotalTrades++
		stats.TotalPnL = stats.TotalPnL.Add(pnl)
		scoreSum += t.WhaleScore
		switch pnl.Sign() {
		case 1:
			stats.WinningTrades++
		case -1:
			stats.LosingTrades++
		}
		ref := &TradeRef{TradeID: t.ID, MarketID: t.MarketID, PnL: pnl, WhaleScore: t.WhaleScore}
		if stats.BestTrade == nil || pnl.GreaterThan(stats.BestTrade.PnL) {
			stats.BestTrade = ref
		}
		if stats.WorstTrade == nil || pnl.LessThan(stats.WorstTrade.PnL) {
			stats.WorstTrade = ref
		}
		if t.WhaleScore >= highScore {
			stats.HighScoreTrades++
			if pnl.Sign() > 0 {
				highWins++
			}
		}
	}
	if stats.TotalTrades == 0 {
		return stats
	}
	n := float64(stats.TotalTrades)
	stats.WinRate = round1(float64(stats.WinningTrades) / n * 100)
	stats.AvgPnL = stats.TotalPnL.Div(decimal.NewFromInt(int64(stats.TotalTrades))).Round(2)
	stats.TotalPnL = stats.TotalPnL.Round(2)
	stats.BestTrade.PnL = stats.BestTrade.PnL.Round(2)
	stats.WorstTrade.PnL = stats.WorstTrade.PnL.Round(2)
	stats.AvgWhaleScore = round1(float64(scoreSum) / n)
	if stats.HighScoreTrades > 0 {
		stats.HighScoreWinRate = round1(float64(highWins) / float64(stats.HighScoreTrades) * 100)
	}
	return stats
}

func (s *Simulator) OpenPositions(ctx context.Context, limit int) ([]models.PaperTrade, error) {
	closed := false
	return s.Repo.ListPaperTrades(ctx, repository.ListPaperTradesParams{
		Limit:    limit,
		IsClosed: &closed,
		OrderBy:  "entry_time",
	})
}

func (s *Simulator) History(ctx context.Context, limit int) ([]models.PaperTrade, error) {
	closed := true
	return s.Repo.ListPaperTrades(ctx, repository.ListPaperTradesParams{
		Limit:    limit,
		IsClosed: &closed,
		OrderBy:  "exit_time",
	})
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Simulator) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
