// Package poller runs the whale-tracking cycle: fetch markets, observe,
// detect, score, swap recommendations and run the paper-trade side effects.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whaletracker/internal/config"
	"whaletracker/internal/lock"
	"whaletracker/internal/marketdata"
	"whaletracker/internal/models"
	"whaletracker/internal/notify"
	"whaletracker/internal/paas"
	"whaletracker/internal/papertrade"
	"whaletracker/internal/recommendation"
	"whaletracker/internal/repository"
	"whaletracker/internal/risk"
	"whaletracker/internal/scoring"
	"whaletracker/internal/service"
	"whaletracker/internal/signal"
)

// ErrCycleRunning is returned when a cycle is already in flight in this
// process or, with a distributed locker, on another replica.
var ErrCycleRunning = errors.New("poll cycle already running")

type MarketStatus string

const (
	StatusProcessed MarketStatus = "processed"
	StatusSkipped   MarketStatus = "skipped"
	StatusFailed    MarketStatus = "failed"
)

// MarketResult is the outcome of one market's pipeline in a cycle.
type MarketResult struct {
	MarketID string       `json:"market_id"`
	Status   MarketStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Signals  int          `json:"signals"`
	Score    int          `json:"whale_score"`

	Candidate *scoring.Candidate `json:"-"`
}

type CycleReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Markets   int `json:"markets"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Active         int                        `json:"active_recommendations"`
	HighConfidence int                        `json:"high_confidence"`
	TradesOpened   int                        `json:"paper_trades_opened"`
	TradesRejected int                        `json:"paper_trades_rejected"`
	AlertsSent     int                        `json:"alerts_sent"`
	AutoClose      papertrade.AutoCloseResult `json:"auto_close"`
	Cleanup        *repository.CleanupResult  `json:"cleanup,omitempty"`
	Error          string                     `json:"error,omitempty"`

	Results []MarketResult `json:"results"`
}

type Poller struct {
	Provider        marketdata.Provider
	Repo            repository.Repository
	Detector        *signal.Detector
	Scorer          *scoring.Scorer
	Recommendations *recommendation.Manager
	PaperTrades     *papertrade.Simulator
	Risk            *risk.Guard
	Notifier        notify.Notifier
	Settings        *service.SystemSettingsService
	Logger          *zap.Logger

	// Locker guards the cycle across replicas. Nil keeps the guard in-process.
	Locker  lock.Locker
	LockKey string
	LockTTL time.Duration

	Config              config.PollerConfig
	MinScore            int
	HighConfidenceScore int
	MaxRecommendations  int
	StatsDays           int

	Now func() time.Time

	running     sync.Mutex
	mu          sync.RWMutex
	last        *CycleReport
	lastCleanup time.Time
}

// RunOnce executes one full cycle. Only one cycle runs at a time; a concurrent
// call returns ErrCycleRunning without doing any work.
func (p *Poller) RunOnce(ctx context.Context) (*CycleReport, error) {
	if p == nil || p.Provider == nil || p.Repo == nil || p.Scorer == nil || p.Recommendations == nil {
		return nil, fmt.Errorf("poller not configured")
	}
	if !p.running.TryLock() {
		return nil, ErrCycleRunning
	}
	defer p.running.Unlock()

	if p.Locker != nil {
		release, err := p.Locker.Acquire(ctx, p.lockKey(), p.lockTTL())
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				return nil, ErrCycleRunning
			}
			return nil, fmt.Errorf("acquire cycle lock: %w", err)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				p.logger().Warn("release cycle lock failed", zap.Error(err))
			}
		}()
	}

	report := &CycleReport{
		ID:        uuid.NewString(),
		StartedAt: p.now(),
		Results:   []MarketResult{},
	}
	err := p.cycle(ctx, report)
	report.FinishedAt = p.now()
	if err != nil {
		report.Error = err.Error()
	}
	p.mu.Lock()
	p.last = report
	p.mu.Unlock()

	log := p.logger().With(zap.String("cycle_id", report.ID))
	log.Info("poll cycle finished",
		zap.Int("markets", report.Markets),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("active", report.Active),
		zap.Int("high_confidence", report.HighConfidence),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		zap.Error(err),
	)
	paas.Audit(ctx, "whale_poll_cycle", auditLevel(err), map[string]any{
		"cycle_id":  report.ID,
		"markets":   report.Markets,
		"processed": report.Processed,
		"failed":    report.Failed,
		"active":    report.Active,
	})
	return report, err
}

// LastReport returns the most recent finished cycle, or nil before the first.
func (p *Poller) LastReport() *CycleReport {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	cp := *p.last
	return &cp
}

func (p *Poller) cycle(ctx context.Context, report *CycleReport) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout())
	markets, err := p.Provider.ActiveMarkets(fetchCtx, p.Config.MarketLimit, p.Config.MinMarketVolume)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	report.Markets = len(markets)
	if len(markets) == 0 {
		p.logger().Info("no active markets, cycle skipped")
		return nil
	}

	results := p.processMarkets(ctx, markets)
	report.Results = results
	candidates := make([]scoring.Candidate, 0, len(results))
	for _, r := range results {
		switch r.Status {
		case StatusProcessed:
			report.Processed++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
		if r.Candidate != nil {
			candidates = append(candidates, *r.Candidate)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ranked := scoring.Rank(candidates, p.MinScore, p.MaxRecommendations)
	active, err := p.Recommendations.Replace(ctx, ranked)
	if err != nil {
		return err
	}
	report.Active = len(active)

	byID := make(map[string]marketdata.Market, len(markets))
	prices := make(map[string]float64, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
		prices[m.ID] = m.YesPrice
	}

	high := recommendation.HighConfidence(active, p.HighConfidenceScore)
	report.HighConfidence = len(high)
	paperOn := p.enabled(ctx, service.FeaturePaperTrading, true)
	for _, rec := range high {
		alert := notify.Alert{
			RecommendationID: rec.ID,
			MarketID:         rec.MarketID,
			Question:         byID[rec.MarketID].Question,
			Slug:             byID[rec.MarketID].Slug,
			Direction:        rec.Direction,
			WhaleScore:       rec.WhaleScore,
			Confidence:       rec.Confidence,
			Signals:          recommendation.FiredKinds(rec),
			Price:            rec.CurrentPrice,
		}
		if paperOn && p.PaperTrades != nil && p.enabled(ctx, service.FeaturePaperAutoEnter, true) {
			if trade := p.enterPaperTrade(ctx, rec, report); trade != nil {
				alert.PaperTradeID = &trade.ID
			}
		}
		if p.Notifier != nil && p.enabled(ctx, service.FeatureAlerts, true) {
			if err := p.Notifier.SendAlert(ctx, alert); err != nil {
				p.logger().Warn("send alert failed", zap.String("market_id", rec.MarketID), zap.Error(err))
			} else {
				report.AlertsSent++
			}
		}
	}

	if paperOn && p.PaperTrades != nil {
		res, err := p.PaperTrades.AutoCloseExpired(ctx, prices)
		report.AutoClose = res
		if err != nil {
			return fmt.Errorf("auto-close paper trades: %w", err)
		}
	}

	return p.cleanupIfDue(ctx, report)
}

func (p *Poller) enterPaperTrade(ctx context.Context, rec models.Recommendation, report *CycleReport) *models.PaperTrade {
	bet := p.PaperTrades.BetSize
	if p.Risk != nil {
		decision, err := p.Risk.Check(ctx, rec.MarketID, bet)
		if err != nil {
			p.logger().Warn("paper risk check failed", zap.Uint64("recommendation_id", rec.ID), zap.Error(err))
			report.TradesRejected++
			return nil
		}
		if !decision.Allowed {
			p.logger().Info("paper trade rejected",
				zap.String("market_id", rec.MarketID),
				zap.String("reason", decision.Reason),
			)
			report.TradesRejected++
			return nil
		}
		bet = decision.BetSize
	}
	trade, err := p.PaperTrades.Enter(ctx, papertrade.EnterParams{
		RecommendationID: rec.ID,
		EntryPrice:       decimal.NewFromFloat(rec.CurrentPrice),
		WhaleScore:       rec.WhaleScore,
		BetSize:          bet,
	})
	if err != nil {
		p.logger().Warn("paper trade entry failed", zap.Uint64("recommendation_id", rec.ID), zap.Error(err))
		return nil
	}
	report.TradesOpened++
	return trade
}

func (p *Poller) processMarkets(ctx context.Context, markets []marketdata.Market) []MarketResult {
	results := make([]MarketResult, len(markets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for i, m := range markets {
		i, m := i, m
		g.Go(func() error {
			mctx, cancel := context.WithTimeout(gctx, p.marketTimeout())
			defer cancel()
			results[i] = p.processMarket(mctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Poller) processMarket(ctx context.Context, m marketdata.Market) MarketResult {
	res := MarketResult{MarketID: m.ID}
	log := p.logger().With(zap.String("market_id", m.ID))
	if m.ID == "" || m.YesTokenID == "" {
		res.Status = StatusSkipped
		res.Reason = "missing token ids"
		return res
	}

	if err := p.Repo.UpsertMarket(ctx, &models.Market{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Category:    m.Category,
		Slug:        m.Slug,
		YesTokenID:  m.YesTokenID,
		NoTokenID:   m.NoTokenID,
	}); err != nil {
		return failed(res, log, "upsert market", err)
	}

	obs, err := p.Provider.Observe(ctx, m)
	if err != nil {
		log.Warn("observe market failed", zap.Error(err))
		res.Status = StatusSkipped
		res.Reason = "observe: " + err.Error()
		return res
	}

	now := p.now()
	snap := models.Snapshot{
		MarketID:        m.ID,
		Timestamp:       now,
		Volume:          m.Volume,
		Liquidity:       m.Liquidity,
		YesPrice:        m.YesPrice,
		NoPrice:         1 - m.YesPrice,
		YesBid:          obs.YesBid,
		YesAsk:          obs.YesAsk,
		NoBid:           obs.NoBid,
		NoAsk:           obs.NoAsk,
		BuyOrdersCount:  obs.BuyOrdersCount,
		SellOrdersCount: obs.SellOrdersCount,
		TotalBuyVolume:  obs.TotalBuyVolume,
		TotalSellVolume: obs.TotalSellVolume,
	}
	if err := p.Repo.InsertSnapshot(ctx, &snap); err != nil {
		return failed(res, log, "insert snapshot", err)
	}

	var trades []marketdata.Trade
	if p.Detector != nil {
		since := now.Add(-p.Detector.Config.LargeOrderWindow)
		trades, err = p.Provider.RecentTrades(ctx, m, since)
		if err != nil {
			log.Warn("recent trades failed", zap.Error(err))
			trades = nil
		}
	}

	var detections []signal.Detection
	if p.Detector != nil {
		detections, err = p.Detector.Detect(ctx, snap, trades)
		if err != nil {
			return failed(res, log, "detect", err)
		}
	}
	if len(detections) > 0 {
		if err := p.Repo.InsertSignals(ctx, signal.ToSignals(m.ID, detections, now)); err != nil {
			return failed(res, log, "insert signals", err)
		}
	}
	res.Signals = len(detections)

	result := p.Scorer.Score(detections)
	res.Score = result.WhaleScore
	res.Status = StatusProcessed
	res.Candidate = &scoring.Candidate{
		MarketID:  m.ID,
		Question:  m.Question,
		Direction: signal.InferDirection(detections, m.YesPrice),
		Result:    result,
		YesPrice:  m.YesPrice,
		Volume:    m.Volume,
		Liquidity: m.Liquidity,
		ScoredAt:  now,
	}
	if len(detections) > 0 {
		log.Debug("market scored",
			zap.Int("signals", len(detections)),
			zap.Int("whale_score", result.WhaleScore),
			zap.String("direction", string(res.Candidate.Direction)),
		)
	}
	return res
}

func failed(res MarketResult, log *zap.Logger, step string, err error) MarketResult {
	log.Warn("market pipeline failed", zap.String("step", step), zap.Error(err))
	res.Status = StatusFailed
	res.Reason = step + ": " + err.Error()
	res.Candidate = nil
	return res
}

func (p *Poller) cleanupIfDue(ctx context.Context, report *CycleReport) error {
	if p.Config.RetentionDays <= 0 {
		return nil
	}
	now := p.now()
	p.mu.RLock()
	last := p.lastCleanup
	p.mu.RUnlock()
	if !last.IsZero() && now.Sub(last) < p.Config.CleanupInterval {
		return nil
	}
	cutoff := now.AddDate(0, 0, -p.Config.RetentionDays)
	res, err := p.Repo.CleanupBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention cleanup: %w", err)
	}
	p.mu.Lock()
	p.lastCleanup = now
	p.mu.Unlock()
	report.Cleanup = &res
	p.logger().Info("retention cleanup done",
		zap.Time("cutoff", cutoff),
		zap.Int64("snapshots", res.Snapshots),
		zap.Int64("signals", res.Signals),
		zap.Int64("recommendations", res.Recommendations),
	)
	return nil
}

// SendDigest pushes the lookback performance stats to the notifier.
func (p *Poller) SendDigest(ctx context.Context) error {
	if p == nil || p.PaperTrades == nil || p.Notifier == nil {
		return nil
	}
	if !p.enabled(ctx, service.FeatureAlerts, true) {
		return nil
	}
	stats, err := p.PaperTrades.PerformanceStats(ctx, p.statsDays())
	if err != nil {
		return err
	}
	return p.Notifier.SendDigest(ctx, stats)
}

func (p *Poller) enabled(ctx context.Context, key string, fallback bool) bool {
	if p.Settings == nil {
		return fallback
	}
	return p.Settings.IsEnabled(ctx, key, fallback)
}

func (p *Poller) concurrency() int {
	if p.Config.Concurrency > 0 {
		return p.Config.Concurrency
	}
	return 8
}

func (p *Poller) marketTimeout() time.Duration {
	if p.Config.MarketTimeout > 0 {
		return p.Config.MarketTimeout
	}
	return 30 * time.Second
}

func (p *Poller) fetchTimeout() time.Duration {
	if p.Config.FetchTimeout > 0 {
		return p.Config.FetchTimeout
	}
	return 30 * time.Second
}

func (p *Poller) lockKey() string {
	if p.LockKey != "" {
		return p.LockKey
	}
	return "whaletracker:poll_cycle"
}

func (p *Poller) lockTTL() time.Duration {
	if p.LockTTL > 0 {
		return p.LockTTL
	}
	return 10 * time.Minute
}

func (p *Poller) statsDays() int {
	if p.StatsDays > 0 {
		return p.StatsDays
	}
	return 7
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *Poller) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

func auditLevel(err error) string {
	if err != nil {
		return "error"
	}
	return "info"
}
