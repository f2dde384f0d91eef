package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"whaletracker/internal/models"
)

// SnapshotRepository is the append-only observation history.
type SnapshotRepository interface {
	UpsertMarket(ctx context.Context, item *models.Market) error
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)

	InsertSnapshot(ctx context.Context, item *models.Snapshot) error
	// ListSnapshots returns observations for a market at or after since,
	// newest first.
	ListSnapshots(ctx context.Context, marketID string, since time.Time) ([]models.Snapshot, error)
	GetLatestSnapshot(ctx context.Context, marketID string) (*models.Snapshot, error)
	ListLatestSnapshots(ctx context.Context, marketIDs []string) ([]models.Snapshot, error)
}

// Repository is the full persistence surface used by the tracker.
type Repository interface {
	SnapshotRepository

	InsertSignals(ctx context.Context, items []models.Signal) error
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)
	CountSignals(ctx context.Context, params ListSignalsParams) (int64, error)

	// ReplaceActiveRecommendations deactivates every active recommendation and
	// inserts items as the new active set in one transaction. IDs are written
	// back into items.
	ReplaceActiveRecommendations(ctx context.Context, items []models.Recommendation) error
	ListActiveRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error)
	GetRecommendationByID(ctx context.Context, id uint64) (*models.Recommendation, error)

	InsertPaperTrade(ctx context.Context, item *models.PaperTrade) error
	GetPaperTradeByID(ctx context.Context, id uint64) (*models.PaperTrade, error)
	// ClosePaperTrade closes an open trade. It reports false when the trade
	// was already closed or does not exist.
	ClosePaperTrade(ctx context.Context, params ClosePaperTradeParams) (bool, error)
	ListPaperTrades(ctx context.Context, params ListPaperTradesParams) ([]models.PaperTrade, error)
	CountPaperTrades(ctx context.Context, params ListPaperTradesParams) (int64, error)
	// ListOpenPaperTradesEnteredBefore returns every open trade with
	// entry_time <= before, oldest first.
	ListOpenPaperTradesEnteredBefore(ctx context.Context, before time.Time) ([]models.PaperTrade, error)
	// ListClosedPaperTradesSince returns every closed trade with
	// exit_time >= since.
	ListClosedPaperTradesSince(ctx context.Context, since time.Time) ([]models.PaperTrade, error)

	UpsertPerformanceMetric(ctx context.Context, item *models.PerformanceMetric) error
	ListPerformanceMetrics(ctx context.Context, since time.Time) ([]models.PerformanceMetric, error)

	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	ListSystemSettings(ctx context.Context, prefix string) ([]models.SystemSetting, error)

	CleanupBefore(ctx context.Context, cutoff time.Time) (CleanupResult, error)
	Ping(ctx context.Context) error
}

type ListMarketsParams struct {
	Limit   int
	Offset  int
	IDs     []string
	OrderBy string
	Asc     *bool
}

type ListSignalsParams struct {
	Limit    int
	Offset   int
	MarketID *string
	Type     *models.SignalKind
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListPaperTradesParams struct {
	Limit    int
	Offset   int
	IsClosed *bool
	MarketID *string
	OrderBy  string
	Asc      *bool
}

type ClosePaperTradeParams struct {
	ID        uint64
	ExitPrice decimal.Decimal
	ExitTime  time.Time
	PnL       decimal.Decimal
}

type CleanupResult struct {
	Snapshots       int64 `json:"snapshots"`
	Signals         int64 `json:"signals"`
	Recommendations int64 `json:"recommendations"`
}
