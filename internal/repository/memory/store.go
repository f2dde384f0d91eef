// Package memory is an in-process repository.Repository. It backs the
// db.driver=memory mode and the package tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	markets         map[string]models.Market
	snapshots       []models.Snapshot
	signals         []models.Signal
	recommendations []models.Recommendation
	trades          []models.PaperTrade
	metrics         map[string]models.PerformanceMetric
	settings        map[string]models.SystemSetting

	nextID uint64
}

func New() *Store {
	return &Store{
		markets:  map[string]models.Market{},
		metrics:  map[string]models.PerformanceMetric{},
		settings: map[string]models.SystemSetting{},
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.markets[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.markets[item.ID] = *item
	return nil
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.filterMarkets(params)
	sort.Slice(items, func(i, j int) bool {
		if params.Asc != nil && *params.Asc {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return page(items, params.Limit, params.Offset, 100), nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterMarkets(params))), nil
}

func (s *Store) filterMarkets(params repository.ListMarketsParams) []models.Market {
	want := map[string]struct{}{}
	for _, id := range params.IDs {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = struct{}{}
		}
	}
	out := make([]models.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if len(want) > 0 {
			if _, ok := want[m.ID]; !ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, item *models.Snapshot) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	s.snapshots = append(s.snapshots, *item)
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, marketID string, since time.Time) ([]models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Snapshot, 0)
	for _, snap := range s.snapshots {
		if snap.MarketID != marketID || snap.Timestamp.Before(since) {
			continue
		}
		out = append(out, snap)
	}
	sortSnapshotsDesc(out)
	return out, nil
}

func (s *Store) GetLatestSnapshot(ctx context.Context, marketID string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Snapshot
	for i := range s.snapshots {
		snap := s.snapshots[i]
		if snap.MarketID != marketID {
			continue
		}
		if latest == nil || newerSnapshot(snap, *latest) {
			latest = &snap
		}
	}
	return latest, nil
}

func (s *Store) ListLatestSnapshots(ctx context.Context, marketIDs []string) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, 0, len(marketIDs))
	for _, id := range marketIDs {
		snap, err := s.GetLatestSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			out = append(out, *snap)
		}
	}
	return out, nil
}

func (s *Store) InsertSignals(ctx context.Context, items []models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		items[i].ID = s.id()
		s.signals = append(s.signals, items[i])
	}
	return nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.filterSignals(params)
	asc := params.Asc != nil && *params.Asc
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return items[i].DetectedAt.Before(items[j].DetectedAt)
		}
		return items[i].DetectedAt.After(items[j].DetectedAt)
	})
	return page(items, params.Limit, params.Offset, 100), nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterSignals(params))), nil
}

func (s *Store) filterSignals(params repository.ListSignalsParams) []models.Signal {
	out := make([]models.Signal, 0)
	for _, sig := range s.signals {
		if params.MarketID != nil && *params.MarketID != "" && sig.MarketID != *params.MarketID {
			continue
		}
		if params.Type != nil && params.Type.Valid() && sig.SignalType != *params.Type {
			continue
		}
		if params.Since != nil && sig.DetectedAt.Before(*params.Since) {
			continue
		}
		out = append(out, sig)
	}
	return out
}

func (s *Store) ReplaceActiveRecommendations(ctx context.Context, items []models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recommendations {
		s.recommendations[i].IsActive = false
	}
	for i := range items {
		items[i].ID = s.id()
		items[i].IsActive = true
		row := items[i]
		row.Market = nil
		s.recommendations = append(s.recommendations, row)
	}
	return nil
}

func (s *Store) ListActiveRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Recommendation, 0)
	for _, rec := range s.recommendations {
		if !rec.IsActive {
			continue
		}
		if m, ok := s.markets[rec.MarketID]; ok {
			m := m
			rec.Market = &m
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WhaleScore != out[j].WhaleScore {
			return out[i].WhaleScore > out[j].WhaleScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, 0, 10), nil
}

func (s *Store) GetRecommendationByID(ctx context.Context, id uint64) (*models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.recommendations {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, nil
}

// Recommendations returns every stored recommendation, active or not.
func (s *Store) Recommendations() []models.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Recommendation(nil), s.recommendations...)
}

func (s *Store) InsertPaperTrade(ctx context.Context, item *models.PaperTrade) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	row := *item
	row.Market = nil
	s.trades = append(s.trades, row)
	return nil
}

func (s *Store) GetPaperTradeByID(ctx context.Context, id uint64) (*models.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trades {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *Store) ClosePaperTrade(ctx context.Context, params repository.ClosePaperTradeParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trades {
		t := &s.trades[i]
		if t.ID != params.ID {
			continue
		}
		if t.IsClosed {
			return false, nil
		}
		exitPrice := params.ExitPrice
		exitTime := params.ExitTime
		pnl := params.PnL
		t.ExitPrice = &exitPrice
		t.ExitTime = &exitTime
		t.PnL = &pnl
		t.IsClosed = true
		return true, nil
	}
	return false, nil
}

func (s *Store) ListPaperTrades(ctx context.Context, params repository.ListPaperTradesParams) ([]models.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.filterTrades(params)
	orderBy := strings.TrimSpace(params.OrderBy)
	asc := params.Asc != nil && *params.Asc
	key := func(t models.PaperTrade) time.Time {
		if orderBy == "exit_time" && t.ExitTime != nil {
			return *t.ExitTime
		}
		return t.EntryTime
	}
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return key(items[i]).Before(key(items[j]))
		}
		return key(items[i]).After(key(items[j]))
	})
	for i := range items {
		if m, ok := s.markets[items[i].MarketID]; ok {
			m := m
			items[i].Market = &m
		}
	}
	return page(items, params.Limit, params.Offset, 50), nil
}

func (s *Store) CountPaperTrades(ctx context.Context, params repository.ListPaperTradesParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterTrades(params))), nil
}

func (s *Store) filterTrades(params repository.ListPaperTradesParams) []models.PaperTrade {
	out := make([]models.PaperTrade, 0)
	for _, t := range s.trades {
		if params.IsClosed != nil && t.IsClosed != *params.IsClosed {
			continue
		}
		if params.MarketID != nil && *params.MarketID != "" && t.MarketID != *params.MarketID {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) ListOpenPaperTradesEnteredBefore(ctx context.Context, before time.Time) ([]models.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PaperTrade, 0)
	for _, t := range s.trades {
		if t.IsClosed || t.EntryTime.After(before) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out, nil
}

func (s *Store) ListClosedPaperTradesSince(ctx context.Context, since time.Time) ([]models.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PaperTrade, 0)
	for _, t := range s.trades {
		if !t.IsClosed || t.ExitTime == nil || t.ExitTime.Before(since) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExitTime.After(*out[j].ExitTime) })
	return out, nil
}

func (s *Store) UpsertPerformanceMetric(ctx context.Context, item *models.PerformanceMetric) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.Date.UTC().Format("2006-01-02")
	if existing, ok := s.metrics[key]; ok {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
	} else {
		item.ID = s.id()
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()
	s.metrics[key] = *item
	return nil
}

func (s *Store) ListPerformanceMetrics(ctx context.Context, since time.Time) ([]models.PerformanceMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PerformanceMetric, 0, len(s.metrics))
	for _, m := range s.metrics {
		if m.Date.Before(since) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if item == nil || strings.TrimSpace(item.Key) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Key = strings.TrimSpace(item.Key)
	if existing, ok := s.settings[item.Key]; ok {
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
	} else {
		item.ID = s.id()
	}
	s.settings[item.Key] = *item
	return nil
}

func (s *Store) ListSystemSettings(ctx context.Context, prefix string) ([]models.SystemSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SystemSetting, 0, len(s.settings))
	for key, item := range s.settings {
		if strings.HasPrefix(key, prefix) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) CleanupBefore(ctx context.Context, cutoff time.Time) (repository.CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out repository.CleanupResult

	snaps := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.Timestamp.Before(cutoff) {
			out.Snapshots++
			continue
		}
		snaps = append(snaps, snap)
	}
	s.snapshots = snaps

	sigs := s.signals[:0]
	for _, sig := range s.signals {
		if sig.DetectedAt.Before(cutoff) {
			out.Signals++
			continue
		}
		sigs = append(sigs, sig)
	}
	s.signals = sigs

	recs := s.recommendations[:0]
	for _, rec := range s.recommendations {
		if !rec.IsActive && rec.CreatedAt.Before(cutoff) {
			out.Recommendations++
			continue
		}
		recs = append(recs, rec)
	}
	s.recommendations = recs
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortSnapshotsDesc(items []models.Snapshot) {
	sort.SliceStable(items, func(i, j int) bool {
		return newerSnapshot(items[i], items[j])
	})
}

func newerSnapshot(a, b models.Snapshot) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func page[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ repository.Repository = (*Store)(nil)
