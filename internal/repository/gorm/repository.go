package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var errNoDB = errors.New("gorm store: db unavailable")

// --- markets & snapshots ----------------------------------------------------

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"condition_id",
			"question",
			"category",
			"slug",
			"yes_token_id",
			"no_token_id",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := s.marketsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	var items []models.Market
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}
	var total int64
	if err := s.marketsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) marketsQuery(ctx context.Context, params repository.ListMarketsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Market{})
	if ids := cleanStrings(params.IDs); len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	return query
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, item *models.Snapshot) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListSnapshots(ctx context.Context, marketID string, since time.Time) ([]models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var items []models.Snapshot
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Where("timestamp >= ?", since).
		Order("timestamp desc").
		Order("id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetLatestSnapshot(ctx context.Context, marketID string) (*models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var item models.Snapshot
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("timestamp desc").
		Order("id desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListLatestSnapshots(ctx context.Context, marketIDs []string) ([]models.Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	ids := cleanStrings(marketIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Snapshot
	err := s.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (market_id) * FROM snapshots WHERE market_id IN ? ORDER BY market_id, timestamp DESC, id DESC`, ids).
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- signals ----------------------------------------------------------------

func (s *Store) InsertSignals(ctx context.Context, items []models.Signal) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(&items, 100).Error
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.Signal, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := s.signalsQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "detected_at")
	var items []models.Signal
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}
	var total int64
	if err := s.signalsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) signalsQuery(ctx context.Context, params repository.ListSignalsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Signal{})
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Type != nil && params.Type.Valid() {
		query = query.Where("signal_type = ?", *params.Type)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("detected_at >= ?", *params.Since)
	}
	return query
}

// --- recommendations --------------------------------------------------------

func (s *Store) ReplaceActiveRecommendations(ctx context.Context, items []models.Recommendation) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Recommendation{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].IsActive = true
		}
		return tx.Omit(clause.Associations).Create(&items).Error
	})
}

func (s *Store) ListActiveRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var items []models.Recommendation
	err := s.db.WithContext(ctx).
		Preload("Market").
		Where("is_active = ?", true).
		Order("whale_score desc").
		Order("created_at desc").
		Limit(normalizeLimit(limit, 10)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetRecommendationByID(ctx context.Context, id uint64) (*models.Recommendation, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Recommendation
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- paper trades -----------------------------------------------------------

func (s *Store) InsertPaperTrade(ctx context.Context, item *models.PaperTrade) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (s *Store) GetPaperTradeByID(ctx context.Context, id uint64) (*models.PaperTrade, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	if id == 0 {
		return nil, nil
	}
	var item models.PaperTrade
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ClosePaperTrade(ctx context.Context, params repository.ClosePaperTradeParams) (bool, error) {
	if s == nil || s.db == nil {
		return false, errNoDB
	}
	if params.ID == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.PaperTrade{}).
		Where("id = ?", params.ID).
		Where("is_closed = ?", false).
		Updates(map[string]any{
			"exit_price": params.ExitPrice,
			"exit_time":  params.ExitTime,
			"pnl":        params.PnL,
			"is_closed":  true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListPaperTrades(ctx context.Context, params repository.ListPaperTradesParams) ([]models.PaperTrade, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := s.paperTradesQuery(ctx, params).Preload("Market")
	query = applyOrder(query, params.OrderBy, params.Asc, "entry_time")
	var items []models.PaperTrade
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPaperTrades(ctx context.Context, params repository.ListPaperTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNoDB
	}
	var total int64
	if err := s.paperTradesQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) paperTradesQuery(ctx context.Context, params repository.ListPaperTradesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.PaperTrade{})
	if params.IsClosed != nil {
		query = query.Where("is_closed = ?", *params.IsClosed)
	}
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	return query
}

func (s *Store) ListOpenPaperTradesEnteredBefore(ctx context.Context, before time.Time) ([]models.PaperTrade, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var items []models.PaperTrade
	err := s.db.WithContext(ctx).
		Where("is_closed = ?", false).
		Where("entry_time <= ?", before).
		Order("entry_time asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListClosedPaperTradesSince(ctx context.Context, since time.Time) ([]models.PaperTrade, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var items []models.PaperTrade
	err := s.db.WithContext(ctx).
		Where("is_closed = ?", true).
		Where("exit_time >= ?", since).
		Order("exit_time desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- performance metrics ----------------------------------------------------

func (s *Store) UpsertPerformanceMetric(ctx context.Context, item *models.PerformanceMetric) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_trades",
			"winning_trades",
			"losing_trades",
			"win_rate",
			"total_pnl",
			"avg_whale_score",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListPerformanceMetrics(ctx context.Context, since time.Time) ([]models.PerformanceMetric, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	var items []models.PerformanceMetric
	if err := s.db.WithContext(ctx).Where("date >= ?", since).Order("date asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	if item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, prefix string) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, errNoDB
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		query = query.Where("key LIKE ?", prefix+"%")
	}
	var items []models.SystemSetting
	if err := query.Order("key asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- maintenance ------------------------------------------------------------

// CleanupBefore prunes observation history, detection audit rows and retired
// recommendations older than cutoff. Paper trades are kept.
func (s *Store) CleanupBefore(ctx context.Context, cutoff time.Time) (repository.CleanupResult, error) {
	var out repository.CleanupResult
	if s == nil || s.db == nil {
		return out, errNoDB
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("timestamp < ?", cutoff).Delete(&models.Snapshot{})
		if res.Error != nil {
			return res.Error
		}
		out.Snapshots = res.RowsAffected

		res = tx.Where("detected_at < ?", cutoff).Delete(&models.Signal{})
		if res.Error != nil {
			return res.Error
		}
		out.Signals = res.RowsAffected

		res = tx.Where("is_active = ?", false).Where("created_at < ?", cutoff).Delete(&models.Recommendation{})
		if res.Error != nil {
			return res.Error
		}
		out.Recommendations = res.RowsAffected
		return nil
	})
	return out, err
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNoDB
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

var _ repository.Repository = (*Store)(nil)
