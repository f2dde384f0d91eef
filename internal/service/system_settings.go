package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"whaletracker/internal/config"
	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

const FeaturePrefix = "feature."

const (
	FeaturePoller         = "feature.poller"
	FeaturePaperTrading   = "feature.paper_trading"
	FeaturePaperAutoEnter = "feature.paper_auto_enter"
	FeatureAlerts         = "feature.alerts"
	FeatureTradeStream    = "feature.trade_stream"
)

var featureDescriptions = map[string]string{
	FeaturePoller:         "run the scheduled poll cycle",
	FeaturePaperTrading:   "record and auto-close paper trades",
	FeaturePaperAutoEnter: "open a paper trade for every high-confidence recommendation",
	FeatureAlerts:         "send high-confidence alerts and the performance digest",
	FeatureTradeStream:    "feed the trade tape from the market websocket",
}

// DefaultFeatureSwitches seeds switches from the static config. Stored values
// win once a switch exists.
func DefaultFeatureSwitches(cfg config.Config) map[string]bool {
	return map[string]bool{
		FeaturePoller:         cfg.Cron.Enabled,
		FeaturePaperTrading:   cfg.PaperTrading.Enabled,
		FeaturePaperAutoEnter: cfg.PaperTrading.AutoEnter,
		FeatureAlerts:         cfg.Telegram.Enabled || cfg.Webhook.Enabled,
		FeatureTradeStream:    cfg.TradeStream.Enabled,
	}
}

// Switch is the API view of one feature switch.
type Switch struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SystemSettingsService struct {
	Repo repository.Repository
}

func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context, defaults map[string]bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range defaults {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: featureDescriptions[key],
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reads a switch, falling back when it is missing, malformed or the
// store fails.
func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, strings.TrimSpace(key))
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: featureDescriptions[key],
		UpdatedAt:   time.Now().UTC(),
	}
	if existing, err := s.Repo.GetSystemSettingByKey(ctx, key); err == nil && existing != nil && existing.Description != "" {
		item.Description = existing.Description
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

func (s *SystemSettingsService) ListSwitches(ctx context.Context) ([]Switch, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	items, err := s.Repo.ListSystemSettings(ctx, FeaturePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Switch, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, Switch{
			Name:        strings.TrimPrefix(it.Key, FeaturePrefix),
			Key:         it.Key,
			Enabled:     enabled,
			Description: it.Description,
			UpdatedAt:   it.UpdatedAt,
		})
	}
	return out, nil
}

// KnownFeature reports whether key names one of the tracker's switches.
func KnownFeature(key string) bool {
	_, ok := featureDescriptions[key]
	return ok
}
