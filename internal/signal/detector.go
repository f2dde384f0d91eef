package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"whaletracker/internal/config"
	"whaletracker/internal/marketdata"
	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

// Detector runs the five detectors for one market against its stored history.
type Detector struct {
	Repo   repository.SnapshotRepository
	Logger *zap.Logger
	Config config.DetectorConfig
}

// Detect evaluates current, which must already be persisted, together with
// the fills in trades. It returns the fired detections in kind order. Only a
// history read failure is an error.
func (d *Detector) Detect(ctx context.Context, current models.Snapshot, trades []marketdata.Trade) ([]Detection, error) {
	if d == nil || d.Repo == nil {
		return nil, fmt.Errorf("detector repo not configured")
	}
	cfg := d.Config
	longWindow := cfg.VolumeSpikeWindow
	if cfg.ShortWindow > longWindow {
		longWindow = cfg.ShortWindow
	}
	history, err := d.Repo.ListSnapshots(ctx, current.MarketID, current.Timestamp.Add(-longWindow))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	priors := priorSnapshots(current, history)

	var out []Detection
	if det, ok := VolumeSpike(current, within(priors, current.Timestamp.Add(-cfg.VolumeSpikeWindow)), cfg.VolumeSpikeMultiplier); ok {
		out = append(out, det)
	}
	prev := latest(within(priors, current.Timestamp.Add(-cfg.ShortWindow)))
	if det, ok := SmartMoney(current, prev, cfg.SmartMoneyMinVolume, cfg.SmartMoneyMaxPriceChange); ok {
		out = append(out, det)
	}
	if det, ok := BookImbalance(current, cfg.BookImbalanceThreshold); ok {
		out = append(out, det)
	}
	if det, ok := LiquidityDrain(current, prev, cfg.LiquidityDrainThreshold); ok {
		out = append(out, det)
	}
	if det, ok := LargeOrder(trades, current.Timestamp.Add(-cfg.LargeOrderWindow), cfg.LargeOrderThreshold); ok {
		out = append(out, det)
	}

	if len(out) > 0 && d.Logger != nil {
		d.Logger.Info("signals detected",
			zap.String("market_id", current.MarketID),
			zap.Int("count", len(out)),
		)
	}
	return out, nil
}

// ToSignals builds the audit rows for detections.
func ToSignals(marketID string, detections []Detection, at time.Time) []models.Signal {
	out := make([]models.Signal, 0, len(detections))
	for _, det := range detections {
		meta := make(map[string]any, len(det.Meta)+1)
		for k, v := range det.Meta {
			meta[k] = v
		}
		if det.Hint != "" {
			meta["hint"] = string(det.Hint)
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			raw = []byte("{}")
		}
		out = append(out, models.Signal{
			MarketID:   marketID,
			SignalType: det.Kind,
			Value:      det.Value,
			Threshold:  det.Threshold,
			Metadata:   datatypes.JSON(raw),
			DetectedAt: at,
		})
	}
	return out
}

// priorSnapshots drops current and anything recorded after it. The result
// keeps the newest-first order of history.
func priorSnapshots(current models.Snapshot, history []models.Snapshot) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(history))
	for _, s := range history {
		if current.ID != 0 && s.ID == current.ID {
			continue
		}
		if !s.Timestamp.Before(current.Timestamp) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func within(items []models.Snapshot, since time.Time) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(items))
	for _, s := range items {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out
}

func latest(items []models.Snapshot) *models.Snapshot {
	var best *models.Snapshot
	for i := range items {
		if best == nil || items[i].Timestamp.After(best.Timestamp) {
			best = &items[i]
		}
	}
	return best
}
