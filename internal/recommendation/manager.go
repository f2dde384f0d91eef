// Package recommendation owns the active recommendation set.
package recommendation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"whaletracker/internal/models"
	"whaletracker/internal/paas"
	"whaletracker/internal/repository"
	"whaletracker/internal/scoring"
)

type Manager struct {
	Repo   repository.Repository
	Logger *zap.Logger

	MinScore int
	// Hold stamps ExpiresAt on new rows. Zero leaves it empty.
	Hold time.Duration
	Now  func() time.Time
}

// Replace retires every active recommendation and activates candidates in a
// single store transaction. Candidates under MinScore are dropped first. The
// new active rows are returned with their IDs.
func (m *Manager) Replace(ctx context.Context, candidates []scoring.Candidate) ([]models.Recommendation, error) {
	if m == nil || m.Repo == nil {
		return nil, fmt.Errorf("recommendation repo not configured")
	}
	now := m.now()
	items := make([]models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if c.Result.WhaleScore < m.MinScore {
			continue
		}
		items = append(items, m.build(c, now))
	}
	if err := m.Repo.ReplaceActiveRecommendations(ctx, items); err != nil {
		return nil, fmt.Errorf("replace active recommendations: %w", err)
	}
	paas.Audit(ctx, "whale_recommendations_replaced", "info", map[string]any{
		"active":     len(items),
		"candidates": len(candidates),
	})
	if m.Logger != nil {
		m.Logger.Info("recommendations replaced",
			zap.Int("active", len(items)),
			zap.Int("candidates", len(candidates)),
		)
	}
	return items, nil
}

func (m *Manager) build(c scoring.Candidate, now time.Time) models.Recommendation {
	fired, _ := json.Marshal(c.Result.SignalsFired)
	breakdown, _ := json.Marshal(c.Result.Breakdown)
	rec := models.Recommendation{
		MarketID:     c.MarketID,
		Direction:    c.Direction,
		WhaleScore:   c.Result.WhaleScore,
		Confidence:   c.Result.Confidence,
		SignalsFired: datatypes.JSON(fired),
		Breakdown:    datatypes.JSON(breakdown),
		CurrentPrice: c.YesPrice,
		Volume:       c.Volume,
		Liquidity:    c.Liquidity,
		IsActive:     true,
		CreatedAt:    now,
	}
	if m.Hold > 0 {
		exp := now.Add(m.Hold)
		rec.ExpiresAt = &exp
	}
	return rec
}

// HighConfidence filters recs to those scoring at least threshold.
func HighConfidence(recs []models.Recommendation, threshold int) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.WhaleScore >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// FiredKinds decodes the stored fired-signal list.
func FiredKinds(rec models.Recommendation) []models.SignalKind {
	var out []models.SignalKind
	if len(rec.SignalsFired) == 0 {
		return out
	}
	_ = json.Unmarshal(rec.SignalsFired, &out)
	return out
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}
