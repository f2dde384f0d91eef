package recommendation

import (
	"context"
	"testing"
	"time"

	"whaletracker/internal/models"
	"whaletracker/internal/repository/memory"
	"whaletracker/internal/scoring"
)

func candidate(id string, score int) scoring.Candidate {
	return scoring.Candidate{
		MarketID:  id,
		Direction: models.DirectionYes,
		Result: scoring.Result{
			WhaleScore:   score,
			Confidence:   scoring.Tier(score),
			SignalsFired: []models.SignalKind{models.SignalVolumeSpike},
		},
		YesPrice: 0.6,
	}
}

func TestReplace_SwapsActiveSet(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Manager{Repo: repo, MinScore: 50, Hold: 24 * time.Hour, Now: func() time.Time { return now }}

	first, err := m.Replace(ctx, []scoring.Candidate{candidate("a", 80), candidate("b", 60)})
	if err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	if len(first) != 2 || first[0].ID == 0 {
		t.Fatalf("first=%+v want 2 rows with ids", first)
	}
	if first[0].ExpiresAt == nil || !first[0].ExpiresAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expires_at=%v", first[0].ExpiresAt)
	}

	second, err := m.Replace(ctx, []scoring.Candidate{candidate("c", 90), candidate("d", 10)})
	if err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	if len(second) != 1 || second[0].MarketID != "c" {
		t.Fatalf("second=%+v want only c", second)
	}
	active, err := repo.ListActiveRecommendations(ctx, 100)
	if err != nil {
		t.Fatalf("ListActiveRecommendations err=%v", err)
	}
	if len(active) != 1 || active[0].MarketID != "c" {
		t.Fatalf("active=%+v want only c", active)
	}
	if got := len(repo.Recommendations()); got != 3 {
		t.Fatalf("retained=%d want=3", got)
	}
	if kinds := FiredKinds(active[0]); len(kinds) != 1 || kinds[0] != models.SignalVolumeSpike {
		t.Fatalf("fired=%v", kinds)
	}
}

func TestReplace_EmptyRetiresEverything(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	m := &Manager{Repo: repo, MinScore: 50}
	if _, err := m.Replace(ctx, []scoring.Candidate{candidate("a", 70)}); err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	got, err := m.Replace(ctx, nil)
	if err != nil {
		t.Fatalf("Replace err=%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got=%v want empty", got)
	}
	active, _ := repo.ListActiveRecommendations(ctx, 100)
	if len(active) != 0 {
		t.Fatalf("active=%d want=0", len(active))
	}
	if recs := repo.Recommendations(); len(recs) != 1 || recs[0].IsActive {
		t.Fatalf("recs=%+v want one inactive row", recs)
	}
}

func TestHighConfidence(t *testing.T) {
	recs := []models.Recommendation{{WhaleScore: 74}, {WhaleScore: 75}, {WhaleScore: 99}}
	if got := HighConfidence(recs, 75); len(got) != 2 {
		t.Fatalf("len=%d want=2", len(got))
	}
}
