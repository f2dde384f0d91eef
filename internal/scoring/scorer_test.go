package scoring

import (
	"testing"
	"time"

	"whaletracker/internal/models"
	"whaletracker/internal/signal"
)

func defaultScorer() *Scorer {
	return NewScorer(map[string]float64{
		"volume_spike":    30,
		"smart_money":     25,
		"book_imbalance":  20,
		"liquidity_drain": 15,
		"large_order":     10,
		"unknown":         99,
	})
}

func TestScore_EmptyIsNone(t *testing.T) {
	res := defaultScorer().Score(nil)
	if res.WhaleScore != 0 || res.Confidence != models.ConfidenceNone {
		t.Fatalf("score=%d confidence=%s want=0 NONE", res.WhaleScore, res.Confidence)
	}
}

func TestScore_AllMaxIsClampedTo100(t *testing.T) {
	dets := []signal.Detection{
		{Kind: models.SignalVolumeSpike, Value: 50, Threshold: 5},
		{Kind: models.SignalSmartMoney, Value: 250000, Threshold: 50000},
		{Kind: models.SignalBookImbalance, Value: 0.95, Threshold: 0.7},
		{Kind: models.SignalLiquidityDrain, Value: 70, Threshold: 20},
		{Kind: models.SignalLargeOrder, Value: 300000, Threshold: 50000},
	}
	res := defaultScorer().Score(dets)
	if res.WhaleScore != 100 || res.Confidence != models.ConfidenceHigh {
		t.Fatalf("score=%d confidence=%s want=100 HIGH", res.WhaleScore, res.Confidence)
	}
	if len(res.SignalsFired) != 5 {
		t.Fatalf("fired=%v want=5", res.SignalsFired)
	}
	if res.Breakdown[models.SignalVolumeSpike] != 45 {
		t.Fatalf("spike contribution=%v want=45", res.Breakdown[models.SignalVolumeSpike])
	}
}

func TestScore_Floors(t *testing.T) {
	// 20 * 1.3 + 15 * 0.7 = 36.5
	dets := []signal.Detection{
		{Kind: models.SignalBookImbalance, Value: 0.85, Threshold: 0.7},
		{Kind: models.SignalLiquidityDrain, Value: 10, Threshold: 20},
	}
	res := defaultScorer().Score(dets)
	if res.WhaleScore != 36 || res.Confidence != models.ConfidenceLow {
		t.Fatalf("score=%d confidence=%s want=36 LOW", res.WhaleScore, res.Confidence)
	}
	if res.Breakdown[models.SignalLiquidityDrain] != 10.5 {
		t.Fatalf("drain contribution=%v want=10.5", res.Breakdown[models.SignalLiquidityDrain])
	}
}

func TestIntensity_ZeroThreshold(t *testing.T) {
	if got := Intensity(signal.Detection{Kind: models.SignalSmartMoney, Value: 1e9}); got != 1.0 {
		t.Fatalf("intensity=%v want=1.0", got)
	}
}

func TestIntensity_VolumeSpikeUsesRatio(t *testing.T) {
	cases := []struct {
		value float64
		want  float64
	}{
		{50, 1.5},
		{35, 1.3},
		{25, 1.0},
		{24, 0.7},
	}
	for _, tc := range cases {
		got := Intensity(signal.Detection{Kind: models.SignalVolumeSpike, Value: tc.value, Threshold: 5})
		if got != tc.want {
			t.Fatalf("value=%v intensity=%v want=%v", tc.value, got, tc.want)
		}
	}
}

func TestTier(t *testing.T) {
	cases := map[int]models.Confidence{
		100: models.ConfidenceHigh,
		75:  models.ConfidenceHigh,
		74:  models.ConfidenceMedium,
		50:  models.ConfidenceMedium,
		25:  models.ConfidenceLow,
		24:  models.ConfidenceVeryLow,
		0:   models.ConfidenceVeryLow,
	}
	for score, want := range cases {
		if got := Tier(score); got != want {
			t.Fatalf("score=%d tier=%s want=%s", score, got, want)
		}
	}
}

func TestRank_FiltersSortsAndCaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{MarketID: "low", Result: Result{WhaleScore: 49}, ScoredAt: base},
		{MarketID: "old", Result: Result{WhaleScore: 80}, ScoredAt: base},
		{MarketID: "new", Result: Result{WhaleScore: 80}, ScoredAt: base.Add(time.Second)},
		{MarketID: "mid", Result: Result{WhaleScore: 60}, ScoredAt: base},
		{MarketID: "top", Result: Result{WhaleScore: 95}, ScoredAt: base},
	}
	got := Rank(cands, 50, 3)
	if len(got) != 3 {
		t.Fatalf("len=%d want=3", len(got))
	}
	want := []string{"top", "new", "old"}
	for i, id := range want {
		if got[i].MarketID != id {
			t.Fatalf("rank[%d]=%s want=%s", i, got[i].MarketID, id)
		}
	}
	if len(Rank(nil, 50, 10)) != 0 {
		t.Fatalf("empty input should rank to empty")
	}
}

func TestWeightSum(t *testing.T) {
	if got := defaultScorer().WeightSum(); got != 100 {
		t.Fatalf("weight sum=%v want=100", got)
	}
}
