// Package scoring turns fired detections into a bounded whale score and ranks
// the per-market candidates of a cycle.
package scoring

import (
	"math"
	"sort"
	"time"

	"whaletracker/internal/models"
	"whaletracker/internal/signal"
)

type Scorer struct {
	Weights map[models.SignalKind]float64
}

// NewScorer keys the configured weights by signal kind. Unknown keys are
// ignored.
func NewScorer(weights map[string]float64) *Scorer {
	out := make(map[models.SignalKind]float64, len(weights))
	for k, v := range weights {
		kind := models.SignalKind(k)
		if kind.Valid() {
			out[kind] = v
		}
	}
	return &Scorer{Weights: out}
}

func (s *Scorer) WeightSum() float64 {
	var sum float64
	for _, w := range s.Weights {
		sum += w
	}
	return sum
}

type Result struct {
	WhaleScore   int
	Confidence   models.Confidence
	SignalsFired []models.SignalKind
	// Breakdown is each kind's weighted contribution, rounded to 0.1.
	Breakdown map[models.SignalKind]float64
}

func (s *Scorer) Score(detections []signal.Detection) Result {
	if len(detections) == 0 {
		return Result{Confidence: models.ConfidenceNone, Breakdown: map[models.SignalKind]float64{}}
	}
	var total float64
	fired := make([]models.SignalKind, 0, len(detections))
	breakdown := make(map[models.SignalKind]float64, len(detections))
	for _, det := range detections {
		contribution := s.Weights[det.Kind] * Intensity(det)
		total += contribution
		fired = append(fired, det.Kind)
		breakdown[det.Kind] = math.Round(contribution*10) / 10
	}
	score := int(math.Floor(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return Result{
		WhaleScore:   score,
		Confidence:   Tier(score),
		SignalsFired: fired,
		Breakdown:    breakdown,
	}
}

// Intensity is the multiplier applied to a kind's weight.
func Intensity(det signal.Detection) float64 {
	if det.Threshold == 0 {
		return 1.0
	}
	switch det.Kind {
	case models.SignalVolumeSpike:
		return tier(det.Value/det.Threshold, 10, 7, 5, 0.7)
	case models.SignalSmartMoney, models.SignalLargeOrder:
		return tier(det.Value, 200000, 100000, 50000, 0.8)
	case models.SignalBookImbalance:
		return tier(det.Value, 0.90, 0.80, 0.70, 0.7)
	case models.SignalLiquidityDrain:
		return tier(det.Value, 60, 40, 20, 0.7)
	default:
		return 1.0
	}
}

func tier(v, high, mid, low, floor float64) float64 {
	switch {
	case v >= high:
		return 1.5
	case v >= mid:
		return 1.3
	case v >= low:
		return 1.0
	default:
		return floor
	}
}

func Tier(score int) models.Confidence {
	switch {
	case score >= 75:
		return models.ConfidenceHigh
	case score >= 50:
		return models.ConfidenceMedium
	case score >= 25:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}

// Candidate is a scored market waiting to become a recommendation.
type Candidate struct {
	MarketID  string
	Question  string
	Direction models.Direction
	Result    Result
	YesPrice  float64
	Volume    float64
	Liquidity float64
	ScoredAt  time.Time
}

// Rank keeps candidates scoring at least minScore, highest first with ties
// broken by the most recent, and returns at most max of them.
func Rank(candidates []Candidate, minScore, max int) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Result.WhaleScore >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Result.WhaleScore != out[j].Result.WhaleScore {
			return out[i].Result.WhaleScore > out[j].Result.WhaleScore
		}
		return out[i].ScoredAt.After(out[j].ScoredAt)
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
