package signal

import (
	"math"
	"time"

	"whaletracker/internal/marketdata"
	"whaletracker/internal/models"
)

// Detection is one fired detector result for a market in a cycle.
type Detection struct {
	Kind      models.SignalKind
	Value     float64
	Threshold float64
	// Hint is the side a directional detector points to. Empty otherwise.
	Hint models.Direction
	Meta map[string]any
}

// VolumeSpike compares the current volume with the mean of the prior
// observations. Fewer than two priors or a zero mean never fire.
func VolumeSpike(current models.Snapshot, priors []models.Snapshot, multiplier float64) (Detection, bool) {
	if len(priors) < 2 {
		return Detection{}, false
	}
	var sum float64
	for _, s := range priors {
		sum += s.Volume
	}
	avg := sum / float64(len(priors))
	if avg <= 0 {
		return Detection{}, false
	}
	ratio := current.Volume / avg
	if ratio < multiplier {
		return Detection{}, false
	}
	return Detection{
		Kind:      models.SignalVolumeSpike,
		Value:     ratio,
		Threshold: multiplier,
		Meta: map[string]any{
			"current_volume": current.Volume,
			"avg_volume":     avg,
			"prior_count":    len(priors),
		},
	}, true
}

// SmartMoney fires on heavy volume with a flat price against prev.
func SmartMoney(current models.Snapshot, prev *models.Snapshot, minVolume, maxChangePct float64) (Detection, bool) {
	if current.Volume < minVolume || prev == nil || prev.YesPrice <= 0 {
		return Detection{}, false
	}
	changePct := math.Abs(current.YesPrice-prev.YesPrice) / prev.YesPrice * 100
	if changePct > maxChangePct {
		return Detection{}, false
	}
	return Detection{
		Kind:      models.SignalSmartMoney,
		Value:     current.Volume,
		Threshold: minVolume,
		Meta: map[string]any{
			"volume":           current.Volume,
			"price_change_pct": round(changePct, 2),
			"current_price":    current.YesPrice,
			"prev_price":       prev.YesPrice,
		},
	}, true
}

// BookImbalance fires when the bid share of resting size is at or past
// threshold on either side. An empty book never fires.
func BookImbalance(current models.Snapshot, threshold float64) (Detection, bool) {
	total := current.TotalBuyVolume + current.TotalSellVolume
	if total <= 0 {
		return Detection{}, false
	}
	buyRatio := current.TotalBuyVolume / total
	meta := map[string]any{
		"buy_ratio":  round(buyRatio, 3),
		"sell_ratio": round(1-buyRatio, 3),
	}
	switch {
	case buyRatio >= threshold:
		meta["direction"] = string(models.DirectionYes)
		return Detection{Kind: models.SignalBookImbalance, Value: buyRatio, Threshold: threshold, Hint: models.DirectionYes, Meta: meta}, true
	case buyRatio <= 1-threshold:
		meta["direction"] = string(models.DirectionNo)
		return Detection{Kind: models.SignalBookImbalance, Value: 1 - buyRatio, Threshold: threshold, Hint: models.DirectionNo, Meta: meta}, true
	default:
		return Detection{}, false
	}
}

// LiquidityDrain fires when liquidity fell by at least thresholdPct since prev.
func LiquidityDrain(current models.Snapshot, prev *models.Snapshot, thresholdPct float64) (Detection, bool) {
	if prev == nil || prev.Liquidity <= 0 {
		return Detection{}, false
	}
	dropPct := (prev.Liquidity - current.Liquidity) / prev.Liquidity * 100
	if dropPct < thresholdPct {
		return Detection{}, false
	}
	return Detection{
		Kind:      models.SignalLiquidityDrain,
		Value:     dropPct,
		Threshold: thresholdPct,
		Meta: map[string]any{
			"current_liquidity": current.Liquidity,
			"prev_liquidity":    prev.Liquidity,
			"drain_pct":         round(dropPct, 1),
		},
	}, true
}

// LargeOrder reports the largest fill at or after since whose notional meets
// threshold.
func LargeOrder(trades []marketdata.Trade, since time.Time, threshold float64) (Detection, bool) {
	var (
		largest marketdata.Trade
		count   int
	)
	for _, tr := range trades {
		if tr.Timestamp.Before(since) || tr.Notional() < threshold {
			continue
		}
		count++
		if count == 1 || tr.Notional() > largest.Notional() {
			largest = tr
		}
	}
	if count == 0 {
		return Detection{}, false
	}
	var hint models.Direction
	switch largest.Side {
	case marketdata.SideBuy:
		hint = models.DirectionYes
	case marketdata.SideSell:
		hint = models.DirectionNo
	}
	return Detection{
		Kind:      models.SignalLargeOrder,
		Value:     largest.Notional(),
		Threshold: threshold,
		Hint:      hint,
		Meta: map[string]any{
			"trade_value":        largest.Notional(),
			"trade_size":         largest.Size,
			"trade_price":        largest.Price,
			"side":               largest.Side,
			"total_large_trades": count,
		},
	}, true
}

// InferDirection tallies the directional evidence of the fired detections.
func InferDirection(detections []Detection, yesPrice float64) models.Direction {
	var buy, sell float64
	for _, d := range detections {
		switch d.Kind {
		case models.SignalVolumeSpike:
			if yesPrice > 0.5 {
				buy++
			}
		case models.SignalSmartMoney:
			buy++
		case models.SignalBookImbalance, models.SignalLargeOrder:
			switch d.Hint {
			case models.DirectionYes:
				buy++
			case models.DirectionNo:
				sell++
			}
		case models.SignalLiquidityDrain:
			buy += 0.5
		}
	}
	switch {
	case buy > sell:
		return models.DirectionYes
	case sell > buy:
		return models.DirectionNo
	default:
		return models.DirectionNeutral
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
