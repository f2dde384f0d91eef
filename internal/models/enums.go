package models

// SignalKind is one of the five whale detectors.
type SignalKind string

const (
	SignalVolumeSpike    SignalKind = "volume_spike"
	SignalSmartMoney     SignalKind = "smart_money"
	SignalBookImbalance  SignalKind = "book_imbalance"
	SignalLiquidityDrain SignalKind = "liquidity_drain"
	SignalLargeOrder     SignalKind = "large_order"
)

// SignalKinds lists every kind in display order.
func SignalKinds() []SignalKind {
	return []SignalKind{
		SignalVolumeSpike,
		SignalSmartMoney,
		SignalBookImbalance,
		SignalLiquidityDrain,
		SignalLargeOrder,
	}
}

func (k SignalKind) Valid() bool {
	switch k {
	case SignalVolumeSpike, SignalSmartMoney, SignalBookImbalance, SignalLiquidityDrain, SignalLargeOrder:
		return true
	default:
		return false
	}
}

// Label is the human readable name used in alerts.
func (k SignalKind) Label() string {
	switch k {
	case SignalVolumeSpike:
		return "Volume Spike"
	case SignalSmartMoney:
		return "Smart Money"
	case SignalBookImbalance:
		return "Order Book Imbalance"
	case SignalLiquidityDrain:
		return "Liquidity Drain"
	case SignalLargeOrder:
		return "Large Order"
	default:
		return string(k)
	}
}

type Direction string

const (
	DirectionYes     Direction = "YES"
	DirectionNo      Direction = "NO"
	DirectionNeutral Direction = "NEUTRAL"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionYes, DirectionNo, DirectionNeutral:
		return true
	default:
		return false
	}
}

type Confidence string

const (
	ConfidenceNone    Confidence = "NONE"
	ConfidenceVeryLow Confidence = "VERY_LOW"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceHigh    Confidence = "HIGH"
)
