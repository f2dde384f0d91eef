package models

import "time"

// Snapshot is one immutable observation of a market. Rows are append-only and
// removed only by retention cleanup.
type Snapshot struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	MarketID  string    `gorm:"type:varchar(100);not null;index:idx_snapshots_market_ts,priority:1"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;index:idx_snapshots_market_ts,priority:2;index"`

	Volume    float64 `gorm:"not null;default:0"`
	Liquidity float64 `gorm:"not null;default:0"`
	YesPrice  float64 `gorm:"not null;default:0"`
	NoPrice   float64 `gorm:"not null;default:0"`

	YesBid *float64
	YesAsk *float64
	NoBid  *float64
	NoAsk  *float64

	BuyOrdersCount  int     `gorm:"not null;default:0"`
	SellOrdersCount int     `gorm:"not null;default:0"`
	TotalBuyVolume  float64 `gorm:"not null;default:0"`
	TotalSellVolume float64 `gorm:"not null;default:0"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}
