package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceMetric is the daily roll-up of closed paper trades.
type PerformanceMetric struct {
	ID   uint64    `gorm:"primaryKey;autoIncrement"`
	Date time.Time `gorm:"type:date;not null;uniqueIndex"`

	TotalTrades   int `gorm:"not null;default:0"`
	WinningTrades int `gorm:"not null;default:0"`
	LosingTrades  int `gorm:"not null;default:0"`

	WinRate       float64         `gorm:"not null;default:0"`
	TotalPnL      decimal.Decimal `gorm:"column:total_pnl;type:numeric(30,10);not null;default:0"`
	AvgWhaleScore float64         `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}
