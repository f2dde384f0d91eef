package models

import (
	"time"

	"gorm.io/datatypes"
)

// Recommendation is a directional suggestion for a market. At most one row per
// market is active; inactive rows are kept for history.
type Recommendation struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement"`
	MarketID string  `gorm:"type:varchar(100);not null;index"`
	Market   *Market `gorm:"foreignKey:MarketID;references:ID" json:",omitempty"`

	Direction    Direction      `gorm:"type:varchar(10);not null"`
	WhaleScore   int            `gorm:"not null;index"`
	Confidence   Confidence     `gorm:"type:varchar(20);not null"`
	SignalsFired datatypes.JSON `gorm:"type:jsonb"`
	Breakdown    datatypes.JSON `gorm:"type:jsonb"`

	CurrentPrice float64 `gorm:"not null;default:0"`
	Volume       float64 `gorm:"not null;default:0"`
	Liquidity    float64 `gorm:"not null;default:0"`

	IsActive  bool       `gorm:"not null;default:true;index"`
	ExpiresAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;index"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}
