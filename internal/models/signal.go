package models

import (
	"time"

	"gorm.io/datatypes"
)

// Signal is the audit copy of a fired detection.
type Signal struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement"`
	MarketID   string     `gorm:"type:varchar(100);not null;index"`
	SignalType SignalKind `gorm:"type:varchar(50);not null;index"`

	Value     float64        `gorm:"not null"`
	Threshold float64        `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`

	DetectedAt time.Time `gorm:"type:timestamptz;not null;index"`
}

func (Signal) TableName() string {
	return "signals"
}
