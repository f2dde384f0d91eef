package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaperTrade is a simulated position opened from a high-confidence
// recommendation. Once IsClosed is set the row is never modified again.
type PaperTrade struct {
	ID               uint64  `gorm:"primaryKey;autoIncrement"`
	RecommendationID uint64  `gorm:"not null;index"`
	MarketID         string  `gorm:"type:varchar(100);not null;index"`
	Market           *Market `gorm:"foreignKey:MarketID;references:ID" json:",omitempty"`

	Direction  Direction       `gorm:"type:varchar(10);not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	EntryTime  time.Time       `gorm:"type:timestamptz;not null;index"`
	BetSize    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	WhaleScore int             `gorm:"not null"`

	ExitPrice *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ExitTime  *time.Time       `gorm:"type:timestamptz;index"`
	PnL       *decimal.Decimal `gorm:"column:pnl;type:numeric(30,10)"`
	IsClosed  bool             `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PaperTrade) TableName() string {
	return "paper_trades"
}
