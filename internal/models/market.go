package models

import "time"

// Market is a tracked Polymarket binary market.
type Market struct {
	ID          string `gorm:"primaryKey;type:varchar(100)"`
	ConditionID string `gorm:"type:varchar(100);index"`
	Question    string `gorm:"type:text;not null"`
	Category    string `gorm:"type:varchar(100)"`
	Slug        string `gorm:"type:text;index"`
	YesTokenID  string `gorm:"type:varchar(100)"`
	NoTokenID   string `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (Market) TableName() string {
	return "markets"
}
