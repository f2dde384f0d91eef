package db

import (
	"whaletracker/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.Snapshot{},
		&models.Signal{},
		&models.Recommendation{},
		&models.PaperTrade{},
		&models.PerformanceMetric{},
		&models.SystemSetting{},
	)
}
