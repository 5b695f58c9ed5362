package db

import (
	types "github.com/yungbote/newsreel-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Video{},
		&types.VideoScript{},
		&types.GeneratedAsset{},
		&types.PolicyRun{},
		&types.CostLogEntry{},
	)
}
