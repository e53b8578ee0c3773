package database

import (
	"context"

	"gorm.io/gorm"
)

// Ping checks the sql connection behind db.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
