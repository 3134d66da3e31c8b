package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	overlapConstraint = "bookings_no_overlap"
	externalIDIndex   = "uniq_bookings_property_external_id"
)

// Open connects with the pgx-backed gorm driver.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return db, nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the tables and the constraints that back the booking invariants:
// active bookings of one property never overlap and an external id is imported once.
func Migrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(&propertyModel{}, &bookingModel{}, &paymentModel{}, &outboxModel{}, &idempotencyModel{}); err != nil {
		return fmt.Errorf("postgres: automigrate: %w", err)
	}
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + overlapConstraint + `') THEN
				ALTER TABLE bookings ADD CONSTRAINT ` + overlapConstraint + `
					EXCLUDE USING gist (property_id WITH =, daterange(check_in, check_out, '[)') WITH &&)
					WHERE (status IN ('PENDING', 'CONFIRMED', 'CHECKED_IN'));
			END IF;
		END $$`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + externalIDIndex + ` ON bookings (property_id, external_id) WHERE external_id <> ''`,
	}
	for _, stmt := range statements {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
