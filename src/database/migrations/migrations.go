// package migrations
package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DataMigration tracks executed data migrations (like Django).
// Table name is fixed to avoid collisions with other models.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

func ensureDataMigrationsTable(db *gorm.DB) error {
	return db.AutoMigrate(&DataMigration{})
}

// RunOnce runs fn only if migrationID was not executed before.
// It records the migration as executed only after fn succeeds.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return fmt.Errorf("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	if err := ensureDataMigrationsTable(db); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var m DataMigration
		err := tx.First(&m, "id = ?", migrationID).Error
		if err == nil {
			// already applied
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}

		// execute migration work
		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}

		// record as applied
		rec := DataMigration{
			ID:        migrationID,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}

		return nil
	})
}

// Run executes all data migrations that go beyond schema auto-migrations.
// Append new migrations at the bottom with a stable unique id.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	if err := RunOnce(db, "00001_backfill_remote_status_shadow", backfillRemoteStatusShadow); err != nil {
		return err
	}

	if err := RunOnce(db, "00002_clear_highlight_on_terminal_orders", clearHighlightOnTerminalOrders); err != nil {
		return err
	}

	return nil
}

// backfillRemoteStatusShadow seeds remote_status for orders imported before
// the shadow column existed. The verbatim remote value is unknowable for
// those rows, so the local status is the best available stand-in.
func backfillRemoteStatusShadow(db *gorm.DB) error {
	return db.Exec(
		`UPDATE orders SET remote_status = status WHERE (remote_status IS NULL OR remote_status = '') AND external_id IS NOT NULL`,
	).Error
}

// clearHighlightOnTerminalOrders enforces the highlight lifecycle on rows
// written before the terminal-status rule was applied at import time.
func clearHighlightOnTerminalOrders(db *gorm.DB) error {
	return db.Exec(
		`UPDATE orders SET highlighted = false WHERE highlighted = true AND status IN ('cancelled', 'shipped', 'delivered')`,
	).Error
}
