package migrations

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// PrepareLegacyExternalIDColumn normalizes schemas that previously stored the
// remote order ID as a string so that AutoMigrate can safely create the
// bigint external_id column without failing to cast legacy values.
func PrepareLegacyExternalIDColumn(db *gorm.DB) error {
	columnType, exists, err := lookupColumnType(db, "orders", "external_id")
	if err != nil {
		return fmt.Errorf("inspect orders.external_id: %w", err)
	}

	if !exists || !isStringy(columnType) {
		return nil
	}

	// Keep rows whose value is numeric, drop the rest into a legacy column
	// so nothing is lost, then rebuild external_id as bigint.
	if err := db.Exec(`ALTER TABLE orders ADD COLUMN IF NOT EXISTS legacy_external_id varchar(255)`).Error; err != nil {
		return fmt.Errorf("add legacy_external_id: %w", err)
	}

	if err := db.Exec(`UPDATE orders SET legacy_external_id = external_id WHERE external_id IS NOT NULL AND external_id <> ''`).Error; err != nil {
		return fmt.Errorf("backfill legacy_external_id: %w", err)
	}

	if err := db.Exec(`ALTER TABLE orders DROP COLUMN external_id`).Error; err != nil {
		return fmt.Errorf("drop string external_id: %w", err)
	}

	if err := db.Exec(`ALTER TABLE orders ADD COLUMN external_id bigint`).Error; err != nil {
		return fmt.Errorf("add bigint external_id: %w", err)
	}

	if err := db.Exec(`UPDATE orders SET external_id = legacy_external_id::bigint WHERE legacy_external_id ~ '^[0-9]+$'`).Error; err != nil {
		return fmt.Errorf("restore numeric external_id values: %w", err)
	}

	return nil
}

func lookupColumnType(db *gorm.DB, table, column string) (dataType string, exists bool, err error) {
	row := db.Raw(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table,
		column,
	).Row()

	if scanErr := row.Scan(&dataType); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, scanErr
	}

	return dataType, true, nil
}

func isStringy(dataType string) bool {
	dataType = strings.ToLower(dataType)
	return strings.Contains(dataType, "char") || dataType == "text"
}
