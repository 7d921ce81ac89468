package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cleanupDuplicateValuations removes duplicate inventory_valuations rows
// before the unique steam_id64 index is added. Databases written before the
// index existed could hold several rows per account; the newest row wins.
// This runs BEFORE AutoMigrate to prevent constraint violations.
func cleanupDuplicateValuations(db *gorm.DB, log *zap.Logger) error {
	if !db.Migrator().HasTable("inventory_valuations") {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		keep := `SELECT MAX(id) FROM inventory_valuations GROUP BY steam_id64`

		if tx.Migrator().HasTable("inventory_valuation_items") {
			result := tx.Exec(`DELETE FROM inventory_valuation_items WHERE valuation_id NOT IN (` + keep + `)`)
			if result.Error != nil {
				return result.Error
			}
		}

		result := tx.Exec(`DELETE FROM inventory_valuations WHERE id NOT IN (` + keep + `)`)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Info("Cleaned up duplicate valuations", zap.Int64("rows", result.RowsAffected))
		}
		return nil
	})
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	return removeOrphanedItems(db, log)
}

// removeOrphanedItems deletes items whose header is gone. Rows like this are
// left behind when the header was deleted while foreign keys were off.
func removeOrphanedItems(db *gorm.DB, log *zap.Logger) error {
	result := db.Exec(`
		DELETE FROM inventory_valuation_items
		WHERE valuation_id NOT IN (SELECT id FROM inventory_valuations)
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Warn("Removed orphaned valuation items", zap.Int64("rows", result.RowsAffected))
	}
	return nil
}
