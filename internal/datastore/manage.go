package datastore

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/errors"
	"gorm.io/gorm"
)

// performAutoMigration migrates every table and logs what changed.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := getLogger().With("db_type", dbType)

	if debug {
		migrationLogger.Debug("Starting database migration", "connection", connectionInfo)
	}

	tableMappings := []struct {
		model any
		name  string
	}{
		{&Machine{}, "machines"},
		{&Baseline{}, "baselines"},
		{&BaselineSession{}, "baseline_sessions"},
		{&Alert{}, "alerts"},
		{&AudioPrediction{}, "audio_predictions"},
		{&Anomaly{}, "anomalies"},
		{&UsageLog{}, "usage_logs"},
		{&MaintenanceRecord{}, "maintenance_records"},
	}

	for _, table := range tableMappings {
		tableStart := time.Now()
		existed := db.Migrator().HasTable(table.model)

		if err := db.AutoMigrate(table.model); err != nil {
			enhancedErr := errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "auto_migrate_table").
				Context("db_type", dbType).
				Context("table", table.name).
				Build()
			migrationLogger.Error("Table migration failed",
				"table", table.name,
				"error", enhancedErr)
			return enhancedErr
		}

		if debug {
			action := "updated"
			if !existed {
				action = "created"
			}
			migrationLogger.Debug("Table migration completed",
				"table", table.name,
				"action", action,
				"duration_ms", time.Since(tableStart).Milliseconds())
		}
	}

	migrationLogger.Debug("Database migration completed",
		"tables_migrated", len(tableMappings),
		"total_duration_ms", time.Since(migrationStart).Milliseconds())

	return nil
}
