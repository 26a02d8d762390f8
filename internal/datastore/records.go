package datastore

import (
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"gorm.io/gorm"
)

// SaveMaintenanceRecord appends a completed maintenance event.
func (ds *DataStore) SaveMaintenanceRecord(record *MaintenanceRecord) error {
	if err := ds.DB.Create(record).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_maintenance_record").
			Context("machine_id", record.MachineID).
			Context("task_name", record.TaskName).
			Build()
	}
	return nil
}

// LastMaintenanceRecord returns the machine's most recent maintenance event
// across all tasks, or nil when none exists.
func (ds *DataStore) LastMaintenanceRecord(machineID string) (*MaintenanceRecord, error) {
	var record MaintenanceRecord
	err := ds.DB.Where("machine_id = ?", machineID).
		Order("completion_date DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "last_maintenance_record").
			Context("machine_id", machineID).
			Build()
	}
	return &record, nil
}

// MaintenanceHistory returns, per task, when that task was last performed
// and at what engine hours. Tasks never performed have no entry.
func (ds *DataStore) MaintenanceHistory(machineID string) (map[string]HistoryEntry, error) {
	var records []MaintenanceRecord
	err := ds.DB.Where("machine_id = ?", machineID).
		Order("completion_date").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "maintenance_history").
			Context("machine_id", machineID).
			Build()
	}

	// Records are ordered oldest first, so later entries overwrite earlier
	// ones and the map ends up holding the newest record per task.
	history := make(map[string]HistoryEntry, len(records))
	for i := range records {
		record := &records[i]
		history[record.TaskName] = HistoryEntry{
			LastServiceDate: record.CompletionDate,
			EngineHours:     record.CompletionHours,
		}
	}
	return history, nil
}
