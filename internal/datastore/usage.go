package datastore

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// SaveUsage appends a usage log entry.
func (ds *DataStore) SaveUsage(usage *UsageLog) error {
	if err := ds.DB.Create(usage).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_usage").
			Context("machine_id", usage.MachineID).
			Build()
	}
	return nil
}

// UsageSince returns usage entries dated at or after the given time, oldest
// first.
func (ds *DataStore) UsageSince(machineID string, since time.Time) ([]UsageLog, error) {
	var logs []UsageLog
	err := ds.DB.Where("machine_id = ? AND date >= ?", machineID, since).
		Order("date").
		Find(&logs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "usage_since").
			Context("machine_id", machineID).
			Build()
	}
	return logs, nil
}
