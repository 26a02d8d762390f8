package datastore

import (
	"github.com/patrickmn/go-cache"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"gorm.io/gorm"
)

// ActiveBaseline returns the machine's active baseline, or nil when the
// machine has none. Results are cached; writers invalidate on change.
func (ds *DataStore) ActiveBaseline(machineID string) (*Baseline, error) {
	if cached, found := ds.baselineCache.Get(machineID); found {
		if baseline, ok := cached.(*Baseline); ok {
			return baseline, nil
		}
	}

	var baseline Baseline
	err := ds.DB.Where("machine_id = ? AND is_active = ?", machineID, true).
		First(&baseline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "active_baseline").
			Context("machine_id", machineID).
			Build()
	}

	ds.baselineCache.Set(machineID, &baseline, cache.DefaultExpiration)
	return &baseline, nil
}

// ActivateBaseline stores a new baseline and makes it the machine's active
// one. Any previously active baseline is archived in the same transaction so
// at most one baseline per machine is ever active. A concurrent activation
// losing the race is retried once.
func (ds *DataStore) ActivateBaseline(baseline *Baseline) error {
	baseline.IsActive = true
	baseline.Status = BaselineActive

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = ds.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&Baseline{}).
				Where("machine_id = ? AND is_active = ?", baseline.MachineID, true).
				Updates(map[string]any{"is_active": false, "status": BaselineArchived}).Error; err != nil {
				return err
			}
			return tx.Create(baseline).Error
		})
		if err == nil {
			break
		}
		getLogger().Warn("Baseline activation failed, retrying",
			"machine_id", baseline.MachineID,
			"attempt", attempt+1,
			"error", err)
	}
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConflict).
			Context("operation", "activate_baseline").
			Context("machine_id", baseline.MachineID).
			Build()
	}

	ds.baselineCache.Delete(baseline.MachineID)
	return nil
}

// ReactivateBaseline makes an archived baseline active again, archiving the
// currently active one in the same transaction.
func (ds *DataStore) ReactivateBaseline(machineID string, baselineID uint) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var target Baseline
		if err := tx.Where("id = ? AND machine_id = ?", baselineID, machineID).
			First(&target).Error; err != nil {
			return err
		}

		if err := tx.Model(&Baseline{}).
			Where("machine_id = ? AND is_active = ?", machineID, true).
			Updates(map[string]any{"is_active": false, "status": BaselineArchived}).Error; err != nil {
			return err
		}

		return tx.Model(&Baseline{}).
			Where("id = ?", baselineID).
			Updates(map[string]any{"is_active": true, "status": BaselineActive}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Newf("baseline %d not found for machine %s", baselineID, machineID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("machine_id", machineID).
				Context("baseline_id", baselineID).
				Build()
		}
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "reactivate_baseline").
			Context("machine_id", machineID).
			Build()
	}

	ds.baselineCache.Delete(machineID)
	return nil
}

// DeleteActiveBaseline archives the machine's active baseline. It reports
// whether an active baseline existed. Archived baselines remain available
// for ReactivateBaseline.
func (ds *DataStore) DeleteActiveBaseline(machineID string) (bool, error) {
	result := ds.DB.Model(&Baseline{}).
		Where("machine_id = ? AND is_active = ?", machineID, true).
		Updates(map[string]any{"is_active": false, "status": BaselineArchived})
	if result.Error != nil {
		return false, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_active_baseline").
			Context("machine_id", machineID).
			Build()
	}

	ds.baselineCache.Delete(machineID)
	return result.RowsAffected > 0, nil
}

// ListBaselines returns all baselines recorded for a machine, newest first.
func (ds *DataStore) ListBaselines(machineID string) ([]Baseline, error) {
	var baselines []Baseline
	err := ds.DB.Where("machine_id = ?", machineID).
		Order("created_at DESC").
		Find(&baselines).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_baselines").
			Context("machine_id", machineID).
			Build()
	}
	return baselines, nil
}

// CollectingSession returns the machine's in-progress collection session, or
// nil when none is collecting.
func (ds *DataStore) CollectingSession(machineID string) (*BaselineSession, error) {
	var session BaselineSession
	err := ds.DB.Where("machine_id = ? AND status = ?", machineID, SessionCollecting).
		Order("started_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "collecting_session").
			Context("machine_id", machineID).
			Build()
	}
	return &session, nil
}

// SaveSession creates or updates a baseline collection session.
func (ds *DataStore) SaveSession(session *BaselineSession) error {
	if err := ds.DB.Save(session).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_session").
			Context("machine_id", session.MachineID).
			Build()
	}
	return nil
}
