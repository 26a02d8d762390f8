package datastore

import (
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"gorm.io/gorm"
)

// SaveMachine registers a new machine. MachineID must be unique.
func (ds *DataStore) SaveMachine(machine *Machine) error {
	if machine.MachineID == "" {
		return errors.Newf("machine id is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := ds.DB.Create(machine).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_machine").
			Context("machine_id", machine.MachineID).
			Build()
	}
	return nil
}

// GetMachine returns the machine with the given external identifier.
func (ds *DataStore) GetMachine(machineID string) (Machine, error) {
	var machine Machine
	err := ds.DB.Where("machine_id = ?", machineID).First(&machine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Machine{}, errors.Newf("machine %s not found", machineID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("machine_id", machineID).
				Build()
		}
		return Machine{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_machine").
			Context("machine_id", machineID).
			Build()
	}
	return machine, nil
}

// ListMachines returns all registered machines ordered by external identifier.
func (ds *DataStore) ListMachines() ([]Machine, error) {
	var machines []Machine
	if err := ds.DB.Order("machine_id").Find(&machines).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_machines").
			Build()
	}
	return machines, nil
}

// UpdateEngineHours sets the machine's engine hours. Engine hours never go
// backwards; the update is conditional so a stale writer cannot rewind them.
func (ds *DataStore) UpdateEngineHours(machineID string, newHours float64) (Machine, error) {
	if newHours < 0 {
		return Machine{}, errors.Newf("engine hours must not be negative").
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("machine_id", machineID).
			Context("engine_hours", newHours).
			Build()
	}

	result := ds.DB.Model(&Machine{}).
		Where("machine_id = ? AND engine_hours <= ?", machineID, newHours).
		Update("engine_hours", newHours)
	if result.Error != nil {
		return Machine{}, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_engine_hours").
			Context("machine_id", machineID).
			Build()
	}

	machine, err := ds.GetMachine(machineID)
	if err != nil {
		return Machine{}, err
	}

	if result.RowsAffected == 0 {
		// Machine exists but the update did not apply, so the stored
		// hours are higher than the requested value.
		return machine, errors.Newf("engine hours cannot decrease: have %.1f, got %.1f",
			machine.EngineHours, newHours).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("machine_id", machineID).
			Context("current_hours", machine.EngineHours).
			Context("requested_hours", newHours).
			Build()
	}
	return machine, nil
}

// SetBaselineStatus updates the machine-level baseline progress marker.
func (ds *DataStore) SetBaselineStatus(machineID, status string) error {
	return ds.updateMachineField(machineID, "baseline_status", status)
}

// SetHealthStatus updates the machine's cached health band.
func (ds *DataStore) SetHealthStatus(machineID, status string) error {
	return ds.updateMachineField(machineID, "health_status", status)
}

func (ds *DataStore) updateMachineField(machineID, column string, value any) error {
	result := ds.DB.Model(&Machine{}).
		Where("machine_id = ?", machineID).
		Update(column, value)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_machine_field").
			Context("machine_id", machineID).
			Context("column", column).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("machine %s not found", machineID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("machine_id", machineID).
			Build()
	}
	return nil
}
