package datastore

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/errors"
	"gorm.io/gorm"
)

// priorityRank orders alert priorities for deduplication, higher wins.
var priorityRank = map[string]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// PriorityRank returns the numeric rank of a priority, unknown priorities
// rank lowest.
func PriorityRank(priority string) int {
	return priorityRank[priority]
}

// resolvedStatuses are alert states that no longer block a new alert for the
// same task.
var resolvedStatuses = []string{StatusCompleted, StatusCancelled}

// UpsertAlert creates the alert unless an unresolved alert for the same
// machine and task already exists. An existing row is refreshed when the
// incoming priority ranks equal or higher, so a due alert can advance to
// overdue at the same priority; only a strictly lower-priority alert is
// dropped. Each (machine, task) pair carries at most one open alert. The
// surviving alert is returned.
func (ds *DataStore) UpsertAlert(alert *Alert) (*Alert, error) {
	var result *Alert
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var existing Alert
		err := tx.Where("machine_id = ? AND task_name = ? AND status NOT IN ?",
			alert.MachineID, alert.TaskName, resolvedStatuses).
			First(&existing).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := tx.Create(alert).Error; err != nil {
				return err
			}
			result = alert
			return nil
		}

		if PriorityRank(alert.Priority) < PriorityRank(existing.Priority) {
			result = &existing
			return nil
		}

		updates := map[string]any{
			"alert_type":             alert.AlertType,
			"priority":               alert.Priority,
			"status":                 alert.Status,
			"description":            alert.Description,
			"estimated_time_minutes": alert.EstimatedTimeMinutes,
			"source":                 alert.Source,
			"due_date":               alert.DueDate,
			"anomaly_score":          alert.AnomalyScore,
			"prediction_id":          alert.PredictionID,
		}
		if err := tx.Model(&Alert{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}

		var updated Alert
		if err := tx.First(&updated, existing.ID).Error; err != nil {
			return err
		}
		result = &updated
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_alert").
			Context("machine_id", alert.MachineID).
			Context("task_name", alert.TaskName).
			Build()
	}
	return result, nil
}

// UnresolvedAlerts returns the machine's open alerts, most urgent due date
// first.
func (ds *DataStore) UnresolvedAlerts(machineID string) ([]Alert, error) {
	var alerts []Alert
	err := ds.DB.Where("machine_id = ? AND status NOT IN ?", machineID, resolvedStatuses).
		Order("due_date").
		Find(&alerts).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "unresolved_alerts").
			Context("machine_id", machineID).
			Build()
	}
	return alerts, nil
}

// ResolveAlertsForTask marks all open alerts for a task as completed, returning
// how many alerts were resolved.
func (ds *DataStore) ResolveAlertsForTask(machineID, taskName string, resolvedAt time.Time) (int64, error) {
	result := ds.DB.Model(&Alert{}).
		Where("machine_id = ? AND task_name = ? AND status NOT IN ?",
			machineID, taskName, resolvedStatuses).
		Updates(map[string]any{"status": StatusCompleted, "resolved_at": resolvedAt})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "resolve_alerts").
			Context("machine_id", machineID).
			Context("task_name", taskName).
			Build()
	}
	return result.RowsAffected, nil
}
