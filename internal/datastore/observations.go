// observations.go persists audio analysis outputs: predictions and anomalies
package datastore

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// SavePrediction appends a processed-audio record.
func (ds *DataStore) SavePrediction(prediction *AudioPrediction) error {
	if err := ds.DB.Create(prediction).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_prediction").
			Context("machine_id", prediction.MachineID).
			Context("prediction_id", prediction.PredictionID).
			Build()
	}
	return nil
}

// RecentPredictions returns the machine's latest predictions, newest first.
func (ds *DataStore) RecentPredictions(machineID string, limit int) ([]AudioPrediction, error) {
	var predictions []AudioPrediction
	query := ds.DB.Where("machine_id = ?", machineID).Order("recorded_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&predictions).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "recent_predictions").
			Context("machine_id", machineID).
			Build()
	}
	return predictions, nil
}

// SaveAnomaly records a detected anomaly.
func (ds *DataStore) SaveAnomaly(anomaly *Anomaly) error {
	if err := ds.DB.Create(anomaly).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_anomaly").
			Context("machine_id", anomaly.MachineID).
			Build()
	}
	return nil
}

// UnhandledAnomaliesSince returns unhandled anomalies detected at or after
// the given time, newest first.
func (ds *DataStore) UnhandledAnomaliesSince(machineID string, since time.Time) ([]Anomaly, error) {
	var anomalies []Anomaly
	err := ds.DB.Where("machine_id = ? AND handled = ? AND created_at >= ?",
		machineID, false, since).
		Order("created_at DESC").
		Find(&anomalies).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "unhandled_anomalies").
			Context("machine_id", machineID).
			Build()
	}
	return anomalies, nil
}

// CountAnomaliesSince counts anomalies detected at or after the given time,
// handled or not. The health score penalizes recent anomalies regardless of
// operator acknowledgement.
func (ds *DataStore) CountAnomaliesSince(machineID string, since time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&Anomaly{}).
		Where("machine_id = ? AND created_at >= ?", machineID, since).
		Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count_anomalies").
			Context("machine_id", machineID).
			Build()
	}
	return count, nil
}

// MarkAnomalyHandled flags an anomaly as acknowledged by an operator.
func (ds *DataStore) MarkAnomalyHandled(id uint) error {
	result := ds.DB.Model(&Anomaly{}).Where("id = ?", id).Update("handled", true)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "mark_anomaly_handled").
			Context("anomaly_id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("anomaly %d not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("anomaly_id", id).
			Build()
	}
	return nil
}
