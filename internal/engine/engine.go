// Package engine runs the alerting workflows: schedule predictions, anomaly
// follow-ups, maintenance records, usage logging and machine health scoring.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
	"github.com/tractorcare/tractorcare-go/internal/schedule"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("engine")
	})
	return logger
}

// Notifier publishes alerts to an external channel. Publishing is best
// effort; failures are logged, never fatal.
type Notifier interface {
	PublishAlert(alert *datastore.Alert) error
}

// Engine coordinates the maintenance alerting workflows.
type Engine struct {
	Settings  *conf.Settings
	DS        datastore.Interface
	Predictor *schedule.Predictor
	Notifier  Notifier // optional
}

// New wires an engine from its dependencies.
func New(settings *conf.Settings, ds datastore.Interface, predictor *schedule.Predictor) *Engine {
	return &Engine{
		Settings:  settings,
		DS:        ds,
		Predictor: predictor,
	}
}

// anomalySweepWindow bounds how far back unhandled anomalies are swept into
// alerts during schedule evaluation.
const anomalySweepWindow = 30 * 24 * time.Hour

// GenerateAlerts evaluates the machine's maintenance schedule and upserts an
// alert for every task that is due or overdue, then sweeps unhandled
// anomalies from the last 30 days into audio alerts. Alerts deduplicate per
// task: an open alert is only replaced by a higher-priority one. The
// machine's open alerts after the run are returned.
func (e *Engine) GenerateAlerts(machineID string) ([]datastore.Alert, error) {
	machine, err := e.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}

	history, err := e.DS.MaintenanceHistory(machineID)
	if err != nil {
		return nil, err
	}

	predictions, err := e.Predictor.PredictAll(&machine, history)
	if err != nil {
		return nil, err
	}

	for i := range predictions {
		prediction := &predictions[i]
		alertType := datastore.AlertScheduleDue
		if prediction.Status == datastore.StatusOverdue {
			alertType = datastore.AlertScheduleOverdue
		}

		alert := &datastore.Alert{
			MachineID:            machineID,
			TaskName:             prediction.TaskName,
			AlertType:            alertType,
			Priority:             prediction.Priority,
			Status:               prediction.Status,
			Description:          prediction.Description,
			EstimatedTimeMinutes: prediction.EstimatedMinutes,
			Source:               prediction.Source,
			DueDate:              prediction.DueDate,
		}
		saved, err := e.DS.UpsertAlert(alert)
		if err != nil {
			return nil, err
		}
		e.publish(saved)
	}

	// Anomalies recorded since the last evaluation still need their
	// follow-up tasks on the schedule. Alerts raised at detection time
	// deduplicate here; marking the anomaly handled stops repeated sweeps.
	anomalies, err := e.DS.UnhandledAnomaliesSince(machineID, e.Predictor.Now().Add(-anomalySweepWindow))
	if err != nil {
		return nil, err
	}
	for i := range anomalies {
		anomaly := &anomalies[i]
		if _, err := e.raiseAudioAlerts(&machine, anomaly.AnomalyType, anomaly.AnomalyScore, anomaly.PredictionID); err != nil {
			return nil, err
		}
		if err := e.DS.MarkAnomalyHandled(anomaly.ID); err != nil {
			return nil, err
		}
	}

	if err := e.refreshHealth(machineID); err != nil {
		getLogger().Warn("Failed to refresh health status",
			"machine_id", machineID,
			"error", err)
	}

	return e.DS.UnresolvedAlerts(machineID)
}

// HandleAnomaly records a detected audio anomaly and raises alerts for the
// maintenance tasks associated with its type.
func (e *Engine) HandleAnomaly(machineID, anomalyType string, score float64, predictionID string) ([]datastore.Alert, error) {
	machine, err := e.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}

	anomaly := &datastore.Anomaly{
		MachineID:    machineID,
		PredictionID: predictionID,
		AnomalyType:  anomalyType,
		AnomalyScore: score,
		Confidence:   score,
		Description:  fmt.Sprintf("Audio analysis detected %s (score %.2f)", anomalyType, score),
	}
	if err := e.DS.SaveAnomaly(anomaly); err != nil {
		return nil, err
	}

	raised, err := e.raiseAudioAlerts(&machine, anomalyType, score, predictionID)
	if err != nil {
		return nil, err
	}

	if err := e.refreshHealth(machineID); err != nil {
		getLogger().Warn("Failed to refresh health status",
			"machine_id", machineID,
			"error", err)
	}

	getLogger().Info("Anomaly handled",
		"machine_id", machineID,
		"anomaly_type", anomalyType,
		"score", score,
		"alerts_raised", len(raised))
	return raised, nil
}

// raiseAudioAlerts upserts an alert for every maintenance task associated
// with the anomaly type and publishes the results.
func (e *Engine) raiseAudioAlerts(machine *datastore.Machine, anomalyType string, score float64, predictionID string) ([]datastore.Alert, error) {
	predictions, err := e.Predictor.AudioTriggeredAlerts(machine, anomalyType, score)
	if err != nil {
		return nil, err
	}

	var raised []datastore.Alert
	for i := range predictions {
		prediction := &predictions[i]
		alert := &datastore.Alert{
			MachineID:            machine.MachineID,
			TaskName:             prediction.TaskName,
			AlertType:            datastore.AlertAudioAnomaly,
			Priority:             prediction.Priority,
			Status:               prediction.Status,
			Description:          prediction.Description,
			EstimatedTimeMinutes: prediction.EstimatedMinutes,
			Source:               prediction.Source,
			DueDate:              prediction.DueDate,
			AnomalyScore:         &score,
			PredictionID:         predictionID,
		}
		saved, err := e.DS.UpsertAlert(alert)
		if err != nil {
			return nil, err
		}
		raised = append(raised, *saved)
		e.publish(saved)
	}
	return raised, nil
}

// RecordMaintenance logs a completed task, resolves its open alerts and
// advances the engine-hours clock when the completion hours are ahead of it.
func (e *Engine) RecordMaintenance(record *datastore.MaintenanceRecord) error {
	machine, err := e.DS.GetMachine(record.MachineID)
	if err != nil {
		return err
	}

	// The task must exist in the machine's schedule.
	if _, err := e.Predictor.Catalog.Task(machine.Model, record.TaskName); err != nil {
		return err
	}

	if record.CompletionDate.IsZero() {
		record.CompletionDate = time.Now()
	}
	if record.CompletionHours <= 0 {
		record.CompletionHours = machine.EngineHours
	}

	if err := e.DS.SaveMaintenanceRecord(record); err != nil {
		return err
	}

	resolved, err := e.DS.ResolveAlertsForTask(record.MachineID, record.TaskName, record.CompletionDate)
	if err != nil {
		return err
	}

	if record.CompletionHours > machine.EngineHours {
		if _, err := e.DS.UpdateEngineHours(record.MachineID, record.CompletionHours); err != nil {
			return err
		}
	}

	if err := e.refreshHealth(record.MachineID); err != nil {
		getLogger().Warn("Failed to refresh health status",
			"machine_id", record.MachineID,
			"error", err)
	}

	getLogger().Info("Maintenance recorded",
		"machine_id", record.MachineID,
		"task_name", record.TaskName,
		"alerts_resolved", resolved)
	return nil
}

// LogUsage advances the machine's engine hours and appends a usage entry.
// The start hours come from the machine's current clock.
func (e *Engine) LogUsage(machineID string, date time.Time, endHours float64, notes string) (*datastore.UsageLog, error) {
	machine, err := e.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}
	if endHours < machine.EngineHours {
		return nil, errors.Newf("end hours %.1f below current engine hours %.1f",
			endHours, machine.EngineHours).
			Component("engine").
			Category(errors.CategoryValidation).
			Context("machine_id", machineID).
			Build()
	}

	if _, err := e.DS.UpdateEngineHours(machineID, endHours); err != nil {
		return nil, err
	}

	if date.IsZero() {
		date = time.Now()
	}
	usage := &datastore.UsageLog{
		MachineID:  machineID,
		Date:       date,
		StartHours: machine.EngineHours,
		EndHours:   endHours,
		HoursUsed:  endHours - machine.EngineHours,
		Notes:      notes,
	}
	if err := e.DS.SaveUsage(usage); err != nil {
		return nil, err
	}
	return usage, nil
}

// UsageStats summarizes logged usage over a window.
type UsageStats struct {
	MachineID   string
	Entries     int
	TotalHours  float64
	DailyAvg    float64
	WindowStart time.Time
}

// UsageSummary aggregates the machine's usage entries since the given time.
func (e *Engine) UsageSummary(machineID string, since time.Time) (*UsageStats, error) {
	logs, err := e.DS.UsageSince(machineID, since)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{MachineID: machineID, WindowStart: since, Entries: len(logs)}
	for i := range logs {
		stats.TotalHours += logs[i].HoursUsed
	}
	days := e.Predictor.Now().Sub(since).Hours() / 24
	if days >= 1 {
		stats.DailyAvg = stats.TotalHours / days
	} else {
		stats.DailyAvg = stats.TotalHours
	}
	return stats, nil
}

func (e *Engine) publish(alert *datastore.Alert) {
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.PublishAlert(alert); err != nil {
		getLogger().Warn("Failed to publish alert",
			"machine_id", alert.MachineID,
			"task_name", alert.TaskName,
			"error", err)
	}
}
