package engine

import (
	"time"

	"github.com/tractorcare/tractorcare-go/internal/datastore"
)

// Health score penalties. The anomaly penalty is capped so a burst of
// detections cannot zero out an otherwise maintained machine on its own.
const (
	penaltyOverdueCritical = 20
	penaltyOverdueHigh     = 10
	penaltyOverdueOther    = 5
	penaltyPerAnomaly      = 5
	anomalyPenaltyCap      = 30

	anomalyWindow = 7 * 24 * time.Hour
)

// HealthReport is a machine health snapshot.
type HealthReport struct {
	MachineID       string
	Score           int
	Status          string
	OverdueAlerts   int
	OpenAlerts      int
	RecentAnomalies int64
}

// HealthScore computes the machine's current health from its open alerts
// and recent anomalies. The score starts at 100 and is clamped to [0, 100].
func (e *Engine) HealthScore(machineID string) (*HealthReport, error) {
	alerts, err := e.DS.UnresolvedAlerts(machineID)
	if err != nil {
		return nil, err
	}

	now := e.Predictor.Now()
	anomalies, err := e.DS.CountAnomaliesSince(machineID, now.Add(-anomalyWindow))
	if err != nil {
		return nil, err
	}

	score := 100
	overdue := 0
	for i := range alerts {
		alert := &alerts[i]
		if alert.Status != datastore.StatusOverdue {
			continue
		}
		overdue++
		switch alert.Priority {
		case datastore.PriorityCritical:
			score -= penaltyOverdueCritical
		case datastore.PriorityHigh:
			score -= penaltyOverdueHigh
		default:
			score -= penaltyOverdueOther
		}
	}

	anomalyPenalty := int(anomalies) * penaltyPerAnomaly
	if anomalyPenalty > anomalyPenaltyCap {
		anomalyPenalty = anomalyPenaltyCap
	}
	score -= anomalyPenalty

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &HealthReport{
		MachineID:       machineID,
		Score:           score,
		Status:          HealthStatusFor(score),
		OverdueAlerts:   overdue,
		OpenAlerts:      len(alerts),
		RecentAnomalies: anomalies,
	}, nil
}

// HealthStatusFor bands a health score.
func HealthStatusFor(score int) string {
	switch {
	case score >= 90:
		return datastore.HealthExcellent
	case score >= 75:
		return datastore.HealthGood
	case score >= 60:
		return datastore.HealthFair
	case score >= 40:
		return datastore.HealthPoor
	default:
		return datastore.HealthCritical
	}
}

// refreshHealth recomputes the health band and caches it on the machine row.
func (e *Engine) refreshHealth(machineID string) error {
	report, err := e.HealthScore(machineID)
	if err != nil {
		return err
	}
	return e.DS.SetHealthStatus(machineID, report.Status)
}

// MachineSummary is the full per-machine status view.
type MachineSummary struct {
	Machine               datastore.Machine
	Health                *HealthReport
	Alerts                []datastore.Alert
	AlertsByPriority      map[string]int
	TotalEstimatedMinutes int
	LastMaintenance       *time.Time
}

// Summary collects the machine record, health report, open alerts with
// their total estimated workshop time, and the last maintenance date.
func (e *Engine) Summary(machineID string) (*MachineSummary, error) {
	machine, err := e.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}
	health, err := e.HealthScore(machineID)
	if err != nil {
		return nil, err
	}
	alerts, err := e.DS.UnresolvedAlerts(machineID)
	if err != nil {
		return nil, err
	}

	summary := &MachineSummary{
		Machine:          machine,
		Health:           health,
		Alerts:           alerts,
		AlertsByPriority: make(map[string]int),
	}
	for i := range alerts {
		summary.AlertsByPriority[alerts[i].Priority]++
		summary.TotalEstimatedMinutes += alerts[i].EstimatedTimeMinutes
	}

	last, err := e.DS.LastMaintenanceRecord(machineID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		summary.LastMaintenance = &last.CompletionDate
	}

	return summary, nil
}
