package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/schedule"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type capturingNotifier struct {
	published []datastore.Alert
}

func (n *capturingNotifier) PublishAlert(alert *datastore.Alert) error {
	n.published = append(n.published, *alert)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	catalog, err := schedule.LoadCatalog("")
	require.NoError(t, err)
	predictor := schedule.NewPredictor(catalog)
	predictor.Now = func() time.Time { return testNow }

	return New(settings, ds, predictor), ds
}

// registerMachine stores a machine whose oil change is overdue on hours when
// hours exceed 250 from zero.
func registerMachine(t *testing.T, ds datastore.Interface, machineID string, hours float64) {
	t.Helper()
	require.NoError(t, ds.SaveMachine(&datastore.Machine{
		MachineID:      machineID,
		Model:          "MF_240",
		Make:           "Massey Ferguson",
		PurchaseDate:   testNow.AddDate(0, 0, -20),
		EngineHours:    hours,
		UsageIntensity: datastore.UsageModerate,
		BaselineStatus: datastore.BaselinePending,
	}))
}

func TestGenerateAlertsIdempotent(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-1", 400)

	alerts, err := eng.GenerateAlerts("TR-1")
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	firstCount := len(alerts)

	// Re-running the prediction must not multiply the open alerts.
	alerts, err = eng.GenerateAlerts("TR-1")
	require.NoError(t, err)
	assert.Len(t, alerts, firstCount)

	byTask := make(map[string]int)
	for i := range alerts {
		byTask[alerts[i].TaskName]++
	}
	for task, count := range byTask {
		assert.Equal(t, 1, count, "task %s must have a single open alert", task)
	}
}

func TestGenerateAlertsOverdueEscalation(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	// 400 hours from zero: oil change (250h interval) is at 160%.
	registerMachine(t, ds, "TR-2", 400)

	alerts, err := eng.GenerateAlerts("TR-2")
	require.NoError(t, err)

	var oil *datastore.Alert
	for i := range alerts {
		if alerts[i].TaskName == "engine_oil_change" {
			oil = &alerts[i]
		}
	}
	require.NotNil(t, oil)
	assert.Equal(t, datastore.AlertScheduleOverdue, oil.AlertType)
	assert.Equal(t, datastore.StatusOverdue, oil.Status)
	assert.Equal(t, datastore.PriorityCritical, oil.Priority)
	assert.Equal(t, "MF 240 Manual, Section 7.2", oil.Source)
	assert.Equal(t, 45, oil.EstimatedTimeMinutes)
}

func TestHandleAnomalyRaisesMappedAlerts(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-3", 50)

	raised, err := eng.HandleAnomaly("TR-3", "high_vibration", 0.85, "pred-123")
	require.NoError(t, err)
	require.Len(t, raised, 2)

	tasks := []string{raised[0].TaskName, raised[1].TaskName}
	assert.Contains(t, tasks, "belt_inspection")
	assert.Contains(t, tasks, "engine_oil_change")
	for i := range raised {
		assert.Equal(t, datastore.AlertAudioAnomaly, raised[i].AlertType)
		assert.Equal(t, datastore.PriorityCritical, raised[i].Priority)
		require.NotNil(t, raised[i].AnomalyScore)
		assert.InDelta(t, 0.85, *raised[i].AnomalyScore, 0.001)
		assert.Equal(t, "pred-123", raised[i].PredictionID)
	}

	anomalies, err := ds.UnhandledAnomaliesSince("TR-3", testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "high_vibration", anomalies[0].AnomalyType)
}

func TestAnomalyAndScheduleAlertsDeduplicate(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-4", 400)

	_, err := eng.GenerateAlerts("TR-4")
	require.NoError(t, err)

	// The oil-change alert is already critical; the medium-priority anomaly
	// follow-up must not downgrade or duplicate it.
	_, err = eng.HandleAnomaly("TR-4", "unusual_noise", 0.55, "pred-9")
	require.NoError(t, err)

	alerts, err := ds.UnresolvedAlerts("TR-4")
	require.NoError(t, err)

	count := 0
	for i := range alerts {
		if alerts[i].TaskName == "engine_oil_change" {
			count++
			assert.Equal(t, datastore.PriorityCritical, alerts[i].Priority)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRecordMaintenanceResolvesAndAdvancesClock(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-5", 400)

	_, err := eng.GenerateAlerts("TR-5")
	require.NoError(t, err)

	err = eng.RecordMaintenance(&datastore.MaintenanceRecord{
		MachineID:       "TR-5",
		TaskName:        "engine_oil_change",
		CompletionDate:  testNow,
		CompletionHours: 410,
		PerformedBy:     "workshop",
	})
	require.NoError(t, err)

	alerts, err := ds.UnresolvedAlerts("TR-5")
	require.NoError(t, err)
	for i := range alerts {
		assert.NotEqual(t, "engine_oil_change", alerts[i].TaskName)
	}

	machine, err := ds.GetMachine("TR-5")
	require.NoError(t, err)
	assert.InDelta(t, 410.0, machine.EngineHours, 0.001)

	history, err := ds.MaintenanceHistory("TR-5")
	require.NoError(t, err)
	assert.InDelta(t, 410.0, history["engine_oil_change"].EngineHours, 0.001)
}

func TestRecordMaintenanceUnknownTask(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-6", 100)

	err := eng.RecordMaintenance(&datastore.MaintenanceRecord{
		MachineID: "TR-6",
		TaskName:  "flux_capacitor_service",
	})
	require.Error(t, err)
}

func TestHealthScorePenalties(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-7", 10)

	// Pristine machine scores 100.
	report, err := eng.HealthScore("TR-7")
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, datastore.HealthExcellent, report.Status)

	// One overdue critical (-20) and one overdue high (-10).
	_, err = ds.UpsertAlert(&datastore.Alert{
		MachineID: "TR-7", TaskName: "engine_oil_change",
		AlertType: datastore.AlertScheduleOverdue,
		Priority:  datastore.PriorityCritical,
		Status:    datastore.StatusOverdue,
		DueDate:   testNow,
	})
	require.NoError(t, err)
	_, err = ds.UpsertAlert(&datastore.Alert{
		MachineID: "TR-7", TaskName: "fuel_filter_replace",
		AlertType: datastore.AlertScheduleOverdue,
		Priority:  datastore.PriorityHigh,
		Status:    datastore.StatusOverdue,
		DueDate:   testNow,
	})
	require.NoError(t, err)

	report, err = eng.HealthScore("TR-7")
	require.NoError(t, err)
	assert.Equal(t, 70, report.Score)
	assert.Equal(t, datastore.HealthFair, report.Status)
	assert.Equal(t, 2, report.OverdueAlerts)

	// Anomalies subtract 5 each, capped at 30.
	for range 8 {
		require.NoError(t, ds.SaveAnomaly(&datastore.Anomaly{
			MachineID:    "TR-7",
			AnomalyType:  "unusual_noise",
			AnomalyScore: 0.7,
		}))
	}
	report, err = eng.HealthScore("TR-7")
	require.NoError(t, err)
	assert.Equal(t, 40, report.Score, "anomaly penalty must cap at 30")
	assert.Equal(t, datastore.HealthPoor, report.Status)
}

func TestHealthStatusForBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  string
	}{
		{100, datastore.HealthExcellent},
		{90, datastore.HealthExcellent},
		{89, datastore.HealthGood},
		{75, datastore.HealthGood},
		{74, datastore.HealthFair},
		{60, datastore.HealthFair},
		{59, datastore.HealthPoor},
		{40, datastore.HealthPoor},
		{39, datastore.HealthCritical},
		{0, datastore.HealthCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthStatusFor(tt.score), "score %d", tt.score)
	}
}

func TestLogUsageAndSummary(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-8", 100)

	usage, err := eng.LogUsage("TR-8", testNow.AddDate(0, 0, -2), 106, "plowing")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, usage.HoursUsed, 0.001)
	assert.InDelta(t, 100.0, usage.StartHours, 0.001)

	usage, err = eng.LogUsage("TR-8", testNow.AddDate(0, 0, -1), 110, "")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, usage.HoursUsed, 0.001)

	// Rewinding the clock is rejected.
	_, err = eng.LogUsage("TR-8", testNow, 50, "")
	require.Error(t, err)

	stats, err := eng.UsageSummary("TR-8", testNow.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.InDelta(t, 10.0, stats.TotalHours, 0.001)
	assert.InDelta(t, 1.0, stats.DailyAvg, 0.001)
}

func TestNotifierReceivesAlerts(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-9", 400)

	notifier := &capturingNotifier{}
	eng.Notifier = notifier

	_, err := eng.GenerateAlerts("TR-9")
	require.NoError(t, err)
	assert.NotEmpty(t, notifier.published)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	registerMachine(t, ds, "TR-10", 400)

	_, err := eng.GenerateAlerts("TR-10")
	require.NoError(t, err)

	summary, err := eng.Summary("TR-10")
	require.NoError(t, err)
	assert.Equal(t, "TR-10", summary.Machine.MachineID)
	assert.NotEmpty(t, summary.Alerts)
	assert.Less(t, summary.Health.Score, 100)
	assert.Positive(t, summary.TotalEstimatedMinutes)
	assert.Positive(t, summary.AlertsByPriority[datastore.PriorityCritical])
	assert.Nil(t, summary.LastMaintenance)

	err = eng.RecordMaintenance(&datastore.MaintenanceRecord{
		MachineID:      "TR-10",
		TaskName:       "engine_oil_change",
		CompletionDate: testNow,
	})
	require.NoError(t, err)

	summary, err = eng.Summary("TR-10")
	require.NoError(t, err)
	require.NotNil(t, summary.LastMaintenance)
	assert.True(t, summary.LastMaintenance.Equal(testNow))
}

func TestGenerateAlertsSweepsUnhandledAnomalies(t *testing.T) {
	t.Parallel()

	eng, ds := newTestEngine(t)
	// 10 hours keeps every schedule task below its due threshold.
	registerMachine(t, ds, "TR-11", 10)

	require.NoError(t, ds.SaveAnomaly(&datastore.Anomaly{
		MachineID:    "TR-11",
		AnomalyType:  "knocking_sound",
		AnomalyScore: 0.7,
		PredictionID: "pred-k1",
		CreatedAt:    testNow.AddDate(0, 0, -5),
	}))
	// Outside the 30-day sweep window; must be ignored.
	require.NoError(t, ds.SaveAnomaly(&datastore.Anomaly{
		MachineID:    "TR-11",
		AnomalyType:  "whining_sound",
		AnomalyScore: 0.7,
		CreatedAt:    testNow.AddDate(0, 0, -40),
	}))

	alerts, err := eng.GenerateAlerts("TR-11")
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	tasks := []string{alerts[0].TaskName, alerts[1].TaskName}
	assert.Contains(t, tasks, "engine_oil_change")
	assert.Contains(t, tasks, "fuel_filter_replace")
	for i := range alerts {
		assert.Equal(t, datastore.AlertAudioAnomaly, alerts[i].AlertType)
		assert.Equal(t, datastore.PriorityHigh, alerts[i].Priority)
		assert.Equal(t, "pred-k1", alerts[i].PredictionID)
	}

	// The swept anomaly is marked handled; the stale one stays untouched.
	unhandled, err := ds.UnhandledAnomaliesSince("TR-11", testNow.AddDate(0, 0, -60))
	require.NoError(t, err)
	require.Len(t, unhandled, 1)
	assert.Equal(t, "whining_sound", unhandled[0].AnomalyType)
}
