// datastore_test.go exercises the persistence layer against real SQLite
// databases rather than mocks, so GORM behavior is what production sees.
package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/errors"
)

func createTestSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	return settings
}

func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()

	ds := New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		_ = ds.Close()
	})
	return ds
}

func testMachine(machineID string) *Machine {
	return &Machine{
		MachineID:      machineID,
		Model:          "MF_240",
		Make:           "Massey Ferguson",
		PurchaseDate:   time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		EngineHours:    120,
		UsageIntensity: UsageModerate,
		BaselineStatus: BaselinePending,
	}
}

func TestSaveAndGetMachine(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))

	require.NoError(t, ds.SaveMachine(testMachine("TR-0001")))

	machine, err := ds.GetMachine("TR-0001")
	require.NoError(t, err)
	assert.Equal(t, "MF_240", machine.Model)
	assert.InDelta(t, 120.0, machine.EngineHours, 0.001)

	_, err = ds.GetMachine("TR-MISSING")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSaveMachineDuplicateID(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))

	require.NoError(t, ds.SaveMachine(testMachine("TR-0002")))
	err := ds.SaveMachine(testMachine("TR-0002"))
	require.Error(t, err, "duplicate machine_id must be rejected by the unique index")
}

func TestUpdateEngineHoursMonotonic(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0003")))

	machine, err := ds.UpdateEngineHours("TR-0003", 150)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, machine.EngineHours, 0.001)

	// Equal hours are accepted, the clock just does not move.
	machine, err = ds.UpdateEngineHours("TR-0003", 150)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, machine.EngineHours, 0.001)

	// A rewind is rejected and the stored value is untouched.
	machine, err = ds.UpdateEngineHours("TR-0003", 100)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.InDelta(t, 150.0, machine.EngineHours, 0.001)

	_, err = ds.UpdateEngineHours("TR-0003", -5)
	require.Error(t, err)
}

func TestActivateBaselineArchivesPrevious(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0004")))

	first := &Baseline{
		MachineID:   "TR-0004",
		Mean:        FloatVector{0.1, 0.2},
		Std:         FloatVector{0.01, 0.02},
		SampleCount: 5,
		Confidence:  0.95,
	}
	require.NoError(t, ds.ActivateBaseline(first))

	second := &Baseline{
		MachineID:   "TR-0004",
		Mean:        FloatVector{0.3, 0.4},
		Std:         FloatVector{0.03, 0.04},
		SampleCount: 5,
		Confidence:  0.9,
	}
	require.NoError(t, ds.ActivateBaseline(second))

	active, err := ds.ActiveBaseline("TR-0004")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	all, err := ds.ListBaselines("TR-0004")
	require.NoError(t, err)
	require.Len(t, all, 2)

	activeCount := 0
	for i := range all {
		if all[i].IsActive {
			activeCount++
		} else {
			assert.Equal(t, BaselineArchived, all[i].Status)
		}
	}
	assert.Equal(t, 1, activeCount, "at most one baseline per machine may be active")
}

func TestDeleteAndReactivateBaseline(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0005")))

	baseline := &Baseline{
		MachineID:   "TR-0005",
		Mean:        FloatVector{0.5},
		Std:         FloatVector{0.05},
		SampleCount: 3,
		Confidence:  0.8,
	}
	require.NoError(t, ds.ActivateBaseline(baseline))

	deleted, err := ds.DeleteActiveBaseline("TR-0005")
	require.NoError(t, err)
	assert.True(t, deleted)

	active, err := ds.ActiveBaseline("TR-0005")
	require.NoError(t, err)
	assert.Nil(t, active, "deleting must not auto-promote an archived baseline")

	deleted, err = ds.DeleteActiveBaseline("TR-0005")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, ds.ReactivateBaseline("TR-0005", baseline.ID))
	active, err = ds.ActiveBaseline("TR-0005")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, baseline.ID, active.ID)

	err = ds.ReactivateBaseline("TR-0005", 9999)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestCollectingSessionLifecycle(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0006")))

	session, err := ds.CollectingSession("TR-0006")
	require.NoError(t, err)
	assert.Nil(t, session)

	newSession := &BaselineSession{
		MachineID:     "TR-0006",
		TargetSamples: 5,
		Status:        SessionCollecting,
		StartedAt:     time.Now(),
	}
	require.NoError(t, ds.SaveSession(newSession))

	session, err = ds.CollectingSession("TR-0006")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, newSession.ID, session.ID)

	session.CollectedSamples = 3
	session.SampleRefs = StringList{"a", "b", "c"}
	session.Status = SessionFinalized
	require.NoError(t, ds.SaveSession(session))

	session, err = ds.CollectingSession("TR-0006")
	require.NoError(t, err)
	assert.Nil(t, session, "finalized sessions are no longer collecting")
}

func TestUpsertAlertDeduplication(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0007")))

	due := time.Now().Add(24 * time.Hour)
	medium := &Alert{
		MachineID: "TR-0007",
		TaskName:  "engine_oil_change",
		AlertType: AlertScheduleDue,
		Priority:  PriorityMedium,
		Status:    StatusDue,
		DueDate:   due,
	}
	saved, err := ds.UpsertAlert(medium)
	require.NoError(t, err)
	require.NotNil(t, saved)

	// Lower priority for the same task does not replace the open alert.
	low := &Alert{
		MachineID: "TR-0007",
		TaskName:  "engine_oil_change",
		AlertType: AlertScheduleDue,
		Priority:  PriorityLow,
		Status:    StatusDue,
		DueDate:   due,
	}
	result, err := ds.UpsertAlert(low)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, result.ID)
	assert.Equal(t, PriorityMedium, result.Priority)
	assert.Equal(t, StatusDue, result.Status)

	// Equal priority refreshes the row: a due alert advances to overdue
	// without waiting for a priority bump.
	overdueDue := time.Now()
	sameRank := &Alert{
		MachineID: "TR-0007",
		TaskName:  "engine_oil_change",
		AlertType: AlertScheduleOverdue,
		Priority:  PriorityMedium,
		Status:    StatusOverdue,
		DueDate:   overdueDue,
	}
	result, err = ds.UpsertAlert(sameRank)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, result.ID)
	assert.Equal(t, PriorityMedium, result.Priority)
	assert.Equal(t, StatusOverdue, result.Status)
	assert.Equal(t, AlertScheduleOverdue, result.AlertType)
	assert.WithinDuration(t, overdueDue, result.DueDate, time.Second)

	// Higher priority upgrades the existing row instead of adding one.
	critical := &Alert{
		MachineID: "TR-0007",
		TaskName:  "engine_oil_change",
		AlertType: AlertScheduleOverdue,
		Priority:  PriorityCritical,
		Status:    StatusOverdue,
		DueDate:   time.Now(),
	}
	result, err = ds.UpsertAlert(critical)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, result.ID)
	assert.Equal(t, PriorityCritical, result.Priority)
	assert.Equal(t, AlertScheduleOverdue, result.AlertType)

	open, err := ds.UnresolvedAlerts("TR-0007")
	require.NoError(t, err)
	require.Len(t, open, 1)

	// Resolving frees the (machine, task) slot for future alerts.
	resolved, err := ds.ResolveAlertsForTask("TR-0007", "engine_oil_change", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolved)

	open, err = ds.UnresolvedAlerts("TR-0007")
	require.NoError(t, err)
	assert.Empty(t, open)

	again, err := ds.UpsertAlert(&Alert{
		MachineID: "TR-0007",
		TaskName:  "engine_oil_change",
		AlertType: AlertScheduleDue,
		Priority:  PriorityMedium,
		Status:    StatusDue,
		DueDate:   due,
	})
	require.NoError(t, err)
	assert.NotEqual(t, saved.ID, again.ID)
}

func TestAnomalyQueries(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0008")))

	anomaly := &Anomaly{
		MachineID:    "TR-0008",
		PredictionID: "pred-1",
		AnomalyType:  "high_vibration",
		AnomalyScore: 0.82,
		Confidence:   0.82,
	}
	require.NoError(t, ds.SaveAnomaly(anomaly))

	since := time.Now().Add(-7 * 24 * time.Hour)
	unhandled, err := ds.UnhandledAnomaliesSince("TR-0008", since)
	require.NoError(t, err)
	require.Len(t, unhandled, 1)

	count, err := ds.CountAnomaliesSince("TR-0008", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, ds.MarkAnomalyHandled(anomaly.ID))

	unhandled, err = ds.UnhandledAnomaliesSince("TR-0008", since)
	require.NoError(t, err)
	assert.Empty(t, unhandled)

	// Handled anomalies still count toward the recent-anomaly total.
	count, err = ds.CountAnomaliesSince("TR-0008", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	err = ds.MarkAnomalyHandled(9999)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestMaintenanceHistoryNewestPerTask(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0009")))

	older := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ds.SaveMaintenanceRecord(&MaintenanceRecord{
		MachineID:       "TR-0009",
		TaskName:        "engine_oil_change",
		CompletionDate:  older,
		CompletionHours: 200,
	}))
	require.NoError(t, ds.SaveMaintenanceRecord(&MaintenanceRecord{
		MachineID:       "TR-0009",
		TaskName:        "engine_oil_change",
		CompletionDate:  newer,
		CompletionHours: 450,
	}))
	require.NoError(t, ds.SaveMaintenanceRecord(&MaintenanceRecord{
		MachineID:       "TR-0009",
		TaskName:        "belt_inspection",
		CompletionDate:  older,
		CompletionHours: 200,
	}))

	history, err := ds.MaintenanceHistory("TR-0009")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer, history["engine_oil_change"].LastServiceDate.UTC())
	assert.InDelta(t, 450.0, history["engine_oil_change"].EngineHours, 0.001)
	assert.InDelta(t, 200.0, history["belt_inspection"].EngineHours, 0.001)

	last, err := ds.LastMaintenanceRecord("TR-0009")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "engine_oil_change", last.TaskName)

	last, err = ds.LastMaintenanceRecord("TR-NONE")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestUsageLogQueries(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	require.NoError(t, ds.SaveMachine(testMachine("TR-0010")))

	now := time.Now()
	for i, hours := range []float64{4, 6, 8} {
		require.NoError(t, ds.SaveUsage(&UsageLog{
			MachineID:  "TR-0010",
			Date:       now.Add(time.Duration(-i*24) * time.Hour),
			StartHours: 100 + float64(i)*10,
			EndHours:   100 + float64(i)*10 + hours,
			HoursUsed:  hours,
		}))
	}

	logs, err := ds.UsageSince("TR-0010", now.Add(-36*time.Hour))
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
