// interfaces.go defines the interface for the database operations
package datastore

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tractorcare/tractorcare-go/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the services need.
type Interface interface {
	Open() error
	Close() error

	// Machines
	SaveMachine(machine *Machine) error
	GetMachine(machineID string) (Machine, error)
	ListMachines() ([]Machine, error)
	UpdateEngineHours(machineID string, newHours float64) (Machine, error)
	SetBaselineStatus(machineID, status string) error
	SetHealthStatus(machineID, status string) error

	// Baselines
	ActiveBaseline(machineID string) (*Baseline, error)
	ActivateBaseline(baseline *Baseline) error
	ReactivateBaseline(machineID string, baselineID uint) error
	DeleteActiveBaseline(machineID string) (bool, error)
	ListBaselines(machineID string) ([]Baseline, error)

	// Baseline collection sessions
	CollectingSession(machineID string) (*BaselineSession, error)
	SaveSession(session *BaselineSession) error

	// Alerts
	UpsertAlert(alert *Alert) (*Alert, error)
	UnresolvedAlerts(machineID string) ([]Alert, error)
	ResolveAlertsForTask(machineID, taskName string, resolvedAt time.Time) (int64, error)

	// Audio predictions and anomalies
	SavePrediction(prediction *AudioPrediction) error
	RecentPredictions(machineID string, limit int) ([]AudioPrediction, error)
	SaveAnomaly(anomaly *Anomaly) error
	UnhandledAnomaliesSince(machineID string, since time.Time) ([]Anomaly, error)
	CountAnomaliesSince(machineID string, since time.Time) (int64, error)
	MarkAnomalyHandled(id uint) error

	// Usage tracking
	SaveUsage(usage *UsageLog) error
	UsageSince(machineID string, since time.Time) ([]UsageLog, error)

	// Maintenance records
	SaveMaintenanceRecord(record *MaintenanceRecord) error
	LastMaintenanceRecord(machineID string) (*MaintenanceRecord, error)
	MaintenanceHistory(machineID string) (map[string]HistoryEntry, error)
}

// activeBaselineCacheTTL bounds staleness of the active-baseline cache.
// Writers invalidate eagerly; the TTL only covers out-of-process writers.
const activeBaselineCacheTTL = 5 * time.Minute

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB            *gorm.DB
	baselineCache *cache.Cache
}

// New creates a new datastore based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: newDataStore(),
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: newDataStore(),
			Settings:  settings,
		}
	default:
		return nil
	}
}

func newDataStore() DataStore {
	return DataStore{
		baselineCache: cache.New(activeBaselineCacheTTL, 10*time.Minute),
	}
}
