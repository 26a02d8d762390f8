// model.go defines the persisted data model for the application
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Usage intensity levels for a machine
const (
	UsageLight    = "light"
	UsageModerate = "moderate"
	UsageHeavy    = "heavy"
	UsageExtreme  = "extreme"
)

// Maintenance priorities, ordered critical > high > medium > low
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Alert lifecycle states
const (
	StatusScheduled  = "scheduled"
	StatusDue        = "due"
	StatusOverdue    = "overdue"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Alert types
const (
	AlertScheduleDue     = "schedule_due"
	AlertScheduleOverdue = "schedule_overdue"
	AlertAudioAnomaly    = "audio_anomaly"
)

// Baseline collection session states
const (
	SessionCollecting = "collecting"
	SessionFinalized  = "finalized"
	SessionAbandoned  = "abandoned"
)

// Baseline states
const (
	BaselineActive   = "active"
	BaselineArchived = "archived"
)

// Machine-level baseline progress
const (
	BaselinePending    = "pending"
	BaselineCollecting = "collecting"
	BaselineCompleted  = "completed"
)

// Machine health status bands
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
	HealthCritical  = "critical"
)

// FloatVector stores a feature vector as a JSON text column. Vectors are a
// few thousand elements; JSON keeps them portable between SQLite and MySQL.
type FloatVector []float64

// Value implements driver.Valuer
func (v FloatVector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, fmt.Errorf("marshaling float vector: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (v *FloatVector) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}
	var data []byte
	switch src := value.(type) {
	case []byte:
		data = src
	case string:
		data = []byte(src)
	default:
		return fmt.Errorf("unsupported type for float vector: %T", value)
	}
	return json.Unmarshal(data, (*[]float64)(v))
}

// StringList stores an ordered list of strings as a JSON text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch src := value.(type) {
	case []byte:
		data = src
	case string:
		data = []byte(src)
	default:
		return fmt.Errorf("unsupported type for string list: %T", value)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// Machine represents a registered tractor and its wear clocks
type Machine struct {
	ID             uint   `gorm:"primaryKey"`
	MachineID      string `gorm:"uniqueIndex;not null"` // external identifier, e.g. "TR-0042"
	Model          string `gorm:"index"`                // catalog model, e.g. "MF_240"
	Make           string
	PurchaseDate   time.Time
	EngineHours    float64 // monotonically non-decreasing
	UsageIntensity string  `gorm:"type:varchar(20)"`
	BaselineStatus string  `gorm:"type:varchar(20)"`
	HealthStatus   string  `gorm:"type:varchar(20)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Baseline is a machine-specific statistical signature of normal sound.
// At most one row per machine may have IsActive=true.
type Baseline struct {
	ID            uint        `gorm:"primaryKey"`
	MachineID     string      `gorm:"index:idx_baselines_machine;index:idx_baselines_machine_active"`
	Mean          FloatVector `gorm:"type:text"`
	Std           FloatVector `gorm:"type:text"`
	SampleCount   int
	SampleRefs    StringList `gorm:"type:text"`
	Confidence    float64
	EngineHours   float64 // engine hours when the baseline was recorded
	LoadCondition string  `gorm:"type:varchar(20)"`
	Status        string  `gorm:"type:varchar(20)"`
	IsActive      bool    `gorm:"index:idx_baselines_machine_active"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BaselineSession tracks an in-progress baseline sample collection
type BaselineSession struct {
	ID               uint       `gorm:"primaryKey"`
	MachineID        string     `gorm:"index"`
	TargetSamples    int
	CollectedSamples int
	SampleRefs       StringList `gorm:"type:text"` // ordered blob references
	Status           string     `gorm:"type:varchar(20);index"`
	BaselineID       *uint      // set when finalized
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// Alert is a maintenance prediction or anomaly-triggered warning.
// The engine keeps at most one unresolved alert per (machine, task).
type Alert struct {
	ID                   uint   `gorm:"primaryKey"`
	MachineID            string `gorm:"index:idx_alerts_machine;index:idx_alerts_machine_task"`
	TaskName             string `gorm:"index:idx_alerts_machine_task"`
	AlertType            string `gorm:"type:varchar(30)"`
	Priority             string `gorm:"type:varchar(20)"`
	Status               string `gorm:"type:varchar(20);index"`
	Description          string `gorm:"type:text"`
	EstimatedTimeMinutes int
	Source               string // manual section reference
	DueDate              time.Time
	AnomalyScore         *float64
	PredictionID         string // links audio-triggered alerts to their prediction
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ResolvedAt           *time.Time
}

// AudioPrediction is an append-only record of one processed audio upload
type AudioPrediction struct {
	ID               uint   `gorm:"primaryKey"`
	PredictionID     string `gorm:"uniqueIndex"` // UUID
	MachineID        string `gorm:"index"`
	Filename         string
	FileSizeBytes    int64
	DurationSeconds  float64
	SampleRate       int
	ClassifierScore  float64
	DeviationScore   *float64
	CombinedScore    *float64
	Status           string `gorm:"type:varchar(30)"` // normal/watch/warning/critical or classifier band
	ModelUsed        string
	BaselineID       *uint
	EngineHours      float64
	ProcessingTimeMs float64
	RecordedAt       time.Time `gorm:"index"`
}

// Anomaly is a detected audio anomaly awaiting operator action
type Anomaly struct {
	ID           uint   `gorm:"primaryKey"`
	MachineID    string `gorm:"index:idx_anomalies_machine;index:idx_anomalies_machine_handled"`
	PredictionID string
	AnomalyType  string `gorm:"type:varchar(30)"`
	AnomalyScore float64
	Confidence   float64
	Description  string    `gorm:"type:text"`
	Handled      bool      `gorm:"index:idx_anomalies_machine_handled"`
	CreatedAt    time.Time `gorm:"index"`
}

// UsageLog records one engine-hours update
type UsageLog struct {
	ID         uint      `gorm:"primaryKey"`
	MachineID  string    `gorm:"index"`
	Date       time.Time `gorm:"index"`
	StartHours float64
	EndHours   float64
	HoursUsed  float64
	Notes      string `gorm:"type:text"`
	CreatedAt  time.Time
}

// MaintenanceRecord is a completed maintenance event. The newest record per
// task is the machine's maintenance history entry for that task.
type MaintenanceRecord struct {
	ID                uint      `gorm:"primaryKey"`
	MachineID         string    `gorm:"index:idx_records_machine;index:idx_records_machine_task"`
	TaskName          string    `gorm:"index:idx_records_machine_task"`
	CompletionDate    time.Time `gorm:"index"`
	CompletionHours   float64
	ActualTimeMinutes int
	PerformedBy       string
	Notes             string `gorm:"type:text"`
	CreatedAt         time.Time
}

// HistoryEntry is the last-service lookup the schedule predictor consumes
type HistoryEntry struct {
	LastServiceDate time.Time
	EngineHours     float64
}
