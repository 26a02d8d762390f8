package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/tractorcare/tractorcare-go/internal/datastore"
)

// Usage intensity multipliers. Intervals shrink under heavier use, so a
// heavily used machine comes due sooner.
var usageFactors = map[string]float64{
	datastore.UsageLight:    0.8,
	datastore.UsageModerate: 1.0,
	datastore.UsageHeavy:    1.2,
	datastore.UsageExtreme:  1.5,
}

// UsageFactor returns the interval multiplier for a usage intensity. Unknown
// intensities fall back to moderate.
func UsageFactor(intensity string) float64 {
	if factor, ok := usageFactors[intensity]; ok {
		return factor
	}
	return usageFactors[datastore.UsageModerate]
}

// Interval progress thresholds.
const (
	dueThreshold      = 0.9
	overdueThreshold  = 1.0
	criticalThreshold = 1.1
)

// assumedDailyHours converts remaining engine hours into calendar days when
// estimating a due date.
const assumedDailyHours = 8.0

// overdueGraceDays is how long a freshly overdue task may still wait.
const overdueGraceDays = 3

// Prediction is one task that is due or overdue.
type Prediction struct {
	TaskName          string
	Description       string
	Status            string // due or overdue
	Priority          string
	Progress          float64
	HoursSinceService float64
	DaysSinceService  float64
	DueDate           time.Time
	EstimatedMinutes  int
	Source            string
}

// Predictor evaluates a machine against its model's maintenance schedule.
// Now is injectable for tests and defaults to time.Now.
type Predictor struct {
	Catalog *Catalog
	Now     func() time.Time
}

// NewPredictor creates a predictor over the given catalog.
func NewPredictor(catalog *Catalog) *Predictor {
	return &Predictor{Catalog: catalog, Now: time.Now}
}

// PredictTask evaluates one task. It returns nil while the interval progress
// is below the due threshold.
//
// Progress is the worse of the hours-based and days-based interval fractions,
// both scaled by the machine's usage factor.
func (p *Predictor) PredictTask(machine *datastore.Machine, task *TaskDefinition, last datastore.HistoryEntry) *Prediction {
	now := p.Now()
	factor := UsageFactor(machine.UsageIntensity)
	adjustedHours := task.IntervalHours / factor
	adjustedDays := float64(task.IntervalDays) / factor

	hoursSince := machine.EngineHours - last.EngineHours
	if hoursSince < 0 {
		hoursSince = 0
	}
	daysSince := now.Sub(last.LastServiceDate).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}

	progress := math.Max(hoursSince/adjustedHours, daysSince/adjustedDays)
	if progress < dueThreshold {
		return nil
	}

	prediction := &Prediction{
		TaskName:          task.Name,
		Description:       task.Description,
		Priority:          task.Priority,
		Progress:          progress,
		HoursSinceService: hoursSince,
		DaysSinceService:  daysSince,
		EstimatedMinutes:  task.EstimatedMinutes,
		Source:            task.Source,
	}

	switch {
	case progress < overdueThreshold:
		prediction.Status = datastore.StatusDue
		remainingDays := math.Min((adjustedHours-hoursSince)/assumedDailyHours, adjustedDays-daysSince)
		if remainingDays < 0 {
			remainingDays = 0
		}
		prediction.DueDate = now.AddDate(0, 0, int(remainingDays))
	case progress < criticalThreshold:
		prediction.Status = datastore.StatusOverdue
		prediction.DueDate = now.AddDate(0, 0, overdueGraceDays)
	default:
		prediction.Status = datastore.StatusOverdue
		prediction.Priority = datastore.PriorityCritical
		prediction.DueDate = now
	}

	return prediction
}

// PredictAll evaluates every task in the machine's schedule. Tasks never
// serviced are measured from the purchase date at zero engine hours.
func (p *Predictor) PredictAll(machine *datastore.Machine, history map[string]datastore.HistoryEntry) ([]Prediction, error) {
	modelSchedule, err := p.Catalog.Schedule(machine.Model)
	if err != nil {
		return nil, err
	}

	var predictions []Prediction
	for i := range modelSchedule.Tasks {
		task := &modelSchedule.Tasks[i]
		last, ok := history[task.Name]
		if !ok {
			last = datastore.HistoryEntry{
				LastServiceDate: machine.PurchaseDate,
				EngineHours:     0,
			}
		}
		if prediction := p.PredictTask(machine, task, last); prediction != nil {
			predictions = append(predictions, *prediction)
		}
	}
	return predictions, nil
}

// anomalyTaskMapping names the maintenance tasks worth checking for each
// anomaly type.
var anomalyTaskMapping = map[string][]string{
	"high_vibration": {"belt_inspection", "engine_oil_change"},
	"unusual_noise":  {"engine_oil_change", "belt_inspection", "air_filter_check"},
	"knocking_sound": {"engine_oil_change", "fuel_filter_replace"},
	"whining_sound":  {"hydraulic_oil_change", "belt_inspection"},
	"overheating":    {"coolant_check", "air_filter_check"},
	"grinding_noise": {"belt_inspection", "grease_points"},
}

// defaultAnomalyTasks covers anomaly types with no specific mapping.
var defaultAnomalyTasks = []string{"engine_oil_change", "air_filter_check"}

// TasksForAnomaly returns the tasks to inspect for an anomaly type.
func TasksForAnomaly(anomalyType string) []string {
	if tasks, ok := anomalyTaskMapping[anomalyType]; ok {
		return tasks
	}
	return defaultAnomalyTasks
}

// AudioTriggeredAlerts converts a detected anomaly into task predictions.
// Priority and urgency scale with the anomaly score. Mapped tasks missing
// from the model's schedule are skipped.
func (p *Predictor) AudioTriggeredAlerts(machine *datastore.Machine, anomalyType string, score float64) ([]Prediction, error) {
	modelSchedule, err := p.Catalog.Schedule(machine.Model)
	if err != nil {
		return nil, err
	}

	now := p.Now()
	var priority string
	var dueDate time.Time
	switch {
	case score > 0.8:
		priority = datastore.PriorityCritical
		dueDate = now
	case score > 0.6:
		priority = datastore.PriorityHigh
		dueDate = now.AddDate(0, 0, 1)
	default:
		priority = datastore.PriorityMedium
		dueDate = now.AddDate(0, 0, 3)
	}

	taskByName := make(map[string]*TaskDefinition, len(modelSchedule.Tasks))
	for i := range modelSchedule.Tasks {
		taskByName[modelSchedule.Tasks[i].Name] = &modelSchedule.Tasks[i]
	}

	var predictions []Prediction
	for _, taskName := range TasksForAnomaly(anomalyType) {
		task, ok := taskByName[taskName]
		if !ok {
			getLogger().Warn("Anomaly-mapped task missing from model schedule",
				"model", machine.Model,
				"task_name", taskName,
				"anomaly_type", anomalyType)
			continue
		}
		predictions = append(predictions, Prediction{
			TaskName:         task.Name,
			Description:      fmt.Sprintf("Audio anomaly (%s): %s", anomalyType, task.Description),
			Status:           datastore.StatusDue,
			Priority:         priority,
			DueDate:          dueDate,
			EstimatedMinutes: task.EstimatedMinutes,
			Source:           task.Source,
		})
	}
	return predictions, nil
}
