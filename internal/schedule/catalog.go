// Package schedule predicts manufacturer-scheduled maintenance from engine
// hours, calendar time and usage intensity.
package schedule

import (
	_ "embed"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
	"gopkg.in/yaml.v3"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("schedule")
	})
	return logger
}

//go:embed schedules.yaml
var embeddedSchedules []byte

// TaskDefinition is one maintenance task from an operator manual.
type TaskDefinition struct {
	Name             string  `yaml:"name"`
	Description      string  `yaml:"description"`
	Priority         string  `yaml:"priority"`
	IntervalHours    float64 `yaml:"intervalhours"`
	IntervalDays     int     `yaml:"intervaldays"`
	EstimatedMinutes int     `yaml:"estimatedminutes"`
	Source           string  `yaml:"source"`
}

// ModelSchedule is the full task table for one tractor model.
type ModelSchedule struct {
	Make   string           `yaml:"make"`
	Source string           `yaml:"source"`
	Tasks  []TaskDefinition `yaml:"tasks"`
}

type catalogFile struct {
	Models map[string]ModelSchedule `yaml:"models"`
}

// Catalog holds the maintenance schedules for all supported models.
type Catalog struct {
	models map[string]ModelSchedule
}

// LoadCatalog reads the schedule catalog. An empty path loads the embedded
// manufacturer schedules; a non-empty path loads an operator-supplied YAML
// file in the same format.
func LoadCatalog(path string) (*Catalog, error) {
	data := embeddedSchedules
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(err).
				Component("schedule").
				Category(errors.CategoryFileIO).
				Context("catalog_path", path).
				Build()
		}
		data = fileData
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(err).
			Component("schedule").
			Category(errors.CategoryConfiguration).
			Context("catalog_path", path).
			Build()
	}
	if len(file.Models) == 0 {
		return nil, errors.Newf("schedule catalog contains no models").
			Component("schedule").
			Category(errors.CategoryConfiguration).
			Context("catalog_path", path).
			Build()
	}

	for model, schedule := range file.Models {
		for i := range schedule.Tasks {
			task := &schedule.Tasks[i]
			if task.Name == "" || task.IntervalHours <= 0 || task.IntervalDays <= 0 {
				return nil, errors.Newf("invalid task definition %q in model %s", task.Name, model).
					Component("schedule").
					Category(errors.CategoryConfiguration).
					Context("model", model).
					Build()
			}
		}
	}

	getLogger().Debug("Schedule catalog loaded",
		"models", len(file.Models),
		"external", path != "")
	return &Catalog{models: file.Models}, nil
}

// Schedule returns the task table for a model.
func (c *Catalog) Schedule(model string) (ModelSchedule, error) {
	schedule, ok := c.models[model]
	if !ok {
		return ModelSchedule{}, errors.Newf("no maintenance schedule for model %s", model).
			Component("schedule").
			Category(errors.CategoryNotFound).
			Context("model", model).
			Build()
	}
	return schedule, nil
}

// Task returns a single task definition for a model.
func (c *Catalog) Task(model, taskName string) (TaskDefinition, error) {
	schedule, err := c.Schedule(model)
	if err != nil {
		return TaskDefinition{}, err
	}
	for i := range schedule.Tasks {
		if schedule.Tasks[i].Name == taskName {
			return schedule.Tasks[i], nil
		}
	}
	return TaskDefinition{}, errors.Newf("task %s not defined for model %s", taskName, model).
		Component("schedule").
		Category(errors.CategoryNotFound).
		Context("model", model).
		Context("task_name", taskName).
		Build()
}

// Models lists the supported model names in stable order.
func (c *Catalog) Models() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
