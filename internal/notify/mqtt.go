// Package notify publishes maintenance alerts to an MQTT broker so farm
// dashboards and phones can react without polling the database.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("notify")
	})
	return logger
}

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTNotifier publishes alerts as JSON messages on a single topic.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
}

// alertMessage is the published wire format.
type alertMessage struct {
	MachineID        string    `json:"machine_id"`
	TaskName         string    `json:"task_name"`
	AlertType        string    `json:"alert_type"`
	Priority         string    `json:"priority"`
	Status           string    `json:"status"`
	Description      string    `json:"description"`
	DueDate          time.Time `json:"due_date"`
	AnomalyScore     *float64  `json:"anomaly_score,omitempty"`
	PredictionID     string    `json:"prediction_id,omitempty"`
	EstimatedMinutes int       `json:"estimated_time_minutes"`
	Source           string    `json:"source,omitempty"`
}

// NewMQTT connects to the configured broker.
func NewMQTT(settings *conf.Settings) (*MQTTNotifier, error) {
	cfg := &settings.Notify.MQTT

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("tractorcare-%s", uuid.New().String()[:8])).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		getLogger().Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	}
	opts.OnConnect = func(_ mqtt.Client) {
		getLogger().Info("MQTT connected", "broker", cfg.Broker, "topic", cfg.Topic)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Newf("timeout connecting to MQTT broker %s", cfg.Broker).
			Component("notify").
			Category(errors.CategoryTimeout).
			Context("broker", cfg.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryExternalService).
			Context("broker", cfg.Broker).
			Build()
	}

	return &MQTTNotifier{client: client, topic: cfg.Topic}, nil
}

// PublishAlert sends one alert at QoS 1.
func (n *MQTTNotifier) PublishAlert(alert *datastore.Alert) error {
	message := alertMessage{
		MachineID:        alert.MachineID,
		TaskName:         alert.TaskName,
		AlertType:        alert.AlertType,
		Priority:         alert.Priority,
		Status:           alert.Status,
		Description:      alert.Description,
		DueDate:          alert.DueDate,
		AnomalyScore:     alert.AnomalyScore,
		PredictionID:     alert.PredictionID,
		EstimatedMinutes: alert.EstimatedTimeMinutes,
		Source:           alert.Source,
	}
	payload, err := json.Marshal(&message)
	if err != nil {
		return errors.New(err).
			Component("notify").
			Category(errors.CategoryGeneric).
			Context("machine_id", alert.MachineID).
			Build()
	}

	token := n.client.Publish(n.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Newf("timeout publishing alert to %s", n.topic).
			Component("notify").
			Category(errors.CategoryTimeout).
			Context("topic", n.topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("notify").
			Category(errors.CategoryExternalService).
			Context("topic", n.topic).
			Build()
	}

	getLogger().Debug("Alert published",
		"machine_id", alert.MachineID,
		"task_name", alert.TaskName,
		"priority", alert.Priority)
	return nil
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
