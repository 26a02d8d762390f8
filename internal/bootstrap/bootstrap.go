// Package bootstrap wires the application services from settings so every
// CLI command shares one construction path.
package bootstrap

import (
	"log/slog"
	"sync"

	"github.com/tractorcare/tractorcare-go/internal/baseline"
	"github.com/tractorcare/tractorcare-go/internal/blobstore"
	"github.com/tractorcare/tractorcare-go/internal/classifier"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/engine"
	"github.com/tractorcare/tractorcare-go/internal/logging"
	"github.com/tractorcare/tractorcare-go/internal/notify"
	"github.com/tractorcare/tractorcare-go/internal/schedule"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("bootstrap")
	})
	return logger
}

// Runtime holds the wired application services.
type Runtime struct {
	Settings  *conf.Settings
	DS        datastore.Interface
	Blobs     *blobstore.Store
	Catalog   *schedule.Catalog
	Predictor *schedule.Predictor
	Engine    *engine.Engine
	Builder   *baseline.Builder

	notifier   *notify.MQTTNotifier
	classifier classifier.Classifier
}

// Open connects the datastore and wires the services. Callers must Close
// the returned runtime.
func Open(settings *conf.Settings) (*Runtime, error) {
	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return nil, err
	}

	blobs, err := blobstore.New(settings.Blob.Path)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	catalog, err := schedule.LoadCatalog(settings.Schedule.CatalogPath)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	predictor := schedule.NewPredictor(catalog)
	eng := engine.New(settings, ds, predictor)

	rt := &Runtime{
		Settings:  settings,
		DS:        ds,
		Blobs:     blobs,
		Catalog:   catalog,
		Predictor: predictor,
		Engine:    eng,
		Builder:   baseline.NewBuilder(settings, ds, blobs),
	}

	// Alert publishing is best effort: a broker that is down must not keep
	// the CLI from working against the local database.
	if settings.Notify.MQTT.Enabled {
		notifier, err := notify.NewMQTT(settings)
		if err != nil {
			getLogger().Warn("MQTT notifier unavailable, continuing without it",
				"broker", settings.Notify.MQTT.Broker,
				"error", err)
		} else {
			rt.notifier = notifier
			eng.Notifier = notifier
		}
	}

	return rt, nil
}

// Classifier returns the configured anomaly classifier, constructing it on
// first use. A configured model path selects the TensorFlow Lite classifier;
// without one the signal-statistics heuristic is used.
func (rt *Runtime) Classifier() (classifier.Classifier, error) {
	if rt.classifier != nil {
		return rt.classifier, nil
	}

	if rt.Settings.Classifier.ModelPath != "" {
		cls, err := classifier.NewTFLite(rt.Settings)
		if err != nil {
			return nil, err
		}
		rt.classifier = cls
		return cls, nil
	}

	getLogger().Info("No classifier model configured, using heuristic classifier")
	rt.classifier = classifier.NewHeuristic()
	return rt.classifier, nil
}

// Analyzer wires the audio scoring pipeline.
func (rt *Runtime) Analyzer() (*engine.Analyzer, error) {
	cls, err := rt.Classifier()
	if err != nil {
		return nil, err
	}
	return engine.NewAnalyzer(rt.Settings, rt.DS, cls, rt.Engine), nil
}

// Close releases the runtime's resources.
func (rt *Runtime) Close() {
	if rt.classifier != nil {
		if err := rt.classifier.Close(); err != nil {
			getLogger().Warn("Failed to close classifier", "error", err)
		}
	}
	if rt.notifier != nil {
		rt.notifier.Close()
	}
	if err := rt.DS.Close(); err != nil {
		getLogger().Warn("Failed to close datastore", "error", err)
	}
}
