package baseline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tractorcare/tractorcare-go/internal/blobstore"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
	"github.com/tractorcare/tractorcare-go/internal/myaudio"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("baseline")
	})
	return logger
}

// Sentinel errors for collection lifecycle misuse.
var (
	ErrAlreadyCollecting        = errors.NewStd("baseline collection already in progress")
	ErrNoActiveCollection       = errors.NewStd("no baseline collection in progress")
	ErrInsufficientSamples      = errors.NewStd("not enough samples collected")
	ErrInsufficientValidSamples = errors.NewStd("not enough valid samples after feature extraction")
)

// Builder runs the baseline collection workflow: start a session, add
// recordings, finalize into an active baseline.
type Builder struct {
	Settings  *conf.Settings
	DS        datastore.Interface
	Blobs     *blobstore.Store
	Extractor *myaudio.Extractor
}

// NewBuilder wires a builder from its dependencies.
func NewBuilder(settings *conf.Settings, ds datastore.Interface, blobs *blobstore.Store) *Builder {
	return &Builder{
		Settings:  settings,
		DS:        ds,
		Blobs:     blobs,
		Extractor: myaudio.NewExtractor(settings),
	}
}

// StartCollection opens a collection session for the machine. Only one
// session may be collecting per machine at a time.
func (b *Builder) StartCollection(machineID string) (*datastore.BaselineSession, error) {
	if _, err := b.DS.GetMachine(machineID); err != nil {
		return nil, err
	}

	existing, err := b.DS.CollectingSession(machineID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(ErrAlreadyCollecting).
			Component("baseline").
			Category(errors.CategoryState).
			Context("machine_id", machineID).
			Context("collected_samples", existing.CollectedSamples).
			Build()
	}

	session := &datastore.BaselineSession{
		MachineID:     machineID,
		TargetSamples: b.Settings.Baseline.TargetSamples,
		Status:        datastore.SessionCollecting,
		StartedAt:     time.Now(),
	}
	if err := b.DS.SaveSession(session); err != nil {
		return nil, err
	}
	if err := b.DS.SetBaselineStatus(machineID, datastore.BaselineCollecting); err != nil {
		return nil, err
	}

	getLogger().Info("Baseline collection started",
		"machine_id", machineID,
		"target_samples", session.TargetSamples)
	return session, nil
}

// AddSample validates one recording and appends it to the open session. The
// raw payload is kept in the blob store so finalize can re-extract features.
func (b *Builder) AddSample(machineID string, wavData []byte) (*datastore.BaselineSession, error) {
	session, err := b.DS.CollectingSession(machineID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New(ErrNoActiveCollection).
			Component("baseline").
			Category(errors.CategoryState).
			Context("machine_id", machineID).
			Build()
	}

	// Reject unusable audio up front rather than at finalize.
	if _, _, err := b.Extractor.Extract(wavData); err != nil {
		return nil, err
	}

	ref, err := b.Blobs.Put(wavData)
	if err != nil {
		return nil, err
	}

	session.SampleRefs = append(session.SampleRefs, ref)
	session.CollectedSamples = len(session.SampleRefs)
	if err := b.DS.SaveSession(session); err != nil {
		return nil, err
	}

	getLogger().Info("Baseline sample added",
		"machine_id", machineID,
		"collected", session.CollectedSamples,
		"target", session.TargetSamples)
	return session, nil
}

// LoadConditionNormal is the default operating load during baseline
// recordings.
const LoadConditionNormal = "normal"

// Finalize turns the collected samples into the machine's active baseline,
// recorded under the given operating load condition (empty means normal).
// Samples that fail feature extraction are skipped; the rest must still meet
// the minimum sample count.
func (b *Builder) Finalize(machineID, loadCondition string) (*datastore.Baseline, error) {
	session, err := b.DS.CollectingSession(machineID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New(ErrNoActiveCollection).
			Component("baseline").
			Category(errors.CategoryState).
			Context("machine_id", machineID).
			Build()
	}

	minSamples := b.Settings.Baseline.MinSamples
	if session.CollectedSamples < minSamples {
		return nil, errors.New(ErrInsufficientSamples).
			Component("baseline").
			Category(errors.CategoryInsufficientData).
			Context("machine_id", machineID).
			Context("collected", session.CollectedSamples).
			Context("required", minSamples).
			Build()
	}

	var features [][]float64
	var validRefs []string
	for _, ref := range session.SampleRefs {
		data, err := b.Blobs.Get(ref)
		if err != nil {
			getLogger().Warn("Baseline sample unreadable, skipping",
				"machine_id", machineID,
				"ref", ref,
				"error", err)
			continue
		}
		vector, _, err := b.Extractor.Extract(data)
		if err != nil {
			getLogger().Warn("Baseline sample failed extraction, skipping",
				"machine_id", machineID,
				"ref", ref,
				"error", err)
			continue
		}
		features = append(features, vector)
		validRefs = append(validRefs, ref)
	}

	if len(features) < minSamples {
		return nil, errors.New(ErrInsufficientValidSamples).
			Component("baseline").
			Category(errors.CategoryInsufficientData).
			Context("machine_id", machineID).
			Context("valid", len(features)).
			Context("required", minSamples).
			Build()
	}

	mean, std := MeanStd(features)
	confidence := Confidence(std, b.Settings.Baseline.ConfidenceScale)

	machine, err := b.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}

	if loadCondition == "" {
		loadCondition = LoadConditionNormal
	}
	newBaseline := &datastore.Baseline{
		MachineID:     machineID,
		Mean:          mean,
		Std:           std,
		SampleCount:   len(features),
		SampleRefs:    validRefs,
		Confidence:    confidence,
		EngineHours:   machine.EngineHours,
		LoadCondition: loadCondition,
	}
	if err := b.DS.ActivateBaseline(newBaseline); err != nil {
		return nil, err
	}

	now := time.Now()
	session.Status = datastore.SessionFinalized
	session.BaselineID = &newBaseline.ID
	session.CompletedAt = &now
	if err := b.DS.SaveSession(session); err != nil {
		return nil, err
	}
	if err := b.DS.SetBaselineStatus(machineID, datastore.BaselineCompleted); err != nil {
		return nil, err
	}

	getLogger().Info("Baseline finalized",
		"machine_id", machineID,
		"samples", len(features),
		"confidence", confidence,
		"load_condition", loadCondition)
	return newBaseline, nil
}

// Delete archives the machine's active baseline and abandons any collection
// still in progress. Archived baselines are not auto-promoted; Reactivate
// restores one explicitly.
func (b *Builder) Delete(machineID string) (bool, error) {
	deleted, err := b.DS.DeleteActiveBaseline(machineID)
	if err != nil {
		return false, err
	}

	session, err := b.DS.CollectingSession(machineID)
	if err != nil {
		return deleted, err
	}
	if session != nil {
		now := time.Now()
		session.Status = datastore.SessionAbandoned
		session.CompletedAt = &now
		if err := b.DS.SaveSession(session); err != nil {
			return deleted, err
		}
		getLogger().Info("Baseline collection abandoned",
			"machine_id", machineID,
			"collected_samples", session.CollectedSamples)
	}

	if deleted || session != nil {
		if err := b.DS.SetBaselineStatus(machineID, datastore.BaselinePending); err != nil {
			return deleted, err
		}
	}
	if deleted {
		getLogger().Info("Active baseline archived", "machine_id", machineID)
	}
	return deleted, nil
}

// Reactivate restores an archived baseline as the active one.
func (b *Builder) Reactivate(machineID string, baselineID uint) error {
	if err := b.DS.ReactivateBaseline(machineID, baselineID); err != nil {
		return err
	}
	if err := b.DS.SetBaselineStatus(machineID, datastore.BaselineCompleted); err != nil {
		return err
	}
	getLogger().Info("Baseline reactivated",
		"machine_id", machineID,
		"baseline_id", baselineID)
	return nil
}

// StatusReport summarizes a machine's baseline state.
type StatusReport struct {
	MachineID        string
	HasActive        bool
	ActiveBaselineID uint
	SampleCount      int
	Confidence       float64
	CreatedAt        time.Time
	Collecting       bool
	CollectedSamples int
	TargetSamples    int
}

// Status reports the machine's baseline and any in-progress collection.
func (b *Builder) Status(machineID string) (*StatusReport, error) {
	if _, err := b.DS.GetMachine(machineID); err != nil {
		return nil, err
	}

	report := &StatusReport{MachineID: machineID}

	active, err := b.DS.ActiveBaseline(machineID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		report.HasActive = true
		report.ActiveBaselineID = active.ID
		report.SampleCount = active.SampleCount
		report.Confidence = active.Confidence
		report.CreatedAt = active.CreatedAt
	}

	session, err := b.DS.CollectingSession(machineID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		report.Collecting = true
		report.CollectedSamples = session.CollectedSamples
		report.TargetSamples = session.TargetSamples
	}

	return report, nil
}
