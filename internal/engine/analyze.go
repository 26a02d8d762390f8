package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tractorcare/tractorcare-go/internal/baseline"
	"github.com/tractorcare/tractorcare-go/internal/classifier"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/myaudio"
)

// Analyzer runs the audio scoring pipeline: feature extraction, classifier
// inference, baseline deviation, score fusion and alerting.
type Analyzer struct {
	Settings   *conf.Settings
	DS         datastore.Interface
	Extractor  *myaudio.Extractor
	Classifier classifier.Classifier
	Engine     *Engine
}

// NewAnalyzer wires an analyzer from its dependencies.
func NewAnalyzer(settings *conf.Settings, ds datastore.Interface, cls classifier.Classifier, eng *Engine) *Analyzer {
	return &Analyzer{
		Settings:   settings,
		DS:         ds,
		Extractor:  myaudio.NewExtractor(settings),
		Classifier: cls,
		Engine:     eng,
	}
}

// AnalysisResult is the outcome of scoring one recording.
type AnalysisResult struct {
	Prediction *datastore.AudioPrediction
	Anomaly    bool
	Alerts     []datastore.Alert
}

// Analyze scores one recording for a machine. With an active baseline the
// classifier score is fused with the deviation z-score and the condition
// status comes from the raw deviation; without one the classifier score
// stands alone. Detected anomalies raise maintenance alerts.
func (a *Analyzer) Analyze(ctx context.Context, machineID, filename string, wavData []byte, recordedAt time.Time) (*AnalysisResult, error) {
	machine, err := a.DS.GetMachine(machineID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	features, info, err := a.Extractor.Extract(wavData)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(a.Settings.Classifier.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	predictCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A classifier failure degrades the request to the heuristic scorer
	// instead of failing it; the prediction records which model ran.
	modelUsed := a.Classifier.ModelName()
	classifierScore, err := a.Classifier.Predict(predictCtx, features)
	if err != nil {
		getLogger().Warn("Classifier failed, degrading to heuristic scoring",
			"machine_id", machineID,
			"model", modelUsed,
			"error", err)
		fallback := classifier.NewHeuristic()
		classifierScore, err = fallback.Predict(ctx, features)
		if err != nil {
			return nil, err
		}
		modelUsed = fallback.ModelName()
	}

	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	prediction := &datastore.AudioPrediction{
		PredictionID:    uuid.New().String(),
		MachineID:       machineID,
		Filename:        filename,
		FileSizeBytes:   int64(len(wavData)),
		DurationSeconds: info.Duration(),
		SampleRate:      info.SampleRate,
		ClassifierScore: classifierScore,
		ModelUsed:       modelUsed,
		EngineHours:     machine.EngineHours,
		RecordedAt:      recordedAt,
	}

	// Effective anomaly score: fused when a baseline exists, classifier
	// alone otherwise.
	effectiveScore := classifierScore

	active, err := a.DS.ActiveBaseline(machineID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		detail := baseline.DeviationStats(features, active.Mean, active.Std)
		combinedScore := baseline.Fuse(classifierScore, detail.Avg)

		prediction.DeviationScore = &detail.Avg
		prediction.CombinedScore = &combinedScore
		prediction.BaselineID = &active.ID
		prediction.Status = baseline.StatusForDeviation(detail.Avg)
		effectiveScore = combinedScore

		getLogger().Debug("Baseline comparison",
			"machine_id", machineID,
			"avg_z", detail.Avg,
			"max_z", detail.Max,
			"pct_outliers", detail.PctOutliers)
	} else {
		if anomalyType := classifier.AnomalyTypeForScore(classifierScore); anomalyType != "" {
			prediction.Status = anomalyType
		} else {
			prediction.Status = baseline.StatusNormal
		}
	}

	prediction.ProcessingTimeMs = float64(time.Since(start).Milliseconds())
	if err := a.DS.SavePrediction(prediction); err != nil {
		return nil, err
	}

	result := &AnalysisResult{Prediction: prediction}

	anomalyType := classifier.AnomalyTypeForScore(effectiveScore)
	if anomalyType == "" {
		getLogger().Debug("Recording scored normal",
			"machine_id", machineID,
			"prediction_id", prediction.PredictionID,
			"classifier_score", classifierScore)
		return result, nil
	}

	result.Anomaly = true
	alerts, err := a.Engine.HandleAnomaly(machineID, anomalyType, effectiveScore, prediction.PredictionID)
	if err != nil {
		return nil, err
	}
	result.Alerts = alerts

	getLogger().Info("Anomalous recording processed",
		"machine_id", machineID,
		"prediction_id", prediction.PredictionID,
		"anomaly_type", anomalyType,
		"score", effectiveScore,
		"alerts", len(alerts))
	return result, nil
}
