// Package analyze implements the audio analysis command.
package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tractorcare/tractorcare-go/internal/bootstrap"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/engine"
)

// Command creates the analyze command for scoring a single recording.
func Command(settings *conf.Settings) *cobra.Command {
	var recordedAt string

	cmd := &cobra.Command{
		Use:   "analyze [machine-id] [input.wav]",
		Short: "Analyze an engine sound recording",
		Long:  `Score a WAV recording of the machine's engine against its classifier and acoustic baseline, raising maintenance alerts for detected anomalies.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, inputFile := args[0], args[1]

			var recorded time.Time
			if recordedAt != "" {
				var err error
				recorded, err = time.Parse(time.RFC3339, recordedAt)
				if err != nil {
					return fmt.Errorf("invalid recorded-at %q, expected RFC 3339: %w", recordedAt, err)
				}
			}

			wavData, err := os.ReadFile(inputFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", inputFile, err)
			}

			rt, err := bootstrap.Open(settings)
			if err != nil {
				return err
			}
			defer rt.Close()

			analyzer, err := rt.Analyzer()
			if err != nil {
				return err
			}

			result, err := analyzer.Analyze(cmd.Context(), machineID, filepath.Base(inputFile), wavData, recorded)
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordedAt, "recorded-at", "", "Recording timestamp (RFC 3339), defaults to now")

	return cmd
}

func printResult(result *engine.AnalysisResult) {
	prediction := result.Prediction

	fmt.Printf("Prediction:      %s\n", prediction.PredictionID)
	fmt.Printf("Status:          %s\n", prediction.Status)
	fmt.Printf("Classifier:      %.3f (%s)\n", prediction.ClassifierScore, prediction.ModelUsed)
	if prediction.DeviationScore != nil {
		fmt.Printf("Deviation:       %.3f\n", *prediction.DeviationScore)
	}
	if prediction.CombinedScore != nil {
		fmt.Printf("Combined:        %.3f\n", *prediction.CombinedScore)
	}
	fmt.Printf("Processing time: %.0f ms\n", prediction.ProcessingTimeMs)

	if !result.Anomaly {
		fmt.Println("No anomaly detected.")
		return
	}

	fmt.Printf("Anomaly detected, %d alert(s) raised:\n", len(result.Alerts))
	for i := range result.Alerts {
		alert := &result.Alerts[i]
		fmt.Printf("  %s [%s] due %s: %s\n",
			alert.TaskName, alert.Priority, alert.DueDate.Format("2006-01-02"), alert.Description)
	}
}
