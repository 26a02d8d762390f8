package conf

import (
	"strings"

	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// ValidateSettings checks configuration consistency before anything starts.
func ValidateSettings(settings *Settings) error {
	var validationErrors []string

	if settings.Audio.SampleRate <= 0 {
		validationErrors = append(validationErrors, "audio.samplerate must be positive")
	}
	if settings.Audio.Duration <= 0 {
		validationErrors = append(validationErrors, "audio.duration must be positive")
	}
	if settings.Audio.NumCoeffs <= 0 || settings.Audio.NumFrames <= 0 {
		validationErrors = append(validationErrors, "audio.numcoeffs and audio.numframes must be positive")
	}
	if settings.Audio.MinDuration < 0 || settings.Audio.MinDuration > settings.Audio.Duration {
		validationErrors = append(validationErrors, "audio.minduration must be within [0, audio.duration]")
	}
	if settings.Audio.HighPassHz < 0 {
		validationErrors = append(validationErrors, "audio.highpasshz must not be negative")
	}
	if settings.Audio.HighPassHz >= float64(settings.Audio.SampleRate)/2 {
		validationErrors = append(validationErrors, "audio.highpasshz must be below the Nyquist frequency")
	}

	if settings.Classifier.TimeoutSeconds <= 0 {
		validationErrors = append(validationErrors, "classifier.timeoutseconds must be positive")
	}

	if settings.Baseline.MinSamples < 3 {
		validationErrors = append(validationErrors, "baseline.minsamples must be at least 3")
	}
	if settings.Baseline.TargetSamples < settings.Baseline.MinSamples {
		validationErrors = append(validationErrors, "baseline.targetsamples must be >= baseline.minsamples")
	}
	if settings.Baseline.ConfidenceScale <= 0 {
		validationErrors = append(validationErrors, "baseline.confidencescale must be positive")
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		validationErrors = append(validationErrors, "at least one of output.sqlite or output.mysql must be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		validationErrors = append(validationErrors, "output.sqlite.path must be set when sqlite is enabled")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			validationErrors = append(validationErrors, "output.mysql.host and output.mysql.database must be set when mysql is enabled")
		}
	}

	if settings.Notify.MQTT.Enabled && settings.Notify.MQTT.Broker == "" {
		validationErrors = append(validationErrors, "notify.mqtt.broker must be set when mqtt is enabled")
	}

	if len(validationErrors) > 0 {
		return errors.Newf("invalid configuration: %s", strings.Join(validationErrors, "; ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("error_count", len(validationErrors)).
			Build()
	}

	return nil
}
