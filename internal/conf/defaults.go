package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
// Audio defaults are the exact extraction contract the bundled classifier
// model was trained against; do not change them without retraining.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "TractorCare-Go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/tractorcare.log")

	// Audio feature extraction
	viper.SetDefault("audio.samplerate", 16000)
	viper.SetDefault("audio.duration", 10.0)
	viper.SetDefault("audio.numcoeffs", 40)
	viper.SetDefault("audio.numframes", 100)
	viper.SetDefault("audio.minduration", 0.5)
	viper.SetDefault("audio.maxfilesizemb", 50)
	viper.SetDefault("audio.highpasshz", 100.0)
	viper.SetDefault("audio.highpasspasses", 5)

	// Classifier
	viper.SetDefault("classifier.modelpath", "")
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.usexnnpack", true)
	viper.SetDefault("classifier.timeoutseconds", 30)

	// Baseline
	viper.SetDefault("baseline.targetsamples", 5)
	viper.SetDefault("baseline.minsamples", 3)
	viper.SetDefault("baseline.confidencescale", 10.0)

	// Output
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "tractorcare.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "tractorcare")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "tractorcare")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	// Blob storage
	viper.SetDefault("blob.path", "audio_uploads")

	// Schedule catalog
	viper.SetDefault("schedule.catalogpath", "")

	// Notifications
	viper.SetDefault("notify.mqtt.enabled", false)
	viper.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("notify.mqtt.topic", "tractorcare/alerts")
	viper.SetDefault("notify.mqtt.username", "")
	viper.SetDefault("notify.mqtt.password", "")
}
