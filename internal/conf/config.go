// Package conf loads and validates application settings from config files,
// environment variables and command line flags via viper.
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tractorcare/tractorcare-go/internal/errors"
)

// LogConfig defines settings for a log file output
type LogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MainSettings contains top-level application settings
type MainSettings struct {
	Name string    `yaml:"name"` // instance name used in logs and MQTT topics
	Log  LogConfig `yaml:"log"`
}

// AudioSettings defines the feature extraction contract. These values must
// match the pipeline the classifier model was trained against.
type AudioSettings struct {
	SampleRate     int     `yaml:"samplerate"`     // target sample rate in Hz
	Duration       float64 `yaml:"duration"`       // analysis window in seconds
	NumCoeffs      int     `yaml:"numcoeffs"`      // MFCC coefficients per frame
	NumFrames      int     `yaml:"numframes"`      // fixed time-frame count
	MinDuration    float64 `yaml:"minduration"`    // reject recordings shorter than this
	MaxFileSizeMB  int     `yaml:"maxfilesizemb"`  // upload size cap
	HighPassHz     float64 `yaml:"highpasshz"`     // high-pass cutoff, 0 disables
	HighPassPasses int     `yaml:"highpasspasses"` // biquad passes (filter order)
}

// ClassifierSettings configures the TFLite anomaly model
type ClassifierSettings struct {
	ModelPath      string `yaml:"modelpath"`
	Threads        int    `yaml:"threads"` // 0 lets the runtime decide
	UseXNNPACK     bool   `yaml:"usexnnpack"`
	TimeoutSeconds int    `yaml:"timeoutseconds"`
}

// BaselineSettings configures baseline collection and statistics
type BaselineSettings struct {
	TargetSamples   int     `yaml:"targetsamples"`   // recommended sample count
	MinSamples      int     `yaml:"minsamples"`      // hard floor for finalize
	ConfidenceScale float64 `yaml:"confidencescale"` // K in confidence = 1 - mean(std)/K
}

// SQLiteSettings contains SQLite output settings
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings contains MySQL output settings
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings selects the persistence backend
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// BlobSettings configures raw audio sample storage
type BlobSettings struct {
	Path string `yaml:"path"`
}

// ScheduleSettings configures the maintenance task catalog
type ScheduleSettings struct {
	CatalogPath string `yaml:"catalogpath"` // external catalog override, empty uses embedded
}

// MQTTSettings configures the optional alert publisher
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotifySettings groups outbound notification settings
type NotifySettings struct {
	MQTT MQTTSettings `yaml:"mqtt"`
}

// Settings is the root configuration structure
type Settings struct {
	Debug bool `yaml:"debug"`

	Main       MainSettings       `yaml:"main"`
	Audio      AudioSettings      `yaml:"audio"`
	Classifier ClassifierSettings `yaml:"classifier"`
	Baseline   BaselineSettings   `yaml:"baseline"`
	Output     OutputSettings     `yaml:"output"`
	Blob       BlobSettings       `yaml:"blob"`
	Schedule   ScheduleSettings   `yaml:"schedule"`
	Notify     NotifySettings     `yaml:"notify"`
}

// FeatureLength returns the flattened feature vector length
func (a *AudioSettings) FeatureLength() int {
	return a.NumCoeffs * a.NumFrames
}

// MaxFileSizeBytes returns the upload size cap in bytes
func (a *AudioSettings) MaxFileSizeBytes() int64 {
	return int64(a.MaxFileSizeMB) * 1024 * 1024
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(configPaths[0], 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}

	if err := SaveYAMLConfig(configPath, settings); err != nil {
		return err
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	// Working directory first so local config wins
	paths = append(paths, ".")

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "tractorcare"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "tractorcare"))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no usable config paths found")
	}

	return paths, nil
}

// SaveYAMLConfig writes settings to the given path as YAML. The write is done
// through a temp file and rename so a crash never leaves a half-written config.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
