// Package config loads keyfinger settings from config.yaml, .env and
// KEYFINGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ayusman/keyfinger/internal/finger"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "KEYFINGER"

// Calibration backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Settings is the full keyfinger configuration.
type Settings struct {
	Server struct {
		Addr      string `mapstructure:"addr"`
		StaticDir string `mapstructure:"static_dir"`
	} `mapstructure:"server"`

	Calibration struct {
		Backend   string `mapstructure:"backend"`
		File      string `mapstructure:"file"`
		Database  string `mapstructure:"database"`
		Reference string `mapstructure:"reference"`
	} `mapstructure:"calibration"`

	Detector struct {
		MaxHands              int           `mapstructure:"max_hands"`
		MinConfidence         float64       `mapstructure:"min_confidence"`
		MinTrackingConfidence float64       `mapstructure:"min_tracking_confidence"`
		Script                string        `mapstructure:"script"`
		Python                string        `mapstructure:"python"`
		IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"detector"`

	Output struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"output"`

	Camera struct {
		Device int    `mapstructure:"device"`
		URL    string `mapstructure:"url"`
	} `mapstructure:"camera"`

	Coach struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"coach"`

	Tray struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tray"`

	Log struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
		MaxBackups int    `mapstructure:"max_backups"`
	} `mapstructure:"log"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("calibration.backend", BackendFile)
	v.SetDefault("calibration.file", "keyboard_calibration.txt")
	v.SetDefault("calibration.database", "keyfinger.db")
	v.SetDefault("calibration.reference", string(finger.RightIndex))

	v.SetDefault("detector.max_hands", 2)
	v.SetDefault("detector.min_confidence", 0.5)
	v.SetDefault("detector.min_tracking_confidence", 0.5)
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.python", "")
	v.SetDefault("detector.idle_timeout", 30*time.Second)

	v.SetDefault("output.dir", "")

	v.SetDefault("camera.device", -1)
	v.SetDefault("camera.url", "")

	v.SetDefault("coach.enabled", true)
	v.SetDefault("tray.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.max_backups", 3)
}

// Load reads settings into v. configFile overrides the search path; when it
// is empty config.yaml is looked up in the working directory and
// $HOME/.keyfinger, and a missing file is not an error. A .env file in the
// working directory is loaded into the environment first.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".keyfinger"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// Validate checks settings for values the rest of the program cannot use.
func Validate(s *Settings) error {
	var errs []error

	switch s.Calibration.Backend {
	case BackendFile:
		if s.Calibration.File == "" {
			errs = append(errs, errors.New("calibration.file is required for the file backend"))
		}
	case BackendSQLite:
		if s.Calibration.Database == "" {
			errs = append(errs, errors.New("calibration.database is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("calibration.backend %q must be %q or %q", s.Calibration.Backend, BackendFile, BackendSQLite))
	}

	if !finger.Label(s.Calibration.Reference).Valid() {
		errs = append(errs, fmt.Errorf("calibration.reference %q is not a finger label", s.Calibration.Reference))
	}
	if s.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector.max_hands must be at least 1, got %d", s.Detector.MaxHands))
	}
	for name, c := range map[string]float64{
		"detector.min_confidence":          s.Detector.MinConfidence,
		"detector.min_tracking_confidence": s.Detector.MinTrackingConfidence,
	} {
		if c < 0 || c > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", name, c))
		}
	}

	return errors.Join(errs...)
}
