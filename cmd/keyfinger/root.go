package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ayusman/keyfinger/internal/config"
	"github.com/ayusman/keyfinger/internal/logging"
)

// app carries state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	viper      *viper.Viper
	configFile string
	settings   *config.Settings
	logger     *logrus.Logger

	// bindings maps subcommand flags to config keys. They are bound when
	// the subcommand runs since several subcommands share keys.
	bindings map[*cobra.Command]map[string]string
}

// bind registers flag to config key bindings for cmd.
func (a *app) bind(cmd *cobra.Command, keys map[string]string) {
	a.bindings[cmd] = keys
}

func (a *app) component(name string) *logrus.Entry {
	return logging.Component(a.logger, name)
}

func newRootCommand() *cobra.Command {
	a := &app{
		viper:    viper.New(),
		bindings: make(map[*cobra.Command]map[string]string),
	}

	rootCmd := &cobra.Command{
		Use:           "keyfinger",
		Short:         "Keystroke finger attribution",
		Long:          "Calibrate key positions from camera frames and attribute keystrokes to fingers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default ./config.yaml or ~/.keyfinger/config.yaml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("backend", config.BackendFile, "Calibration backend: file or sqlite")
	flags.String("calibration-file", "keyboard_calibration.txt", "Calibration file for the file backend")
	flags.String("database", "keyfinger.db", "SQLite database for the sqlite backend")
	flags.String("reference", "ri", "Finger recorded as a key's position")

	bindFlags(a.viper, flags, map[string]string{
		"log-level":        "log.level",
		"backend":          "calibration.backend",
		"calibration-file": "calibration.file",
		"database":         "calibration.database",
		"reference":        "calibration.reference",
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.initialize(cmd)
	}

	rootCmd.AddCommand(
		serveCommand(a),
		recordCommand(a),
		inferCommand(a),
		calibrationsCommand(a),
	)

	return rootCmd
}

// initialize loads settings and builds the logger before any subcommand runs.
func (a *app) initialize(cmd *cobra.Command) error {
	bindFlags(a.viper, cmd.Flags(), a.bindings[cmd])

	settings, err := config.Load(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	opts := logging.Options{
		Level:      settings.Log.Level,
		File:       settings.Log.File,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxAgeDays: settings.Log.MaxAgeDays,
		MaxBackups: settings.Log.MaxBackups,
	}
	if w := cmd.ErrOrStderr(); w != os.Stderr {
		opts.Output = w
	}

	logger, err := logging.New(opts)
	if err != nil {
		return err
	}
	a.logger = logger

	a.component("main").WithFields(logrus.Fields{
		"config":  a.viper.ConfigFileUsed(),
		"backend": settings.Calibration.Backend,
	}).Debug("configuration loaded")

	return nil
}

// bindFlags binds each named flag to its viper key. Flags only override
// the config file when they are set explicitly.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("bindFlags: unknown flag %q", name))
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("bindFlags: %v", err))
		}
	}
}
