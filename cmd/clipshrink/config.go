package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipshrink/internal/config"
	"go.klb.dev/clipshrink/internal/logging"
	"go.klb.dev/clipshrink/internal/notify"
)

// envKeyReplacer maps flag names like log-level onto CLIPSHRINK_LOG_LEVEL.
var envKeyReplacer = strings.NewReplacer("-", "_")

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPSHRINK_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPSHRINK_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipshrink")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipshrink/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/clipshrink", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPSHRINK")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addSettingsFlag adds the --settings flag naming the transcode settings file.
func addSettingsFlag(cmd *cobra.Command) {
	cmd.Flags().String("settings", "", "path to settings.toml (default: user config dir)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// openSettings opens the transcode settings file named by --settings, or the
// default one.
func openSettings(v *viper.Viper) (*config.Store, error) {
	path := v.GetString("settings")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Open(path)
}

// newSink builds the notification sink for --notify.
func newSink(mode string) notify.Sink {
	switch mode {
	case "none":
		return notify.Multi{}
	case "log":
		return notify.Log{}
	default:
		d, err := notify.NewDesktop()
		if err != nil {
			slog.Warn("desktop notifications unavailable, logging instead", "err", err)
			return notify.Log{}
		}
		return notify.Multi{notify.Log{}, d}
	}
}
