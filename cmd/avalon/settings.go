package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alexisbeaulieu97/avalon/internal/config"
)

const settingsFileName = "avalon.yaml"

// resolveSettings finds the settings file from --settings, AVALON_SETTINGS
// or the per-user default, loads it and applies the AVALON_DB and
// AVALON_LOG_LEVEL overrides.
func resolveSettings(cmd *cobra.Command, flags *rootFlags) (*config.Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determine home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AVALON")
	v.SetDefault("settings", filepath.Join(home, config.DefaultDir, settingsFileName))
	for _, key := range []string{"settings", "db", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if flag := cmd.Flags().Lookup("settings"); flag != nil {
		if err := v.BindPFlag("settings", flag); err != nil {
			return nil, err
		}
	}

	settings, err := config.LoadSettingsOrDefault(v.GetString("settings"), home)
	if err != nil {
		return nil, err
	}
	if db := v.GetString("db"); db != "" {
		settings.Database = db
	}
	if level := v.GetString("log_level"); level != "" {
		settings.Log.Level = level
	}
	if flags.verbose {
		settings.Log.Level = "debug"
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
