package main

import (
	"fmt"
	"os"

	"github.com/erickerk/elitetrack/internal/config"
	"github.com/spf13/cobra"
)

var initServerURL string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  "Create the configuration file used by the Elite Track client",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() { initServerURL = "" }()

		configDir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration already exists at %s\n\nTo reconfigure, edit the file or run 'elitetrack config set <key> <value>'", configPath)
		}

		cfg := config.Default()
		if initServerURL != "" {
			if err := cfg.Set("server.url", initServerURL); err != nil {
				return err
			}
		}

		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		cmd.Printf("Configuration initialized at %s\n", configDir)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initServerURL, "server", "", "Server URL (default http://localhost:8080)")
	rootCmd.AddCommand(initCmd)
}
