package main

import (
	"fmt"

	"github.com/erickerk/elitetrack/internal/config"
	"github.com/spf13/cobra"
)

var configKeyHelp = map[string]string{
	"server.url":                  "Elite Track server URL",
	"session.revalidate_interval": "How often 'watch' re-checks the session",
	"logging.level":               "Logging level (debug, info, warn, error)",
	"logging.format":              "Log format (text, json)",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update Elite Track client configuration settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long:  "Display the effective configuration, environment overrides included",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cmd.Printf("Server:\n  URL: %s\n\n", cfg.Server.URL)
		cmd.Printf("Session:\n  Lifetime: %s\n  Revalidate interval: %s\n\n", cfg.Session.TTL, cfg.Session.RevalidateInterval)
		cmd.Printf("Logging:\n  Level: %s\n  Format: %s\n", cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Update configuration value",
	Long:              "Write one configuration value to the config file, e.g. elitetrack config set server.url https://track.example.com",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeyCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		cmd.Printf("Updated %s to: %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configKeyCompletion completes the key argument of 'config set'
func configKeyCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	keys := config.SettableKeys()
	completions := make([]string, 0, len(keys))
	for _, key := range keys {
		completions = append(completions, key+"\t"+configKeyHelp[key])
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
