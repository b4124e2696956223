package main

import (
	"context"
	"time"

	"github.com/erickerk/elitetrack/internal/client"
	"github.com/erickerk/elitetrack/internal/config"
	"github.com/spf13/cobra"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version number of the Elite Track client, optionally checking it against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("elitetrack version %s\n", version)
		if !versionCheck {
			return nil
		}
		defer func() { versionCheck = false }()

		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		c := client.NewClient(cfg.Server.URL)
		health, err := c.Health(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("server %s version %s (minimum client %s)\n", c.BaseURL(), health.Version, health.MinClientVersion)
		return c.CheckCompatibility(ctx, version)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check compatibility with the configured server")
	rootCmd.AddCommand(versionCmd)
}
