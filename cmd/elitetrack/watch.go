package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check the session until it ends",
	Long:  "Periodically re-check the stored session and exit when it expires, is removed or no longer matches this device.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() { watchInterval = 0 }()

		ac, cfg, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		interval := watchInterval
		if interval <= 0 {
			interval = cfg.Session.RevalidateInterval
		}

		st, err := ac.Sessions().Current(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Watching session for %s (every %s)\n", st.Session.User.Email, interval)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var ended error
		ac.Sessions().Watch(ctx, interval, func(err error) {
			ended = err
		})
		if ended != nil {
			cmd.Printf("Session ended: %v\n", ended)
			return ended
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Revalidation interval (default from config)")
	rootCmd.AddCommand(watchCmd)
}
