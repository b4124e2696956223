package main

import (
	"time"

	"github.com/spf13/cobra"
)

var whoamiOffline bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Long:  "Show the account of the stored session after confirming it with the server. With --offline only the local session is checked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer func() { whoamiOffline = false }()

		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}

		st, err := ac.Sessions().Current(cmd.Context())
		if err != nil {
			return err
		}
		sess := &st.Session
		if !whoamiOffline {
			if sess, err = ac.Whoami(cmd.Context()); err != nil {
				return err
			}
		}

		cmd.Printf("Name:    %s\n", sess.User.Name)
		cmd.Printf("Email:   %s\n", sess.User.Email)
		cmd.Printf("Role:    %s\n", sess.User.Role)
		if sess.User.ProjectID != "" {
			cmd.Printf("Project: %s\n", sess.User.ProjectID)
		}
		cmd.Printf("Expires: %s (in %s)\n", sess.ExpiresAt.Local().Format(time.RFC3339),
			time.Until(sess.ExpiresAt).Truncate(time.Minute))
		if sess.RequiresPasswordChange {
			cmd.Println("Password change required: run 'elitetrack password'")
		}
		return nil
	},
}

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Print this device's identifier",
	Long:  "Print the identifier sessions on this machine are bound to. It is created on first use and kept across logouts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}
		id, err := ac.Sessions().DeviceID(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

func init() {
	whoamiCmd.Flags().BoolVar(&whoamiOffline, "offline", false, "Only check the local session")
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(deviceCmd)
}
