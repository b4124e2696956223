package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Long:  "Sign out of Elite Track by removing the session stored in the OS keychain. The device identifier is kept.",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	ac, _, err := newAuthClient(cmd)
	if err != nil {
		return err
	}

	if err := ac.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	cmd.Println("Logged out successfully. Session removed.")
	return nil
}
