package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Choose a new password",
	Long:  "Set a new permanent password for the signed-in account. Required after signing in with a temporary password.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ac, _, err := newAuthClient(cmd)
		if err != nil {
			return err
		}

		pw, err := promptSecret(cmd, "New password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		confirm, err := promptSecret(cmd, "Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if pw != confirm {
			return errors.New("passwords do not match")
		}

		if _, err := ac.ChangePassword(cmd.Context(), pw); err != nil {
			return fmt.Errorf("password change failed: %w", err)
		}
		cmd.Println("Password updated.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
}
