package main

import (
	"errors"
	"fmt"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/client"
	"github.com/spf13/cobra"
)

var (
	registerName     string
	registerEmail    string
	registerPhone    string
	registerPassword string
)

var registerCmd = &cobra.Command{
	Use:   "register <invite-token>",
	Short: "Create an account from an invite",
	Long:  "Redeem an invite token received from your installer, create your account and sign in on this device.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "Full name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Email address")
	registerCmd.Flags().StringVar(&registerPhone, "phone", "", "Phone number")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password (will prompt if not provided)")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	defer func() {
		registerName, registerEmail, registerPhone, registerPassword = "", "", "", ""
	}()

	ac, _, err := newAuthClient(cmd)
	if err != nil {
		return err
	}
	token := args[0]

	v, err := ac.ValidateInvite(cmd.Context(), token)
	if err != nil {
		return fmt.Errorf("invite cannot be used: %w", err)
	}
	cmd.Printf("Invite for project %s", v.Invite.ProjectID)
	if v.Invite.VehiclePlate != "" {
		cmd.Printf(" (%s %s)", v.Invite.VehicleInfo, v.Invite.VehiclePlate)
	}
	cmd.Printf(", valid until %s\n", v.Invite.ExpiresAt.Local().Format("2006-01-02 15:04"))

	if registerName == "" {
		registerName = v.Invite.OwnerName
	}
	if registerEmail == "" {
		if registerEmail, err = promptLine(cmd, "Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if registerPassword == "" {
		if registerPassword, err = promptSecret(cmd, "Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		confirm, err := promptSecret(cmd, "Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if confirm != registerPassword {
			return errors.New("passwords do not match")
		}
	}

	st, err := ac.Register(cmd.Context(), token, client.RegisterInput{
		Name:     registerName,
		Email:    registerEmail,
		Phone:    registerPhone,
		Password: registerPassword,
	})
	if err != nil {
		if errors.Is(err, auth.ErrRegistrationConflict) {
			return fmt.Errorf("registration failed: %w\n\nYour account may already exist. Try 'elitetrack login'", err)
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	cmd.Printf("Welcome, %s! Your account for project %s is ready.\n", st.Session.User.Name, st.Session.User.ProjectID)
	return nil
}
