package main

import (
	"errors"
	"fmt"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Elite Track",
	Long:  "Sign in to the Elite Track server and store the session in the OS keychain, bound to this device.",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (will prompt if not provided)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	// Reset flags for reuse in tests
	defer func() {
		loginEmail = ""
		loginPassword = ""
	}()

	ac, _, err := newAuthClient(cmd)
	if err != nil {
		return err
	}

	if loginEmail == "" {
		if loginEmail, err = promptLine(cmd, "Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if loginPassword == "" {
		if loginPassword, err = promptSecret(cmd, "Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	st, err := ac.Login(cmd.Context(), loginEmail, loginPassword)
	if err != nil {
		if minutes, ok := rateLimited(err); ok {
			return fmt.Errorf("login failed: too many failed attempts, try again in %d minutes", minutes)
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if info, infoErr := ac.RateLimitInfo(cmd.Context(), loginEmail); infoErr == nil && !info.IsLocked {
				return fmt.Errorf("login failed: invalid credentials (%d attempts remaining)", info.AttemptsRemaining)
			}
		}
		return fmt.Errorf("login failed: %w", err)
	}

	cmd.Printf("Login successful! Signed in as %s (%s).\n", st.Session.User.Name, st.Session.User.Role)
	if st.Session.RequiresPasswordChange {
		cmd.Println("You signed in with a temporary password. Run 'elitetrack password' to choose a new one.")
	}
	return nil
}

func rateLimited(err error) (int, bool) {
	var rl *auth.RateLimitedError
	if errors.As(err, &rl) {
		return rl.RemainingMinutes, true
	}
	return 0, false
}
