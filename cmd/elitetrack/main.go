package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/erickerk/elitetrack/internal/client"
	"github.com/erickerk/elitetrack/internal/config"
	"github.com/erickerk/elitetrack/internal/keychain"
	"github.com/erickerk/elitetrack/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "elitetrack",
	Short:         "Elite Track client",
	Long:          "Sign in to Elite Track, redeem invites and manage invites for your projects.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// keychainFactory allows injecting a mock keychain in tests
var keychainFactory func() keychain.Keychain = func() keychain.Keychain {
	return keychain.NewSystemKeychain(keychain.ServiceName)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newAuthClient loads the client config and builds a client whose session
// lives in the keychain
func newAuthClient(cmd *cobra.Command) (*client.AuthClient, *config.Config, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	mgr := session.NewManager(keychainFactory(), session.NewPolicy(nil, cfg.Session.TTL), logger)
	return client.NewAuthClient(cfg.Server.URL, mgr), cfg, nil
}

// promptLine reads one line from the command's input. It reads a byte at
// a time so consecutive prompts share the same input.
func promptLine(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := cmd.InOrStdin().Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF && sb.Len() > 0 {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// promptSecret reads a secret without echo when stdin is a terminal
func promptSecret(cmd *cobra.Command, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout()) // newline after password
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return promptLine(cmd, label)
}
