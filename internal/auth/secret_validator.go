package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// MinSecretLength is the shortest session signing secret accepted
const MinSecretLength = 32

// knownWeakSecrets are shipped defaults and placeholders. Development mode
// accepts them with a warning; production refuses to start.
var knownWeakSecrets = []string{
	"local-dev-session-secret-not-for-production",
	"changeme",
	"secret",
	"password",
	"test",
	"dev",
	"development",
}

// ValidateSecret checks the session signing secret before the server starts
func ValidateSecret(secret string, isDev bool) error {
	if secret == "" {
		return errors.New("ELITETRACK_SESSION_SECRET environment variable is required")
	}

	if slices.Contains(knownWeakSecrets, secret) {
		if !isDev {
			return errors.New("default/weak session secret not allowed in production environment")
		}
		slog.Warn("using a default session secret, not for production use",
			"prefix", secret[:min(8, len(secret))])
		return nil
	}

	if len(secret) < MinSecretLength {
		return fmt.Errorf("session secret must be at least %d characters (got %d)", MinSecretLength, len(secret))
	}
	return nil
}

// IsDevelopmentMode reports whether ELITETRACK_ENV, ENVIRONMENT or GO_ENV
// names a development environment. Anything else is production.
func IsDevelopmentMode() bool {
	for _, name := range []string{"ELITETRACK_ENV", "ENVIRONMENT", "GO_ENV"} {
		switch os.Getenv(name) {
		case "development", "dev":
			return true
		}
	}
	return false
}
