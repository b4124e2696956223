package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// projectCodePatterns are the project code formats issued by the portal
var projectCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^PRJ-\d{4}-\d{3}$`),
	regexp.MustCompile(`^[A-Z]{3}-\d{4}$`),
	regexp.MustCompile(`^ELITE-PRJ-\d{4}-\d{3}-QR$`),
	regexp.MustCompile(`^\d{4}-\d{3}$`),
}

// ValidatePassword enforces password complexity requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !(hasUpper && hasLower && hasNumber && hasSpecial) {
		return errors.New("password must contain uppercase, lowercase, number, and special character")
	}

	return nil
}

// ValidateEmail checks the shape of an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return errors.New("invalid email address")
	}
	return nil
}

// IsValidProjectCode reports whether code matches a known project code format
func IsValidProjectCode(code string) bool {
	for _, p := range projectCodePatterns {
		if p.MatchString(code) {
			return true
		}
	}
	return false
}

// TruncateIdentifier shortens an identifier for logs so that full emails and
// tokens are never written out.
func TruncateIdentifier(identifier string) string {
	const limit = 20
	if len(identifier) <= limit {
		return identifier
	}
	return identifier[:limit]
}

var sensitiveKeys = []string{"password", "token", "key", "secret", "email", "phone"}

// Redact returns a copy of fields with sensitive values replaced
func Redact(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		lower := strings.ToLower(k)
		redacted := false
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				redacted = true
				break
			}
		}
		if redacted {
			out[k] = "[REDACTED]"
		} else {
			out[k] = v
		}
	}
	return out
}
