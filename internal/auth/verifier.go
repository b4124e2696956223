package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/erickerk/elitetrack/internal/clock"
)

// Verifier checks an identifier/secret pair against one credential source.
// Verify returns (nil, nil) when the source has no matching credential and an
// error only when the source itself could not be consulted.
type Verifier interface {
	Kind() VerifierKind
	Verify(ctx context.Context, identifier, secret string) (*Account, error)
}

// Match is a successful chain verification
type Match struct {
	Account Account
	Kind    VerifierKind
}

// RequiresPasswordChange reports whether the match came from a temporary password
func (m *Match) RequiresPasswordChange() bool {
	return m.Kind == KindTempPassword
}

// Chain tries verifiers in a fixed priority order and stops at the first match
type Chain struct {
	verifiers []Verifier
}

// NewChain builds a chain. Verifiers must be ordered primary, then fallback,
// then temp-password so that a temporary password is never accepted ahead of
// a permanent credential.
func NewChain(verifiers ...Verifier) (*Chain, error) {
	if len(verifiers) == 0 {
		return nil, errors.New("at least one verifier is required")
	}
	last := VerifierKind(0)
	for i, v := range verifiers {
		if v == nil {
			return nil, fmt.Errorf("verifier %d is nil", i)
		}
		if v.Kind() < last {
			return nil, fmt.Errorf("verifier %d (%s) is ordered after %s", i, v.Kind(), last)
		}
		last = v.Kind()
	}
	return &Chain{verifiers: verifiers}, nil
}

// Kinds returns the chain order
func (c *Chain) Kinds() []VerifierKind {
	kinds := make([]VerifierKind, len(c.verifiers))
	for i, v := range c.verifiers {
		kinds[i] = v.Kind()
	}
	return kinds
}

// Verify returns the first match, (nil, nil) if no verifier matched, or an
// error matching ErrStoreUnavailable if a verifier failed. A failing verifier
// stops the chain: later, weaker sources are not consulted in its place.
func (c *Chain) Verify(ctx context.Context, identifier, secret string) (*Match, error) {
	for _, v := range c.verifiers {
		account, err := v.Verify(ctx, identifier, secret)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			return nil, Unavailable(v.Kind().String()+" verifier", err)
		}
		if account != nil {
			return &Match{Account: *account, Kind: v.Kind()}, nil
		}
	}
	return nil, nil
}

// CredentialLookup finds an account and its stored password hash by email.
// It returns (nil, "", nil) for unknown emails.
type CredentialLookup interface {
	FindCredentials(ctx context.Context, email string) (*Account, string, error)
}

// PasswordVerifier checks bcrypt hashes in the primary account store
type PasswordVerifier struct {
	lookup    CredentialLookup
	passwords *PasswordService
}

// NewPasswordVerifier creates the primary verifier
func NewPasswordVerifier(lookup CredentialLookup, passwords *PasswordService) *PasswordVerifier {
	return &PasswordVerifier{lookup: lookup, passwords: passwords}
}

// Kind returns KindPrimary
func (v *PasswordVerifier) Kind() VerifierKind { return KindPrimary }

// Verify checks secret against the stored hash
func (v *PasswordVerifier) Verify(ctx context.Context, identifier, secret string) (*Account, error) {
	account, hash, err := v.lookup.FindCredentials(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		return nil, err
	}
	if account == nil || hash == "" {
		v.passwords.burn(secret)
		return nil, nil
	}
	if err := v.passwords.VerifyPassword(hash, secret); err != nil {
		return nil, nil
	}
	return account, nil
}

// StaticUser is a fixed development credential
type StaticUser struct {
	Account  Account
	Password string
}

// StaticVerifier serves fixed development accounts. It must only be enabled
// in development mode.
type StaticVerifier struct {
	users map[string]StaticUser
}

// NewStaticVerifier creates a fallback verifier over users
func NewStaticVerifier(users []StaticUser) *StaticVerifier {
	m := make(map[string]StaticUser, len(users))
	for _, u := range users {
		m[NormalizeIdentifier(u.Account.Email)] = u
	}
	return &StaticVerifier{users: m}
}

// Kind returns KindFallback
func (v *StaticVerifier) Kind() VerifierKind { return KindFallback }

// Verify compares secret with the configured password in constant time
func (v *StaticVerifier) Verify(ctx context.Context, identifier, secret string) (*Account, error) {
	u, ok := v.users[NormalizeIdentifier(identifier)]
	if !ok {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(secret)) != 1 {
		return nil, nil
	}
	account := u.Account
	return &account, nil
}

// TempPasswordVerifier accepts single-use temporary passwords. A matched
// temporary password is consumed with a conditional update, so two
// concurrent logins with the same temporary password cannot both succeed.
// Temporary passwords only ever sign in client accounts that have no
// permanent password yet.
type TempPasswordVerifier struct {
	store     TempPasswordStore
	accounts  CredentialLookup
	passwords *PasswordService
	clock     clock.Clock
}

// NewTempPasswordVerifier creates the temp-password verifier
func NewTempPasswordVerifier(store TempPasswordStore, accounts CredentialLookup, passwords *PasswordService, clk clock.Clock) *TempPasswordVerifier {
	if clk == nil {
		clk = clock.System{}
	}
	return &TempPasswordVerifier{
		store:     store,
		accounts:  accounts,
		passwords: passwords,
		clock:     clk,
	}
}

// Kind returns KindTempPassword
func (v *TempPasswordVerifier) Kind() VerifierKind { return KindTempPassword }

// Verify checks secret against the active temporary passwords for identifier
func (v *TempPasswordVerifier) Verify(ctx context.Context, identifier, secret string) (*Account, error) {
	email := NormalizeIdentifier(identifier)
	now := v.clock.Now()

	active, err := v.store.FindActive(ctx, email, now)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		v.passwords.burn(secret)
		return nil, nil
	}

	for _, tp := range active {
		if v.passwords.VerifyPassword(tp.PasswordHash, secret) != nil {
			continue
		}
		account, err := v.accountFor(ctx, tp)
		if err != nil || account == nil {
			return nil, err
		}
		ok, err := v.store.MarkUsed(ctx, tp.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// consumed concurrently
			continue
		}
		return account, nil
	}
	return nil, nil
}

// accountFor resolves the client a temporary password signs in. It returns
// nil for accounts that are not clients or already hold a permanent password.
func (v *TempPasswordVerifier) accountFor(ctx context.Context, tp TempPassword) (*Account, error) {
	if v.accounts != nil {
		account, hash, err := v.accounts.FindCredentials(ctx, tp.Email)
		if err != nil {
			return nil, err
		}
		if account != nil {
			if account.Role != RoleClient || hash != "" {
				return nil, nil
			}
			return account, nil
		}
	}
	name := tp.Email
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return &Account{
		ID:        "TEMP-" + tp.ID,
		Name:      name,
		Email:     tp.Email,
		Role:      RoleClient,
		ProjectID: tp.ProjectID,
	}, nil
}
