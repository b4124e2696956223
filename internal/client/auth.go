package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/api"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/erickerk/elitetrack/internal/session"
)

// ErrNotAuthenticated is returned when no valid local session is available
var ErrNotAuthenticated = errors.New("not authenticated: please run 'elitetrack login' first")

// AuthClient is a Client that keeps the session in the OS keychain
type AuthClient struct {
	*Client
	sessions *session.Manager
}

// NewAuthClient creates a client storing its session through sessions
func NewAuthClient(baseURL string, sessions *session.Manager) *AuthClient {
	return &AuthClient{
		Client:   NewClient(baseURL),
		sessions: sessions,
	}
}

// RegisterInput is the account data submitted with an invite token
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

func (ac *AuthClient) deviceHeader(ctx context.Context) (http.Header, error) {
	deviceID, err := ac.sessions.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set(middleware.DeviceIDHeader, deviceID)
	return h, nil
}

func (ac *AuthClient) store(ctx context.Context, resp api.SessionResponse) (*session.Stored, error) {
	if resp.Session == nil || resp.AccessToken == "" {
		return nil, errors.New("server returned no session")
	}
	st := session.Stored{Token: resp.AccessToken, Session: *resp.Session}
	if err := ac.sessions.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &st, nil
}

// Login authenticates with the server and stores the session
func (ac *AuthClient) Login(ctx context.Context, email, password string) (*session.Stored, error) {
	header, err := ac.deviceHeader(ctx)
	if err != nil {
		return nil, err
	}
	var resp api.SessionResponse
	err = ac.call(ctx, http.MethodPost, "/auth/login", header,
		api.LoginRequest{Email: email, Password: password}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return ac.store(ctx, resp)
}

// Register redeems an invite token and stores the new session
func (ac *AuthClient) Register(ctx context.Context, token string, in RegisterInput) (*session.Stored, error) {
	header, err := ac.deviceHeader(ctx)
	if err != nil {
		return nil, err
	}
	var resp api.SessionResponse
	err = ac.call(ctx, http.MethodPost, "/auth/register", header, api.RegisterRequest{
		Token:    token,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Password: in.Password,
	}, http.StatusCreated, &resp)
	if err != nil {
		return nil, err
	}
	return ac.store(ctx, resp)
}

// Logout tells the server and always clears the local session
func (ac *AuthClient) Logout(ctx context.Context) error {
	header := http.Header{}
	if st, err := ac.sessions.Current(ctx); err == nil {
		header.Set("Authorization", "Bearer "+st.Token)
	}
	// best effort, the local session is cleared regardless
	_ = ac.call(ctx, http.MethodPost, "/auth/logout", header, nil, http.StatusOK, nil)
	return ac.sessions.Invalidate(ctx)
}

// authed sends an authenticated request. A 401 clears the local session.
func (ac *AuthClient) authed(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	st, err := ac.sessions.Current(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			return ErrNotAuthenticated
		}
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+st.Token)
	header.Set(middleware.DeviceIDHeader, st.Session.DeviceID)

	err = ac.call(ctx, method, path, header, in, want, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		if clearErr := ac.sessions.Invalidate(ctx); clearErr != nil {
			return errors.Join(err, clearErr)
		}
	}
	return err
}

// Whoami confirms the stored session with the server
func (ac *AuthClient) Whoami(ctx context.Context) (*session.Session, error) {
	var sess session.Session
	if err := ac.authed(ctx, http.MethodGet, "/auth/session", nil, http.StatusOK, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ChangePassword sets a permanent password and stores the re-issued session
func (ac *AuthClient) ChangePassword(ctx context.Context, newPassword string) (*session.Stored, error) {
	var resp api.SessionResponse
	err := ac.authed(ctx, http.MethodPost, "/auth/password",
		api.ChangePasswordRequest{Password: newPassword}, http.StatusOK, &resp)
	if err != nil {
		return nil, err
	}
	return ac.store(ctx, resp)
}

// RateLimitInfo returns the lockout state for email
func (ac *AuthClient) RateLimitInfo(ctx context.Context, email string) (*api.RateLimitResponse, error) {
	var info api.RateLimitResponse
	path := "/auth/rate-limit?email=" + url.QueryEscape(email)
	if err := ac.call(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ValidateInvite checks an invite token without using it
func (ac *AuthClient) ValidateInvite(ctx context.Context, token string) (*api.ValidateInviteResponse, error) {
	var resp api.ValidateInviteResponse
	path := "/invites/" + url.PathEscape(invite.NormalizeToken(token))
	if err := ac.call(ctx, http.MethodGet, path, nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateInvite issues an invite. Requires an executor or admin session.
func (ac *AuthClient) GenerateInvite(ctx context.Context, req invite.GenerateRequest) (*invite.Invite, error) {
	var inv invite.Invite
	if err := ac.authed(ctx, http.MethodPost, "/invites", req, http.StatusCreated, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvites lists invites for projectID, or all when empty
func (ac *AuthClient) ListInvites(ctx context.Context, projectID string) ([]invite.View, error) {
	path := "/invites"
	if projectID != "" {
		path += "?project_id=" + url.QueryEscape(projectID)
	}
	var views []invite.View
	if err := ac.authed(ctx, http.MethodGet, path, nil, http.StatusOK, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// RevokeInvite revokes the invite with id
func (ac *AuthClient) RevokeInvite(ctx context.Context, id string) error {
	return ac.authed(ctx, http.MethodPost, "/invites/"+url.PathEscape(id)+"/revoke", nil, http.StatusOK, nil)
}

// IssueTempPassword creates a first-login password for email
func (ac *AuthClient) IssueTempPassword(ctx context.Context, email, projectID string) (*access.IssuedTempPassword, error) {
	var issued access.IssuedTempPassword
	err := ac.authed(ctx, http.MethodPost, "/temp-passwords",
		api.TempPasswordRequest{Email: email, ProjectID: projectID}, http.StatusCreated, &issued)
	if err != nil {
		return nil, err
	}
	return &issued, nil
}

// Sessions returns the local session manager
func (ac *AuthClient) Sessions() *session.Manager {
	return ac.sessions
}
