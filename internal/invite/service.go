package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long a new invite stays redeemable
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultStoreTimeout bounds a store call when the caller set no deadline
	DefaultStoreTimeout = 5 * time.Second

	maxTokenAttempts = 5
)

// ErrInvalidRequest is returned by Generate for malformed input
var ErrInvalidRequest = errors.New("invalid invite request")

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	TTL          time.Duration
	StoreTimeout time.Duration
}

// Owner is the contact data of the vehicle owner an invite is addressed to
type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// GenerateRequest describes a new invite
type GenerateRequest struct {
	ProjectID    string `json:"project_id"`
	VehiclePlate string `json:"vehicle_plate"`
	VehicleInfo  string `json:"vehicle_info"`
	Owner        Owner  `json:"owner"`
	CreatedBy    string `json:"-"`
}

// Validate checks the request fields
func (r GenerateRequest) Validate() error {
	if !auth.IsValidProjectCode(r.ProjectID) {
		return fmt.Errorf("%w: unrecognised project code %q", ErrInvalidRequest, r.ProjectID)
	}
	if strings.TrimSpace(r.Owner.Name) == "" {
		return fmt.Errorf("%w: owner name is required", ErrInvalidRequest)
	}
	if r.Owner.Email != "" {
		if err := auth.ValidateEmail(r.Owner.Email); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

// Service manages the invite lifecycle over a Store
type Service struct {
	store   Store
	clock   clock.Clock
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates an invite service. A nil clock uses the system clock
// and a nil logger discards.
func NewService(store Store, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Service{
		store:   store,
		clock:   clk,
		ttl:     cfg.TTL,
		timeout: cfg.StoreTimeout,
		logger:  logger,
	}
}

// bounded applies the store timeout unless ctx already carries a deadline
func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Generate creates and persists a pending invite. The invite must not be
// handed out unless err is nil.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Invite, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	now := s.clock.Now()
	inv := Invite{
		ID:           uuid.New(),
		ProjectID:    req.ProjectID,
		VehiclePlate: strings.TrimSpace(req.VehiclePlate),
		VehicleInfo:  strings.TrimSpace(req.VehicleInfo),
		OwnerName:    strings.TrimSpace(req.Owner.Name),
		OwnerEmail:   auth.NormalizeIdentifier(req.Owner.Email),
		OwnerPhone:   strings.TrimSpace(req.Owner.Phone),
		Status:       StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
		CreatedBy:    req.CreatedBy,
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite token: %w", err)
		}
		inv.Token = token

		err = s.store.Insert(ctx, inv)
		if errors.Is(err, ErrDuplicateToken) {
			continue
		}
		if err != nil {
			s.logger.Error("invite insert failed", "project_id", inv.ProjectID, "error", err)
			return nil, auth.Unavailable("insert invite", err)
		}

		s.logger.Info("invite created",
			"invite_id", inv.ID.String(),
			"project_id", inv.ProjectID,
			"expires_at", inv.ExpiresAt,
		)
		return &inv, nil
	}
	return nil, auth.Unavailable("insert invite", errors.New("could not allocate a unique token"))
}

// Validate reports the state of token without modifying it
func (s *Service) Validate(ctx context.Context, token string) (*Invite, Result, error) {
	token = NormalizeToken(token)
	if !WellFormed(token) {
		return nil, ResultNotFound, nil
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	inv, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, ResultNotFound, auth.Unavailable("find invite", err)
	}
	if inv == nil {
		return nil, ResultNotFound, nil
	}
	return inv, resultFor(Derive(*inv, s.clock.Now())), nil
}

// Consume redeems token for redeemer. It returns false without error when
// the invite is not consumable at the time of the write; Validate tells why.
//
// A ctx that is already done fails before the write. Once issued the write
// is not cancelled with ctx, so the caller never has to guess whether it
// landed, but it still ends at the earlier of ctx's deadline and the store
// timeout. A store failure or timeout returns false.
func (s *Service) Consume(ctx context.Context, token, redeemer string) (bool, error) {
	if redeemer == "" {
		return false, errors.New("redeemer account id is required")
	}
	token = NormalizeToken(token)
	if !WellFormed(token) {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, auth.Unavailable("consume invite", err)
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancel()

	now := s.clock.Now()
	ok, err := s.store.CompareAndSetStatus(ctx, token, StatusPending, StatusUsed, Transition{
		At:      now,
		By:      redeemer,
		ValidAt: now,
	})
	if err != nil {
		s.logger.Error("invite consume failed", "redeemer", redeemer, "error", err)
		return false, auth.Unavailable("consume invite", err)
	}
	if ok {
		s.logger.Info("invite consumed", "redeemer", redeemer)
	}
	return ok, nil
}

// Revoke moves a pending invite to revoked. Revoking a used or revoked invite
// is a no-op.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	inv, err := s.store.FindByID(ctx, id)
	if err != nil {
		return auth.Unavailable("find invite", err)
	}
	if inv == nil {
		return auth.ErrNotFound
	}
	if inv.Status.Terminal() {
		return nil
	}

	ok, err := s.store.CompareAndSetStatus(ctx, inv.Token, StatusPending, StatusRevoked, Transition{At: s.clock.Now()})
	if err != nil {
		return auth.Unavailable("revoke invite", err)
	}
	if ok {
		s.logger.Info("invite revoked", "invite_id", id.String(), "project_id", inv.ProjectID)
	}
	return nil
}

// List returns matching invites with their effective status
func (s *Service) List(ctx context.Context, f Filter) ([]View, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	invites, err := s.store.List(ctx, f)
	if err != nil {
		return nil, auth.Unavailable("list invites", err)
	}

	now := s.clock.Now()
	views := make([]View, len(invites))
	for i, inv := range invites {
		views[i] = View{Invite: inv, Effective: Derive(inv, now)}
	}
	return views, nil
}
