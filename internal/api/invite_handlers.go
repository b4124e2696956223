package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// InviteSummary is the public part of a valid invite shown on the
// registration page
type InviteSummary struct {
	ProjectID    string    `json:"project_id"`
	VehiclePlate string    `json:"vehicle_plate"`
	VehicleInfo  string    `json:"vehicle_info"`
	OwnerName    string    `json:"owner_name"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ValidateInviteResponse represents a successful token validation
type ValidateInviteResponse struct {
	Status string        `json:"status"`
	Invite InviteSummary `json:"invite"`
}

// TempPasswordRequest represents the temp password request body
type TempPasswordRequest struct {
	Email     string `json:"email"`
	ProjectID string `json:"project_id"`
	Password  string `json:"password,omitempty"`
}

// NewValidateInviteHandler reports the state of {token}. Validation never
// changes the invite.
func NewValidateInviteHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, result, err := svc.ValidateInviteToken(r.Context(), mux.Vars(r)["token"])
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if result != invite.ResultValid {
			writeError(w, logger, result.Err())
			return
		}

		writeJSON(w, http.StatusOK, ValidateInviteResponse{
			Status: result.String(),
			Invite: InviteSummary{
				ProjectID:    inv.ProjectID,
				VehiclePlate: inv.VehiclePlate,
				VehicleInfo:  inv.VehicleInfo,
				OwnerName:    inv.OwnerName,
				ExpiresAt:    inv.ExpiresAt,
			},
		})
	}
}

// NewGenerateInviteHandler issues an invite for the session's executor
func NewGenerateInviteHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())

		var req invite.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		inv, err := svc.GenerateInvite(r.Context(), sess.User, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, inv)
	}
}

// NewListInvitesHandler lists invites filtered by ?project_id= and ?status=
func NewListInvitesHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())

		q := r.URL.Query()
		filter := invite.Filter{
			ProjectID: q.Get("project_id"),
			CreatedBy: q.Get("created_by"),
		}
		for _, s := range q["status"] {
			filter.Statuses = append(filter.Statuses, invite.Status(s))
		}

		views, err := svc.ListInvites(r.Context(), sess.User, filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if views == nil {
			views = []invite.View{}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// NewRevokeInviteHandler revokes invite {id}. Revoking a used or revoked
// invite is a no-op.
func NewRevokeInviteHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())

		id, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid invite id"})
			return
		}

		if err := svc.RevokeInvite(r.Context(), sess.User, id); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Invite revoked",
		})
	}
}

// NewTempPasswordHandler issues a single-use first-login password
func NewTempPasswordHandler(svc *access.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())

		var req TempPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		issued, err := svc.IssueTempPassword(r.Context(), sess.User, access.TempPasswordRequest{
			Email:     req.Email,
			ProjectID: req.ProjectID,
			Password:  req.Password,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, issued)
	}
}
