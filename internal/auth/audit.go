package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEvent represents an audit log event type
type AuditEvent string

const (
	// Authentication events
	AuditLoginSuccess     AuditEvent = "auth.login.success"
	AuditLoginFailure     AuditEvent = "auth.login.failure"
	AuditLoginRateLimited AuditEvent = "auth.login.rate_limited"
	AuditLogout           AuditEvent = "auth.logout"
	AuditRegisterSuccess  AuditEvent = "auth.register.success"
	AuditRegisterConflict AuditEvent = "auth.register.conflict"
	AuditPasswordChanged  AuditEvent = "auth.password.changed"

	// Invite and credential management events
	AuditInviteCreated      AuditEvent = "user.invite.created"
	AuditInviteAccepted     AuditEvent = "user.invite.accepted"
	AuditInviteRevoked      AuditEvent = "user.invite.revoked"
	AuditTempPasswordIssued AuditEvent = "auth.temp_password.issued"
)

// AuditActorType represents the type of actor performing the action
type AuditActorType string

const (
	ActorTypeUser      AuditActorType = "user"
	ActorTypeAnonymous AuditActorType = "anonymous"
	ActorTypeSystem    AuditActorType = "system"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         uuid.UUID
	EventType  AuditEvent
	ActorType  AuditActorType
	ActorID    string
	TargetType string
	TargetID   string
	Details    map[string]interface{}
	ClientIP   string
	CreatedAt  time.Time
}

// AuditLogger is an interface for logging audit events
type AuditLogger interface {
	Log(entry *AuditLog) error
}

// InMemoryAuditLogger is a simple in-memory audit logger for development and tests
type InMemoryAuditLogger struct {
	mu   sync.Mutex
	logs []AuditLog
}

// NewInMemoryAuditLogger creates a new in-memory audit logger
func NewInMemoryAuditLogger() *InMemoryAuditLogger {
	return &InMemoryAuditLogger{
		logs: make([]AuditLog, 0),
	}
}

// Log adds an audit log entry
func (l *InMemoryAuditLogger) Log(entry *AuditLog) error {
	stamp(entry)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, *entry)
	return nil
}

// GetLogs returns all audit logs
func (l *InMemoryAuditLogger) GetLogs() []AuditLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditLog, len(l.logs))
	copy(out, l.logs)
	return out
}

// Count returns the number of entries with the given event type
func (l *InMemoryAuditLogger) Count(event AuditEvent) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.logs {
		if e.EventType == event {
			n++
		}
	}
	return n
}

// SlogAuditLogger writes audit entries as structured log records
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger on top of logger
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	return &SlogAuditLogger{logger: logger}
}

// Log emits entry at info level with sensitive details redacted
func (l *SlogAuditLogger) Log(entry *AuditLog) error {
	stamp(entry)
	attrs := []slog.Attr{
		slog.String("audit_id", entry.ID.String()),
		slog.String("event", string(entry.EventType)),
		slog.String("actor_type", string(entry.ActorType)),
		slog.String("actor_id", entry.ActorID),
		slog.String("target_type", entry.TargetType),
		slog.String("target_id", entry.TargetID),
		slog.String("client_ip", entry.ClientIP),
		slog.Any("details", Redact(entry.Details)),
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	return nil
}

func stamp(entry *AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

// CreateLoginAuditLog creates an audit log for login attempts.
// reason is recorded for failures only.
func CreateLoginAuditLog(event AuditEvent, account *Account, identifier, reason, clientIP string) *AuditLog {
	details := map[string]interface{}{
		"identifier": TruncateIdentifier(NormalizeIdentifier(identifier)),
	}
	if event != AuditLoginSuccess && reason != "" {
		details["reason"] = reason
	}

	entry := &AuditLog{
		EventType:  event,
		ActorType:  ActorTypeAnonymous,
		TargetType: "account",
		Details:    details,
		ClientIP:   clientIP,
	}
	if account != nil {
		entry.ActorType = ActorTypeUser
		entry.ActorID = account.ID
		entry.TargetID = account.ID
	}
	return entry
}

// CreateInviteAuditLog creates an audit log for invite lifecycle events
func CreateInviteAuditLog(event AuditEvent, actorID, inviteID, projectID string) *AuditLog {
	actorType := ActorTypeUser
	if actorID == "" {
		actorType = ActorTypeSystem
	}
	return &AuditLog{
		EventType:  event,
		ActorType:  actorType,
		ActorID:    actorID,
		TargetType: "invite",
		TargetID:   inviteID,
		Details: map[string]interface{}{
			"project_id": projectID,
		},
	}
}
