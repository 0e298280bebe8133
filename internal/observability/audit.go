package observability

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const auditEventVersion = 1

// AuditEvent is the structured record written for security-relevant actions.
type AuditEvent struct {
	EventVersion int    `json:"event_version"`
	EventName    string `json:"event_name"`
	ActorUserID  string `json:"actor_user_id"`
	ActorIP      string `json:"actor_ip"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason"`
	RequestID    string `json:"request_id"`
	TS           string `json:"ts"`
}

type AuditInput struct {
	EventName   string
	ActorUserID string
	TargetType  string
	TargetID    string
	Action      string
	Outcome     string
	Reason      string
}

func BuildAuditEvent(r *http.Request, in AuditInput) AuditEvent {
	return AuditEvent{
		EventVersion: auditEventVersion,
		EventName:    in.EventName,
		ActorUserID:  in.ActorUserID,
		ActorIP:      clientIP(r),
		TargetType:   in.TargetType,
		TargetID:     in.TargetID,
		Action:       in.Action,
		Outcome:      in.Outcome,
		Reason:       in.Reason,
		RequestID:    r.Header.Get("X-Request-Id"),
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
}

func (e AuditEvent) Validate() error {
	var missing []string
	if e.EventName == "" {
		missing = append(missing, "event_name")
	}
	if e.Action == "" {
		missing = append(missing, "action")
	}
	if e.Outcome == "" {
		missing = append(missing, "outcome")
	}
	if e.TS == "" {
		missing = append(missing, "ts")
	}
	if len(missing) > 0 {
		return errors.New("audit event missing " + strings.Join(missing, ", "))
	}
	return nil
}

// EmitAudit logs a validated audit event at info level.
func EmitAudit(r *http.Request, in AuditInput) {
	ev := BuildAuditEvent(r, in)
	if err := ev.Validate(); err != nil {
		slog.WarnContext(r.Context(), "dropping invalid audit event", "error", err, "event_name", ev.EventName)
		return
	}
	slog.InfoContext(r.Context(), "audit",
		"event_version", ev.EventVersion,
		"event_name", ev.EventName,
		"actor_user_id", ev.ActorUserID,
		"actor_ip", ev.ActorIP,
		"target_type", ev.TargetType,
		"target_id", ev.TargetID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
		"request_id", ev.RequestID,
	)
}

// Audit logs a free-form audit line with request metadata.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
		"ip", clientIP(r),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
