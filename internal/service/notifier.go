package service

import (
	"context"
	"log/slog"
	"time"
)

type PasswordResetNotification struct {
	UserID    uint
	Email     string
	Token     string
	ExpiresAt time.Time
	ResetURL  string
}

// PasswordResetNotifier delivers reset links. Production deployments plug in
// a mail sender; the log notifier is the default.
type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, n PasswordResetNotification) error
}

type LogPasswordResetNotifier struct {
	logger *slog.Logger
}

func NewLogPasswordResetNotifier(logger *slog.Logger) *LogPasswordResetNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPasswordResetNotifier{logger: logger}
}

func (n *LogPasswordResetNotifier) SendPasswordReset(ctx context.Context, note PasswordResetNotification) error {
	link := note.ResetURL
	if link == "" {
		link = "token=" + note.Token
	}
	n.logger.InfoContext(ctx, "password reset token issued",
		"user_id", note.UserID,
		"email", note.Email,
		"expires_at", note.ExpiresAt,
		"reset", link,
	)
	return nil
}
