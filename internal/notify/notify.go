// Package notify hands verification and reset tokens to the mail delivery
// collaborator. Delivery itself happens elsewhere.
package notify

import (
	"context"
	"time"

	"github.com/hireready/backend/internal/logger"
)

type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// Message is the payload published for the mail collaborator.
type Message struct {
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier records that a message would have been sent. The token is not logged.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.Info(ctx, "email hand-off skipped, no broker configured", map[string]interface{}{
		"kind":       string(msg.Kind),
		"user_id":    msg.UserID,
		"expires_at": msg.ExpiresAt,
	})
	return nil
}
