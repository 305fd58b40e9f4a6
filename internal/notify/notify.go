// Package notify delivers best-effort text messages to the operator.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier sends one text message. Implementations never report failures to
// the caller; a dropped message is acceptable.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Nop is used when no channel is configured. Messages only reach the log.
type Nop struct {
	Logger zerolog.Logger
}

func (n Nop) Notify(_ context.Context, text string) {
	n.Logger.Debug().Str("text", text).Msg("No notification channel configured")
}
