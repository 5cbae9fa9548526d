// Package notify defines the outbound notification hook. Delivery mechanics
// (push, email) live with an external collaborator; the core only emits
// events. Hook failures must never fail or roll back the triggering call.
package notify

import (
	"context"
	"log/slog"
)

type Event string

const (
	EventMatchCreated      Event = "match.created"
	EventMatchActivated    Event = "match.activated"
	EventApprovalRequested Event = "guardian.approval_requested"
	EventApprovalReminder  Event = "guardian.approval_reminder"
)

// Notifier is the fire-and-forget hook invoked on consent-flow transitions.
type Notifier interface {
	Notify(ctx context.Context, event Event, payload map[string]any)
}

// LogNotifier is the default implementation: it records the event through the
// structured logger and nothing else. The host system swaps in a real
// dispatcher behind the same interface.
type LogNotifier struct {
	Logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event, payload map[string]any) {
	args := make([]any, 0, len(payload)*2+2)
	args = append(args, "event", string(event))
	for k, v := range payload {
		args = append(args, k, v)
	}
	n.Logger.Info("notification emitted", args...)
}
