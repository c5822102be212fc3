// Package notifier defines the outbound notification contract and its
// concrete transports. Notifications are best-effort: the orchestrator
// never lets a notifier failure abort or delay a workflow.
package notifier

import (
	"context"

	"github.com/mbarrin/certflow/pkg/models"
)

// Notifier dispatches a human-readable message according to the workflow's
// notification snapshot. A nil config, or a config with no reachable
// target, is a no-op rather than an error.
type Notifier interface {
	Notify(ctx context.Context, config *models.NotificationConfig, message string) error
}

// Noop discards every notification.
type Noop struct{}

// NewNoop creates a notifier that does nothing.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Notify(_ context.Context, _ *models.NotificationConfig, _ string) error {
	return nil
}
