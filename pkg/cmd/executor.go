package cmd

import (
	"log/slog"
	"time"

	"github.com/mbarrin/certflow/pkg/executor"
	"github.com/mbarrin/certflow/pkg/executor/httpexec"
	"github.com/mbarrin/certflow/pkg/executor/simulated"
	"github.com/mbarrin/certflow/pkg/notifier"
)

// NewExecutor builds the stage executor. An empty execution service URL
// selects the simulated backend.
func NewExecutor(executionServiceURL string, logger *slog.Logger) executor.Executor {
	if executionServiceURL == "" {
		return simulated.NewExecutor(50 * time.Millisecond)
	}

	return httpexec.NewExecutor(executionServiceURL, logger)
}

// NewNotifier builds the notification transport. Webhook delivery is the
// only concrete transport; the returned notifier no-ops for workflows
// without a webhook configured.
func NewNotifier(logger *slog.Logger) notifier.Notifier {
	return notifier.NewWebhook(logger)
}
