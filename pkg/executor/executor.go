// Package executor defines the contract with the external execution
// backend that performs a stage's actual work.
package executor

import (
	"context"

	"github.com/mbarrin/certflow/pkg/models"
)

// Executor triggers stage execution on an external backend. Any failure
// returned from either call is treated uniformly by the orchestrator as a
// stage failure, with the error text retained verbatim on the stage result.
type Executor interface {
	// Trigger submits a stage for execution and returns the backend's
	// reference token once the stage has been accepted.
	Trigger(ctx context.Context, workflowID string, stage models.StageKind, git models.GitInfo, metadata map[string]string) (string, error)

	// Await blocks until the execution identified by ref reaches a
	// terminal state, or the context is cancelled.
	Await(ctx context.Context, ref string) error
}
