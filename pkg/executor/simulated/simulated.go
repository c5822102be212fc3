// Package simulated provides an in-process executor for development and
// tests. It accepts every stage immediately and completes it after a fixed
// delay, with optional per-stage failure injection.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbarrin/certflow/pkg/models"
)

const defaultDelay = 50 * time.Millisecond

// Executor simulates an execution backend.
type Executor struct {
	delay time.Duration

	mu     sync.Mutex
	failOn map[models.StageKind]string
}

// NewExecutor creates a simulated executor. A non-positive delay falls back
// to the default.
func NewExecutor(delay time.Duration) *Executor {
	if delay <= 0 {
		delay = defaultDelay
	}

	return &Executor{delay: delay}
}

// FailStage makes every subsequent run of the given stage fail with the
// message.
func (e *Executor) FailStage(stage models.StageKind, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failOn == nil {
		e.failOn = make(map[models.StageKind]string)
	}

	e.failOn[stage] = message
}

// Trigger returns a deterministic reference token derived from the workflow
// id and stage kind, or the injected failure for the stage.
func (e *Executor) Trigger(_ context.Context, workflowID string, stage models.StageKind, _ models.GitInfo, _ map[string]string) (string, error) {
	e.mu.Lock()
	message, failing := e.failOn[stage]
	e.mu.Unlock()

	if failing {
		return "", errors.New(message)
	}

	short := workflowID
	if len(short) > 8 {
		short = short[:8]
	}

	return fmt.Sprintf("exec-%s-%s", short, stage), nil
}

// Await completes after the configured delay, or earlier when the context
// is cancelled.
func (e *Executor) Await(ctx context.Context, _ string) error {
	select {
	case <-time.After(e.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
