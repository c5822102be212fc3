// Package httpexec provides the HTTP client to an external execution
// service.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbarrin/certflow/pkg/models"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 2 * time.Second
)

var (
	// ErrTriggerRejected indicates the execution service refused the stage.
	ErrTriggerRejected = errors.New("execution service rejected stage trigger")

	// ErrExecutionFailed indicates the backend reported a failed run.
	ErrExecutionFailed = errors.New("execution failed")
)

// Executor talks to an execution service over HTTP. Trigger posts the stage
// and returns the reference token from the response; Await polls the
// execution status endpoint until the run reaches a terminal state.
type Executor struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewExecutor creates an HTTP executor for the given base URL.
func NewExecutor(baseURL string, logger *slog.Logger) *Executor {
	return &Executor{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
		logger:       logger.With("module", "httpexec"),
	}
}

type triggerRequest struct {
	WorkflowID string            `json:"workflow_id"`
	Stage      models.StageKind  `json:"stage"`
	Git        models.GitInfo    `json:"git"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type triggerResponse struct {
	ExecutorRef string `json:"executor_ref"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Trigger submits the stage to the execution service.
func (e *Executor) Trigger(ctx context.Context, workflowID string, stage models.StageKind, git models.GitInfo, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(triggerRequest{
		WorkflowID: workflowID,
		Stage:      stage,
		Git:        git,
		Metadata:   metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal trigger request: %w", err)
	}

	url := e.baseURL + "/executions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build trigger request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach execution service: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return "", fmt.Errorf("%w: status %d: %s", ErrTriggerRejected, resp.StatusCode, string(body))
	}

	var trigger triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&trigger); err != nil {
		return "", fmt.Errorf("failed to decode trigger response: %w", err)
	}

	return trigger.ExecutorRef, nil
}

// Await polls the execution status until it is terminal.
func (e *Executor) Await(ctx context.Context, ref string) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		status, err := e.fetchStatus(ctx, ref)
		if err != nil {
			return err
		}

		switch status.Status {
		case "succeeded":
			return nil
		case "failed", "cancelled":
			if status.Error != "" {
				return fmt.Errorf("%w: %s", ErrExecutionFailed, status.Error)
			}

			return fmt.Errorf("%w: execution %s %s", ErrExecutionFailed, ref, status.Status)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Executor) fetchStatus(ctx context.Context, ref string) (*statusResponse, error) {
	url := e.baseURL + "/executions/" + ref

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach execution service: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.ErrorContext(ctx, "Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execution status request returned %d", resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}
