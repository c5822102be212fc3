package models

import (
	"fmt"
	"time"
)

// WorkflowStatus represents the aggregate lifecycle state of a workflow. It
// is derived from the stage results (see DeriveStatus), except for queued
// and cancelled which are explicit orchestrator overrides.
type WorkflowStatus string

const (
	WorkflowCreated   WorkflowStatus = "created"
	WorkflowQueued    WorkflowStatus = "queued"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowPartial   WorkflowStatus = "partial"
	WorkflowSucceeded WorkflowStatus = "succeeded"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// AllWorkflowStatuses lists every supported workflow status.
var AllWorkflowStatuses = []WorkflowStatus{
	WorkflowCreated,
	WorkflowQueued,
	WorkflowRunning,
	WorkflowPartial,
	WorkflowSucceeded,
	WorkflowFailed,
	WorkflowCancelled,
}

// ParseWorkflowStatus validates a workflow status token and returns the
// typed value.
func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	for _, status := range AllWorkflowStatuses {
		if WorkflowStatus(s) == status {
			return status, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownWorkflowStatus, s)
}

// GitInfo describes the git reference a workflow certifies.
type GitInfo struct {
	Repository string `json:"repository" validate:"required"`
	Folder     string `json:"folder,omitempty"`
	Branch     string `json:"branch"     validate:"required"`
	CommitSHA  string `json:"commit_sha" validate:"required"`
	Author     string `json:"author,omitempty"`
}

// NotificationConfig is the notification snapshot captured at workflow
// creation. Later changes to global defaults never affect an existing
// workflow.
type NotificationConfig struct {
	WebhookURL   string `json:"webhook_url,omitempty"   validate:"omitempty,url"`
	Email        string `json:"email,omitempty"         validate:"omitempty,email"`
	SlackChannel string `json:"slack_channel,omitempty"`
	OnStart      bool   `json:"on_start"`
	OnFinish     bool   `json:"on_finish"`
	OnFailure    bool   `json:"on_failure"`
}

// Workflow is the aggregate root: one end-to-end certification run over a
// specific git commit. StageResults keys always equal the planned Stages
// set; only fields within an entry change after creation.
type Workflow struct {
	ID             string                  `json:"id"`
	CorrelateRunID string                  `json:"correlate_run_id,omitempty"`
	Git            GitInfo                 `json:"git"`
	Domain         Domain                  `json:"domain"`
	Stages         []StageKind             `json:"stages"`
	Status         WorkflowStatus          `json:"status"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	StageResults   map[string]*StageResult `json:"stage_results"`
	Metadata       map[string]string       `json:"metadata"`
	Notification   *NotificationConfig     `json:"notification,omitempty"`
}

// Clone returns a deep copy of the workflow so a snapshot handed to a
// reader can never observe a concurrent writer's mutation.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w

	clone.Stages = make([]StageKind, len(w.Stages))
	copy(clone.Stages, w.Stages)

	clone.StageResults = make(map[string]*StageResult, len(w.StageResults))
	for key, result := range w.StageResults {
		clone.StageResults[key] = result.clone()
	}

	if w.Metadata != nil {
		clone.Metadata = make(map[string]string, len(w.Metadata))
		for k, v := range w.Metadata {
			clone.Metadata[k] = v
		}
	}

	if w.Notification != nil {
		notification := *w.Notification
		clone.Notification = &notification
	}

	return &clone
}

func (r *StageResult) clone() *StageResult {
	if r == nil {
		return nil
	}

	result := *r

	if r.StartedAt != nil {
		startedAt := *r.StartedAt
		result.StartedAt = &startedAt
	}

	if r.FinishedAt != nil {
		finishedAt := *r.FinishedAt
		result.FinishedAt = &finishedAt
	}

	if r.DurationMS != nil {
		duration := *r.DurationMS
		result.DurationMS = &duration
	}

	if r.Metrics != nil {
		result.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			result.Metrics[k] = v
		}
	}

	if r.Artifacts != nil {
		result.Artifacts = make(map[string]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			result.Artifacts[k] = v
		}
	}

	return &result
}
