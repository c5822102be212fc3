// Package models defines the core domain models for certification workflows.
package models

import (
	"fmt"
	"time"
)

// StageKind identifies one certification check within a workflow.
type StageKind string

const (
	StageCodeQuality StageKind = "code_quality"
	StageSecurity    StageKind = "security"
	StageCompliance  StageKind = "compliance"
	StageFunctional  StageKind = "functional"
	StageE2E         StageKind = "e2e"
	StageSoak        StageKind = "soak"
	StagePerformance StageKind = "performance"
)

// AllStageKinds lists every supported stage kind.
var AllStageKinds = []StageKind{
	StageCodeQuality,
	StageSecurity,
	StageCompliance,
	StageFunctional,
	StageE2E,
	StageSoak,
	StagePerformance,
}

// ParseStageKind validates a stage token and returns the typed value.
func ParseStageKind(s string) (StageKind, error) {
	for _, kind := range AllStageKinds {
		if StageKind(s) == kind {
			return kind, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// StageStatus represents the lifecycle state of a single stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
	StageCancelled StageStatus = "cancelled"
)

// AllStageStatuses lists every supported stage status.
var AllStageStatuses = []StageStatus{
	StagePending,
	StageRunning,
	StageSucceeded,
	StageFailed,
	StageSkipped,
	StageCancelled,
}

// ParseStageStatus validates a stage status token and returns the typed value.
func ParseStageStatus(s string) (StageStatus, error) {
	for _, status := range AllStageStatuses {
		if StageStatus(s) == status {
			return status, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownStageStatus, s)
}

// IsTerminal reports whether no further transition is expected for the status.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageSucceeded, StageFailed, StageSkipped, StageCancelled:
		return true
	default:
		return false
	}
}

// StageResult holds the execution record of one planned stage.
type StageResult struct {
	Stage        StageKind          `json:"stage"`
	Status       StageStatus        `json:"status"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
	DurationMS   *int64             `json:"duration_ms,omitempty"`
	LogsURL      string             `json:"logs_url,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Artifacts    map[string]string  `json:"artifacts,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	ExecutorRef  string             `json:"executor_ref,omitempty"`
}

// ComputeDuration stores the whole-millisecond distance between the two
// timestamps. It is a no-op unless both are set.
func (r *StageResult) ComputeDuration() {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return
	}

	ms := r.FinishedAt.Sub(*r.StartedAt).Milliseconds()
	r.DurationMS = &ms
}

// InitStageResults builds the initial all-pending result map for the planned
// stages. Keys match the planned stage list exactly and never change after
// creation.
func InitStageResults(stages []StageKind) map[string]*StageResult {
	results := make(map[string]*StageResult, len(stages))
	for _, stage := range stages {
		results[string(stage)] = &StageResult{
			Stage:  stage,
			Status: StagePending,
		}
	}

	return results
}
