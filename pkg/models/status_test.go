package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(statuses ...StageStatus) map[string]*StageResult {
	out := make(map[string]*StageResult, len(statuses))
	for i, status := range statuses {
		stage := AllStageKinds[i]
		out[string(stage)] = &StageResult{Stage: stage, Status: status}
	}

	return out
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		results  map[string]*StageResult
		expected WorkflowStatus
	}{
		{
			name:     "empty map yields created",
			results:  map[string]*StageResult{},
			expected: WorkflowCreated,
		},
		{
			name:     "all pending yields created",
			results:  results(StagePending, StagePending, StagePending),
			expected: WorkflowCreated,
		},
		{
			name:     "all succeeded yields succeeded",
			results:  results(StageSucceeded, StageSucceeded),
			expected: WorkflowSucceeded,
		},
		{
			name:     "any running yields running",
			results:  results(StageSucceeded, StageRunning, StagePending),
			expected: WorkflowRunning,
		},
		{
			name:     "started but not running yields partial",
			results:  results(StageSucceeded, StagePending),
			expected: WorkflowPartial,
		},
		{
			name:     "skipped counts as started",
			results:  results(StageSkipped, StagePending),
			expected: WorkflowPartial,
		},
		{
			name:     "cancelled stage alone does not count as started",
			results:  results(StageCancelled, StagePending),
			expected: WorkflowCreated,
		},
		{
			name:     "failed wins over running",
			results:  results(StageFailed, StageRunning),
			expected: WorkflowFailed,
		},
		{
			name:     "failed wins over all other statuses",
			results:  results(StageSucceeded, StageRunning, StageFailed, StageSkipped, StagePending),
			expected: WorkflowFailed,
		},
		{
			name:     "single failed entry forces failed",
			results:  results(StageFailed),
			expected: WorkflowFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, DeriveStatus(tt.results))
		})
	}
}

func TestDeriveStatus_AnyFailedForcesFailed(t *testing.T) {
	t.Parallel()

	// Property check: one failed entry dominates regardless of the
	// statuses around it.
	for _, other := range AllStageStatuses {
		rs := map[string]*StageResult{
			"security":   {Stage: StageSecurity, Status: StageFailed},
			"functional": {Stage: StageFunctional, Status: other},
		}
		assert.Equal(t, WorkflowFailed, DeriveStatus(rs), "other status %s", other)
	}
}

func TestDefaultStagesForDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		domain   Domain
		expected []StageKind
	}{
		{DomainCore, []StageKind{StageCodeQuality, StageSecurity, StageFunctional}},
		{DomainTransport, []StageKind{StageCodeQuality, StageSecurity, StageFunctional, StagePerformance}},
		{DomainBanking, []StageKind{StageCodeQuality, StageSecurity, StageCompliance, StageFunctional, StageE2E}},
		{DomainHealthcare, []StageKind{StageCodeQuality, StageSecurity, StageCompliance, StageFunctional, StageSoak}},
	}

	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, DefaultStagesForDomain(tt.domain))
		})
	}
}

func TestDefaultStagesForDomain_ReturnsCopy(t *testing.T) {
	t.Parallel()

	stages := DefaultStagesForDomain(DomainCore)
	stages[0] = StageSoak

	assert.Equal(t, StageCodeQuality, DefaultStagesForDomain(DomainCore)[0])
}

func TestInitStageResults(t *testing.T) {
	t.Parallel()

	stages := []StageKind{StageCodeQuality, StageSecurity}
	results := InitStageResults(stages)

	require.Len(t, results, 2)

	for _, stage := range stages {
		result, ok := results[string(stage)]
		require.True(t, ok)
		assert.Equal(t, stage, result.Stage)
		assert.Equal(t, StagePending, result.Status)
		assert.Nil(t, result.StartedAt)
		assert.Nil(t, result.FinishedAt)
		assert.Nil(t, result.DurationMS)
	}
}

func TestStageResult_ComputeDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	finish := start.Add(120 * time.Millisecond)

	result := &StageResult{Stage: StageSecurity, Status: StageSucceeded}

	result.ComputeDuration()
	assert.Nil(t, result.DurationMS, "no duration without timestamps")

	result.StartedAt = &start
	result.ComputeDuration()
	assert.Nil(t, result.DurationMS, "no duration without finish timestamp")

	result.FinishedAt = &finish
	result.ComputeDuration()
	require.NotNil(t, result.DurationMS)
	assert.Equal(t, int64(120), *result.DurationMS)
}

func TestParseStageKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseStageKind("code_quality")
	require.NoError(t, err)
	assert.Equal(t, StageCodeQuality, kind)

	_, err = ParseStageKind("rocket_science")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestParseDomain(t *testing.T) {
	t.Parallel()

	domain, err := ParseDomain("banking")
	require.NoError(t, err)
	assert.Equal(t, DomainBanking, domain)

	_, err = ParseDomain("gaming")
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestParseWorkflowStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseWorkflowStatus("partial")
	require.NoError(t, err)
	assert.Equal(t, WorkflowPartial, status)

	_, err = ParseWorkflowStatus("finished")
	assert.ErrorIs(t, err, ErrUnknownWorkflowStatus)
}

func TestWorkflow_Clone(t *testing.T) {
	t.Parallel()

	start := time.Now().UTC()
	workflow := &Workflow{
		ID:     "wf-1",
		Domain: DomainCore,
		Stages: []StageKind{StageSecurity},
		Status: WorkflowRunning,
		StageResults: map[string]*StageResult{
			"security": {
				Stage:     StageSecurity,
				Status:    StageRunning,
				StartedAt: &start,
				Metrics:   map[string]float64{"score": 0.95},
			},
		},
		Metadata:     map[string]string{"script_path": "ci/run.sh"},
		Notification: &NotificationConfig{OnFinish: true},
	}

	clone := workflow.Clone()
	require.NotNil(t, clone)

	clone.StageResults["security"].Status = StageFailed
	clone.StageResults["security"].Metrics["score"] = 0
	clone.Metadata["script_path"] = "other.sh"
	clone.Notification.OnFinish = false

	assert.Equal(t, StageRunning, workflow.StageResults["security"].Status)
	assert.InEpsilon(t, 0.95, workflow.StageResults["security"].Metrics["score"], 1e-9)
	assert.Equal(t, "ci/run.sh", workflow.Metadata["script_path"])
	assert.True(t, workflow.Notification.OnFinish)
}
