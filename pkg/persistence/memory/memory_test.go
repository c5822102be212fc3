package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
)

func newWorkflow(id string, domain models.Domain) *models.Workflow {
	stages := models.DefaultStagesForDomain(domain)

	return &models.Workflow{
		ID:     id,
		Domain: domain,
		Git: models.GitInfo{
			Repository: "git@example.com:org/repo.git",
			Branch:     "main",
			CommitSHA:  "sha-" + id,
			Author:     "alice",
		},
		Stages:       stages,
		Status:       models.WorkflowCreated,
		StageResults: models.InitStageResults(stages),
		Metadata:     map[string]string{"script_path": "ci/certify.sh"},
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := NewRepository()
	workflow := newWorkflow("wf-1", models.DomainCore)

	require.NoError(t, repo.Create(t.Context(), workflow))

	fetched, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "wf-1", fetched.ID)
	assert.Equal(t, models.DomainCore, fetched.Domain)
	assert.Len(t, fetched.StageResults, len(fetched.Stages))
}

func TestRepository_GetAbsentIsNotError(t *testing.T) {
	t.Parallel()

	repo := NewRepository()

	fetched, err := repo.GetByID(t.Context(), "nope")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestRepository_SnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	repo := NewRepository()
	workflow := newWorkflow("wf-1", models.DomainCore)
	require.NoError(t, repo.Create(t.Context(), workflow))

	// Mutating the original after Create must not leak into the store.
	workflow.StageResults["security"].Status = models.StageFailed

	fetched, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.StagePending, fetched.StageResults["security"].Status)

	// Mutating a fetched snapshot must not leak either.
	fetched.Metadata["script_path"] = "tampered"

	again, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "ci/certify.sh", again.Metadata["script_path"])
}

func TestRepository_UpdateReplaces(t *testing.T) {
	t.Parallel()

	repo := NewRepository()
	workflow := newWorkflow("wf-1", models.DomainCore)
	require.NoError(t, repo.Create(t.Context(), workflow))

	workflow.Status = models.WorkflowQueued
	require.NoError(t, repo.Update(t.Context(), workflow))

	fetched, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowQueued, fetched.Status)
}

func TestRepository_UpdateMissingWorkflow(t *testing.T) {
	t.Parallel()

	repo := NewRepository()
	workflow := newWorkflow("wf-ghost", models.DomainCore)

	err := repo.Update(t.Context(), workflow)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	fetched, err := repo.GetByID(t.Context(), "wf-ghost")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestRepository_ListFilters(t *testing.T) {
	t.Parallel()

	repo := NewRepository()

	first := newWorkflow("wf-1", models.DomainCore)
	second := newWorkflow("wf-2", models.DomainBanking)
	second.Git.Author = "bob"
	second.Git.Branch = "release"
	second.Status = models.WorkflowFailed
	third := newWorkflow("wf-3", models.DomainCore)
	third.Metadata = map[string]string{"script_path": "other/run.sh"}

	for _, workflow := range []*models.Workflow{first, second, third} {
		require.NoError(t, repo.Create(t.Context(), workflow))
	}

	domain := models.DomainCore
	status := models.WorkflowFailed
	stage := models.StageCompliance

	tests := []struct {
		name     string
		opts     persistence.ListOptions
		expected []string
	}{
		{
			name:     "no filters returns insertion order",
			opts:     persistence.ListOptions{},
			expected: []string{"wf-1", "wf-2", "wf-3"},
		},
		{
			name:     "domain filter",
			opts:     persistence.ListOptions{Domain: &domain},
			expected: []string{"wf-1", "wf-3"},
		},
		{
			name:     "author filter is case-insensitive",
			opts:     persistence.ListOptions{Author: "ALICE"},
			expected: []string{"wf-1", "wf-3"},
		},
		{
			name:     "branch filter",
			opts:     persistence.ListOptions{Branch: "release"},
			expected: []string{"wf-2"},
		},
		{
			name:     "commit filter with no match is empty not error",
			opts:     persistence.ListOptions{CommitSHA: "deadbeef"},
			expected: []string{},
		},
		{
			name:     "status filter",
			opts:     persistence.ListOptions{Status: &status},
			expected: []string{"wf-2"},
		},
		{
			name:     "stage filter matches planned stages",
			opts:     persistence.ListOptions{Stage: &stage},
			expected: []string{"wf-2"},
		},
		{
			name:     "script path matches metadata not git fields",
			opts:     persistence.ListOptions{ScriptPath: "other/run.sh"},
			expected: []string{"wf-3"},
		},
		{
			name:     "filters are ANDed",
			opts:     persistence.ListOptions{Domain: &domain, Author: "alice", ScriptPath: "ci/certify.sh"},
			expected: []string{"wf-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			listed, err := repo.List(t.Context(), tt.opts)
			require.NoError(t, err)

			ids := make([]string, 0, len(listed))
			for _, workflow := range listed {
				ids = append(ids, workflow.ID)
			}

			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestRepository_ListPagination(t *testing.T) {
	t.Parallel()

	repo := NewRepository()

	for i := range 5 {
		require.NoError(t, repo.Create(t.Context(), newWorkflow(fmt.Sprintf("wf-%d", i), models.DomainCore)))
	}

	page, err := repo.List(t.Context(), persistence.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "wf-1", page[0].ID)
	assert.Equal(t, "wf-2", page[1].ID)

	empty, err := repo.List(t.Context(), persistence.ListOptions{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_ConcurrentWritersDistinctIDs(t *testing.T) {
	t.Parallel()

	repo := NewRepository()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("wf-%d", n)
			workflow := newWorkflow(id, models.DomainCore)

			_ = repo.Create(t.Context(), workflow)

			workflow.Status = models.WorkflowQueued
			_ = repo.Update(t.Context(), workflow)
		}(i)
	}

	wg.Wait()

	listed, err := repo.List(t.Context(), persistence.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, listed, 50)

	for _, workflow := range listed {
		assert.Equal(t, models.WorkflowQueued, workflow.Status)
	}
}
