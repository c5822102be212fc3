package services_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbarrin/certflow/pkg/eventbus"
	"github.com/mbarrin/certflow/pkg/events"
	"github.com/mbarrin/certflow/pkg/executor/simulated"
	"github.com/mbarrin/certflow/pkg/mocks"
	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/notifier"
	"github.com/mbarrin/certflow/pkg/persistence/memory"
	"github.com/mbarrin/certflow/pkg/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func validGitInfo() models.GitInfo {
	return models.GitInfo{
		Repository: "git@example.com:org/repo.git",
		Branch:     "main",
		CommitSHA:  "abc123",
		Author:     "alice",
	}
}

func TestCreateWorkflow_PublishesLifecycleEvents(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1")
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := services.NewCertification(
		memory.NewRepository(),
		simulated.NewExecutor(time.Millisecond),
		&notifier.Noop{},
		bus,
		testLogger(),
	)

	workflow, err := service.CreateWorkflow(t.Context(), services.CreateWorkflowRequest{
		Git:    validGitInfo(),
		Domain: models.DomainCore,
		Stages: []models.StageKind{models.StageSecurity},
	})
	require.NoError(t, err)

	service.Join()

	published := make([]events.EventType, 0)

	for _, call := range bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		assert.Equal(t, workflow.ID, call.Arguments.String(1))

		event, ok := call.Arguments.Get(2).(eventbus.Event)
		require.True(t, ok)

		published = append(published, event.GetType())
	}

	assert.Equal(t, []events.EventType{
		events.WorkflowCreatedEvent,
		events.StageStartedEvent,
		events.StageFinishedEvent,
		events.WorkflowFinishedEvent,
	}, published)
}

func TestCreateWorkflow_RepositoryErrorSurfaces(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	service := services.NewCertification(
		repo,
		simulated.NewExecutor(time.Millisecond),
		&notifier.Noop{},
		nil,
		testLogger(),
	)

	_, err := service.CreateWorkflow(t.Context(), services.CreateWorkflowRequest{
		Git:    validGitInfo(),
		Domain: models.DomainCore,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	repo.AssertExpectations(t)
}

func TestHealthCheck_UnhealthyStore(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockRepository{}
	repo.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	service := services.NewCertification(
		repo,
		simulated.NewExecutor(time.Millisecond),
		&notifier.Noop{},
		nil,
		testLogger(),
	)

	message, healthy := service.HealthCheck(t.Context())
	assert.False(t, healthy)
	assert.Contains(t, message, "unhealthy")
}
