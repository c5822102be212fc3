package redis_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
	"github.com/mbarrin/certflow/pkg/persistence/redis"
)

var redisContainer *tcredis.RedisContainer

func setupTestRepo(t *testing.T) (*redis.Repository, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if redisContainer == nil || !redisContainer.IsRunning() {
		var err error

		redisContainer, err = tcredis.Run(ctx, "redis:7-alpine")
		require.NoError(t, err)
	}

	redisURL, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	flushAll(ctx, t, redisURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	repo, err := redis.NewRepository(ctx, logger, redisURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := repo.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return repo, ctx
}

func flushAll(ctx context.Context, t *testing.T, redisURL string) {
	t.Helper()

	options, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)

	client := goredis.NewClient(options)

	err = client.FlushAll(ctx).Err()
	require.NoError(t, err)

	err = client.Close()
	require.NoError(t, err)
}

func newTestWorkflow(domain models.Domain) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)
	stages := models.DefaultStagesForDomain(domain)

	return &models.Workflow{
		ID: uuid.NewString(),
		Git: models.GitInfo{
			Repository: "git@example.com:payments/ledger.git",
			Branch:     "main",
			CommitSHA:  "0a1b2c3d",
			Author:     "alice",
		},
		Domain:       domain,
		Stages:       stages,
		Status:       models.WorkflowCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
		StageResults: models.InitStageResults(stages),
	}
}

func TestNewRepository_HealthCheck(t *testing.T) {
	repo, ctx := setupTestRepo(t)

	err := repo.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, ctx := setupTestRepo(t)

	workflow := newTestWorkflow(models.DomainHealthcare)

	err := repo.Create(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, workflow.ID, retrieved.ID)
	assert.Equal(t, workflow.Git, retrieved.Git)
	assert.Equal(t, workflow.Stages, retrieved.Stages)
	assert.Len(t, retrieved.StageResults, len(workflow.Stages))

	notFound, err := repo.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestRepository_Update(t *testing.T) {
	repo, ctx := setupTestRepo(t)

	workflow := newTestWorkflow(models.DomainCore)

	err := repo.Create(ctx, workflow)
	require.NoError(t, err)

	workflow.Status = models.WorkflowQueued

	err = repo.Update(ctx, workflow)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, models.WorkflowQueued, retrieved.Status)
}

func TestRepository_UpdateMissingWorkflow(t *testing.T) {
	repo, ctx := setupTestRepo(t)

	workflow := newTestWorkflow(models.DomainCore)

	err := repo.Update(ctx, workflow)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_ListFiltersAndPagination(t *testing.T) {
	repo, ctx := setupTestRepo(t)

	banking := newTestWorkflow(models.DomainBanking)
	banking.Git.Author = "Alice"

	core := newTestWorkflow(models.DomainCore)
	core.Git.Author = "bob"

	transport := newTestWorkflow(models.DomainTransport)
	transport.Git.Author = "bob"

	for _, workflow := range []*models.Workflow{banking, core, transport} {
		err := repo.Create(ctx, workflow)
		require.NoError(t, err)
	}

	byAuthor, err := repo.List(ctx, persistence.ListOptions{Author: "ALICE"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, banking.ID, byAuthor[0].ID)

	// Insertion order with offset skips the first bob match.
	bobs, err := repo.List(ctx, persistence.ListOptions{Author: "bob", Offset: 1})
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, transport.ID, bobs[0].ID)

	page, err := repo.List(ctx, persistence.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, banking.ID, page[0].ID)
	assert.Equal(t, core.ID, page[1].ID)
}
