// Package redis provides Redis persistence for certification workflows.
// Each workflow is a JSON value under its own key; a list key preserves
// insertion order for listings.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
)

const (
	workflowKeyPrefix = "certflow:workflow:"
	workflowIndexKey  = "certflow:workflows"
)

// Repository implements persistence.Repository on Redis. Filtering happens
// client-side with the shared predicate since the values are opaque JSON.
type Repository struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewRepository connects to Redis and verifies the connection.
func NewRepository(ctx context.Context, logger *slog.Logger, redisURL string) (*Repository, error) {
	options, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := goredis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Repository{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis client.
func (r *Repository) Close(ctx context.Context) error {
	err := r.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}

// HealthCheck verifies the Redis connection is healthy.
func (r *Repository) HealthCheck(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// Create stores a new workflow and appends its id to the insertion-order
// index.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) error {
	payload, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("create", workflow.ID, fmt.Errorf("failed to marshal workflow: %w", err))
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+workflow.ID, payload, 0)
	pipe.RPush(ctx, workflowIndexKey, workflow.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewWorkflowError("create", workflow.ID, fmt.Errorf("failed to store workflow: %w", err))
	}

	return nil
}

// Update replaces the stored workflow. The id must already exist.
func (r *Repository) Update(ctx context.Context, workflow *models.Workflow) error {
	payload, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("update", workflow.ID, fmt.Errorf("failed to marshal workflow: %w", err))
	}

	updated, err := r.client.SetXX(ctx, workflowKeyPrefix+workflow.ID, payload, 0).Result()
	if err != nil {
		return persistence.NewWorkflowError("update", workflow.ID, fmt.Errorf("failed to store workflow: %w", err))
	}

	if !updated {
		return persistence.NewWorkflowError("update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// GetByID returns the workflow, or (nil, nil) when the id is unknown.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	payload, err := r.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("get", id, fmt.Errorf("failed to fetch workflow: %w", err))
	}

	var workflow models.Workflow

	err = json.Unmarshal(payload, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("get", id, fmt.Errorf("failed to unmarshal workflow: %w", err))
	}

	return &workflow, nil
}

// List walks the insertion-order index and filters client-side.
func (r *Repository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	opts.Normalize()

	ids, err := r.client.LRange(ctx, workflowIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow index: %w", err)
	}

	workflows := make([]*models.Workflow, 0)
	skipped := 0

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow == nil {
			// Index entry without a value; the record was removed out of
			// band.
			r.logger.WarnContext(ctx, "workflow index entry has no value", "workflow_id", id)

			continue
		}

		if !persistence.Matches(workflow, opts) {
			continue
		}

		if skipped < opts.Offset {
			skipped++

			continue
		}

		workflows = append(workflows, workflow)

		if len(workflows) == opts.Limit {
			break
		}
	}

	return workflows, nil
}
