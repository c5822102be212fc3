// Package memory provides the in-memory reference implementation of the
// workflow repository. It is the default store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
)

// Repository is a lock-guarded in-memory workflow store. Records are
// cloned on the way in and out so callers can never alias the stored copy;
// listing preserves insertion order.
type Repository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Workflow
	order []string
}

// NewRepository creates an empty in-memory workflow repository.
func NewRepository() *Repository {
	return &Repository{
		byID: make(map[string]*models.Workflow),
	}
}

// Create inserts the workflow under its identifier. An identifier collision
// overwrites in place; the id generator makes this practically unreachable.
func (r *Repository) Create(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[workflow.ID]; !exists {
		r.order = append(r.order, workflow.ID)
	}

	r.byID[workflow.ID] = workflow.Clone()

	return nil
}

// GetByID returns a snapshot of the workflow, or (nil, nil) when absent.
func (r *Repository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.byID[id]
	if !ok {
		return nil, nil
	}

	return workflow.Clone(), nil
}

// Update replaces the full record at the workflow's identifier. The id must
// already exist; the caller owns read-modify-write consistency at a higher
// level.
func (r *Repository) Update(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[workflow.ID]; !exists {
		return persistence.NewWorkflowError("update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	r.byID[workflow.ID] = workflow.Clone()

	return nil
}

// List returns workflows matching every filter, in insertion order.
func (r *Repository) List(_ context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	opts.Normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*models.Workflow, 0)

	for _, id := range r.order {
		workflow := r.byID[id]
		if persistence.Matches(workflow, opts) {
			matched = append(matched, workflow)
		}
	}

	if opts.Offset >= len(matched) {
		return []*models.Workflow{}, nil
	}

	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*models.Workflow, 0, end-opts.Offset)
	for _, workflow := range matched[opts.Offset:end] {
		page = append(page, workflow.Clone())
	}

	return page, nil
}

// HealthCheck always succeeds for the in-memory store.
func (r *Repository) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (r *Repository) Close(_ context.Context) error {
	return nil
}
