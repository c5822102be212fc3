// Package persistence provides the storage abstraction for certification
// workflows.
package persistence

import (
	"context"
	"strings"

	"github.com/mbarrin/certflow/pkg/models"
)

const (
	// DefaultLimit applies when a list request does not specify one.
	DefaultLimit = 50
	// MaxLimit bounds a single page of list results.
	MaxLimit = 500
)

// ListOptions narrows a workflow listing. All provided filters are ANDed;
// zero values mean "no filter" for string fields and nil means "no filter"
// for the enum pointers.
type ListOptions struct {
	// ScriptPath matches the "script_path" metadata entry exactly.
	ScriptPath string
	Domain     *models.Domain
	// Author matches the git author case-insensitively.
	Author    string
	Branch    string
	CommitSHA string
	// Stage matches workflows that planned the given stage kind.
	Stage  *models.StageKind
	Status *models.WorkflowStatus

	Limit  int
	Offset int
}

// Normalize clamps pagination to the supported bounds.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}

	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Repository is a keyed, concurrency-safe store of workflow records.
// Implementations must guarantee that a reader never observes a record
// mid-write; Create and Update replace the full record under its id.
type Repository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	// GetByID returns a snapshot of the workflow, or (nil, nil) when the
	// id is unknown. Absence is a normal outcome, not an error.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	// List returns matching workflows in stable insertion order.
	List(ctx context.Context, opts ListOptions) ([]*models.Workflow, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Matches reports whether a workflow passes every filter in the options.
// Store implementations that cannot push filtering into their backend use
// this shared predicate.
func Matches(workflow *models.Workflow, opts ListOptions) bool {
	if opts.Domain != nil && workflow.Domain != *opts.Domain {
		return false
	}

	if opts.Author != "" && !strings.EqualFold(workflow.Git.Author, opts.Author) {
		return false
	}

	if opts.Branch != "" && workflow.Git.Branch != opts.Branch {
		return false
	}

	if opts.CommitSHA != "" && workflow.Git.CommitSHA != opts.CommitSHA {
		return false
	}

	if opts.Status != nil && workflow.Status != *opts.Status {
		return false
	}

	if opts.ScriptPath != "" && workflow.Metadata["script_path"] != opts.ScriptPath {
		return false
	}

	if opts.Stage != nil {
		if _, ok := workflow.StageResults[string(*opts.Stage)]; !ok {
			return false
		}
	}

	return true
}
