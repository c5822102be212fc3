// Package services provides standardized error types for service layer
// operations.
package services

import (
	"errors"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
)

// Business logic errors - these indicate client errors (4xx responses).
var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrInvalidRequest is the base validation error (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
)

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, models.ErrUnknownStage) ||
		errors.Is(err, models.ErrUnknownStageStatus) ||
		errors.Is(err, models.ErrUnknownDomain) ||
		errors.Is(err, models.ErrUnknownWorkflowStatus)
}
