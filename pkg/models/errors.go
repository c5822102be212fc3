package models

import "errors"

// Validation errors for enum tokens arriving from the outside world. They
// are rejected at the boundary and never enter the state machine.
var (
	ErrUnknownStage          = errors.New("unknown certification stage")
	ErrUnknownStageStatus    = errors.New("unknown stage status")
	ErrUnknownDomain         = errors.New("unknown domain")
	ErrUnknownWorkflowStatus = errors.New("unknown workflow status")
)
