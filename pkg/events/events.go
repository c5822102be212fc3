// Package events defines event types and structures for certification
// workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/mbarrin/certflow/pkg/models"
)

type EventType string

// Topic is the event bus topic every workflow lifecycle event goes to.
const Topic = "certflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowCreatedEvent  EventType = "workflow.created"
	WorkflowFinishedEvent EventType = "workflow.finished"
	StageStartedEvent     EventType = "workflow.stage.started"
	StageFinishedEvent    EventType = "workflow.stage.finished"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

type WorkflowCreated struct {
	BaseEvent

	Domain    models.Domain      `json:"domain"`
	Stages    []models.StageKind `json:"stages"`
	CommitSHA string             `json:"commit_sha"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

type WorkflowFinished struct {
	BaseEvent

	Status models.WorkflowStatus `json:"status"`
}

func (e WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type StageStarted struct {
	BaseEvent

	Stage models.StageKind `json:"stage"`
}

func (e StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageFinished struct {
	BaseEvent

	Stage       models.StageKind   `json:"stage"`
	Status      models.StageStatus `json:"status"`
	DurationMS  *int64             `json:"duration_ms,omitempty"`
	ExecutorRef string             `json:"executor_ref,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func (e StageFinished) GetType() EventType {
	return StageFinishedEvent
}
