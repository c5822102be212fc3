package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mbarrin/certflow/pkg/eventbus"
	"github.com/mbarrin/certflow/pkg/events"
	"github.com/mbarrin/certflow/pkg/executor"
	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/notifier"
	"github.com/mbarrin/certflow/pkg/otelhelper"
	"github.com/mbarrin/certflow/pkg/persistence"
)

const notifyTimeout = 10 * time.Second

// Certification orchestrates certification workflows: it owns the
// stage-advancement sequence and the two mutation entry points (creation
// and the external stage-update callback).
type Certification struct {
	repo     persistence.Repository
	executor executor.Executor
	notifier notifier.Notifier
	eventBus eventbus.EventBus
	logger   *slog.Logger

	locks *keyedMutex
	wg    sync.WaitGroup
}

// NewCertification creates the certification workflow service. The event
// bus is optional; pass nil to skip lifecycle event publishing.
func NewCertification(
	repo persistence.Repository,
	exec executor.Executor,
	notify notifier.Notifier,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Certification {
	return &Certification{
		repo:     repo,
		executor: exec,
		notifier: notify,
		eventBus: eventBus,
		logger:   logger.With("module", "certification"),
		locks:    newKeyedMutex(),
	}
}

// CreateWorkflowRequest carries everything needed to start a certification
// run.
type CreateWorkflowRequest struct {
	Git models.GitInfo `validate:"required"`

	Domain models.Domain `validate:"required"`

	// Stages overrides the domain's default plan when non-nil.
	Stages []models.StageKind

	Metadata       map[string]string
	Notification   *models.NotificationConfig
	CorrelateRunID string
}

// Validate rejects unknown enum tokens before they enter the state machine.
func (r *CreateWorkflowRequest) Validate() error {
	if _, err := models.ParseDomain(string(r.Domain)); err != nil {
		return err
	}

	for _, stage := range r.Stages {
		if _, err := models.ParseStageKind(string(stage)); err != nil {
			return err
		}
	}

	return nil
}

// CreateWorkflow builds and persists a new workflow with every planned
// stage pending, then schedules the advancement sequence to run
// independently. The returned workflow is the initial snapshot; callers
// observe progress by re-querying.
func (c *Certification) CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stages := req.Stages
	if stages == nil {
		stages = models.DefaultStagesForDomain(req.Domain)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	now := time.Now().UTC()
	results := models.InitStageResults(stages)

	workflow := &models.Workflow{
		ID:             id.String(),
		CorrelateRunID: req.CorrelateRunID,
		Git:            req.Git,
		Domain:         req.Domain,
		Stages:         stages,
		Status:         models.DeriveStatus(results),
		CreatedAt:      now,
		UpdatedAt:      now,
		StageResults:   results,
		Metadata:       req.Metadata,
		Notification:   req.Notification,
	}

	if workflow.Metadata == nil {
		workflow.Metadata = map[string]string{}
	}

	if err := c.repo.Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	c.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", workflow.ID,
		"domain", workflow.Domain,
		"stages", len(workflow.Stages),
	)

	if req.Notification != nil && req.Notification.OnStart {
		c.notify(workflow.Notification, fmt.Sprintf(
			"Workflow %s created for %s@%s",
			workflow.ID, workflow.Git.Repository, workflow.Git.CommitSHA,
		))
	}

	c.publish(ctx, workflow.ID, events.WorkflowCreated{
		BaseEvent: c.baseEvent(events.WorkflowCreatedEvent, workflow.ID),
		Domain:    workflow.Domain,
		Stages:    workflow.Stages,
		CommitSHA: workflow.Git.CommitSHA,
	})

	c.wg.Add(1)

	go c.advance(workflow.ID)

	return workflow, nil
}

// Join blocks until every scheduled advancement sequence has finished.
// Used for graceful shutdown and deterministic tests.
func (c *Certification) Join() {
	c.wg.Wait()
}

// advance drives a workflow's stages strictly in planning order. It runs
// once per workflow on its own goroutine, with a recover boundary so a
// panic is converted into stage-failure state instead of crashing the host
// process.
func (c *Certification) advance(workflowID string) {
	defer c.wg.Done()

	ctx := context.Background()
	tracer := otel.Tracer("certflow")

	var currentStage models.StageKind

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Advancement sequence panicked",
				"workflow_id", workflowID,
				"stage", currentStage,
				"panic", r,
			)
			c.failStage(ctx, workflowID, currentStage, fmt.Sprintf("advancement panic: %v", r))
		}
	}()

	workflow, err := c.repo.GetByID(ctx, workflowID)
	if err != nil || workflow == nil {
		// The record vanished between creation and advancement; nothing
		// to drive.
		return
	}

	ctx, span := otelhelper.StartSpan(ctx, tracer, "workflow.advance",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.WorkflowDomainKey, string(workflow.Domain)),
		attribute.String(otelhelper.CommitSHAKey, workflow.Git.CommitSHA),
	)
	defer span.End()

	workflow, err = c.mutate(ctx, workflowID, func(w *models.Workflow) {
		w.Status = models.WorkflowQueued
	})
	if err != nil || workflow == nil {
		return
	}

	if len(workflow.Stages) == 0 {
		// An empty plan has nothing left to prove: terminal success.
		workflow, _ = c.mutate(ctx, workflowID, func(w *models.Workflow) {
			w.Status = models.WorkflowSucceeded
		})
		c.finish(ctx, workflow)

		return
	}

	for _, stage := range workflow.Stages {
		currentStage = stage

		workflow, err = c.runStage(ctx, workflowID, stage)
		if err != nil || workflow == nil {
			return
		}

		if workflow.StageResults[string(stage)].Status == models.StageFailed {
			// A single stage failure halts the pipeline; the remaining
			// stages stay pending forever.
			break
		}
	}

	c.finish(ctx, workflow)
}

// runStage executes one stage: mark running, trigger the executor, await
// completion, record the outcome. Every state transition is persisted with
// a freshly derived overall status.
func (c *Certification) runStage(ctx context.Context, workflowID string, stage models.StageKind) (*models.Workflow, error) {
	tracer := otel.Tracer("certflow")

	ctx, span := otelhelper.StartSpan(ctx, tracer, "workflow.stage",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.StageKey, string(stage)),
	)
	defer span.End()

	workflow, err := c.mutate(ctx, workflowID, func(w *models.Workflow) {
		result := w.StageResults[string(stage)]
		now := time.Now().UTC()
		result.Status = models.StageRunning
		result.StartedAt = &now
		w.Status = models.DeriveStatus(w.StageResults)
	})
	if err != nil || workflow == nil {
		return workflow, err
	}

	c.publish(ctx, workflowID, events.StageStarted{
		BaseEvent: c.baseEvent(events.StageStartedEvent, workflowID),
		Stage:     stage,
	})

	ref, execErr := c.executor.Trigger(ctx, workflowID, stage, workflow.Git, workflow.Metadata)
	if execErr == nil {
		execErr = c.executor.Await(ctx, ref)
	}

	workflow, err = c.mutate(ctx, workflowID, func(w *models.Workflow) {
		result := w.StageResults[string(stage)]
		now := time.Now().UTC()
		result.FinishedAt = &now

		if execErr != nil {
			result.Status = models.StageFailed
			result.ErrorMessage = execErr.Error()
		} else {
			result.Status = models.StageSucceeded
			result.ExecutorRef = ref
			result.ComputeDuration()
		}

		w.Status = models.DeriveStatus(w.StageResults)
	})
	if err != nil || workflow == nil {
		return workflow, err
	}

	result := workflow.StageResults[string(stage)]

	if execErr != nil {
		otelhelper.SetError(span, execErr,
			attribute.String(otelhelper.StageKey, string(stage)),
		)
		c.logger.ErrorContext(ctx, "Stage execution failed",
			"workflow_id", workflowID,
			"stage", stage,
			"error", execErr,
		)
	} else {
		span.SetAttributes(attribute.String(otelhelper.ExecutorRefKey, ref))
		c.logger.InfoContext(ctx, "Stage succeeded",
			"workflow_id", workflowID,
			"stage", stage,
			"executor_ref", ref,
		)
	}

	c.publish(ctx, workflowID, events.StageFinished{
		BaseEvent:   c.baseEvent(events.StageFinishedEvent, workflowID),
		Stage:       stage,
		Status:      result.Status,
		DurationMS:  result.DurationMS,
		ExecutorRef: result.ExecutorRef,
		Error:       result.ErrorMessage,
	})

	return workflow, nil
}

// finish runs the end-of-sequence bookkeeping: the on-finish notification
// and the workflow.finished event.
func (c *Certification) finish(ctx context.Context, workflow *models.Workflow) {
	if workflow == nil {
		return
	}

	c.logger.InfoContext(ctx, "Workflow finished",
		"workflow_id", workflow.ID,
		"status", workflow.Status,
	)

	if workflow.Notification != nil && workflow.Notification.OnFinish {
		ok := workflow.Status == models.WorkflowSucceeded
		c.notify(workflow.Notification, fmt.Sprintf(
			"Workflow %s finished with status=%s. ok=%t",
			workflow.ID, workflow.Status, ok,
		))
	}

	if workflow.Notification != nil && workflow.Notification.OnFailure &&
		workflow.Status == models.WorkflowFailed {
		c.notify(workflow.Notification, fmt.Sprintf(
			"Workflow %s failed on %s@%s",
			workflow.ID, workflow.Git.Repository, workflow.Git.CommitSHA,
		))
	}

	c.publish(ctx, workflow.ID, events.WorkflowFinished{
		BaseEvent: c.baseEvent(events.WorkflowFinishedEvent, workflow.ID),
		Status:    workflow.Status,
	})
}

// failStage is the recover path: it marks the given stage failed so a
// panicking advancement never terminates silently.
func (c *Certification) failStage(ctx context.Context, workflowID string, stage models.StageKind, message string) {
	if stage == "" {
		return
	}

	workflow, err := c.mutate(ctx, workflowID, func(w *models.Workflow) {
		result, ok := w.StageResults[string(stage)]
		if !ok {
			return
		}

		now := time.Now().UTC()
		result.Status = models.StageFailed
		result.ErrorMessage = message
		result.FinishedAt = &now
		w.Status = models.DeriveStatus(w.StageResults)
	})
	if err != nil || workflow == nil {
		return
	}

	c.finish(ctx, workflow)
}

// UpdateStageRequest is the external callback payload: an execution backend
// reporting a stage outcome out-of-band. Nil optional fields leave the
// stored values untouched; a previously recorded value is never cleared.
type UpdateStageRequest struct {
	Stage  models.StageKind   `validate:"required"`
	Status models.StageStatus `validate:"required"`

	LogsURL      *string
	Metrics      map[string]float64
	Artifacts    map[string]string
	ErrorMessage *string
	ExecutorRef  *string
}

// Validate rejects unknown enum tokens.
func (r *UpdateStageRequest) Validate() error {
	if _, err := models.ParseStageKind(string(r.Stage)); err != nil {
		return err
	}

	if _, err := models.ParseStageStatus(string(r.Status)); err != nil {
		return err
	}

	return nil
}

// UpdateStage applies an externally-reported stage outcome and recomputes
// the aggregate status. The update is accepted even when the workflow is
// already failed overall; the halted pipeline does not block independent
// callbacks for other stages.
func (c *Certification) UpdateStage(ctx context.Context, workflowID string, req UpdateStageRequest) (*models.Workflow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	workflow, err := c.mutate(ctx, workflowID, func(w *models.Workflow) {
		result, ok := w.StageResults[string(req.Stage)]
		if !ok {
			// Should not happen given the stage-key invariant, but an
			// out-of-plan callback still gets a fresh entry.
			result = &models.StageResult{Stage: req.Stage, Status: models.StagePending}
			w.StageResults[string(req.Stage)] = result
		}

		if req.LogsURL != nil {
			result.LogsURL = *req.LogsURL
		}

		if req.Metrics != nil {
			result.Metrics = req.Metrics
		}

		if req.Artifacts != nil {
			result.Artifacts = req.Artifacts
		}

		if req.ErrorMessage != nil {
			result.ErrorMessage = *req.ErrorMessage
		}

		if req.ExecutorRef != nil {
			result.ExecutorRef = *req.ExecutorRef
		}

		result.Status = req.Status

		now := time.Now().UTC()

		if req.Status == models.StageRunning {
			result.StartedAt = &now
		}

		if req.Status.IsTerminal() {
			result.FinishedAt = &now
			if result.StartedAt != nil {
				result.ComputeDuration()
			}
		}

		w.Status = models.DeriveStatus(w.StageResults)
	})
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	c.logger.InfoContext(ctx, "Stage updated externally",
		"workflow_id", workflowID,
		"stage", req.Stage,
		"status", req.Status,
	)

	return workflow, nil
}

// GetWorkflow retrieves a workflow by its ID.
func (c *Certification) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// ListWorkflows retrieves workflows matching the filters, paginated.
func (c *Certification) ListWorkflows(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	opts.Normalize()

	workflows, err := c.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// HealthCheck checks the health of the persistence layer.
func (c *Certification) HealthCheck(ctx context.Context) (string, bool) {
	if c.repo == nil {
		return "Persistence layer not initialized", false
	}

	err := c.repo.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// mutate runs one serialized fetch-mutate-persist cycle for the workflow.
// It returns (nil, nil) when the workflow does not exist. The per-key lock
// guarantees the net effect of concurrent writers is equivalent to some
// total order of their updates.
func (c *Certification) mutate(ctx context.Context, workflowID string, fn func(*models.Workflow)) (*models.Workflow, error) {
	unlock := c.locks.Lock(workflowID)
	defer unlock()

	workflow, err := c.repo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow: %w", err)
	}

	if workflow == nil {
		return nil, nil
	}

	fn(workflow)
	workflow.UpdatedAt = time.Now().UTC()

	if err := c.repo.Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to persist workflow: %w", err)
	}

	return workflow, nil
}

// notify dispatches fire-and-forget: delivery runs on its own goroutine
// with a bounded context, failures are logged and never propagate into the
// orchestration sequence.
func (c *Certification) notify(config *models.NotificationConfig, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := c.notifier.Notify(ctx, config, message); err != nil {
			c.logger.Error("Notification delivery failed", "error", err)
		}
	}()
}

// publish sends a lifecycle event best-effort.
func (c *Certification) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	if err := c.eventBus.Publish(ctx, key, event); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func (c *Certification) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	id := uuid.NewString()
	if c.eventBus != nil {
		id = c.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
