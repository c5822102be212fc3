// Package web provides HTTP request and response types for the
// certification workflow API.
package web

import (
	"time"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/services"
)

// CreateWorkflowRequest represents the request body for creating a new
// certification workflow.
type CreateWorkflowRequest struct {
	Git            models.GitInfo      `json:"git"                        validate:"required"`
	Domain         string              `json:"domain"                     validate:"required"`
	Stages         []string            `json:"stages,omitempty"`
	Metadata       map[string]string   `json:"metadata,omitempty"`
	Notification   *NotificationConfig `json:"notification,omitempty"`
	CorrelateRunID string              `json:"correlate_run_id,omitempty"`
}

// NotificationConfig is the wire shape of the notification settings. The
// finish and failure flags are pointers so an omitted flag defaults to on.
type NotificationConfig struct {
	WebhookURL   string `json:"webhook_url,omitempty"   validate:"omitempty,url"`
	Email        string `json:"email,omitempty"         validate:"omitempty,email"`
	SlackChannel string `json:"slack_channel,omitempty"`
	OnStart      bool   `json:"on_start"`
	OnFinish     *bool  `json:"on_finish"`
	OnFailure    *bool  `json:"on_failure"`
}

func (n *NotificationConfig) toModel() *models.NotificationConfig {
	if n == nil {
		return nil
	}

	config := &models.NotificationConfig{
		WebhookURL:   n.WebhookURL,
		Email:        n.Email,
		SlackChannel: n.SlackChannel,
		OnStart:      n.OnStart,
		OnFinish:     true,
		OnFailure:    true,
	}

	if n.OnFinish != nil {
		config.OnFinish = *n.OnFinish
	}

	if n.OnFailure != nil {
		config.OnFailure = *n.OnFailure
	}

	return config
}

// ToServiceRequest converts the DTO into the typed service request,
// rejecting unknown enum tokens.
func (r *CreateWorkflowRequest) ToServiceRequest() (services.CreateWorkflowRequest, error) {
	req := services.CreateWorkflowRequest{
		Git:            r.Git,
		Metadata:       r.Metadata,
		Notification:   r.Notification.toModel(),
		CorrelateRunID: r.CorrelateRunID,
	}

	domain, err := models.ParseDomain(r.Domain)
	if err != nil {
		return req, err
	}

	req.Domain = domain

	if r.Stages != nil {
		stages := make([]models.StageKind, 0, len(r.Stages))

		for _, raw := range r.Stages {
			stage, err := models.ParseStageKind(raw)
			if err != nil {
				return req, err
			}

			stages = append(stages, stage)
		}

		req.Stages = stages
	}

	return req, nil
}

// UpdateStageRequest represents the request body for a stage-status update,
// typically posted by the execution service's callback.
type UpdateStageRequest struct {
	Stage        string             `json:"stage"  validate:"required"`
	Status       string             `json:"status" validate:"required"`
	LogsURL      *string            `json:"logs_url,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Artifacts    map[string]string  `json:"artifacts,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	ExecutorRef  *string            `json:"executor_ref,omitempty"`
}

// ToServiceRequest converts the DTO into the typed service request.
func (r *UpdateStageRequest) ToServiceRequest() (services.UpdateStageRequest, error) {
	req := services.UpdateStageRequest{
		LogsURL:      r.LogsURL,
		Metrics:      r.Metrics,
		Artifacts:    r.Artifacts,
		ErrorMessage: r.ErrorMessage,
		ExecutorRef:  r.ExecutorRef,
	}

	stage, err := models.ParseStageKind(r.Stage)
	if err != nil {
		return req, err
	}

	status, err := models.ParseStageStatus(r.Status)
	if err != nil {
		return req, err
	}

	req.Stage = stage
	req.Status = status

	return req, nil
}

// ListWorkflowsResponse wraps a page of workflows with its pagination
// metadata.
type ListWorkflowsResponse struct {
	Workflows []*models.Workflow `json:"workflows"`
	Count     int                `json:"count"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// HealthReport is the self-monitoring payload served on /health.
type HealthReport struct {
	Service string    `json:"service"`
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
	Notes   string    `json:"notes,omitempty"`
}
