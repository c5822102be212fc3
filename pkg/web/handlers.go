// Package web provides HTTP handlers and REST API endpoints for
// certification workflow management.
package web

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
	"github.com/mbarrin/certflow/pkg/services"
)

const serviceVersion = "0.1.0"

type APIHandlers struct {
	certification *services.Certification
	validator     *validator.Validate
}

func NewAPIHandlers(certification *services.Certification, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		certification: certification,
		validator:     validator,
	}
}

// CreateWorkflow handles POST /workflows.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var body CreateWorkflowRequest
	if err := c.Bind().Body(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&body); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	req, err := body.ToServiceRequest()
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.certification.CreateWorkflow(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// GetWorkflow handles GET /workflows/:id.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.certification.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// GetWorkflows handles GET /workflows with the filter query parameters.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	opts, err := h.parseListOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	workflows, err := h.certification.ListWorkflows(c.Context(), *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ListWorkflowsResponse{
		Workflows: workflows,
		Count:     len(workflows),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// UpdateWorkflowStage handles PATCH /workflows/:id/stages, the callback
// path execution backends use to report stage outcomes.
func (h *APIHandlers) UpdateWorkflowStage(c fiber.Ctx) error {
	var body UpdateStageRequest
	if err := c.Bind().Body(&body); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&body); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	req, err := body.ToServiceRequest()
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.certification.UpdateStage(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// HealthCheck handles GET /health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	notes, healthy := h.certification.HealthCheck(c.Context())

	report := HealthReport{
		Service: "certflow",
		Status:  "healthy",
		Version: serviceVersion,
		Time:    time.Now().UTC(),
		Notes:   notes,
	}

	if !healthy {
		report.Status = "unhealthy"

		return c.Status(fiber.StatusServiceUnavailable).JSON(report)
	}

	return c.JSON(report)
}

// parseListOptions parses and validates the listing query parameters. The
// status, domain and stage filters are enum-constrained: unknown values
// are rejected here rather than silently matching nothing.
func (h *APIHandlers) parseListOptions(c fiber.Ctx) (*persistence.ListOptions, error) {
	opts := &persistence.ListOptions{
		ScriptPath: c.Query("script_path"),
		Author:     c.Query("author"),
		Branch:     c.Query("branch"),
		CommitSHA:  c.Query("commit"),
	}

	if raw := c.Query("domain"); raw != "" {
		domain, err := models.ParseDomain(raw)
		if err != nil {
			return nil, err
		}

		opts.Domain = &domain
	}

	if raw := c.Query("stage"); raw != "" {
		stage, err := models.ParseStageKind(raw)
		if err != nil {
			return nil, err
		}

		opts.Stage = &stage
	}

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseWorkflowStatus(raw)
		if err != nil {
			return nil, err
		}

		opts.Status = &status
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	return opts, nil
}
