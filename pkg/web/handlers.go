package web

import (
	"strconv"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		validator:        validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.workflowService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	// An explicit version pins the read, otherwise the latest is served.
	if versionStr := c.Query("version"); versionStr != "" {
		version, err := strconv.Atoi(versionStr)
		if err != nil {
			return badRequest(c, "Invalid version: "+versionStr)
		}

		workflow, err := h.workflowService.GetVersion(c.Context(), id, version)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(workflow)
	}

	workflow, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	workflow, err := h.workflowService.Create(c.Context(), req.toDefinition())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	workflow, err := h.workflowService.Update(c.Context(), id, req.toDefinition())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	execution, err := h.executionService.Execute(c.Context(), id, req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	executions, err := h.executionService.ListByWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// GetExecutionState serves the graph-view read model: per node status,
// timing and blockers, plus aggregate progress.
func (h *APIHandlers) GetExecutionState(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	state, err := h.executionService.State(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetExecutionSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	steps, err := h.executionService.Steps(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"steps": steps,
		"count": len(steps),
	})
}

// ContinueExecution resumes a paused step with a reviewer decision.
func (h *APIHandlers) ContinueExecution(c fiber.Ctx) error {
	var req engine.ResumeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	execution, err := h.executionService.Continue(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.Retry(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}
