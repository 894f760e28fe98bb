package web

import (
	"errors"

	"github.com/credenflow/credenflow/pkg/engine"
	"github.com/credenflow/credenflow/pkg/persistence"
	"github.com/credenflow/credenflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and engine errors to RFC 7807 responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var resumeErr *engine.ResumeValidationError

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.As(err, &resumeErr):
		// A non-paused step or a wrong decision is the caller's mistake,
		// a non-resumable execution is a state conflict.
		status := fiber.StatusBadRequest
		problemType := "resume_validation_error"

		if errors.Is(err, engine.ErrExecutionNotResumable) {
			status = fiber.StatusConflict
			problemType = "conflict"
		}

		problem := problems.NewStatusProblem(status).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(resumeErr.Error())

		return c.Status(status).JSON(problem)

	case errors.Is(err, engine.ErrExecutionNotFailed):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, persistence.ErrDefinitionInactive):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("workflow_inactive").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case persistence.IsStepNotFound(err):
		return notFound(c, "step execution not found")

	default:
		return internalError(c, err)
	}
}
