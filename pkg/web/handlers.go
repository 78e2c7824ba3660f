// Package web provides HTTP handlers and REST API endpoints for the
// admissions workflow engine.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/admitflow/admitflow/pkg/engine"
	"github.com/admitflow/admitflow/pkg/models"
	"github.com/admitflow/admitflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService    *services.Workflow
	lifecycleService   *services.Lifecycle
	progressionService *services.Progression
	validator          *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	lifecycleService *services.Lifecycle,
	progressionService *services.Progression,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:    workflowService,
		lifecycleService:   lifecycleService,
		progressionService: progressionService,
		validator:          validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	activeOnly := false

	if activeStr := c.Query("active"); activeStr != "" {
		parsed, err := strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid 'active' query parameter")
		}

		activeOnly = parsed
	}

	workflows, err := h.workflowService.List(c.Context(), c.Query("category"), activeOnly)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.ToWorkflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), id, req.ToWorkflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
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

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.lifecycleService.Activate(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.lifecycleService.Deactivate(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req DuplicateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	duplicated, err := h.lifecycleService.Duplicate(c.Context(), id, req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(duplicated)
}

func (h *APIHandlers) EnrollApplication(c fiber.Ctx) error {
	applicationID := c.Params("id")
	if applicationID == "" {
		return badRequest(c, "Application ID is required")
	}

	var req EnrollApplicationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	application := &models.Application{
		ID:       applicationID,
		Category: req.Category,
		Data:     req.Data,
	}

	actor := models.SystemActor()
	if req.ActorID != "" {
		actor = models.HumanActor(req.ActorID)
	}

	record, err := h.progressionService.Enroll(c.Context(), application, actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *APIHandlers) GetApplicationTransitions(c fiber.Ctx) error {
	applicationID := c.Params("id")
	if applicationID == "" {
		return badRequest(c, "Application ID is required")
	}

	transitions, err := h.progressionService.AvailableTransitions(c.Context(), applicationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"transitions": transitions,
	})
}

func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	applicationID := c.Params("id")
	transitionID := c.Params("transitionId")

	if applicationID == "" || transitionID == "" {
		return badRequest(c, "Application ID and transition ID are required")
	}

	var req ExecuteTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	application := &models.Application{
		ID:   applicationID,
		Data: req.Data,
	}

	result, err := h.progressionService.ExecuteTransition(c.Context(), application, transitionID,
		models.HumanActor(req.ActorID), req.ContextData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(outcomeStatus(result.Outcome)).JSON(TransitionResult{
		Outcome: string(result.Outcome),
		Reason:  result.Reason,
		Status:  result.Record,
	})
}

func (h *APIHandlers) GetApplicationHistory(c fiber.Ctx) error {
	applicationID := c.Params("id")
	if applicationID == "" {
		return badRequest(c, "Application ID is required")
	}

	history, err := h.progressionService.History(c.Context(), applicationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "AdmitFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "AdmitFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// outcomeStatus maps an execution outcome to its HTTP status. Every outcome
// is a fully formed response, not an error: the body always carries the
// outcome and reason.
func outcomeStatus(outcome engine.Outcome) int {
	switch outcome {
	case engine.OutcomeSuccess:
		return fiber.StatusOK
	case engine.OutcomeUnauthorized:
		return fiber.StatusForbidden
	case engine.OutcomeConditionNotMet:
		return fiber.StatusUnprocessableEntity
	case engine.OutcomeNotApplicable:
		return fiber.StatusConflict
	default:
		return fiber.StatusOK
	}
}
