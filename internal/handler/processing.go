package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/pkg/response"
)

const maxListLimit = 100

type ProcessingHandler struct {
	jobs *service.JobService
}

func NewProcessingHandler(jobs *service.JobService) *ProcessingHandler {
	return &ProcessingHandler{jobs: jobs}
}

func queued(job *model.Job) model.QueuedResponse {
	return model.QueuedResponse{JobID: job.ID, Status: job.Status}
}

// Status handles GET /api/processing/status?jobId=
// @Summary      Get job status
// @Description  Current status of a processing job. Completed jobs include their result.
// @Tags         Processing
// @Produce      json
// @Param        jobId query string true "Job ID"
// @Success      200 {object} model.JobView
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/processing/status [get]
func (h *ProcessingHandler) Status(c *fiber.Ctx) error {
	jobID := c.Query("jobId")
	if jobID == "" {
		return response.ValidationError(c, "jobId is required", nil)
	}
	return h.status(c, jobID)
}

// Get handles GET /api/processing/:id
// @Summary      Get job
// @Tags         Processing
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} model.JobView
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/processing/{id} [get]
func (h *ProcessingHandler) Get(c *fiber.Ctx) error {
	return h.status(c, c.Params("id"))
}

func (h *ProcessingHandler) status(c *fiber.Ctx, jobID string) error {
	job, err := h.jobs.Status(c.UserContext(), jobID, middleware.GetPrincipal(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, job.View())
}

// List handles GET /api/processing
// @Summary      List my jobs
// @Tags         Processing
// @Produce      json
// @Param        limit query int false "Max jobs (default 20, max 100)"
// @Success      200 {array} model.JobView
// @Failure      401 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/processing [get]
func (h *ProcessingHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := h.jobs.List(c.UserContext(), middleware.GetPrincipal(c), limit)
	if err != nil {
		return writeError(c, err)
	}

	views := make([]model.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.View())
	}
	return response.OK(c, views)
}

// Cancel handles POST /api/processing/:id/cancel
// @Summary      Cancel a job
// @Description  Cancels a queued or processing job. Results produced after cancellation are discarded.
// @Tags         Processing
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} model.CancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/processing/{id}/cancel [post]
func (h *ProcessingHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("id")
	job, err := h.jobs.Cancel(c.UserContext(), jobID, middleware.GetPrincipal(c))
	if errors.Is(err, service.ErrAlreadyTerminal) {
		return response.Error(c, fiber.StatusBadRequest, response.CodeAlreadyTerminal,
			"Job already "+string(job.Status), nil)
	}
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, model.CancelResponse{
		ProcessingID: job.ID,
		Message:      "Processing cancelled",
	})
}
