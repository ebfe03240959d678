package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/pkg/response"
)

type AIHandler struct {
	service   *service.IntakeService
	validator *validator.Validate
}

func NewAIHandler(svc *service.IntakeService, v *validator.Validate) *AIHandler {
	return &AIHandler{
		service:   svc,
		validator: v,
	}
}

// Bias handles POST /api/ai/bias
// @Summary      Detect bias
// @Description  Flags biased language in a job description, resume or feedback text
// @Tags         AI
// @Accept       json
// @Produce      json
// @Param        request body model.BiasRequest true "Content to analyze"
// @Success      200 {object} model.BiasReport
// @Success      202 {object} model.QueuedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/ai/bias [post]
func (h *AIHandler) Bias(c *fiber.Ctx) error {
	var req model.BiasRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	out, err := h.service.SubmitText(c.UserContext(), model.JobTypeBiasDetection, req.Priority,
		&model.BiasInput{Content: req.Content, ContentType: req.ContentType}, middleware.GetPrincipal(c))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, out)
}

// Embedding handles POST /api/ai/embedding
// @Summary      Generate embedding
// @Tags         AI
// @Accept       json
// @Produce      json
// @Param        request body model.EmbeddingRequest true "Text to embed"
// @Success      200 {object} model.EmbeddingResult
// @Success      202 {object} model.QueuedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/ai/embedding [post]
func (h *AIHandler) Embedding(c *fiber.Ctx) error {
	var req model.EmbeddingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	out, err := h.service.SubmitText(c.UserContext(), model.JobTypeEmbedding, req.Priority,
		&model.EmbeddingInput{Text: req.Text}, middleware.GetPrincipal(c))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, out)
}
