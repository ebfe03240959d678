package handler

import (
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hirewise/api/internal/intake"
	"github.com/hirewise/api/internal/middleware"
	"github.com/hirewise/api/internal/model"
	"github.com/hirewise/api/internal/service"
	"github.com/hirewise/api/pkg/response"
)

type UploadHandler struct {
	service   *service.IntakeService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.IntakeService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/uploads
// @Summary      Upload a file
// @Description  Upload a resume, document, image or video. High priority AI work runs inline; the rest is queued.
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        purpose     formData string true  "resume | document | image | video"
// @Param        subPurpose  formData string false "profile | intro | interview (video only)"
// @Param        priority    formData string false "high | medium | low"
// @Param        candidateId formData string false "Candidate the file belongs to"
// @Param        context     formData string false "Interview context JSON {role, questions}"
// @Param        file        formData file   true  "File"
// @Success      200 {object} model.SyncResponse
// @Success      201 {object} model.UploadResult
// @Success      202 {object} model.QueuedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/uploads [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	purpose := c.FormValue("purpose")
	subPurpose := c.FormValue("subPurpose")

	rule, err := h.service.Rule(purpose, subPurpose)
	if err != nil {
		return writeError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return writeError(c, rule.Validate(false, 0, ""))
	}

	// reject on the declared size and type before reading anything
	if err := rule.Validate(true, file.Size, file.Header.Get("Content-Type")); err != nil {
		return writeError(c, err)
	}

	var interview *model.InterviewInput
	if raw := c.FormValue("context"); raw != "" {
		interview = &model.InterviewInput{}
		if err := json.Unmarshal([]byte(raw), interview); err != nil {
			return response.ValidationError(c, "context must be a JSON object", nil)
		}
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data := make([]byte, file.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		intake.Scrub(data)
		return response.ServiceError(c, "Failed to read file")
	}

	out, err := h.service.Accept(c.UserContext(), &service.Upload{
		Purpose:     purpose,
		SubPurpose:  subPurpose,
		Priority:    c.FormValue("priority"),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
		CandidateID: c.FormValue("candidateId"),
		Context:     interview,
		Owner:       middleware.GetPrincipal(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, out)
}

// Intent handles POST /api/uploads/intent
// @Summary      Validate an upload before sending bytes
// @Description  Checks purpose, size and type, then returns a presigned PUT for direct upload to object storage
// @Tags         Upload
// @Accept       json
// @Produce      json
// @Param        request body model.UploadIntentRequest true "Upload intent"
// @Success      200 {object} model.UploadIntentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/uploads/intent [post]
func (h *UploadHandler) Intent(c *fiber.Ctx) error {
	var req model.UploadIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	resp, err := h.service.Intent(c.UserContext(), &req, middleware.GetPrincipal(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, resp)
}
