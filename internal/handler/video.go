package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/pickperfect/api/internal/common"
	"github.com/pickperfect/api/internal/model"
	"github.com/pickperfect/api/internal/service"
	"github.com/pickperfect/api/pkg/response"
)

type VideoHandler struct {
	uploads   *service.UploadService
	videos    *service.VideoService
	validator *validator.Validate
}

func NewVideoHandler(uploads *service.UploadService, videos *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		uploads:   uploads,
		videos:    videos,
		validator: v,
	}
}

// UploadURL handles GET /api/videos/upload-url?filename=
func (h *VideoHandler) UploadURL(c *fiber.Ctx) error {
	var req model.UploadURLRequest
	if err := c.QueryParser(&req); err != nil {
		return response.ValidationError(c, "Invalid query", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.uploads.IssueUploadURL(c.Context(), req.Filename)
	if err != nil {
		if errors.Is(err, common.ErrPersistence) {
			return response.ServiceError(c, err.Error())
		}
		return response.StorageError(c, err.Error())
	}

	return response.OK(c, result)
}

// Webhook handles POST /api/videos/webhook, the upload completion signal.
// It answers as soon as the analysis is queued.
func (h *VideoHandler) Webhook(c *fiber.Ctx) error {
	var req model.UploadEvent
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.videos.HandleUploadEvent(c.Context(), &req)
	if err != nil {
		if errors.Is(err, common.ErrInvalidStatus) {
			return response.ValidationError(c, err.Error(), fiber.Map{"allowed": model.ValidJobStatuses})
		}
		if errors.Is(err, common.ErrPersistence) {
			return response.ServiceError(c, err.Error())
		}
		return response.QueueError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// List handles GET /api/videos
func (h *VideoHandler) List(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return response.ValidationError(c, "limit must be a positive integer", nil)
		}
		limit = n
	}

	result, err := h.videos.ListVideos(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Get handles GET /api/videos/:id
func (h *VideoHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Video ID is required", nil)
	}

	job, err := h.videos.GetVideo(c.Context(), id)
	if err != nil {
		if common.IsNotFound(err) {
			return response.NotFound(c, "Video not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, job)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
