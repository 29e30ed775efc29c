package enrollment

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseloop/api/services"
	"github.com/courseloop/api/utils/middleware"
	"github.com/courseloop/api/utils/response"
	"github.com/courseloop/api/utils/validation"
)

// EnrollmentHandler handles enrollment listing and progress reports
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
	progress    *services.ProgressService
	validator   *validation.Validator
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollments *services.EnrollmentService, progress *services.ProgressService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		progress:    progress,
		validator:   validation.NewValidator(),
	}
}

// List handles GET /api/v1/enrollments
func (h *EnrollmentHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	enrollments, err := h.enrollments.ListForUser(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollments)
}

// Get handles GET /api/v1/enrollments/:id
func (h *EnrollmentHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	enrollmentID, err := c.ParamsInt("id")
	if err != nil || enrollmentID < 1 {
		return response.BadRequest(c, "Invalid enrollment id")
	}

	enrollment, err := h.enrollments.GetForUser(c.Context(), userID, uint(enrollmentID))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollment)
}

// UpdateProgressRequest represents the request body for one progress report
type UpdateProgressRequest struct {
	LectureID   uint `json:"lecture_id" validate:"required,min=1"`
	WatchTime   int  `json:"watch_time" validate:"gte=0"`
	IsCompleted bool `json:"is_completed"`
}

// UpdateProgress handles PATCH /api/v1/enrollments/:id/progress
func (h *EnrollmentHandler) UpdateProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	enrollmentID, err := c.ParamsInt("id")
	if err != nil || enrollmentID < 1 {
		return response.BadRequest(c, "Invalid enrollment id")
	}

	var req UpdateProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.progress.UpdateProgress(c.Context(),
		uint(enrollmentID), userID, req.LectureID, req.WatchTime, req.IsCompleted)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, result)
}
