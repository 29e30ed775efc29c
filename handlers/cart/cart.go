package cart

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseloop/api/services"
	"github.com/courseloop/api/utils/middleware"
	"github.com/courseloop/api/utils/response"
	"github.com/courseloop/api/utils/validation"
)

// CartHandler handles cart-related requests
type CartHandler struct {
	carts     *services.CartService
	validator *validation.Validator
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{
		carts:     carts,
		validator: validation.NewValidator(),
	}
}

// AddItemRequest represents the request body for adding a course to the cart
type AddItemRequest struct {
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	item, err := h.carts.AddToCart(c.Context(), userID, req.CourseID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, item)
}

// ListItems handles GET /api/v1/cart
func (h *CartHandler) ListItems(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	items, err := h.carts.ListCart(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, items)
}

// RemoveItem handles DELETE /api/v1/cart/items/:courseId
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	courseID, err := c.ParamsInt("courseId")
	if err != nil || courseID < 1 {
		return response.BadRequest(c, "Invalid course id")
	}

	if err := h.carts.RemoveFromCart(c.Context(), userID, uint(courseID)); err != nil {
		return response.FromError(c, err)
	}

	return response.NoContent(c)
}
