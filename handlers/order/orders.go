package order

import (
	"github.com/gofiber/fiber/v2"

	"github.com/courseloop/api/services"
	"github.com/courseloop/api/utils/middleware"
	"github.com/courseloop/api/utils/response"
)

// OrderHandler handles order-related requests
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create handles POST /api/v1/orders. The order is assembled from the
// current cart; no request body is needed.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	order, err := h.orders.CreateOrder(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, order)
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	orders, err := h.orders.ListOrders(c.Context(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, orders)
}

// Get handles GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	orderID, err := c.ParamsInt("id")
	if err != nil || orderID < 1 {
		return response.BadRequest(c, "Invalid order id")
	}

	order, err := h.orders.GetOrder(c.Context(), userID, uint(orderID))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, order)
}

// Cancel handles POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	orderID, err := c.ParamsInt("id")
	if err != nil || orderID < 1 {
		return response.BadRequest(c, "Invalid order id")
	}

	order, err := h.orders.CancelOrder(c.Context(), userID, uint(orderID))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Order cancelled", order)
}
