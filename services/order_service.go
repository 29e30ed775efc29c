package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/utils/apperr"
)

// OrderService converts carts into immutable orders and manages the order
// lifecycle up to payment.
type OrderService struct {
	db *gorm.DB
}

// NewOrderService creates a new order service
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrder snapshots the user's cart into a PENDING order. Course data is
// read and the order committed before the cart rows are deleted, all within
// one transaction: a crash mid-way leaves the cart intact, and cart deletion
// is idempotent under retry.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint) (*model.Order, error) {
	var order *model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cartItems []model.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&cartItems).Error; err != nil {
			return apperr.Internal("failed to read cart", err)
		}
		if len(cartItems) == 0 {
			return apperr.EmptyCart()
		}

		items := make([]model.OrderItem, 0, len(cartItems))
		var total int64
		for _, ci := range cartItems {
			var course model.Course
			if err := tx.First(&course, ci.CourseID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound(fmt.Sprintf("course %d no longer exists", ci.CourseID))
				}
				return apperr.Internal("failed to fetch course for order", err)
			}

			items = append(items, model.OrderItem{
				CourseID:        course.ID,
				CourseTitle:     course.Title,
				CourseSlug:      course.Slug,
				CourseThumbnail: course.ThumbnailURL,
				PriceAtPurchase: course.Price,
			})
			total += course.Price
		}

		newOrder := model.Order{
			UserID:      userID,
			MerchantUID: "ord-" + uuid.NewString(),
			TotalPrice:  total,
			Status:      model.OrderStatusPending,
			Items:       items,
		}
		if err := tx.Create(&newOrder).Error; err != nil {
			return apperr.Internal("failed to create order", err)
		}

		// Last step: clear consumed cart rows
		if err := tx.Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
			return apperr.Internal("failed to clear cart", err)
		}

		order = &newOrder
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder returns one order with items, enforcing ownership
func (s *OrderService) GetOrder(ctx context.Context, requesterID, orderID uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("Payment").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, apperr.Internal("failed to fetch order", err)
	}
	if order.UserID != requesterID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch orders", err)
	}
	return orders, nil
}

// CancelOrder transitions a PENDING order to CANCELLED. Cancellation never
// reaches the gateway; it is only legal before payment.
func (s *OrderService) CancelOrder(ctx context.Context, requesterID, orderID uint) (*model.Order, error) {
	var order model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order not found")
			}
			return apperr.Internal("failed to fetch order", err)
		}
		if order.UserID != requesterID {
			return apperr.Forbidden("order belongs to another user")
		}
		if order.Status != model.OrderStatusPending {
			return apperr.InvalidState(fmt.Sprintf("order is %s and cannot be cancelled", order.Status))
		}

		order.Status = model.OrderStatusCancelled
		if err := tx.Model(&order).Update("status", model.OrderStatusCancelled).Error; err != nil {
			return apperr.Internal("failed to cancel order", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
