package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/utils/apperr"
)

// CartService manages per-user pending course selections
type CartService struct {
	db *gorm.DB
}

// NewCartService creates a new cart service
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// AddToCart adds a course to the user's cart. One row per (user, course);
// the unique index converts a concurrent duplicate add into a clean
// already-in-cart error.
func (s *CartService) AddToCart(ctx context.Context, userID, courseID uint) (*model.CartItem, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("course not found")
		}
		return nil, apperr.Internal("failed to fetch course", err)
	}

	item := model.CartItem{
		UserID:   userID,
		CourseID: courseID,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.InvalidState("course is already in the cart")
		}
		return nil, apperr.Internal("failed to add course to cart", err)
	}

	item.Course = course
	return &item, nil
}

// ListCart returns the user's cart items with courses preloaded
func (s *CartService) ListCart(ctx context.Context, userID uint) ([]model.CartItem, error) {
	var items []model.CartItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Course").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch cart", err)
	}
	return items, nil
}

// RemoveFromCart removes one course from the user's cart
func (s *CartService) RemoveFromCart(ctx context.Context, userID, courseID uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		return apperr.Internal("failed to remove course from cart", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound(fmt.Sprintf("course %d is not in the cart", courseID))
	}
	return nil
}
