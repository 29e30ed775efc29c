package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/utils/apperr"
)

// EnrollmentService grants durable course access after a confirmed payment
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// Provision creates the enrollment for (user, course) if it does not exist
// yet. Safe to re-invoke: an existing row and a lost insert race are both
// no-ops, so payment confirmation can retry this per order line at will.
func (s *EnrollmentService) Provision(ctx context.Context, userID, courseID uint) error {
	var existing model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	enrollment := model.Enrollment{
		UserID:      userID,
		CourseID:    courseID,
		EnrolledAt:  time.Now(),
		ExpiresAt:   nil, // lifetime access
		Progress:    0,
		IsCompleted: false,
	}
	if err := s.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	return nil
}

// ListForUser returns the user's enrollments with courses preloaded
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Course").
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch enrollments", err)
	}
	return enrollments, nil
}

// GetForUser returns one enrollment, enforcing ownership
func (s *EnrollmentService) GetForUser(ctx context.Context, requesterID, enrollmentID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).Preload("Course").First(&enrollment, enrollmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("enrollment not found")
		}
		return nil, apperr.Internal("failed to fetch enrollment", err)
	}
	if enrollment.UserID != requesterID {
		return nil, apperr.Forbidden("enrollment belongs to another user")
	}
	return &enrollment, nil
}
