package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/utils/apperr"
)

// ProgressService records per-lecture watch state and keeps the aggregate
// enrollment progress consistent with it.
type ProgressService struct {
	db *gorm.DB
}

// NewProgressService creates a new progress service
func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

// ProgressUpdate is the result of one progress report
type ProgressUpdate struct {
	LectureProgress *model.LectureProgress `json:"lecture_progress"`
	Enrollment      *model.Enrollment      `json:"enrollment"`
}

// UpdateProgress upserts the watch state for one lecture and recomputes the
// enrollment's aggregate progress from the full progress set. Recomputing
// from scratch costs an extra read but cannot double-count. Completion is a
// one-way ratchet: progress may regress when lectures are added to a course
// later, but is_completed/completed_at stay set.
func (s *ProgressService) UpdateProgress(ctx context.Context, enrollmentID, requesterID, lectureID uint, watchTime int, isCompleted bool) (*ProgressUpdate, error) {
	var enrollment model.Enrollment
	if err := s.db.WithContext(ctx).First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("enrollment not found")
		}
		return nil, apperr.Internal("failed to fetch enrollment", err)
	}
	if enrollment.UserID != requesterID {
		return nil, apperr.Forbidden("enrollment belongs to another user")
	}

	var progress model.LectureProgress

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.upsertLectureProgress(tx, &progress, enrollmentID, lectureID, watchTime, isCompleted); err != nil {
			return err
		}

		var totalLectures int64
		if err := tx.Model(&model.Lecture{}).
			Where("course_id = ?", enrollment.CourseID).
			Count(&totalLectures).Error; err != nil {
			return apperr.Internal("failed to count lectures", err)
		}

		percent := 0
		if totalLectures > 0 {
			var completed int64
			if err := tx.Model(&model.LectureProgress{}).
				Where("enrollment_id = ? AND is_completed = ?", enrollmentID, true).
				Count(&completed).Error; err != nil {
				return apperr.Internal("failed to count completed lectures", err)
			}
			percent = int(completed * 100 / totalLectures) // floor division
			if percent > 100 {
				percent = 100
			}
		}

		now := time.Now()
		updates := map[string]interface{}{
			"progress":         percent,
			"last_accessed_at": now,
		}
		if percent >= 100 && !enrollment.IsCompleted {
			updates["is_completed"] = true
			updates["completed_at"] = now
		}
		if err := tx.Model(&enrollment).Updates(updates).Error; err != nil {
			return apperr.Internal("failed to update enrollment progress", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-read both rows so the caller sees exactly what was persisted
	if err := s.db.WithContext(ctx).First(&enrollment, enrollmentID).Error; err != nil {
		return nil, apperr.Internal("failed to reload enrollment", err)
	}
	if err := s.db.WithContext(ctx).First(&progress, progress.ID).Error; err != nil {
		return nil, apperr.Internal("failed to reload lecture progress", err)
	}

	return &ProgressUpdate{
		LectureProgress: &progress,
		Enrollment:      &enrollment,
	}, nil
}

// upsertLectureProgress creates or updates the (enrollment, lecture) row,
// stamping completed_at on the false-to-true transition. An insert lost to a
// concurrent report falls back to updating the winner's row.
func (s *ProgressService) upsertLectureProgress(tx *gorm.DB, progress *model.LectureProgress, enrollmentID, lectureID uint, watchTime int, isCompleted bool) error {
	err := tx.Where("enrollment_id = ? AND lecture_id = ?", enrollmentID, lectureID).
		First(progress).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		*progress = model.LectureProgress{
			EnrollmentID: enrollmentID,
			LectureID:    lectureID,
			WatchTime:    watchTime,
			IsCompleted:  isCompleted,
		}
		if isCompleted {
			now := time.Now()
			progress.CompletedAt = &now
		}
		createErr := tx.Create(progress).Error
		if createErr == nil {
			return nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return apperr.Internal("failed to create lecture progress", createErr)
		}
		// Lost the insert race; load the existing row and update it
		if err := tx.Where("enrollment_id = ? AND lecture_id = ?", enrollmentID, lectureID).
			First(progress).Error; err != nil {
			return apperr.Internal("failed to fetch lecture progress", err)
		}
	} else if err != nil {
		return apperr.Internal("failed to fetch lecture progress", err)
	}

	updates := map[string]interface{}{
		"watch_time":   watchTime,
		"is_completed": isCompleted,
	}
	if isCompleted && !progress.IsCompleted {
		now := time.Now()
		updates["completed_at"] = now
		progress.CompletedAt = &now
	}
	if err := tx.Model(progress).Updates(updates).Error; err != nil {
		return apperr.Internal("failed to update lecture progress", err)
	}
	progress.WatchTime = watchTime
	progress.IsCompleted = isCompleted
	return nil
}
