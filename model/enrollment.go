package model

import "time"

// Enrollment grants a user durable access to a course. One row per
// (user, course); created exactly once when the course's payment is
// confirmed. Progress fields are maintained by progress tracking only.
type Enrollment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID       uint       `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	EnrolledAt     time.Time  `gorm:"not null" json:"enrolled_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"` // nil = lifetime access
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	Progress       int        `gorm:"not null;default:0" json:"progress"` // 0-100
	IsCompleted    bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relationships
	Course          Course            `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	LectureProgress []LectureProgress `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE" json:"-"`
}

// LectureProgress records watch state for one lecture of an enrollment.
// Upserted on each progress report, never deleted.
type LectureProgress struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EnrollmentID uint       `gorm:"not null;uniqueIndex:idx_progress_enrollment_lecture" json:"enrollment_id"`
	LectureID    uint       `gorm:"not null;uniqueIndex:idx_progress_enrollment_lecture" json:"lecture_id"`
	WatchTime    int        `gorm:"not null;default:0" json:"watch_time"` // seconds
	IsCompleted  bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for LectureProgress
func (LectureProgress) TableName() string {
	return "lecture_progress"
}
