package model

import (
	"time"

	"gorm.io/gorm"
)

// Course represents a purchasable course in the catalog
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	InstructorID uint           `gorm:"index" json:"instructor_id"`
	Title        string         `gorm:"not null" json:"title"`
	Slug         string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description  string         `gorm:"type:text" json:"description"`
	ThumbnailURL string         `gorm:"type:varchar(500)" json:"thumbnail_url"`
	Price        int64          `gorm:"not null;default:0" json:"price"` // whole settlement-currency units
	IsPublished  bool           `gorm:"default:false" json:"is_published"`

	// Relationships
	Sections []Section `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Lectures []Lecture `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// Section groups lectures within a course
type Section struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"not null" json:"title"`
	Position  int            `gorm:"default:0" json:"position"`

	// Relationships
	Lectures []Lecture `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"lectures,omitempty"`
}

// Lecture is a single video unit; watch state is tracked per enrollment
// in LectureProgress
type Lecture struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	SectionID uint           `gorm:"not null;index" json:"section_id"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"not null" json:"title"`
	VideoURL  string         `gorm:"type:varchar(500)" json:"video_url"`
	Duration  int            `gorm:"default:0" json:"duration"` // seconds
	Position  int            `gorm:"default:0" json:"position"`
}
