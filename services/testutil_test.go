package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/services/portone"
)

// newTestDB opens an isolated in-memory SQLite database and migrates the
// full schema. Each test gets its own named database; the single open
// connection keeps every query on the same in-memory instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Section{},
		&model.Lecture{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Enrollment{},
		&model.LectureProgress{},
		&model.CronJobLog{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := model.User{
		Email: email,
		Name:  "Test User",
		Role:  "student",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedCourse(t *testing.T, db *gorm.DB, slug string, price int64, lectureCount int) *model.Course {
	t.Helper()
	course := model.Course{
		Title:       "Course " + slug,
		Slug:        slug,
		Price:       price,
		IsPublished: true,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}

	if lectureCount > 0 {
		section := model.Section{CourseID: course.ID, Title: "Section 1", Position: 1}
		if err := db.Create(&section).Error; err != nil {
			t.Fatalf("failed to seed section: %v", err)
		}
		for i := 1; i <= lectureCount; i++ {
			lecture := model.Lecture{
				SectionID: section.ID,
				CourseID:  course.ID,
				Title:     fmt.Sprintf("Lecture %d", i),
				Duration:  300,
				Position:  i,
			}
			if err := db.Create(&lecture).Error; err != nil {
				t.Fatalf("failed to seed lecture: %v", err)
			}
		}
	}

	return &course
}

func seedEnrollment(t *testing.T, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	t.Helper()
	enrollment := model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	if err := db.Create(&enrollment).Error; err != nil {
		t.Fatalf("failed to seed enrollment: %v", err)
	}
	return &enrollment
}

func courseLectures(t *testing.T, db *gorm.DB, courseID uint) []model.Lecture {
	t.Helper()
	var lectures []model.Lecture
	if err := db.Where("course_id = ?", courseID).Order("position ASC").Find(&lectures).Error; err != nil {
		t.Fatalf("failed to load lectures: %v", err)
	}
	return lectures
}

// fakeGateway is a canned PaymentGateway for reconciliation tests
type fakeGateway struct {
	record *portone.PaymentRecord
	err    error
	calls  int
}

func (f *fakeGateway) GetPayment(ctx context.Context, impUID string) (*portone.PaymentRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := *f.record
	rec.ImpUID = impUID
	return &rec, nil
}
