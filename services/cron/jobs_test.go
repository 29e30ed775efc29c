package cron

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/services"
)

func newTestManager(t *testing.T) (*CronManager, *gorm.DB) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Order{},
		&model.OrderItem{},
		&model.Enrollment{},
		&model.CronJobLog{},
	))

	return NewCronManager(db, services.NewEnrollmentService(db)), db
}

func TestReconcileMissingEnrollments(t *testing.T) {
	manager, db := newTestManager(t)

	user := model.User{Email: "buyer@example.com", Name: "Buyer"}
	require.NoError(t, db.Create(&user).Error)
	course := model.Course{Title: "Go Basics", Slug: "go-basics", Price: 49000}
	require.NoError(t, db.Create(&course).Error)

	// A PAID order whose provisioning never happened
	order := model.Order{
		UserID:      user.ID,
		MerchantUID: "ord-reconcile-1",
		TotalPrice:  course.Price,
		Status:      model.OrderStatusPaid,
		Items: []model.OrderItem{{
			CourseID:        course.ID,
			CourseTitle:     course.Title,
			CourseSlug:      course.Slug,
			PriceAtPurchase: course.Price,
		}},
	}
	require.NoError(t, db.Create(&order).Error)

	manager.ReconcileMissingEnrollments()

	var count int64
	db.Model(&model.Enrollment{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// Converged state means the next sweep finds nothing
	manager.ReconcileMissingEnrollments()
	db.Model(&model.Enrollment{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReconcileSkipsUnpaidOrders(t *testing.T) {
	manager, db := newTestManager(t)

	user := model.User{Email: "buyer@example.com", Name: "Buyer"}
	require.NoError(t, db.Create(&user).Error)
	course := model.Course{Title: "Go Basics", Slug: "go-basics", Price: 49000}
	require.NoError(t, db.Create(&course).Error)

	order := model.Order{
		UserID:      user.ID,
		MerchantUID: "ord-pending-1",
		TotalPrice:  course.Price,
		Status:      model.OrderStatusPending,
		Items: []model.OrderItem{{
			CourseID:        course.ID,
			CourseTitle:     course.Title,
			CourseSlug:      course.Slug,
			PriceAtPurchase: course.Price,
		}},
	}
	require.NoError(t, db.Create(&order).Error)

	manager.ReconcileMissingEnrollments()

	var count int64
	db.Model(&model.Enrollment{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestExpireStaleOrders(t *testing.T) {
	manager, db := newTestManager(t)

	user := model.User{Email: "buyer@example.com", Name: "Buyer"}
	require.NoError(t, db.Create(&user).Error)

	stale := model.Order{
		UserID:      user.ID,
		MerchantUID: "ord-stale-1",
		TotalPrice:  49000,
		Status:      model.OrderStatusPending,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&stale).UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := model.Order{
		UserID:      user.ID,
		MerchantUID: "ord-fresh-1",
		TotalPrice:  49000,
		Status:      model.OrderStatusPending,
	}
	require.NoError(t, db.Create(&fresh).Error)

	paid := model.Order{
		UserID:      user.ID,
		MerchantUID: "ord-paid-1",
		TotalPrice:  49000,
		Status:      model.OrderStatusPaid,
	}
	require.NoError(t, db.Create(&paid).Error)
	require.NoError(t, db.Model(&paid).UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)

	manager.ExpireStaleOrders()

	var reloaded model.Order
	require.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, model.OrderStatusCancelled, reloaded.Status)

	reloaded = model.Order{}
	require.NoError(t, db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, model.OrderStatusPending, reloaded.Status)

	reloaded = model.Order{}
	require.NoError(t, db.First(&reloaded, paid.ID).Error)
	assert.Equal(t, model.OrderStatusPaid, reloaded.Status)
}

func TestPruneCronLogs(t *testing.T) {
	manager, db := newTestManager(t)

	old := model.CronJobLog{
		JobName:   "expire_stale_orders",
		Status:    "completed",
		StartedAt: time.Now().AddDate(0, 0, -40),
	}
	require.NoError(t, db.Create(&old).Error)

	recent := model.CronJobLog{
		JobName:   "expire_stale_orders",
		Status:    "completed",
		StartedAt: time.Now().AddDate(0, 0, -1),
	}
	require.NoError(t, db.Create(&recent).Error)

	manager.PruneCronLogs()

	var count int64
	db.Model(&model.CronJobLog{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var kept model.CronJobLog
	require.NoError(t, db.Where("job_name = ?", "expire_stale_orders").Order("id DESC").First(&kept).Error)
	assert.Equal(t, recent.ID, kept.ID)
}
