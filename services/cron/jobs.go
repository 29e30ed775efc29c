package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/courseloop/api/model"
)

const staleOrderAge = 24 * time.Hour

// ReconcileMissingEnrollments provisions enrollments for paid order lines
// that have none. This is the retry path for provisioning failures after a
// confirmed payment: the payment stays PAID and this sweep converges state.
func (m *CronManager) ReconcileMissingEnrollments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "reconcile_missing_enrollments"

	// Order lines of PAID orders whose (user, course) has no enrollment yet
	type missing struct {
		OrderID  uint
		UserID   uint
		CourseID uint
	}
	var rows []missing
	err := m.db.WithContext(ctx).
		Table("order_items").
		Select("orders.id AS order_id, orders.user_id AS user_id, order_items.course_id AS course_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("LEFT JOIN enrollments ON enrollments.user_id = orders.user_id AND enrollments.course_id = order_items.course_id").
		Where("orders.status = ? AND enrollments.id IS NULL", model.OrderStatusPaid).
		Scan(&rows).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query missing enrollments: %w", err))
		return
	}

	if len(rows) == 0 {
		m.logJobComplete(jobName, "No missing enrollments")
		return
	}

	provisioned := 0
	failed := 0
	for _, row := range rows {
		if err := m.enrollments.Provision(ctx, row.UserID, row.CourseID); err != nil {
			log.Printf("[CRON] failed to provision enrollment for order %d course %d: %v",
				row.OrderID, row.CourseID, err)
			failed++
			continue
		}
		provisioned++
	}

	m.logJobComplete(jobName,
		fmt.Sprintf("Provisioned %d missing enrollments (%d failed)", provisioned, failed))
}

// ExpireStaleOrders cancels orders stuck in PENDING for more than a day.
// The status filter in the update keeps this safe against a concurrent
// payment confirmation.
func (m *CronManager) ExpireStaleOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobName := "expire_stale_orders"
	cutoff := time.Now().Add(-staleOrderAge)

	result := m.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, cutoff).
		Update("status", model.OrderStatusCancelled)
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to expire stale orders: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cancelled %d stale pending orders", result.RowsAffected))
}

// PruneCronLogs removes job log rows older than 30 days
func (m *CronManager) PruneCronLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobName := "prune_cron_logs"
	cutoff := time.Now().AddDate(0, 0, -30)

	result := m.db.WithContext(ctx).
		Where("started_at < ?", cutoff).
		Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to prune cron logs: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Pruned %d cron log rows", result.RowsAffected))
}
