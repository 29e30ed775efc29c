package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/courseloop/api/model"
	"github.com/courseloop/api/services"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron        *cron.Cron
	db          *gorm.DB
	enrollments *services.EnrollmentService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, enrollments *services.EnrollmentService) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:        c,
		db:          db,
		enrollments: enrollments,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Every 10 minutes: provision enrollments missing for paid orders
	_, err := m.cron.AddFunc("0 */10 * * * *", func() {
		m.logJobStart("reconcile_missing_enrollments")
		m.ReconcileMissingEnrollments()
	})
	if err != nil {
		return err
	}

	// Every hour: cancel orders stuck in PENDING for more than a day
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("expire_stale_orders")
		m.ExpireStaleOrders()
	})
	if err != nil {
		return err
	}

	// Daily at 03:00: prune old cron job logs
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("prune_cron_logs")
		m.PruneCronLogs()
	})
	if err != nil {
		return err
	}

	return nil
}

// logJobStart records the start of a job run
func (m *CronManager) logJobStart(jobName string) {
	entry := model.CronJobLog{
		JobName:   jobName,
		Status:    "started",
		StartedAt: time.Now(),
	}
	if err := m.db.Create(&entry).Error; err != nil {
		log.Printf("[CRON] failed to record start of %s: %v", jobName, err)
	}
}

// logJobComplete records a successful job run
func (m *CronManager) logJobComplete(jobName string, message string) {
	m.finishJobLog(jobName, "completed", message, "")
}

// logJobError records a failed job run
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] %s failed: %v", jobName, err)
	m.finishJobLog(jobName, "failed", "", err.Error())
}

func (m *CronManager) finishJobLog(jobName, status, message, errMsg string) {
	var entry model.CronJobLog
	err := m.db.Where("job_name = ? AND status = ?", jobName, "started").
		Order("started_at DESC").
		First(&entry).Error
	if err != nil {
		return
	}

	now := time.Now()
	entry.Status = status
	entry.CompletedAt = &now
	entry.Duration = int(now.Sub(entry.StartedAt).Milliseconds())
	entry.Message = message
	entry.ErrorMsg = errMsg
	if err := m.db.Save(&entry).Error; err != nil {
		log.Printf("[CRON] failed to record completion of %s: %v", jobName, err)
	}
}
