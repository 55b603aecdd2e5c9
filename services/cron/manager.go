package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/services/spaces"
)

// CronManager manages all scheduled background jobs
type CronManager struct {
	cron    *cron.Cron
	db      *gorm.DB
	storage *spaces.Client
}

// NewCronManager creates a new cron manager. storage may be nil when object
// storage is not configured; storage-dependent jobs are skipped.
func NewCronManager(db *gorm.DB, storage *spaces.Client) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:    c,
		db:      db,
		storage: storage,
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
	// 1. Every 10 minutes: fail evaluations stuck in processing
	_, err := m.cron.AddFunc("0 */10 * * * *", func() {
		m.logJobStart("sweep_stale_evaluations")
		m.SweepStaleEvaluations()
	})
	if err != nil {
		return err
	}

	// 2. Every hour: delete uploaded files with no evaluation record
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("cleanup_orphaned_uploads")
		m.CleanupOrphanedUploads()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 2 AM: trim old cron job logs
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("trim_cron_logs")
		m.TrimCronJobLogs()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string, detail datatypes.JSON) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	updates := map[string]interface{}{
		"status":       "completed",
		"completed_at": time.Now(),
		"message":      message,
	}
	if detail != nil {
		updates["detail"] = detail
	}

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(updates)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
