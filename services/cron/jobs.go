package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/services/spaces"
)

const (
	// StaleProcessingDeadline is how long an evaluation may sit in
	// "processing" before the sweeper fails it
	StaleProcessingDeadline = 30 * time.Minute

	// StaleEvaluationReason is recorded on swept records
	StaleEvaluationReason = "evaluation timed out"

	// OrphanedUploadAge is how old an unreferenced upload must be before
	// deletion. Generous so in-flight submissions are never touched.
	OrphanedUploadAge = 24 * time.Hour

	// CronLogRetention is how long cron job logs are kept
	CronLogRetention = 30 * 24 * time.Hour
)

// SweepStaleEvaluations fails evaluations stuck in "processing" past the
// deadline. Runs every 10 minutes. The update is guarded on the current
// status, so a record that completes between query and update is untouched.
func (m *CronManager) SweepStaleEvaluations() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "sweep_stale_evaluations"
	cutoffTime := time.Now().Add(-StaleProcessingDeadline)

	now := time.Now()
	res := m.db.WithContext(ctx).Model(&model.Evaluation{}).
		Where("status = ? AND created_at < ?", model.EvaluationStatusProcessing, cutoffTime).
		Updates(map[string]interface{}{
			"status":         model.EvaluationStatusFailed,
			"failure_reason": StaleEvaluationReason,
			"failed_at":      now,
		})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to sweep stale evaluations: %w", res.Error))
		return
	}

	if res.RowsAffected == 0 {
		m.logJobComplete(jobName, "No stale evaluations found", nil)
		return
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"swept":            res.RowsAffected,
		"deadline_minutes": int(StaleProcessingDeadline.Minutes()),
	})
	m.logJobComplete(jobName, fmt.Sprintf("Failed %d stale evaluations", res.RowsAffected), datatypes.JSON(detail))
}

// CleanupOrphanedUploads deletes stored exam papers that no evaluation record
// references. Runs hourly. Only uploads older than OrphanedUploadAge are
// considered, so files belonging to submissions still in flight survive.
func (m *CronManager) CleanupOrphanedUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_orphaned_uploads"

	if m.storage == nil {
		m.logJobComplete(jobName, "Object storage not configured, skipping", nil)
		return
	}

	keys, err := m.storage.ListFiles(ctx, spaces.ExamPaperPrefix)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to list uploads: %w", err))
		return
	}

	if len(keys) == 0 {
		m.logJobComplete(jobName, "No uploads found", nil)
		return
	}

	// Unscoped so soft-deleted evaluations still protect their files
	var referencedKeys []string
	err = m.db.WithContext(ctx).Model(&model.Evaluation{}).
		Unscoped().
		Pluck("uploaded_file_key", &referencedKeys).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query referenced keys: %w", err))
		return
	}

	referenced := make(map[string]bool, len(referencedKeys))
	for _, k := range referencedKeys {
		referenced[k] = true
	}

	cutoff := time.Now().Add(-OrphanedUploadAge)
	deleted := 0
	failed := 0

	for _, key := range keys {
		if referenced[key] {
			continue
		}

		uploadedAt, ok := uploadTimeFromKey(key)
		if !ok || uploadedAt.After(cutoff) {
			continue
		}

		if err := m.storage.DeleteFile(ctx, key); err != nil {
			log.Printf("[CRON] Failed to delete orphaned upload %s: %v", key, err)
			failed++
			continue
		}
		deleted++
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"scanned": len(keys),
		"deleted": deleted,
		"failed":  failed,
	})
	m.logJobComplete(jobName, fmt.Sprintf("Scanned %d uploads, deleted %d orphans, %d failures", len(keys), deleted, failed), datatypes.JSON(detail))
}

// uploadTimeFromKey recovers the upload timestamp embedded in an exam paper
// key: exam-papers/<unixmilli>_<suffix>.<ext>
func uploadTimeFromKey(key string) (time.Time, bool) {
	name := strings.TrimPrefix(key, spaces.ExamPaperPrefix)
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return time.Time{}, false
	}

	millis, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	return time.UnixMilli(millis), true
}

// TrimCronJobLogs permanently removes cron job logs older than the retention
// window. Runs daily.
func (m *CronManager) TrimCronJobLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "trim_cron_logs"
	cutoffTime := time.Now().Add(-CronLogRetention)

	res := m.db.WithContext(ctx).Unscoped().
		Where("started_at < ?", cutoffTime).
		Delete(&model.CronJobLog{})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to trim cron logs: %w", res.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d old log entries", res.RowsAffected), nil)
}
