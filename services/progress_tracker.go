package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/utils/cache"
)

// TTL configurations for job states
const (
	JobStateTTLSuccess = 1 * time.Hour  // 1 hour for successful jobs
	JobStateTTLFailure = 24 * time.Hour // 24 hours for failed jobs
	JobStateTTLPending = 24 * time.Hour // 24 hours for pending/processing jobs
)

// ProgressEvent represents a progress update event sent to clients via SSE
type ProgressEvent struct {
	Type  string `json:"type"` // "started", "progress", "complete", "error"
	JobID string `json:"job_id"`

	Progress int    `json:"progress"` // 0-100
	Phase    string `json:"phase"`
	Message  string `json:"message"`

	// Error info (for error events)
	ErrorMessage string `json:"error_message,omitempty"`

	// Result info (for complete events)
	EvaluationID uint `json:"evaluation_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ProgressCallback is a function that receives progress events.
// Return an error to abort the evaluation.
type ProgressCallback func(ProgressEvent) error

// ProgressTracker manages evaluation job state and progress updates
type ProgressTracker struct {
	cache *cache.RedisCache
}

// NewProgressTracker creates a new progress tracker instance
func NewProgressTracker(redisCache *cache.RedisCache) *ProgressTracker {
	return &ProgressTracker{cache: redisCache}
}

// CreateJob creates a new evaluation job and marks it as active for the user.
// A user can have at most one active job at a time.
func (pt *ProgressTracker) CreateJob(ctx context.Context, userID uint) (*model.EvaluationJob, error) {
	jobID := fmt.Sprintf("%d_%d", userID, time.Now().UnixNano())

	// Reserve the active-job slot atomically; a plain get-then-set would let
	// two concurrent submissions from the same user both pass the check
	activeJobKey := fmt.Sprintf(model.RedisKeyActiveJob, userID)
	acquired, err := pt.cache.SetNX(ctx, activeJobKey, jobID, JobStateTTLPending)
	if err != nil {
		return nil, fmt.Errorf("failed to mark job as active: %w", err)
	}
	if !acquired {
		existingJobID, _ := pt.cache.Get(ctx, activeJobKey)
		return nil, fmt.Errorf("user already has an active evaluation job: %s", existingJobID)
	}

	job := &model.EvaluationJob{
		JobID:        jobID,
		UserID:       userID,
		Status:       model.JobStatusPending,
		Progress:     0,
		CurrentPhase: "initializing",
		Message:      "Evaluation queued",
		StartedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	jobKey := fmt.Sprintf(model.RedisKeyJobState, jobID)
	if err := pt.cache.SetJSON(ctx, jobKey, job, JobStateTTLPending); err != nil {
		pt.cache.Delete(ctx, activeJobKey)
		return nil, fmt.Errorf("failed to save job state: %w", err)
	}

	return job, nil
}

// UpdateProgress applies a progress event to the stored job state
func (pt *ProgressTracker) UpdateProgress(ctx context.Context, jobID string, event ProgressEvent) error {
	job, err := pt.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = event.Progress
	job.CurrentPhase = event.Phase
	job.Message = event.Message
	job.UpdatedAt = time.Now()

	switch event.Type {
	case "started":
		job.Status = model.JobStatusProcessing
	case "complete":
		job.Status = model.JobStatusCompleted
		now := time.Now()
		job.CompletedAt = &now
		if event.EvaluationID > 0 {
			job.EvaluationID = event.EvaluationID
		}
	case "error":
		job.Status = model.JobStatusFailed
		job.Error = event.ErrorMessage
		now := time.Now()
		job.CompletedAt = &now
	}

	ttl := JobStateTTLPending
	if job.Status == model.JobStatusCompleted {
		ttl = JobStateTTLSuccess
	} else if job.Status == model.JobStatusFailed {
		ttl = JobStateTTLFailure
	}

	jobKey := fmt.Sprintf(model.RedisKeyJobState, jobID)
	if err := pt.cache.SetJSON(ctx, jobKey, job, ttl); err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}

	if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
		activeJobKey := fmt.Sprintf(model.RedisKeyActiveJob, job.UserID)
		pt.cache.Delete(ctx, activeJobKey)
	}

	return nil
}

// SetJobEvaluation records the persisted evaluation ID on the job state so
// clients polling the job can find the record
func (pt *ProgressTracker) SetJobEvaluation(ctx context.Context, jobID string, evaluationID uint) error {
	job, err := pt.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.EvaluationID = evaluationID
	job.UpdatedAt = time.Now()

	jobKey := fmt.Sprintf(model.RedisKeyJobState, jobID)
	return pt.cache.SetJSON(ctx, jobKey, job, JobStateTTLPending)
}

// GetJob retrieves job state from Redis
func (pt *ProgressTracker) GetJob(ctx context.Context, jobID string) (*model.EvaluationJob, error) {
	jobKey := fmt.Sprintf(model.RedisKeyJobState, jobID)

	var job model.EvaluationJob
	if err := pt.cache.GetJSON(ctx, jobKey, &job); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("job not found or expired: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}

	return &job, nil
}

// GetActiveJob returns the active job ID for a user (if any)
func (pt *ProgressTracker) GetActiveJob(ctx context.Context, userID uint) (string, error) {
	activeJobKey := fmt.Sprintf(model.RedisKeyActiveJob, userID)
	jobID, err := pt.cache.Get(ctx, activeJobKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return jobID, nil
}

// ClearActiveJob removes the active job reference for a user
func (pt *ProgressTracker) ClearActiveJob(ctx context.Context, userID uint) error {
	activeJobKey := fmt.Sprintf(model.RedisKeyActiveJob, userID)
	return pt.cache.Delete(ctx, activeJobKey)
}

// CancelJob cancels an active job. If the job has already finished, only the
// active job reference is cleared.
func (pt *ProgressTracker) CancelJob(ctx context.Context, jobID string) error {
	job, err := pt.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == model.JobStatusPending || job.Status == model.JobStatusProcessing {
		job.Status = model.JobStatusCancelled
		now := time.Now()
		job.CompletedAt = &now
		job.UpdatedAt = now
		job.Message = "Job cancelled by user"

		jobKey := fmt.Sprintf(model.RedisKeyJobState, jobID)
		if err := pt.cache.SetJSON(ctx, jobKey, job, JobStateTTLFailure); err != nil {
			return fmt.Errorf("failed to update job state: %w", err)
		}

		// Set cancellation flag so the running pipeline can check it
		cancelKey := fmt.Sprintf("eval:job:cancel:%s", jobID)
		pt.cache.Set(ctx, cancelKey, "1", 10*time.Minute)
	}

	activeJobKey := fmt.Sprintf(model.RedisKeyActiveJob, job.UserID)
	pt.cache.Delete(ctx, activeJobKey)

	return nil
}

// IsJobCancelled checks if a job has been cancelled
func (pt *ProgressTracker) IsJobCancelled(ctx context.Context, jobID string) bool {
	cancelKey := fmt.Sprintf("eval:job:cancel:%s", jobID)
	val, err := pt.cache.Get(ctx, cancelKey)
	return err == nil && val == "1"
}

// CalculateProgress maps a pipeline phase to an overall progress percentage
func CalculateProgress(phase string) int {
	switch phase {
	case "initializing":
		return 0
	case model.JobPhaseUpload:
		return 10
	case model.JobPhaseOCR:
		return 30
	case model.JobPhaseGrading:
		return 60
	case model.JobPhaseSave:
		return 90
	case "complete":
		return 100
	default:
		return 0
	}
}
