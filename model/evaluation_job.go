package model

import "time"

// EvaluationJobStatus represents the status of an in-flight evaluation job
type EvaluationJobStatus string

const (
	JobStatusPending    EvaluationJobStatus = "pending"
	JobStatusProcessing EvaluationJobStatus = "processing"
	JobStatusCompleted  EvaluationJobStatus = "completed"
	JobStatusFailed     EvaluationJobStatus = "failed"
	JobStatusCancelled  EvaluationJobStatus = "cancelled"
)

// Pipeline phases reported while an evaluation job runs
const (
	JobPhaseUpload  = "upload"
	JobPhaseOCR     = "ocr"
	JobPhaseGrading = "grading"
	JobPhaseSave    = "save"
)

// EvaluationJob represents the live state of one evaluation pipeline run,
// stored in Redis. The persisted Evaluation row is the durable record; this
// is the ephemeral progress view streamed to clients.
type EvaluationJob struct {
	JobID        string              `json:"job_id"`
	UserID       uint                `json:"user_id"`
	EvaluationID uint                `json:"evaluation_id,omitempty"`
	Status       EvaluationJobStatus `json:"status"`
	Progress     int                 `json:"progress"` // 0-100
	CurrentPhase string              `json:"current_phase"`
	Message      string              `json:"message"`

	// Error tracking
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`

	// Timestamps
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Redis key patterns for evaluation jobs
const (
	// RedisKeyJobState stores the full job state as JSON
	// Usage: fmt.Sprintf(RedisKeyJobState, jobID)
	RedisKeyJobState = "eval:job:state:%s"

	// RedisKeyActiveJob tracks the active job ID for a user
	// Usage: fmt.Sprintf(RedisKeyActiveJob, userID)
	RedisKeyActiveJob = "eval:job:active:%d"
)
