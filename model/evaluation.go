package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EvaluationStatus represents the lifecycle state of an evaluation record
type EvaluationStatus string

const (
	EvaluationStatusProcessing EvaluationStatus = "processing"
	EvaluationStatusCompleted  EvaluationStatus = "completed"
	EvaluationStatusFailed     EvaluationStatus = "failed"
)

// Evaluation tracks one submitted exam paper from upload through graded result.
// Created with status "processing" as soon as the paper is stored; transitions
// exactly once to "completed" (with marks and results) or "failed" (with a
// reason). The completion update is guarded on the current status so duplicate
// or racing grading calls cannot both apply.
type Evaluation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID     uint    `gorm:"index" json:"user_id"`
	Subject    string  `gorm:"type:varchar(50);not null" json:"subject"`
	GradeLevel string  `gorm:"type:varchar(50);not null" json:"grade_level"`
	TotalMarks float64 `gorm:"not null" json:"total_marks"` // Evaluator-declared maximum

	UploadedFileURL string `gorm:"type:text;not null" json:"uploaded_file_url"`
	UploadedFileKey string `gorm:"type:varchar(500)" json:"uploaded_file_key"`

	// {"answerKey": "..."} exactly as supplied by the evaluator
	AnswerKeyData datatypes.JSON `gorm:"type:jsonb;not null" json:"answer_key_data"`

	Status EvaluationStatus `gorm:"type:varchar(20);default:'processing';index" json:"status"`

	// Set only on completion
	ObtainedMarks     *float64       `json:"obtained_marks,omitempty"`
	EvaluationResults datatypes.JSON `gorm:"type:jsonb" json:"evaluation_results,omitempty"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`

	// Set only on failure
	FailureReason string     `gorm:"type:text" json:"failure_reason,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for Evaluation
func (Evaluation) TableName() string {
	return "evaluations"
}

// AnswerKeyPayload is the JSON shape stored in AnswerKeyData
type AnswerKeyPayload struct {
	AnswerKey string `json:"answerKey"`
}

// IsTerminal reports whether the record has reached a terminal state
func (e *Evaluation) IsTerminal() bool {
	return e.Status == EvaluationStatusCompleted || e.Status == EvaluationStatusFailed
}

// Percentage returns the obtained percentage, or 0 when marks are unavailable
func (e *Evaluation) Percentage() float64 {
	if e.ObtainedMarks == nil || e.TotalMarks <= 0 {
		return 0
	}
	return *e.ObtainedMarks / e.TotalMarks * 100
}

// GradeLetter maps the obtained percentage to a letter grade band
func (e *Evaluation) GradeLetter() string {
	p := e.Percentage()
	switch {
	case p >= 90:
		return "A+"
	case p >= 80:
		return "A"
	case p >= 70:
		return "B"
	case p >= 60:
		return "C"
	case p >= 50:
		return "D"
	default:
		return "F"
	}
}
