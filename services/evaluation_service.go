package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/services/onspace"
	"github.com/examlens/examlens-api/services/spaces"
)

// PDFNotSupportedMessage is returned when an evaluator uploads a PDF instead
// of an image. Kept distinct from the generic invalid-type message so clients
// can show targeted guidance.
const PDFNotSupportedMessage = "PDF files are not yet supported. Please upload an image (PNG, JPG, JPEG) of the exam paper."

// allowedExtensions are the accepted exam paper upload formats
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// EvaluationService orchestrates the exam evaluation pipeline: upload, OCR,
// AI grading, parsing, and persistence.
type EvaluationService struct {
	db      *gorm.DB
	ai      *onspace.Client
	ocr     *OCRClient
	storage *spaces.Client
	tracker *ProgressTracker
}

// NewEvaluationService creates a new evaluation service
func NewEvaluationService(db *gorm.DB, ai *onspace.Client, ocr *OCRClient, storage *spaces.Client, tracker *ProgressTracker) *EvaluationService {
	return &EvaluationService{
		db:      db,
		ai:      ai,
		ocr:     ocr,
		storage: storage,
		tracker: tracker,
	}
}

// SubmissionInput holds everything needed to evaluate one exam paper
type SubmissionInput struct {
	UserID     uint
	Filename   string
	FileBytes  []byte
	Subject    string
	GradeLevel string
	TotalMarks float64
	AnswerKey  string
}

// ValidateSubmission checks a submission before any collaborator is called.
// It returns an *InputError describing the first problem found.
func (s *EvaluationService) ValidateSubmission(input SubmissionInput) error {
	ext := strings.ToLower(filepath.Ext(input.Filename))
	if ext == ".pdf" {
		return NewInputError(PDFNotSupportedMessage)
	}
	if !allowedExtensions[ext] {
		return NewInputError("unsupported file type %q: please upload a PNG, JPG, or JPEG image", ext)
	}
	if len(input.FileBytes) == 0 {
		return NewInputError("uploaded file is empty")
	}
	if strings.TrimSpace(input.AnswerKey) == "" {
		return NewInputError("answer key is required")
	}
	if input.Subject == "" {
		return NewInputError("subject is required")
	}
	if !IsValidSubject(input.Subject) {
		return NewInputError("unsupported subject %q", input.Subject)
	}
	if input.GradeLevel == "" {
		return NewInputError("grade level is required")
	}
	if !IsValidGradeLevel(input.GradeLevel) {
		return NewInputError("unsupported grade level %q", input.GradeLevel)
	}
	if input.TotalMarks <= 0 {
		return NewInputError("total marks must be greater than zero")
	}
	return nil
}

// Submit runs the full evaluation pipeline for one exam paper. The evaluation
// record is created with status "processing" before OCR starts, so a crash
// mid-pipeline leaves a visible record rather than a silent loss. Failures
// after creation transition the record to "failed" with a reason.
//
// The callback, when non-nil, receives progress events alongside the Redis
// job state updates.
func (s *EvaluationService) Submit(ctx context.Context, jobID string, input SubmissionInput, cb ProgressCallback) (*model.Evaluation, error) {
	if err := s.ValidateSubmission(input); err != nil {
		return nil, err
	}

	// Upload phase
	s.report(ctx, jobID, cb, ProgressEvent{
		Type:     "started",
		JobID:    jobID,
		Progress: CalculateProgress(model.JobPhaseUpload),
		Phase:    model.JobPhaseUpload,
		Message:  "Uploading exam paper",
	})

	key := spaces.ExamPaperKey(input.Filename)
	fileURL, err := s.storage.UploadBytes(ctx, key, input.FileBytes)
	if err != nil {
		return nil, &StorageError{Op: "upload", Err: err}
	}

	keyData, err := json.Marshal(model.AnswerKeyPayload{AnswerKey: input.AnswerKey})
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer key: %w", err)
	}

	evaluation := &model.Evaluation{
		UserID:          input.UserID,
		Subject:         input.Subject,
		GradeLevel:      input.GradeLevel,
		TotalMarks:      input.TotalMarks,
		UploadedFileURL: fileURL,
		UploadedFileKey: key,
		AnswerKeyData:   datatypes.JSON(keyData),
		Status:          model.EvaluationStatusProcessing,
	}
	if err := s.db.WithContext(ctx).Create(evaluation).Error; err != nil {
		return nil, fmt.Errorf("failed to create evaluation record: %w", err)
	}

	if s.tracker != nil {
		if err := s.tracker.SetJobEvaluation(ctx, jobID, evaluation.ID); err != nil {
			log.Printf("Failed to link job %s to evaluation %d: %v", jobID, evaluation.ID, err)
		}
	}

	if err := s.checkCancelled(ctx, jobID, evaluation); err != nil {
		return evaluation, err
	}

	// OCR phase
	s.report(ctx, jobID, cb, ProgressEvent{
		Type:     "progress",
		JobID:    jobID,
		Progress: CalculateProgress(model.JobPhaseOCR),
		Phase:    model.JobPhaseOCR,
		Message:  "Extracting text from exam paper",
	})

	ocrResp, err := s.ocr.ExtractText(ctx, input.FileBytes, input.Filename)
	if err != nil {
		return evaluation, s.failEvaluation(ctx, evaluation, fmt.Sprintf("text extraction failed: %v", err), err)
	}
	if strings.TrimSpace(ocrResp.Text) == "" {
		inputErr := NewInputError("no text could be extracted from the uploaded image")
		return evaluation, s.failEvaluation(ctx, evaluation, inputErr.Message, inputErr)
	}

	if err := s.checkCancelled(ctx, jobID, evaluation); err != nil {
		return evaluation, err
	}

	// Grading phase
	s.report(ctx, jobID, cb, ProgressEvent{
		Type:     "progress",
		JobID:    jobID,
		Progress: CalculateProgress(model.JobPhaseGrading),
		Phase:    model.JobPhaseGrading,
		Message:  "Grading answers",
	})

	systemPrompt := SystemPrompt(input.Subject, input.GradeLevel)
	userPrompt := EvaluationPrompt(ocrResp.Text, input.AnswerKey)

	rawResponse, err := s.ai.Evaluate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return evaluation, s.failEvaluation(ctx, evaluation, fmt.Sprintf("AI grading failed: %v", err), err)
	}

	results := ParseEvaluationResults(rawResponse)
	if results.IsFallback() {
		log.Printf("Evaluation %d: AI response had no parseable JSON, stored as fallback", evaluation.ID)
	}

	// Save phase
	s.report(ctx, jobID, cb, ProgressEvent{
		Type:     "progress",
		JobID:    jobID,
		Progress: CalculateProgress(model.JobPhaseSave),
		Phase:    model.JobPhaseSave,
		Message:  "Saving results",
	})

	if err := s.CompleteEvaluation(ctx, evaluation.ID, results); err != nil {
		return evaluation, err
	}

	if err := s.db.WithContext(ctx).First(evaluation, evaluation.ID).Error; err != nil {
		return evaluation, fmt.Errorf("failed to reload evaluation: %w", err)
	}

	s.report(ctx, jobID, cb, ProgressEvent{
		Type:         "complete",
		JobID:        jobID,
		Progress:     CalculateProgress("complete"),
		Phase:        "complete",
		Message:      "Evaluation completed",
		EvaluationID: evaluation.ID,
	})

	return evaluation, nil
}

// CompleteEvaluation finalizes an evaluation with parsed results. The update
// is guarded on status still being "processing": if another writer finalized
// the record first, ErrAlreadyFinalized is returned and nothing changes.
func (s *EvaluationService) CompleteEvaluation(ctx context.Context, evaluationID uint, results *model.EvaluationResults) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation results: %w", err)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Evaluation{}).
		Where("id = ? AND status = ?", evaluationID, model.EvaluationStatusProcessing).
		Updates(map[string]interface{}{
			"status":             model.EvaluationStatusCompleted,
			"obtained_marks":     results.TotalObtainedMarks,
			"evaluation_results": datatypes.JSON(resultsJSON),
			"completed_at":       now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete evaluation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

// FailEvaluation transitions an evaluation to "failed" with a reason, guarded
// the same way as completion
func (s *EvaluationService) FailEvaluation(ctx context.Context, evaluationID uint, reason string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Evaluation{}).
		Where("id = ? AND status = ?", evaluationID, model.EvaluationStatusProcessing).
		Updates(map[string]interface{}{
			"status":         model.EvaluationStatusFailed,
			"failure_reason": reason,
			"failed_at":      now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark evaluation failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

// failEvaluation marks the record failed and returns the original pipeline
// error so callers see what actually went wrong
func (s *EvaluationService) failEvaluation(ctx context.Context, evaluation *model.Evaluation, reason string, cause error) error {
	if err := s.FailEvaluation(ctx, evaluation.ID, reason); err != nil {
		log.Printf("Failed to mark evaluation %d as failed: %v", evaluation.ID, err)
	}
	return cause
}

// checkCancelled aborts the pipeline when the user cancelled the job, marking
// the record failed with a cancellation reason
func (s *EvaluationService) checkCancelled(ctx context.Context, jobID string, evaluation *model.Evaluation) error {
	if s.tracker == nil || !s.tracker.IsJobCancelled(ctx, jobID) {
		return nil
	}
	reason := "evaluation cancelled by user"
	if err := s.FailEvaluation(ctx, evaluation.ID, reason); err != nil {
		log.Printf("Failed to mark cancelled evaluation %d as failed: %v", evaluation.ID, err)
	}
	return &InputError{Message: reason}
}

// report pushes a progress event to the Redis job state and to the caller's
// callback. Reporting failures never abort the pipeline.
func (s *EvaluationService) report(ctx context.Context, jobID string, cb ProgressCallback, event ProgressEvent) {
	event.Timestamp = time.Now()
	if s.tracker != nil {
		if err := s.tracker.UpdateProgress(ctx, jobID, event); err != nil {
			log.Printf("Failed to update job %s progress: %v", jobID, err)
		}
	}
	if cb != nil {
		if err := cb(event); err != nil {
			log.Printf("Progress callback for job %s returned error: %v", jobID, err)
		}
	}
}

// GetEvaluation loads an evaluation owned by the given user
func (s *EvaluationService) GetEvaluation(ctx context.Context, userID, evaluationID uint) (*model.Evaluation, error) {
	var evaluation model.Evaluation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", evaluationID, userID).
		First(&evaluation).Error
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// ListEvaluations returns a page of the user's evaluations, newest first
func (s *EvaluationService) ListEvaluations(ctx context.Context, userID uint, page, limit int) ([]model.Evaluation, int64, error) {
	var evaluations []model.Evaluation
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Evaluation{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&evaluations).Error
	if err != nil {
		return nil, 0, err
	}

	return evaluations, total, nil
}
