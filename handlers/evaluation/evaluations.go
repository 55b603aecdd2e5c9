package evaluation

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/services"
	"github.com/examlens/examlens-api/services/onspace"
	"github.com/examlens/examlens-api/utils/middleware"
	"github.com/examlens/examlens-api/utils/response"
	"github.com/examlens/examlens-api/utils/validation"
)

// maxUploadSize limits uploaded exam paper images to 20MB
const maxUploadSize = 20 * 1024 * 1024

// EvaluationHandler handles exam evaluation requests
type EvaluationHandler struct {
	db                *gorm.DB
	validator         *validation.Validator
	evaluationService *services.EvaluationService
	progressTracker   *services.ProgressTracker
	aiClient          *onspace.Client
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(db *gorm.DB, evaluationService *services.EvaluationService, progressTracker *services.ProgressTracker, aiClient *onspace.Client) *EvaluationHandler {
	return &EvaluationHandler{
		db:                db,
		validator:         validation.NewValidator(),
		evaluationService: evaluationService,
		progressTracker:   progressTracker,
		aiClient:          aiClient,
	}
}

// CreateEvaluationRequest represents the non-file multipart fields
type CreateEvaluationRequest struct {
	Subject    string  `json:"subject" validate:"required,min=2,max=50"`
	GradeLevel string  `json:"grade_level" validate:"required,min=2,max=50"`
	TotalMarks float64 `json:"total_marks" validate:"required,gt=0"`
	AnswerKey  string  `json:"answer_key" validate:"required,min=2"`
}

// EvaluationResponse wraps an evaluation record with derived grading info
type EvaluationResponse struct {
	model.Evaluation
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
}

func toEvaluationResponse(e *model.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		Evaluation: *e,
		Percentage: e.Percentage(),
		Grade:      e.GradeLetter(),
	}
}

// parseSubmission reads the multipart form into a SubmissionInput
func (h *EvaluationHandler) parseSubmission(c *fiber.Ctx, userID uint) (services.SubmissionInput, error) {
	var input services.SubmissionInput

	file, err := c.FormFile("file")
	if err != nil {
		return input, services.NewInputError("exam paper file is required")
	}
	if file.Size > maxUploadSize {
		return input, services.NewInputError("file size exceeds maximum allowed size of 20MB")
	}

	fileContent, err := file.Open()
	if err != nil {
		return input, services.NewInputError("failed to open uploaded file")
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return input, services.NewInputError("failed to read uploaded file")
	}

	totalMarks, err := strconv.ParseFloat(c.FormValue("total_marks"), 64)
	if err != nil {
		return input, services.NewInputError("total_marks must be a number")
	}

	req := CreateEvaluationRequest{
		Subject:    c.FormValue("subject"),
		GradeLevel: c.FormValue("grade_level"),
		TotalMarks: totalMarks,
		AnswerKey:  c.FormValue("answer_key"),
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return input, services.NewInputError("invalid submission: %v", validation.FormatValidationErrors(err))
	}

	input = services.SubmissionInput{
		UserID:     userID,
		Filename:   file.Filename,
		FileBytes:  fileBytes,
		Subject:    req.Subject,
		GradeLevel: req.GradeLevel,
		TotalMarks: req.TotalMarks,
		AnswerKey:  req.AnswerKey,
	}
	return input, nil
}

// CreateEvaluation handles POST /evaluations: uploads an exam paper, runs the
// full pipeline, and returns the graded record. Clients wanting progress
// updates use the streaming variant instead.
func (h *EvaluationHandler) CreateEvaluation(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	input, err := h.parseSubmission(c, user.ID)
	if err != nil {
		return h.mapPipelineError(c, err)
	}

	if err := h.evaluationService.ValidateSubmission(input); err != nil {
		return h.mapPipelineError(c, err)
	}

	if !h.aiClient.Configured() {
		return response.ServiceUnavailable(c, "AI grading service is not configured")
	}

	job, err := h.progressTracker.CreateJob(c.Context(), user.ID)
	if err != nil {
		return response.Conflict(c, err.Error())
	}

	evaluation, err := h.evaluationService.Submit(c.Context(), job.JobID, input, nil)
	if err != nil {
		// Mark the job failed so the active-job slot is released; otherwise
		// the user is locked out until the pending state expires
		errorEvent := services.ProgressEvent{
			Type:         "error",
			JobID:        job.JobID,
			Phase:        "error",
			Message:      "Evaluation failed",
			ErrorMessage: err.Error(),
			Timestamp:    time.Now(),
		}
		if evaluation != nil {
			errorEvent.EvaluationID = evaluation.ID
		}
		h.progressTracker.UpdateProgress(c.Context(), job.JobID, errorEvent)
		return h.mapPipelineError(c, err)
	}

	return response.Created(c, toEvaluationResponse(evaluation))
}

// GetEvaluation handles GET /evaluations/:id
func (h *EvaluationHandler) GetEvaluation(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	evaluationID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid evaluation ID")
	}

	var evaluation *model.Evaluation
	if user.Role == "admin" {
		var e model.Evaluation
		if err := h.db.First(&e, uint(evaluationID)).Error; err != nil {
			return response.NotFound(c, "Evaluation not found")
		}
		evaluation = &e
	} else {
		evaluation, err = h.evaluationService.GetEvaluation(c.Context(), user.ID, uint(evaluationID))
		if err != nil {
			return response.NotFound(c, "Evaluation not found")
		}
	}

	return response.Success(c, toEvaluationResponse(evaluation))
}

// ListEvaluations handles GET /evaluations with page/limit pagination
func (h *EvaluationHandler) ListEvaluations(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	evaluations, total, err := h.evaluationService.ListEvaluations(c.Context(), user.ID, page, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list evaluations")
	}

	items := make([]EvaluationResponse, len(evaluations))
	for i := range evaluations {
		items[i] = toEvaluationResponse(&evaluations[i])
	}

	return response.Paginated(c, items, response.CalculatePagination(page, limit, total))
}

// GetSubjects handles GET /evaluations/subjects: the supported subject and
// grade level lists for client dropdowns
func (h *EvaluationHandler) GetSubjects(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"subjects":     services.Subjects,
		"grade_levels": services.GradeLevels,
	})
}

// mapPipelineError translates pipeline errors into HTTP responses
func (h *EvaluationHandler) mapPipelineError(c *fiber.Ctx, err error) error {
	var inputErr *services.InputError
	if errors.As(err, &inputErr) {
		return response.BadRequest(c, inputErr.Message)
	}

	if errors.Is(err, onspace.ErrNotConfigured) {
		return response.ServiceUnavailable(c, "AI grading service is not configured")
	}

	var upstreamErr *onspace.UpstreamError
	if errors.As(err, &upstreamErr) {
		return response.BadGateway(c, "AI grading service request failed")
	}

	var storageErr *services.StorageError
	if errors.As(err, &storageErr) {
		return response.BadGateway(c, "File storage request failed")
	}

	if errors.Is(err, services.ErrAlreadyFinalized) {
		return response.Conflict(c, "Evaluation was already finalized")
	}

	return response.InternalServerError(c, "Failed to process evaluation")
}
