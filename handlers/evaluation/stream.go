package evaluation

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/services"
	"github.com/examlens/examlens-api/utils/middleware"
	"github.com/examlens/examlens-api/utils/response"
	"github.com/examlens/examlens-api/utils/sse"
)

// CreateEvaluationStream handles POST /evaluations/stream: runs the pipeline
// while streaming progress events to the client over SSE
func (h *EvaluationHandler) CreateEvaluationStream(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	// Read the multipart form before streaming starts; the request body is
	// not available inside the stream writer
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

	// Cancel any stuck job for this user before starting a new one
	activeJobID, _ := h.progressTracker.GetActiveJob(c.Context(), user.ID)
	if activeJobID != "" {
		if err := h.progressTracker.CancelJob(c.Context(), activeJobID); err != nil {
			h.progressTracker.ClearActiveJob(c.Context(), user.ID)
		}
	}

	job, err := h.progressTracker.CreateJob(c.Context(), user.ID)
	if err != nil {
		return response.Conflict(c, err.Error())
	}
	jobID := job.JobID

	// Set SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The Fiber context is not valid inside the stream writer
		ctx := context.Background()

		startedEvent := services.ProgressEvent{
			Type:      "started",
			JobID:     jobID,
			Progress:  0,
			Phase:     "initializing",
			Message:   "Starting evaluation...",
			Timestamp: time.Now(),
		}
		sse.Send(w, sse.Event{Event: "started", Data: startedEvent})

		evaluation, err := h.evaluationService.Submit(ctx, jobID, input, func(event services.ProgressEvent) error {
			event.JobID = jobID
			return sse.Send(w, sse.Event{Event: event.Type, Data: event})
		})

		if err != nil {
			errorEvent := services.ProgressEvent{
				Type:         "error",
				JobID:        jobID,
				Phase:        "error",
				Message:      "Evaluation failed",
				ErrorMessage: err.Error(),
				Timestamp:    time.Now(),
			}
			if evaluation != nil {
				errorEvent.EvaluationID = evaluation.ID
			}
			h.progressTracker.UpdateProgress(ctx, jobID, errorEvent)
			sse.Send(w, sse.Event{Event: "error", Data: errorEvent})
			return
		}

		// Completion event was already sent through the progress callback;
		// follow it with the graded record so clients need no extra fetch
		sse.SendComplete(w, toEvaluationResponse(evaluation))
	})

	return nil
}

// GetJobStatus handles GET /evaluation-jobs/:job_id
func (h *EvaluationHandler) GetJobStatus(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	jobID := c.Params("job_id")

	job, err := h.progressTracker.GetJob(c.Context(), jobID)
	if err != nil {
		return response.NotFound(c, "Job not found or expired")
	}

	if job.UserID != user.ID && user.Role != "admin" {
		return response.Forbidden(c, "Access denied")
	}

	return response.Success(c, job)
}

// CancelJob handles POST /evaluation-jobs/:job_id/cancel
func (h *EvaluationHandler) CancelJob(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	jobID := c.Params("job_id")

	job, err := h.progressTracker.GetJob(c.Context(), jobID)
	if err != nil {
		return response.NotFound(c, "Job not found or expired")
	}

	if job.UserID != user.ID && user.Role != "admin" {
		return response.Forbidden(c, "Access denied")
	}

	if err := h.progressTracker.CancelJob(c.Context(), jobID); err != nil {
		return response.BadRequest(c, err.Error())
	}

	return response.Success(c, fiber.Map{
		"message": "Job cancelled successfully",
		"job_id":  jobID,
	})
}

// GetMyActiveJob handles GET /evaluation-jobs/active
func (h *EvaluationHandler) GetMyActiveJob(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	activeJobID, err := h.progressTracker.GetActiveJob(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check active jobs")
	}

	if activeJobID == "" {
		return response.Success(c, fiber.Map{
			"has_active_job": false,
			"job":            nil,
		})
	}

	job, err := h.progressTracker.GetJob(c.Context(), activeJobID)
	if err != nil {
		// Job state expired
		return response.Success(c, fiber.Map{
			"has_active_job": false,
			"job":            nil,
		})
	}

	return response.Success(c, fiber.Map{
		"has_active_job": job.Status == model.JobStatusPending || job.Status == model.JobStatusProcessing,
		"job":            job,
	})
}
