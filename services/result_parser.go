package services

import (
	"github.com/examlens/examlens-api/model"
	"github.com/examlens/examlens-api/utils"
)

// ParseEvaluationResults converts the grading model's raw text response into
// structured results. It never returns an error: when no usable JSON can be
// recovered from the response, it returns a fallback result that preserves the
// raw text as the overall remarks with zero marks and no per-question entries.
func ParseEvaluationResults(raw string) *model.EvaluationResults {
	var results model.EvaluationResults
	if err := utils.ExtractJSONTo(raw, &results); err != nil {
		return fallbackResults(raw)
	}

	sanitizeResults(&results)
	return &results
}

func fallbackResults(raw string) *model.EvaluationResults {
	return &model.EvaluationResults{
		RawResponse:        raw,
		TotalObtainedMarks: 0,
		OverallRemarks:     raw,
		Questions:          []model.QuestionResult{},
	}
}

// sanitizeResults normalizes a parsed result so downstream code and API
// consumers see consistent data: per-question marks are clamped to
// [0, maxMarks] and nil slices become empty ones.
func sanitizeResults(r *model.EvaluationResults) {
	for i := range r.Questions {
		q := &r.Questions[i]
		if q.MaxMarks < 0 {
			q.MaxMarks = 0
		}
		if q.ObtainedMarks < 0 {
			q.ObtainedMarks = 0
		}
		if q.ObtainedMarks > q.MaxMarks {
			q.ObtainedMarks = q.MaxMarks
		}
		if q.Mistakes == nil {
			q.Mistakes = []string{}
		}
		if q.Suggestions == nil {
			q.Suggestions = []string{}
		}
	}

	if r.TotalObtainedMarks < 0 {
		r.TotalObtainedMarks = 0
	}
	if r.Questions == nil {
		r.Questions = []model.QuestionResult{}
	}
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.AreasForImprovement == nil {
		r.AreasForImprovement = []string{}
	}
}
