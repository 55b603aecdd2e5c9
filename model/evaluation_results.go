package model

// QuestionResult is the per-question grading outcome returned by the AI
// evaluator. Field names match the JSON shape the grading prompt requests,
// so the AI output unmarshals directly into this struct.
type QuestionResult struct {
	QuestionNumber int      `json:"questionNumber"`
	MaxMarks       float64  `json:"maxMarks"`
	ObtainedMarks  float64  `json:"obtainedMarks"`
	Feedback       string   `json:"feedback"`
	Mistakes       []string `json:"mistakes"`
	Suggestions    []string `json:"suggestions"`
	CorrectAnswer  string   `json:"correctAnswer"`
}

// EvaluationResults is the structured grading record extracted from the AI
// response. When structured extraction fails, RawResponse carries the full
// raw text and the rest of the record is a degraded-but-valid fallback.
type EvaluationResults struct {
	Questions           []QuestionResult `json:"questions"`
	TotalObtainedMarks  float64          `json:"totalObtainedMarks"`
	OverallRemarks      string           `json:"overallRemarks"`
	Strengths           []string         `json:"strengths"`
	AreasForImprovement []string         `json:"areasForImprovement"`
	RawResponse         string           `json:"rawResponse,omitempty"`
}

// IsFallback reports whether the record was produced by the degraded parse
// path rather than structured extraction.
func (r *EvaluationResults) IsFallback() bool {
	return r.RawResponse != ""
}
