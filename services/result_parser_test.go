package services

import (
	"testing"
)

const gradedResponse = `{"questions":[{"questionNumber":1,"maxMarks":5,"obtainedMarks":5,"feedback":"Correct","mistakes":[],"suggestions":[],"correctAnswer":"Paris"}],"totalObtainedMarks":5,"overallRemarks":"Good","strengths":["Accurate"],"areasForImprovement":[]}`

func TestParseEvaluationResultsStructured(t *testing.T) {
	results := ParseEvaluationResults(gradedResponse)

	if results.IsFallback() {
		t.Fatal("expected structured parse, got fallback")
	}
	if results.TotalObtainedMarks != 5 {
		t.Errorf("expected totalObtainedMarks 5, got %v", results.TotalObtainedMarks)
	}
	if len(results.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(results.Questions))
	}
	if results.Questions[0].ObtainedMarks != 5 {
		t.Errorf("expected obtainedMarks 5, got %v", results.Questions[0].ObtainedMarks)
	}
	if results.Questions[0].CorrectAnswer != "Paris" {
		t.Errorf("unexpected correctAnswer: %q", results.Questions[0].CorrectAnswer)
	}
}

func TestParseEvaluationResultsFencedBlock(t *testing.T) {
	raw := "Here is my evaluation:\n```json\n" + gradedResponse + "\n```\nGood luck!"

	results := ParseEvaluationResults(raw)
	if results.IsFallback() {
		t.Fatal("expected structured parse, got fallback")
	}
	if results.TotalObtainedMarks != 5 {
		t.Errorf("expected totalObtainedMarks 5, got %v", results.TotalObtainedMarks)
	}
}

func TestParseEvaluationResultsFallback(t *testing.T) {
	raw := "I am unable to evaluate this."

	results := ParseEvaluationResults(raw)

	if !results.IsFallback() {
		t.Fatal("expected fallback result")
	}
	if results.TotalObtainedMarks != 0 {
		t.Errorf("expected totalObtainedMarks 0, got %v", results.TotalObtainedMarks)
	}
	if results.OverallRemarks != raw {
		t.Errorf("expected overallRemarks to carry raw text, got %q", results.OverallRemarks)
	}
	if results.RawResponse != raw {
		t.Errorf("expected rawResponse to carry raw text, got %q", results.RawResponse)
	}
	if results.Questions == nil || len(results.Questions) != 0 {
		t.Errorf("expected empty questions slice, got %v", results.Questions)
	}
}

func TestParseEvaluationResultsMalformedJSONFallsBack(t *testing.T) {
	raw := `The result is {"totalObtainedMarks": broken}`

	results := ParseEvaluationResults(raw)
	if !results.IsFallback() {
		t.Fatal("expected fallback for malformed JSON")
	}
	if results.OverallRemarks != raw {
		t.Errorf("expected overallRemarks to carry raw text, got %q", results.OverallRemarks)
	}
}

func TestParseEvaluationResultsMultipleBraceRegionsFallBack(t *testing.T) {
	// A stray object before or after the payload must not be mistaken for
	// the grading result; the whole text degrades to the fallback shape
	raw := `{"a":1} some prose {"b":2}`

	results := ParseEvaluationResults(raw)

	if !results.IsFallback() {
		t.Fatal("expected fallback for multiple brace regions")
	}
	if results.RawResponse != raw || results.OverallRemarks != raw {
		t.Errorf("expected raw text preserved, got rawResponse=%q overallRemarks=%q", results.RawResponse, results.OverallRemarks)
	}
	if results.TotalObtainedMarks != 0 {
		t.Errorf("expected totalObtainedMarks 0, got %v", results.TotalObtainedMarks)
	}
	if results.Questions == nil || len(results.Questions) != 0 {
		t.Errorf("expected empty questions slice, got %v", results.Questions)
	}
}

func TestParseEvaluationResultsClampsMarks(t *testing.T) {
	raw := `{"questions":[{"questionNumber":1,"maxMarks":5,"obtainedMarks":7,"feedback":"","mistakes":null,"suggestions":null,"correctAnswer":""},{"questionNumber":2,"maxMarks":5,"obtainedMarks":-2,"feedback":"","mistakes":[],"suggestions":[],"correctAnswer":""}],"totalObtainedMarks":5,"overallRemarks":"","strengths":null,"areasForImprovement":null}`

	results := ParseEvaluationResults(raw)
	if results.IsFallback() {
		t.Fatal("expected structured parse")
	}

	if results.Questions[0].ObtainedMarks != 5 {
		t.Errorf("expected obtainedMarks clamped to maxMarks 5, got %v", results.Questions[0].ObtainedMarks)
	}
	if results.Questions[1].ObtainedMarks != 0 {
		t.Errorf("expected negative obtainedMarks clamped to 0, got %v", results.Questions[1].ObtainedMarks)
	}
	if results.Questions[0].Mistakes == nil || results.Questions[0].Suggestions == nil {
		t.Error("expected nil question slices to be normalized to empty")
	}
	if results.Strengths == nil || results.AreasForImprovement == nil {
		t.Error("expected nil summary slices to be normalized to empty")
	}
}

func TestParseEvaluationResultsNegativeTotalClamped(t *testing.T) {
	raw := `{"questions":[],"totalObtainedMarks":-3,"overallRemarks":"odd","strengths":[],"areasForImprovement":[]}`

	results := ParseEvaluationResults(raw)
	if results.TotalObtainedMarks != 0 {
		t.Errorf("expected negative total clamped to 0, got %v", results.TotalObtainedMarks)
	}
}

func TestParseEvaluationResultsDeterministic(t *testing.T) {
	raw := "Some prose before. " + gradedResponse + " And after."

	first := ParseEvaluationResults(raw)
	for i := 0; i < 5; i++ {
		again := ParseEvaluationResults(raw)
		if again.TotalObtainedMarks != first.TotalObtainedMarks ||
			len(again.Questions) != len(first.Questions) ||
			again.OverallRemarks != first.OverallRemarks {
			t.Fatal("parsing the same input produced different results")
		}
	}
}
