package services

import (
	"context"
	"os"
	"testing"

	"github.com/examlens/examlens-api/services/onspace"
)

// TestGradingRoundTrip exercises the prompt builder, live AI gateway, and
// result parser together. This test requires:
// 1. ONSPACE_AI_BASE_URL and ONSPACE_AI_API_KEY to be set
// 2. RUN_INTEGRATION_TESTS=true
func TestGradingRoundTrip(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	client := onspace.NewClient(onspace.Config{
		BaseURL: os.Getenv("ONSPACE_AI_BASE_URL"),
		APIKey:  os.Getenv("ONSPACE_AI_API_KEY"),
		Model:   os.Getenv("ONSPACE_AI_MODEL"),
	})
	if !client.Configured() {
		t.Skip("ONSPACE_AI_BASE_URL / ONSPACE_AI_API_KEY not set")
	}

	extractedText := "Q1: The capital of France is Paris."
	answerKey := "Q1 (5 marks): Paris is the capital of France."

	systemPrompt := SystemPrompt("Science", "Class 6-8 (Middle School)")
	userPrompt := EvaluationPrompt(extractedText, answerKey)

	raw, err := client.Evaluate(context.Background(), systemPrompt, userPrompt)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	t.Logf("AI returned %d chars", len(raw))

	results := ParseEvaluationResults(raw)
	if results.IsFallback() {
		t.Fatalf("expected structured results, got fallback: %s", raw)
	}

	if len(results.Questions) == 0 {
		t.Error("expected at least one graded question")
	}
	if results.TotalObtainedMarks <= 0 {
		t.Errorf("expected positive marks for a correct answer, got %v", results.TotalObtainedMarks)
	}
	for _, q := range results.Questions {
		if q.ObtainedMarks < 0 || q.ObtainedMarks > q.MaxMarks {
			t.Errorf("question %d marks out of range: %v/%v", q.QuestionNumber, q.ObtainedMarks, q.MaxMarks)
		}
	}
}
