package services

import (
	"strings"
	"testing"
)

func TestSystemPromptWithRubric(t *testing.T) {
	prompt := SystemPrompt("Mathematics", "Class 9-10 (High School)")

	if !strings.Contains(prompt, "You are an expert Mathematics evaluator for Class 9-10 (High School) students.") {
		t.Errorf("missing evaluator persona: %q", prompt)
	}
	if !strings.Contains(prompt, "calculation accuracy") {
		t.Errorf("missing mathematics rubric: %q", prompt)
	}
}

func TestSystemPromptGenericRubric(t *testing.T) {
	// Biology is a supported subject without a dedicated rubric
	prompt := SystemPrompt("Biology", "Class 11-12 (Senior Secondary)")

	if !strings.Contains(prompt, "You are an expert Biology evaluator for Class 11-12 (Senior Secondary) students.") {
		t.Errorf("missing evaluator persona: %q", prompt)
	}
	if !strings.Contains(prompt, genericRubric) {
		t.Errorf("expected generic rubric fallback: %q", prompt)
	}
}

func TestSystemPromptRubricCoverage(t *testing.T) {
	for subject := range subjectRubrics {
		if !IsValidSubject(subject) {
			t.Errorf("rubric exists for unsupported subject %q", subject)
		}
	}
}

func TestEvaluationPromptContents(t *testing.T) {
	prompt := EvaluationPrompt("Q1: Paris", "Q1: Paris is the capital of France")

	for _, want := range []string{
		"ANSWER KEY:",
		`"answerKey": "Q1: Paris is the capital of France"`,
		"STUDENT'S ANSWERS (OCR Extracted):",
		"Q1: Paris",
		`"questionNumber": 1`,
		`"totalObtainedMarks": 85.5`,
		"```json",
		"Be precise, fair, and constructive in your evaluation.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEvaluationPromptEscapesAnswerKey(t *testing.T) {
	prompt := EvaluationPrompt("text", `key with "quotes" and
newline`)

	if !strings.Contains(prompt, `\"quotes\"`) {
		t.Errorf("answer key quotes not JSON-escaped:\n%s", prompt)
	}
}

func TestIsValidGradeLevel(t *testing.T) {
	for _, level := range GradeLevels {
		if !IsValidGradeLevel(level) {
			t.Errorf("%q should be a valid grade level", level)
		}
	}
	if IsValidGradeLevel("Class 10") {
		t.Error("bare class numbers are not in the supported list")
	}
	if IsValidGradeLevel("") {
		t.Error("empty grade level should not be valid")
	}
}

func TestIsValidSubject(t *testing.T) {
	if !IsValidSubject("Physics") {
		t.Error("Physics should be a valid subject")
	}
	if IsValidSubject("Astrology") {
		t.Error("Astrology should not be a valid subject")
	}
	if IsValidSubject("") {
		t.Error("empty subject should not be valid")
	}
}
