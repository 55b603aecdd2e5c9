package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subjects supported for evaluation
var Subjects = []string{
	"Mathematics",
	"Physics",
	"Chemistry",
	"Biology",
	"English",
	"Hindi",
	"Marathi",
	"Science",
	"Engineering",
	"Medical",
}

// GradeLevels supported for evaluation
var GradeLevels = []string{
	"Class 1-5 (Primary)",
	"Class 6-8 (Middle School)",
	"Class 9-10 (High School)",
	"Class 11-12 (Senior Secondary)",
	"Undergraduate (College)",
	"Postgraduate (Master's)",
}

// subjectRubrics holds subject-specific grading guidance. Subjects without an
// entry fall back to genericRubric.
var subjectRubrics = map[string]string{
	"Mathematics": "Focus on calculation accuracy, method correctness, step-by-step logic, and formula application. Check for computational errors and conceptual understanding.",
	"Physics":     "Evaluate understanding of physical concepts, formula application, unit consistency, diagram accuracy, and problem-solving approach.",
	"Chemistry":   "Assess chemical equations, nomenclature, reaction mechanisms, stoichiometry, and conceptual understanding.",
	"English":     "Evaluate grammar, vocabulary, coherence, factual accuracy, comprehension, and expression quality. Use paraphrasing detection.",
	"Science":     "Check factual accuracy, scientific terminology, concept understanding, and practical application.",
	"Hindi":       "Evaluate language proficiency, grammar, vocabulary, comprehension, and expression in Hindi.",
	"Marathi":     "Evaluate language proficiency, grammar, vocabulary, comprehension, and expression in Marathi.",
}

const genericRubric = "Evaluate based on factual accuracy, completeness, and clarity."

// IsValidSubject reports whether the subject is in the supported list
func IsValidSubject(subject string) bool {
	for _, s := range Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// IsValidGradeLevel reports whether the grade level is in the supported list
func IsValidGradeLevel(gradeLevel string) bool {
	for _, g := range GradeLevels {
		if g == gradeLevel {
			return true
		}
	}
	return false
}

// SystemPrompt builds the system prompt for the grading model, combining the
// base evaluator persona with the subject's rubric
func SystemPrompt(subject, gradeLevel string) string {
	basePrompt := fmt.Sprintf("You are an expert %s evaluator for %s students. Evaluate the student's answers with precision and provide constructive feedback.", subject, gradeLevel)

	rubric, ok := subjectRubrics[subject]
	if !ok {
		rubric = genericRubric
	}

	return basePrompt + "\n\n" + rubric
}

// EvaluationPrompt builds the user prompt embedding the answer key and the
// OCR-extracted student answers, with the exact JSON shape the model must
// return
func EvaluationPrompt(extractedText, answerKey string) string {
	keyJSON, err := json.MarshalIndent(map[string]string{"answerKey": answerKey}, "", "  ")
	if err != nil {
		keyJSON = []byte(answerKey)
	}

	var b strings.Builder
	b.WriteString("Please evaluate the following student answers against the answer key.\n\n")
	b.WriteString("ANSWER KEY:\n")
	b.Write(keyJSON)
	b.WriteString("\n\nSTUDENT'S ANSWERS (OCR Extracted):\n")
	b.WriteString(extractedText)
	b.WriteString(`

Provide a detailed evaluation in the following JSON format, inside a fenced ` + "```json" + ` block:
{
  "questions": [
    {
      "questionNumber": 1,
      "maxMarks": 5,
      "obtainedMarks": 4.5,
      "feedback": "Detailed feedback here",
      "mistakes": ["List of specific mistakes"],
      "suggestions": ["How to improve"],
      "correctAnswer": "What the correct answer should be"
    }
  ],
  "totalObtainedMarks": 85.5,
  "overallRemarks": "General feedback about performance",
  "strengths": ["List of strengths"],
  "areasForImprovement": ["Areas to work on"]
}

Be precise, fair, and constructive in your evaluation.`)

	return b.String()
}
