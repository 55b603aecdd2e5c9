package services

import (
	"errors"
	"strings"
	"testing"
)

func validSubmission() SubmissionInput {
	return SubmissionInput{
		UserID:     1,
		Filename:   "paper.png",
		FileBytes:  []byte{0x89, 0x50, 0x4e, 0x47},
		Subject:    "Mathematics",
		GradeLevel: "Class 9-10 (High School)",
		TotalMarks: 100,
		AnswerKey:  "Q1: Paris",
	}
}

func TestValidateSubmissionAccepts(t *testing.T) {
	svc := &EvaluationService{}

	for _, filename := range []string{"paper.png", "paper.jpg", "paper.jpeg", "PAPER.JPG"} {
		input := validSubmission()
		input.Filename = filename
		if err := svc.ValidateSubmission(input); err != nil {
			t.Errorf("expected %q to be accepted, got %v", filename, err)
		}
	}
}

func TestValidateSubmissionRejectsPDF(t *testing.T) {
	svc := &EvaluationService{}

	input := validSubmission()
	input.Filename = "paper.pdf"

	err := svc.ValidateSubmission(input)

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if inputErr.Message != PDFNotSupportedMessage {
		t.Errorf("expected PDF-specific message, got %q", inputErr.Message)
	}
}

func TestValidateSubmissionRejectsUnknownType(t *testing.T) {
	svc := &EvaluationService{}

	input := validSubmission()
	input.Filename = "paper.docx"

	err := svc.ValidateSubmission(input)

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if inputErr.Message == PDFNotSupportedMessage {
		t.Error("generic rejection should not reuse the PDF message")
	}
	if !strings.Contains(inputErr.Message, ".docx") {
		t.Errorf("expected offending extension in message, got %q", inputErr.Message)
	}
}

func TestValidateSubmissionRejectsBadInput(t *testing.T) {
	svc := &EvaluationService{}

	cases := []struct {
		name   string
		mutate func(*SubmissionInput)
	}{
		{"empty file", func(i *SubmissionInput) { i.FileBytes = nil }},
		{"blank answer key", func(i *SubmissionInput) { i.AnswerKey = "   \n\t" }},
		{"missing subject", func(i *SubmissionInput) { i.Subject = "" }},
		{"unknown subject", func(i *SubmissionInput) { i.Subject = "Astrology" }},
		{"missing grade level", func(i *SubmissionInput) { i.GradeLevel = "" }},
		{"unknown grade level", func(i *SubmissionInput) { i.GradeLevel = "Class 10" }},
		{"zero total marks", func(i *SubmissionInput) { i.TotalMarks = 0 }},
		{"negative total marks", func(i *SubmissionInput) { i.TotalMarks = -10 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validSubmission()
			tc.mutate(&input)

			err := svc.ValidateSubmission(input)

			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected InputError, got %v", err)
			}
		})
	}
}

func TestInputErrorFormatting(t *testing.T) {
	err := NewInputError("unsupported file type %q", ".docx")
	if err.Message != `unsupported file type ".docx"` {
		t.Errorf("unexpected message: %q", err.Message)
	}
	if err.Error() != err.Message {
		t.Errorf("Error() should return the message, got %q", err.Error())
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StorageError{Op: "upload", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected StorageError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "upload") {
		t.Errorf("expected operation in message, got %q", err.Error())
	}
}
