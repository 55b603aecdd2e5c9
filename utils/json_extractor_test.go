package utils

import (
	"errors"
	"testing"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	response := "Here is the evaluation:\n```json\n{\"totalObtainedMarks\": 5}\n```\nLet me know if you need anything else."

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"totalObtainedMarks": 5}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONFenceWithoutLanguageTag(t *testing.T) {
	response := "```\n{\"a\": 1}\n```"

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONPlainObject(t *testing.T) {
	got, err := ExtractJSON(`{"questions": []}`)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"questions": []}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	response := `The student did well overall. {"totalObtainedMarks": 8.5, "overallRemarks": "Good"} Hope this helps!`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"totalObtainedMarks": 8.5, "overallRemarks": "Good"}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNestedBraces(t *testing.T) {
	response := `Result: {"outer": {"inner": {"deep": true}}, "n": 1} done`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"outer": {"inner": {"deep": true}}, "n": 1}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	response := `{"feedback": "use {braces} carefully", "marks": 3}`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != response {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONMultipleBraceRegions(t *testing.T) {
	// Two independent objects with prose between them: the first balanced
	// object must not be promoted to the whole payload. The greedy span is
	// returned unvalidated so the caller's unmarshal rejects it.
	response := `{"a":1} some prose {"b":2}`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != `{"a":1} some prose {"b":2}` {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("I am unable to evaluate this.")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}
}

func TestExtractJSONEmptyInput(t *testing.T) {
	_, err := ExtractJSON("   ")
	if !errors.Is(err, ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}
}

func TestExtractJSONAggressiveSpanNotValidated(t *testing.T) {
	// The last-resort span is returned without validation; the caller's
	// unmarshal decides whether it is usable
	response := `prefix {not valid json} suffix`

	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if got != "{not valid json}" {
		t.Errorf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONToUnmarshals(t *testing.T) {
	var target struct {
		Marks float64 `json:"totalObtainedMarks"`
	}

	err := ExtractJSONTo("```json\n{\"totalObtainedMarks\": 42.5}\n```", &target)
	if err != nil {
		t.Fatalf("ExtractJSONTo failed: %v", err)
	}
	if target.Marks != 42.5 {
		t.Errorf("expected 42.5, got %v", target.Marks)
	}
}

func TestExtractJSONToInvalidCandidate(t *testing.T) {
	var target map[string]interface{}
	if err := ExtractJSONTo("prefix {broken suffix}", &target); err == nil {
		t.Error("expected unmarshal error for invalid candidate")
	}
}
