package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONFound is returned when no valid JSON object is found in the input
var ErrNoJSONFound = errors.New("no valid JSON object found in response")

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ExtractJSON extracts a JSON object from LLM responses that may contain
// markdown formatting, surrounding prose, or other non-JSON content.
//
// Extraction order:
//  1. A fenced code block (```json ... ```), since the grading prompt asks
//     the model to wrap its output this way.
//  2. Balanced-bracket matching from the first opening brace.
//  3. Aggressive span from the first "{" to the last "}" in the text.
//
// Returns the extracted JSON string or ErrNoJSONFound.
func ExtractJSON(response string) (string, error) {
	if strings.TrimSpace(response) == "" {
		return "", ErrNoJSONFound
	}

	// Step 1: fenced block, parsed strictly within the delimiter
	if m := fencedBlockRe.FindStringSubmatch(response); len(m) > 1 {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	cleaned := stripFences(response)

	// The cleaned text itself may already be plain JSON
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}

	// Step 2: balanced-bracket matching. Only accepted when the balanced
	// object covers the entire first-"{"/last-"}" span: a shorter match
	// means the text holds multiple brace regions, and a small embedded
	// object must not stand in for the whole grading payload.
	if candidate := extractByBrackets(cleaned); candidate != "" &&
		candidate == aggressiveExtract(cleaned) && json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	// Step 3: aggressive first "{" to last "}" span
	if candidate := aggressiveExtract(response); candidate != "" {
		return candidate, nil
	}

	return "", fmt.Errorf("%w: response length=%d", ErrNoJSONFound, len(response))
}

// ExtractJSONTo extracts JSON from response and unmarshals it into the target
func ExtractJSONTo(response string, target interface{}) error {
	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(jsonStr), target)
}

// stripFences removes leading/trailing markdown code fences
func stripFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// extractByBrackets scans from the first "{" tracking brace depth and string
// state to find the matching closing brace.
func extractByBrackets(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}

// aggressiveExtract takes the largest brace-delimited span, first "{" to
// last "}". It does not validate the candidate: this is the last-resort
// heuristic and the caller's deserialization attempt decides the outcome.
func aggressiveExtract(s string) string {
	firstBrace := strings.Index(s, "{")
	lastBrace := strings.LastIndex(s, "}")

	if firstBrace == -1 || lastBrace == -1 || lastBrace <= firstBrace {
		return ""
	}
	return s[firstBrace : lastBrace+1]
}
