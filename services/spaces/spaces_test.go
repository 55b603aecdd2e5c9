package spaces

import (
	"strings"
	"testing"
)

func TestExamPaperKeyFormat(t *testing.T) {
	key := ExamPaperKey("My Exam Paper.PNG")

	if !strings.HasPrefix(key, ExamPaperPrefix) {
		t.Errorf("key missing prefix: %q", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("expected lowercased extension, got %q", key)
	}

	name := strings.TrimPrefix(key, ExamPaperPrefix)
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		t.Fatalf("expected <timestamp>_<suffix> name, got %q", name)
	}
	for _, c := range parts[0] {
		if c < '0' || c > '9' {
			t.Errorf("timestamp segment not numeric: %q", parts[0])
			break
		}
	}
}

func TestExamPaperKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := ExamPaperKey("paper.jpg")
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestFileURLPrefersCDN(t *testing.T) {
	c := &Client{
		bucket:   "examlens",
		endpoint: "nyc3.digitaloceanspaces.com",
		cdnURL:   "https://cdn.examlens.app",
	}

	got := c.FileURL("exam-papers/1_ab.png")
	if got != "https://cdn.examlens.app/exam-papers/1_ab.png" {
		t.Errorf("unexpected URL: %q", got)
	}
}

func TestFileURLWithoutCDN(t *testing.T) {
	c := &Client{
		bucket:   "examlens",
		endpoint: "nyc3.digitaloceanspaces.com",
	}

	got := c.FileURL("exam-papers/1_ab.png")
	if got != "https://examlens.nyc3.digitaloceanspaces.com/exam-papers/1_ab.png" {
		t.Errorf("unexpected URL: %q", got)
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient(Config{Bucket: "only-bucket"}); err == nil {
		t.Error("expected error for incomplete config")
	}
}
