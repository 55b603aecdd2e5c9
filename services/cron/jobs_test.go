package cron

import (
	"testing"
)

func TestUploadTimeFromKey(t *testing.T) {
	key := "exam-papers/1773566813000_a1b2c3d4.png"

	got, ok := uploadTimeFromKey(key)
	if !ok {
		t.Fatal("expected timestamp to parse")
	}
	if got.UnixMilli() != 1773566813000 {
		t.Errorf("unexpected timestamp: %v", got.UnixMilli())
	}
}

func TestUploadTimeFromKeyMalformed(t *testing.T) {
	cases := []string{
		"exam-papers/no-separator.png",
		"exam-papers/_missing.png",
		"exam-papers/notanumber_suffix.png",
		"exam-papers/",
	}

	for _, key := range cases {
		if _, ok := uploadTimeFromKey(key); ok {
			t.Errorf("expected %q to fail parsing", key)
		}
	}
}
