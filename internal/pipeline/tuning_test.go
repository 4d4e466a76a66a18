package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oakmoor/jobsheet-audit/internal/common"
)

func writeTuning(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}
	return path
}

func TestLoadTuning_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()
	tuning, err := LoadTuning("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tuning != DefaultTuning() {
		t.Fatalf("expected defaults, got %+v", tuning)
	}
}

func TestLoadTuning_PartialFileOverridesNamedKeys(t *testing.T) {
	t.Parallel()
	path := writeTuning(t, "min_confidence: 0.75\nfusion:\n  ocr_high: 0.9\n")

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tuning.MinConfidence != 0.75 {
		t.Fatalf("expected overridden floor, got %v", tuning.MinConfidence)
	}
	if tuning.ConflictGap != 0.10 {
		t.Fatalf("expected default conflict gap, got %v", tuning.ConflictGap)
	}
	if tuning.Fusion.OCRHigh != 0.9 {
		t.Fatalf("expected overridden ocr_high, got %v", tuning.Fusion.OCRHigh)
	}
	if tuning.Fusion.ImageQAHigh != 0.85 {
		t.Fatalf("expected default image_qa_high, got %v", tuning.Fusion.ImageQAHigh)
	}
}

func TestLoadTuning_MissingFileFails(t *testing.T) {
	t.Parallel()
	_, err := LoadTuning(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestLoadTuning_MalformedYAMLFails(t *testing.T) {
	t.Parallel()
	path := writeTuning(t, "min_confidence: [not a number\n")
	if _, err := LoadTuning(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestLoadTuning_RejectsOutOfRangeBands(t *testing.T) {
	t.Parallel()
	for name, content := range map[string]string{
		"floor":  "min_confidence: 1.5\n",
		"gap":    "conflict_gap: -0.2\n",
		"fusion": "fusion:\n  ocr_medium: 2.0\n",
	} {
		path := writeTuning(t, content)
		_, err := LoadTuning(path)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid-input error, got %v", name, err)
		}
	}
}
