package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/fusion"
)

// Tuning is the run-level thresholds file. Every knob ships with a default,
// so a partial file only overrides what it names.
type Tuning struct {
	// MinConfidence is the generic extraction acceptance floor.
	MinConfidence float64 `yaml:"min_confidence"`
	// ConflictGap is the critical-extractor margin below which two distinct
	// candidates count as a conflict.
	ConflictGap float64 `yaml:"conflict_gap"`
	// Fusion carries the visual fusion confidence bands.
	Fusion fusion.Thresholds `yaml:"fusion"`
}

// DefaultTuning returns the calibrated run thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		MinConfidence: 0.60,
		ConflictGap:   0.10,
		Fusion:        fusion.DefaultThresholds(),
	}
}

// LoadTuning reads a thresholds file over the defaults. An empty path means
// defaults only. A file that cannot be read or parsed is an operator
// mistake and aborts the run.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("read tuning file %s", path), err)
	}
	if err := yaml.Unmarshal(raw, &tuning); err != nil {
		return Tuning{}, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("parse tuning file %s", path), err)
	}
	if err := tuning.validate(); err != nil {
		return Tuning{}, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("tuning file %s", path), err)
	}
	return tuning, nil
}

func (t Tuning) validate() error {
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %v outside [0,1]: %w", t.MinConfidence, common.ErrInvalidInput)
	}
	if t.ConflictGap < 0 || t.ConflictGap > 1 {
		return fmt.Errorf("conflict_gap %v outside [0,1]: %w", t.ConflictGap, common.ErrInvalidInput)
	}
	for name, band := range map[string]float64{
		"minimum_valid":   t.Fusion.MinimumValid,
		"ocr_high":        t.Fusion.OCRHigh,
		"image_qa_high":   t.Fusion.ImageQAHigh,
		"ocr_medium":      t.Fusion.OCRMedium,
		"image_qa_medium": t.Fusion.ImageQAMedium,
	} {
		if band < 0 || band > 1 {
			return fmt.Errorf("fusion.%s %v outside [0,1]: %w", name, band, common.ErrInvalidInput)
		}
	}
	return nil
}
