package fusion

// Thresholds are the confidence bands the fusion decision table runs on.
// They ship with calibrated defaults and can be overridden from the run
// thresholds file.
type Thresholds struct {
	// MinimumValid is the fused confidence a field needs to be VALID.
	MinimumValid float64 `yaml:"minimum_valid"`
	// OCRHigh and ImageQAHigh mark a signal as independently trustworthy.
	OCRHigh     float64 `yaml:"ocr_high"`
	ImageQAHigh float64 `yaml:"image_qa_high"`
	// OCRMedium and ImageQAMedium mark a signal as usable at all.
	OCRMedium     float64 `yaml:"ocr_medium"`
	ImageQAMedium float64 `yaml:"image_qa_medium"`
	// AgreementBoost multiplies the average when both signals agree with
	// high confidence, capped at 1.0.
	AgreementBoost float64 `yaml:"agreement_boost"`
	// SinglePenalty multiplies the trusted signal when the two sides
	// disagree and only one of them clears its high band.
	SinglePenalty float64 `yaml:"single_source_penalty"`
	// ConflictDamping multiplies the stronger signal when both sides are
	// weak and disagree.
	ConflictDamping float64 `yaml:"conflict_damping"`
}

// DefaultThresholds returns the calibrated bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinimumValid:    0.7,
		OCRHigh:         0.8,
		ImageQAHigh:     0.85,
		OCRMedium:       0.6,
		ImageQAMedium:   0.65,
		AgreementBoost:  1.1,
		SinglePenalty:   0.7,
		ConflictDamping: 0.5,
	}
}

// merged fills any unset band with its default, so a partial thresholds
// file only overrides what it names.
func (t Thresholds) merged() Thresholds {
	def := DefaultThresholds()
	if t.MinimumValid <= 0 {
		t.MinimumValid = def.MinimumValid
	}
	if t.OCRHigh <= 0 {
		t.OCRHigh = def.OCRHigh
	}
	if t.ImageQAHigh <= 0 {
		t.ImageQAHigh = def.ImageQAHigh
	}
	if t.OCRMedium <= 0 {
		t.OCRMedium = def.OCRMedium
	}
	if t.ImageQAMedium <= 0 {
		t.ImageQAMedium = def.ImageQAMedium
	}
	if t.AgreementBoost <= 0 {
		t.AgreementBoost = def.AgreementBoost
	}
	if t.SinglePenalty <= 0 {
		t.SinglePenalty = def.SinglePenalty
	}
	if t.ConflictDamping <= 0 {
		t.ConflictDamping = def.ConflictDamping
	}
	return t
}
