package fusion

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// Fuser reconciles OCR and image-model signals for visual fields. It holds
// no per-document state and is safe for concurrent use.
type Fuser struct {
	logger     *slog.Logger
	thresholds Thresholds
}

// NewFuser creates a fuser. Zero-valued threshold bands fall back to the
// calibrated defaults.
func NewFuser(logger *slog.Logger, thresholds Thresholds) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{logger: logger, thresholds: thresholds.merged()}
}

// FuseDocument fuses every visual field that either signal map mentions.
// Map keys may use field aliases; results are keyed by canonical field ID
// and sorted by it. The document outcome takes the worst field outcome:
// CONFLICT beats REVIEW_REQUIRED beats VALID.
func (f *Fuser) FuseDocument(documentID uuid.UUID, ocr map[string]entity.OCRFieldResult,
	qa map[string]entity.ImageQAResult, rois map[string]entity.ROI) *entity.FusionEvidence {

	ocrByField := make(map[string]entity.OCRFieldResult)
	for key, signal := range ocr {
		if canonical, ok := CanonicalVisualField(key); ok {
			ocrByField[canonical] = signal
		}
	}
	qaByField := make(map[string]entity.ImageQAResult)
	for key, signal := range qa {
		if canonical, ok := CanonicalVisualField(key); ok {
			qaByField[canonical] = signal
		}
	}
	roiByField := make(map[string]entity.ROI)
	for key, roi := range rois {
		if canonical, ok := CanonicalVisualField(key); ok {
			roiByField[canonical] = roi
		}
	}

	fieldSet := make(map[string]bool)
	for id := range ocrByField {
		fieldSet[id] = true
	}
	for id := range qaByField {
		fieldSet[id] = true
	}
	fieldIDs := make([]string, 0, len(fieldSet))
	for id := range fieldSet {
		fieldIDs = append(fieldIDs, id)
	}
	sort.Strings(fieldIDs)

	evidence := &entity.FusionEvidence{
		SchemaVersion: constants.FusionSchemaVersion,
		DocumentID:    documentID,
		Outcome:       constants.DocumentValid,
		Fields:        make([]entity.FusedFieldResult, 0, len(fieldIDs)),
	}

	for _, fieldID := range fieldIDs {
		var ocrSignal *entity.OCRFieldResult
		if signal, ok := ocrByField[fieldID]; ok {
			ocrSignal = &signal
		}
		var qaSignal *entity.ImageQAResult
		if signal, ok := qaByField[fieldID]; ok {
			qaSignal = &signal
		}

		fused := f.FuseField(fieldID, ocrSignal, qaSignal)
		if roi, ok := roiByField[fieldID]; ok {
			r := roi
			fused.ROI = &r
			fused.CropHash = CropHash(documentID, fieldID, roi)
		}
		evidence.Fields = append(evidence.Fields, fused)

		switch fused.Outcome {
		case constants.ReasonConflict:
			evidence.Outcome = constants.DocumentConflict
		case constants.ReasonLowConfidence, constants.ReasonMissingField:
			if evidence.Outcome != constants.DocumentConflict {
				evidence.Outcome = constants.DocumentReviewRequired
			}
		}
	}

	f.logger.Info("fusion.ok",
		"document_id", documentID,
		"fields", len(evidence.Fields),
		"outcome", evidence.Outcome)
	return evidence
}

// FuseField runs the decision table for one visual field. Either signal
// may be nil when that side produced nothing.
func (f *Fuser) FuseField(fieldID string, ocr *entity.OCRFieldResult, qa *entity.ImageQAResult) entity.FusedFieldResult {
	t := f.thresholds

	result := entity.FusedFieldResult{
		FieldID: fieldID,
		Value:   entity.NoValue(),
	}
	if ocr != nil {
		result.OCRConfidence = ocr.Confidence
	}
	if qa != nil {
		result.ImageQAConfidence = qa.Confidence
	}

	switch {
	case ocr == nil && qa == nil:
		result.Outcome = constants.ReasonMissingField
		result.Reason = "no signals for field"
		return result

	case qa == nil:
		result.Outcome = singleSignalOutcome(ocr.Confidence, t.MinimumValid)
		result.Confidence = ocr.Confidence
		result.Value = ocrValue(ocr)
		result.Reason = "ocr signal only"
		return result

	case ocr == nil:
		result.Outcome = singleSignalOutcome(qa.Confidence, t.MinimumValid)
		result.Confidence = qa.Confidence
		result.Value = entity.BoolValue(qa.Present)
		result.Reason = "image signal only"
		return result
	}

	ocrHigh := ocr.Confidence >= t.OCRHigh
	qaHigh := qa.Confidence >= t.ImageQAHigh

	if ocr.Present != qa.Present {
		switch {
		case ocrHigh && qaHigh:
			// two confident signals that disagree: nobody wins
			result.Outcome = constants.ReasonConflict
			result.Confidence = min(ocr.Confidence, qa.Confidence)
			result.Reason = fmt.Sprintf("ocr says present=%t, image says present=%t, both confident", ocr.Present, qa.Present)
		case ocrHigh:
			result.Outcome = constants.ReasonLowConfidence
			result.Confidence = ocr.Confidence * t.SinglePenalty
			result.Value = ocrValue(ocr)
			result.Reason = "trusting ocr over low-confidence image signal"
		case qaHigh:
			result.Outcome = constants.ReasonLowConfidence
			result.Confidence = qa.Confidence * t.SinglePenalty
			result.Value = entity.BoolValue(qa.Present)
			result.Reason = "trusting image signal over low-confidence ocr"
		default:
			result.Outcome = constants.ReasonConflict
			result.Confidence = max(ocr.Confidence, qa.Confidence) * t.ConflictDamping
			result.Reason = "signals disagree and neither is trustworthy"
		}
		return result
	}

	// presence agreement
	average := (ocr.Confidence + qa.Confidence) / 2
	switch {
	case ocrHigh && qaHigh:
		result.Outcome = constants.ReasonValid
		result.Confidence = min(1.0, average*t.AgreementBoost)
		result.Value = agreedValue(ocr, qa)
		result.Reason = "signals agree with high confidence"
	case ocr.Confidence < t.OCRMedium || qa.Confidence < t.ImageQAMedium:
		result.Outcome = constants.ReasonLowConfidence
		result.Confidence = average
		result.Value = agreedValue(ocr, qa)
		result.Reason = "signals agree but one is below its medium band"
	case average >= t.MinimumValid:
		result.Outcome = constants.ReasonValid
		result.Confidence = average
		result.Value = agreedValue(ocr, qa)
		result.Reason = "signals agree with usable confidence"
	default:
		result.Outcome = constants.ReasonLowConfidence
		result.Confidence = average
		result.Value = agreedValue(ocr, qa)
		result.Reason = "agreed confidence below validity floor"
	}
	return result
}

func singleSignalOutcome(confidence, floor float64) constants.ReasonCode {
	if confidence >= floor {
		return constants.ReasonValid
	}
	return constants.ReasonLowConfidence
}

// ocrValue prefers the recognized text when OCR read something.
func ocrValue(ocr *entity.OCRFieldResult) entity.FieldValue {
	if ocr.Present && ocr.Value != "" {
		return entity.StringValue(ocr.Value)
	}
	return entity.BoolValue(ocr.Present)
}

func agreedValue(ocr *entity.OCRFieldResult, qa *entity.ImageQAResult) entity.FieldValue {
	if ocr.Present && ocr.Value != "" {
		return entity.StringValue(ocr.Value)
	}
	return entity.BoolValue(qa.Present)
}
