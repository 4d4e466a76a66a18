package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/common"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

// documentNamespace scopes derived document IDs. A request file without an
// explicit document_id always maps to the same document for the same content
// hash, so re-running a dropped file reuses the cached result.
var documentNamespace = uuid.MustParse("c1d7a9e2-5b04-4f7d-9b63-2a8f41d0be57")

// requestFile is the on-disk shape of one audit request. Signal maps are
// keyed by field ID; the field_id inside each value may be omitted.
type requestFile struct {
	DocumentID  string                   `json:"document_id,omitempty"`
	SourcePath  string                   `json:"source_path,omitempty"`
	ContentHash string                   `json:"content_hash,omitempty"`
	PackID      string                   `json:"pack_id,omitempty"`
	Pages       []entity.PageText        `json:"pages"`
	ROIText     map[string]string        `json:"roi_text,omitempty"`
	ROIBoxes    map[string]entity.ROI    `json:"roi_boxes,omitempty"`
	OCRSignals  map[string]ocrSignal     `json:"ocr_signals,omitempty"`
	ImageQA     map[string]imageQASignal `json:"image_qa,omitempty"`
}

// ocrSignal and imageQASignal wrap the signal shapes with the status code
// upstream collaborators attach, in whatever legacy spelling they use.
type ocrSignal struct {
	entity.OCRFieldResult
	Status string `json:"status,omitempty"`
}

type imageQASignal struct {
	entity.ImageQAResult
	Status string `json:"status,omitempty"`
}

// validate collects every problem with a request in one pass, so a bad file
// reports all of its defects together.
func (rf *requestFile) validate() error {
	v := common.NewValidator()
	v.Field("pages", rf.Pages, atLeastOnePage)
	if rf.DocumentID != "" {
		v.Field("document_id", rf.DocumentID, common.UUID)
	}
	if rf.ContentHash != "" {
		v.Field("content_hash", rf.ContentHash, sha256Hex)
	}
	for fieldID, signal := range rf.OCRSignals {
		v.Field("ocr_signals."+fieldID+".confidence", signal.Confidence, common.Confidence)
	}
	for fieldID, signal := range rf.ImageQA {
		v.Field("image_qa."+fieldID+".confidence", signal.Confidence, common.Confidence)
	}
	return v.Error()
}

func atLeastOnePage(field string, value interface{}) *common.ValidationError {
	pages, ok := value.([]entity.PageText)
	if !ok || len(pages) == 0 {
		return &common.ValidationError{Field: field, Value: value, Message: "must carry at least one page"}
	}
	return nil
}

func sha256Hex(field string, value interface{}) *common.ValidationError {
	s, ok := value.(string)
	if !ok {
		return &common.ValidationError{Field: field, Value: value, Message: "must be a string"}
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != sha256.Size*2 {
		return &common.ValidationError{Field: field, Value: value,
			Message: fmt.Sprintf("must be %d hex characters", sha256.Size*2)}
	}
	if _, err := hex.DecodeString(s); err != nil {
		return &common.ValidationError{Field: field, Value: value, Message: "must be hex encoded"}
	}
	return nil
}

// parseRequest decodes raw request bytes into a pipeline request. path and
// modTime describe the file the bytes came from; they fill in the source
// path and upload time when the request carries none. The second return
// lists fields whose signals were disowned upstream and dropped here.
func parseRequest(raw []byte, path string, modTime time.Time) (pipeline.Request, []string, error) {
	var rf requestFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return pipeline.Request{}, nil, fmt.Errorf("parse request: %w", err)
	}
	if err := rf.validate(); err != nil {
		return pipeline.Request{}, nil, err
	}

	hash := contentHashFor(rf.ContentHash, raw)
	id, err := documentIDFor(rf.DocumentID, hash)
	if err != nil {
		return pipeline.Request{}, nil, err
	}

	pages := make([]entity.PageText, len(rf.Pages))
	for i, page := range rf.Pages {
		if page.PageNumber <= 0 {
			page.PageNumber = i + 1
		}
		pages[i] = page
	}

	sourcePath := rf.SourcePath
	if sourcePath == "" {
		sourcePath = path
	}

	ocr, droppedOCR := usableOCR(rf.OCRSignals)
	qa, droppedQA := usableImageQA(rf.ImageQA)
	dropped := append(droppedOCR, droppedQA...)
	sort.Strings(dropped)

	return pipeline.Request{
		Document: entity.Document{
			ID:          id,
			SourcePath:  sourcePath,
			ContentHash: hash,
			PageCount:   len(pages),
			UploadedAt:  modTime.UTC(),
		},
		Pages:      pages,
		ROIText:    rf.ROIText,
		ROIBoxes:   rf.ROIBoxes,
		OCRSignals: ocr,
		ImageQA:    qa,
		PackID:     rf.PackID,
	}, dropped, nil
}

// contentHashFor returns the ingest-supplied hash when the request carries
// one, else the sha256 of the raw request bytes.
func contentHashFor(declared string, raw []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared == "" {
		sum := sha256.Sum256(raw)
		return hex.EncodeToString(sum[:])
	}
	return declared
}

// documentIDFor parses the declared document ID, or derives a stable one
// from the content hash when the request carries none.
func documentIDFor(declared, contentHash string) (uuid.UUID, error) {
	if declared == "" {
		return uuid.NewSHA1(documentNamespace, []byte(contentHash)), nil
	}
	id, err := uuid.Parse(declared)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse document_id: %w", err)
	}
	return id, nil
}

// usableOCR keeps the signals the collaborator stands behind. A signal
// whose status maps to anything but VALID was disowned upstream; dropping
// it lets the field flow through fusion as absent instead of as a weak
// positive. Legacy status spellings are mapped to the canonical vocabulary
// before the verdict.
func usableOCR(signals map[string]ocrSignal) (map[string]entity.OCRFieldResult, []string) {
	if len(signals) == 0 {
		return nil, nil
	}
	out := make(map[string]entity.OCRFieldResult, len(signals))
	var dropped []string
	for fieldID, signal := range signals {
		if disowned(signal.Status) {
			dropped = append(dropped, fieldID)
			continue
		}
		if signal.FieldID == "" {
			signal.FieldID = fieldID
		}
		out[fieldID] = signal.OCRFieldResult
	}
	return out, dropped
}

func usableImageQA(signals map[string]imageQASignal) (map[string]entity.ImageQAResult, []string) {
	if len(signals) == 0 {
		return nil, nil
	}
	out := make(map[string]entity.ImageQAResult, len(signals))
	var dropped []string
	for fieldID, signal := range signals {
		if disowned(signal.Status) {
			dropped = append(dropped, fieldID)
			continue
		}
		if signal.FieldID == "" {
			signal.FieldID = fieldID
		}
		out[fieldID] = signal.ImageQAResult
	}
	return out, dropped
}

func disowned(status string) bool {
	if status == "" {
		return false
	}
	code, _ := constants.CanonicalizeReason(status)
	return code != constants.ReasonValid
}
