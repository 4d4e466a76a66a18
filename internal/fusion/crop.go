package fusion

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// Visual fields are the ones where ink on paper matters more than text:
// signature blocks and tickbox grids. Upstream systems name them loosely,
// so a small alias table folds their spellings onto the canonical IDs.
const (
	FieldEngineerSignOff     = "engineerSignOff"
	FieldComplianceTickboxes = "complianceTickboxes"
)

var visualFieldAliases = map[string]string{
	"engineersignoff":      FieldEngineerSignOff,
	"engineer_sign_off":    FieldEngineerSignOff,
	"engineer_signature":   FieldEngineerSignOff,
	"signature":            FieldEngineerSignOff,
	"signoff":              FieldEngineerSignOff,
	"sign_off":             FieldEngineerSignOff,
	"compliancetickboxes":  FieldComplianceTickboxes,
	"compliance_tickboxes": FieldComplianceTickboxes,
	"tickboxes":            FieldComplianceTickboxes,
	"checkboxes":           FieldComplianceTickboxes,
	"declaration":          FieldComplianceTickboxes,
	"compliance_checks":    FieldComplianceTickboxes,
}

// CanonicalVisualField maps a field name or alias onto its canonical ID.
func CanonicalVisualField(id string) (string, bool) {
	canonical, ok := visualFieldAliases[strings.ToLower(strings.TrimSpace(id))]
	return canonical, ok
}

// IsVisualField reports whether the field is handled by fusion.
func IsVisualField(id string) bool {
	_, ok := CanonicalVisualField(id)
	return ok
}

// CropHash derives the evidence crop reference from identifiers and
// normalized geometry alone. Document bytes never participate, so the hash
// is reproducible from the artifact without the original file.
func CropHash(documentID uuid.UUID, fieldID string, roi entity.ROI) string {
	payload := documentID.String() + "|" + fieldID + "|" + roi.Canonical()
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
