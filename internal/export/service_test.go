package export

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/oakmoor/jobsheet-audit/constants"
	"github.com/oakmoor/jobsheet-audit/internal/entity"
	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
	"github.com/oakmoor/jobsheet-audit/internal/review"
)

func auditResult(id uuid.UUID, outcome constants.AuditOutcome, findings []entity.Finding) *pipeline.AuditResult {
	return &pipeline.AuditResult{
		DocumentID:  id,
		PackID:      "gas-safety",
		PackVersion: "1.0.0",
		Outcome:     outcome,
		Extraction:  &entity.ExtractionArtifact{AggregateConfidence: 0.72},
		Validation: &entity.ValidationArtifact{
			Findings: findings,
			Summary: entity.ValidationSummary{
				TotalRules: 3,
				Passed:     3 - len(findings),
				Failed:     len(findings),
			},
		},
	}
}

func TestWriteWorkbook_SheetsAndRows(t *testing.T) {
	t.Parallel()
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))

	failing := auditResult(uuid.New(), constants.AuditFailed, []entity.Finding{
		{
			RuleID:     "R001",
			Field:      "jobReference",
			Severity:   constants.SeverityCritical,
			ReasonCode: constants.ReasonInvalidFormat,
			Message:    `value "JS1042" does not match pattern "^JS-\d+$"`,
			Value:      entity.StringValue("JS1042"),
		},
	})
	failing.Review = review.Decision{
		Queue:    true,
		Reason:   review.ReasonValidationFailed,
		Fields:   []string{"jobReference"},
		Priority: review.PriorityValidationFailed,
	}
	passing := auditResult(uuid.New(), constants.AuditPassed, nil)

	payload, err := svc.WriteWorkbook([]*pipeline.AuditResult{failing, passing})
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()

	summary, err := wb.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(summary) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(summary))
	}
	if summary[0][0] != "Document ID" || summary[0][3] != "Outcome" {
		t.Fatalf("unexpected header row: %v", summary[0])
	}

	findings, err := wb.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("read findings: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected header plus 1 finding, got %d", len(findings))
	}
	if findings[1][1] != "R001" || findings[1][2] != "jobReference" || findings[1][3] != "critical" {
		t.Fatalf("unexpected finding row: %v", findings[1])
	}
	if findings[1][6] != "JS1042" {
		t.Fatalf("expected rendered value, got %q", findings[1][6])
	}
}

func TestWriteWorkbook_OrdersByDocumentID(t *testing.T) {
	t.Parallel()
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := auditResult(uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), constants.AuditPassed, nil)
	b := auditResult(uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), constants.AuditPassed, nil)

	payload, err := svc.WriteWorkbook([]*pipeline.AuditResult{b, a, nil})
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("nil result must be skipped, got %d rows", len(rows))
	}
	if rows[1][0] != a.DocumentID.String() || rows[2][0] != b.DocumentID.String() {
		t.Fatalf("rows out of order: %v / %v", rows[1][0], rows[2][0])
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("expected ellipsis cut, got %q", got)
	}
}
