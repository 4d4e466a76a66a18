package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/oakmoor/jobsheet-audit/internal/pipeline"
)

const (
	summarySheet  = "Summary"
	findingsSheet = "Findings"
)

// Service produces XLSX workbooks from finished audit results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteWorkbook renders one workbook for a batch of audits: a Summary sheet
// with one row per document and a Findings sheet with one row per failed
// rule. Rows are ordered by document ID so the same batch always renders
// the same workbook.
func (s *Service) WriteWorkbook(results []*pipeline.AuditResult) ([]byte, error) {
	start := time.Now()

	ordered := make([]*pipeline.AuditResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DocumentID.String() < ordered[j].DocumentID.String()
	})

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return nil, fmt.Errorf("create findings sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(index)
	}

	writeRow(f, summarySheet, 1, []any{
		"Document ID", "Pack", "Version", "Outcome",
		"Rules Passed", "Rules Failed", "Rule Errors",
		"Critical Failures", "Major Failures",
		"Aggregate Confidence", "Review Reason", "Review Priority",
	})
	writeRow(f, findingsSheet, 1, []any{
		"Document ID", "Rule ID", "Field", "Severity", "Reason", "Message", "Value",
	})

	findingRow := 2
	totalFindings := 0
	for i, result := range ordered {
		summary := result.Validation.Summary
		reviewReason := ""
		reviewPriority := ""
		if result.Review.Queue {
			reviewReason = result.Review.Reason
			reviewPriority = fmt.Sprintf("%d", result.Review.Priority)
		}
		writeRow(f, summarySheet, i+2, []any{
			result.DocumentID.String(),
			result.PackID,
			result.PackVersion,
			string(result.Outcome),
			summary.Passed,
			summary.Failed,
			summary.Errors,
			summary.CriticalFailures,
			summary.MajorFailures,
			result.Extraction.AggregateConfidence,
			reviewReason,
			reviewPriority,
		})

		for _, finding := range result.Validation.Findings {
			writeRow(f, findingsSheet, findingRow, []any{
				result.DocumentID.String(),
				finding.RuleID,
				finding.Field,
				string(finding.Severity),
				string(finding.ReasonCode),
				truncate(finding.Message, 140),
				finding.Value.String(),
			})
			findingRow++
			totalFindings++
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 38)
	_ = f.SetColWidth(summarySheet, "B", "C", 18)
	_ = f.SetColWidth(summarySheet, "D", "D", 18)
	_ = f.SetColWidth(summarySheet, "K", "K", 20)
	_ = f.SetColWidth(findingsSheet, "A", "A", 38)
	_ = f.SetColWidth(findingsSheet, "B", "C", 20)
	_ = f.SetColWidth(findingsSheet, "F", "F", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(ordered),
		"findings", totalFindings,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
