package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oakmoor/jobsheet-audit/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeRequest(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write request file: %v", err)
	}
	return path
}

const fullRequest = `{
  "document_id": "6f1f9a52-8a3c-4a0e-9f6b-0f2f3f9f2b31",
  "source_path": "/scans/js-1042.pdf",
  "content_hash": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
  "pack_id": "gas-safety-base",
  "pages": [{"page_number": 1, "text": "Job No: JS-1042"}],
  "roi_text": {"engineerSignOff": "A. Smith"},
  "roi_boxes": {"engineerSignOff": {"page": 1, "x": 0.1, "y": 0.8, "width": 0.3, "height": 0.05}},
  "ocr_signals": {"engineerSignOff": {"present": true, "value": "A. Smith", "confidence": 0.9}},
  "image_qa": {"engineerSignOff": {"present": true, "label": "signature", "confidence": 0.92}}
}`

func TestFSLoader_LoadPath_FullRequest(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	path := writeRequest(t, t.TempDir(), "js-1042.json", fullRequest)

	req, result, err := loader.LoadPath(context.Background(), path)
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}

	if got := req.Document.ID.String(); got != "6f1f9a52-8a3c-4a0e-9f6b-0f2f3f9f2b31" {
		t.Fatalf("expected declared document id, got %s", got)
	}
	if req.Document.SourcePath != "/scans/js-1042.pdf" {
		t.Fatalf("expected declared source path, got %s", req.Document.SourcePath)
	}
	if req.Document.ContentHash != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("expected declared content hash, got %s", req.Document.ContentHash)
	}
	if req.Document.PageCount != 1 || len(req.Pages) != 1 {
		t.Fatalf("expected one page, got %+v", req.Pages)
	}
	if req.Pages[0].PageNumber != 1 || req.Pages[0].Text != "Job No: JS-1042" {
		t.Fatalf("unexpected page: %+v", req.Pages[0])
	}
	if req.PackID != "gas-safety-base" {
		t.Fatalf("expected pack id, got %s", req.PackID)
	}
	if req.ROIText["engineerSignOff"] != "A. Smith" {
		t.Fatalf("unexpected roi text: %+v", req.ROIText)
	}
	if box := req.ROIBoxes["engineerSignOff"]; box.Page != 1 || box.Width != 0.3 {
		t.Fatalf("unexpected roi box: %+v", box)
	}

	ocr := req.OCRSignals["engineerSignOff"]
	if ocr.FieldID != "engineerSignOff" {
		t.Fatalf("expected field id filled from map key, got %+v", ocr)
	}
	if !ocr.Present || ocr.Value != "A. Smith" || ocr.Confidence != 0.9 {
		t.Fatalf("unexpected ocr signal: %+v", ocr)
	}
	qa := req.ImageQA["engineerSignOff"]
	if qa.FieldID != "engineerSignOff" || !qa.Present || qa.Label != "signature" {
		t.Fatalf("unexpected image qa signal: %+v", qa)
	}

	if result.DocumentID != req.Document.ID.String() {
		t.Fatalf("expected result to carry the document id, got %+v", result)
	}
	if result.HashHex != req.Document.ContentHash || result.PageCount != 1 || result.Err != "" {
		t.Fatalf("unexpected load result: %+v", result)
	}
}

func TestFSLoader_LoadPath_DerivesIdentityFromContent(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	dir := t.TempDir()
	body := `{"pages": [{"text": "Job No: JS-1"}, {"text": "continued"}]}`
	path := writeRequest(t, dir, "minimal.json", body)

	first, _, err := loader.LoadPath(context.Background(), path)
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	second, _, err := loader.LoadPath(context.Background(), path)
	if err != nil {
		t.Fatalf("expected reload to succeed, got %v", err)
	}

	sum := sha256.Sum256([]byte(body))
	if first.Document.ContentHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("expected hash over raw bytes, got %s", first.Document.ContentHash)
	}
	if first.Document.ID != second.Document.ID {
		t.Fatalf("expected stable derived id, got %s then %s", first.Document.ID, second.Document.ID)
	}
	if first.Pages[0].PageNumber != 1 || first.Pages[1].PageNumber != 2 {
		t.Fatalf("expected sequential page numbers, got %+v", first.Pages)
	}
	if first.Document.SourcePath != path {
		t.Fatalf("expected request path as source path, got %s", first.Document.SourcePath)
	}

	other, _, err := loader.LoadPath(context.Background(), writeRequest(t, dir, "other.json", `{"pages": [{"text": "Job No: JS-2"}]}`))
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if other.Document.ID == first.Document.ID {
		t.Fatalf("expected distinct content to derive a distinct id")
	}
}

func TestFSLoader_LoadPath_RejectsBadRequests(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	dir := t.TempDir()

	cases := map[string]string{
		"notes.txt":    `{"pages": [{"text": "x"}]}`,
		"empty.json":   `{"pages": []}`,
		"trunc.json":   `{"pages": [`,
		"badid.json":   `{"document_id": "nope", "pages": [{"text": "x"}]}`,
		"badhash.json": `{"content_hash": "zz", "pages": [{"text": "x"}]}`,
		"badconf.json": `{"pages": [{"text": "x"}], "ocr_signals": {"engineerSignOff": {"present": true, "confidence": 1.4}}}`,
	}
	for name, body := range cases {
		path := writeRequest(t, dir, name, body)
		if _, result, err := loader.LoadPath(context.Background(), path); err == nil {
			t.Fatalf("expected %s to be rejected", name)
		} else if result.Err == "" {
			t.Fatalf("expected %s result to carry the error, got %+v", name, result)
		}
	}

	if _, _, err := loader.LoadPath(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}

func TestFSLoader_LoadPath_ReportsEveryDefect(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	body := `{"document_id": "nope", "content_hash": "zz", "pages": []}`
	path := writeRequest(t, t.TempDir(), "bad.json", body)

	_, _, err := loader.LoadPath(context.Background(), path)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	for _, field := range []string{"pages", "document_id", "content_hash"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected error to name %s, got %v", field, err)
		}
	}
}

func TestFSLoader_LoadPath_HonorsContext(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	path := writeRequest(t, t.TempDir(), "ok.json", `{"pages": [{"text": "x"}]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := loader.LoadPath(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestFSLoader_LoadDirectory_WalksAndFilters(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	root := t.TempDir()

	writeRequest(t, root, "a.json", `{"pages": [{"text": "Job No: JS-1"}]}`)
	writeRequest(t, root, filepath.Join("sub", "b.json"), `{"pages": [{"text": "Job No: JS-2"}]}`)
	writeRequest(t, root, "broken.json", `{"pages": [`)
	writeRequest(t, root, "notes.txt", "not a request")
	writeRequest(t, root, filepath.Join(".archive", "c.json"), `{"pages": [{"text": "Job No: JS-3"}]}`)
	writeRequest(t, root, ".d.json", `{"pages": [{"text": "Job No: JS-4"}]}`)

	requests, results, stats, err := loader.LoadDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("expected walk to succeed, got %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
			if filepath.Base(r.SourcePath) != "broken.json" {
				t.Fatalf("expected broken.json to fail, got %+v", r)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed result, got %d", failed)
	}
}

func TestFSLoader_LoadDirectory_IncludesHiddenWhenAsked(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	root := t.TempDir()

	writeRequest(t, root, "a.json", `{"pages": [{"text": "Job No: JS-1"}]}`)
	writeRequest(t, root, filepath.Join(".archive", "c.json"), `{"pages": [{"text": "Job No: JS-3"}]}`)

	requests, _, stats, err := loader.LoadDirectory(context.Background(), root, false)
	if err != nil {
		t.Fatalf("expected walk to succeed, got %v", err)
	}
	if stats.Matched != 2 || stats.Succeeded != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(requests) != 2 {
		t.Fatalf("expected hidden request to load, got %d", len(requests))
	}
}

func TestFSLoader_LoadDirectory_EmptyRootFails(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	for _, root := range []string{"", "   "} {
		if _, _, _, err := loader.LoadDirectory(context.Background(), root, true); err == nil {
			t.Fatalf("expected empty root %q to fail", root)
		}
	}
}

func TestFSLoader_LoadPath_DropsDisownedSignals(t *testing.T) {
	t.Parallel()
	loader := NewFSLoader(testLogger())
	dir := t.TempDir()

	body := `{
  "pages": [{"text": "Job No: JS-77"}],
  "ocr_signals": {
    "engineerSignOff": {"present": true, "confidence": 0.91, "status": "ILLEGIBLE"},
    "complianceTickboxes": {"present": true, "confidence": 0.84, "status": "ok"}
  },
  "image_qa": {
    "engineerSignOff": {"present": true, "confidence": 0.9, "status": "wat"}
  }
}`
	path := writeRequest(t, dir, "disowned.json", body)

	req, _, err := loader.LoadPath(context.Background(), path)
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if _, ok := req.OCRSignals["engineerSignOff"]; ok {
		t.Fatalf("expected disowned OCR signal to be dropped, got %+v", req.OCRSignals)
	}
	if _, ok := req.ImageQA["engineerSignOff"]; ok {
		t.Fatalf("expected unrecognized status to drop the signal, got %+v", req.ImageQA)
	}
	kept, ok := req.OCRSignals["complianceTickboxes"]
	if !ok {
		t.Fatalf("expected signal with passing status to survive, got %+v", req.OCRSignals)
	}
	if kept.FieldID != "complianceTickboxes" || kept.Confidence != 0.84 {
		t.Fatalf("kept signal mangled: %+v", kept)
	}
}

func TestIsRequestFile(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"a.json":      true,
		"a.JSON":      true,
		"dir/b.json":  true,
		"a.txt":       false,
		"a.json.bak":  false,
		"json":        false,
		"a":           false,
	}
	for path, want := range cases {
		if got := IsRequestFile(path); got != want {
			t.Fatalf("IsRequestFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsHidden(t *testing.T) {
	t.Parallel()
	if !IsHidden("/tmp/.archive") || !IsHidden(".d.json") {
		t.Fatalf("expected dot entries to be hidden")
	}
	if IsHidden("/tmp/archive/a.json") {
		t.Fatalf("expected plain entries to not be hidden")
	}
}
