package ingestion

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSampleWorkbookParses(t *testing.T) {
	var buf bytes.Buffer
	written, err := WriteSampleWorkbook(&buf)
	if err != nil {
		t.Fatalf("WriteSampleWorkbook returned error: %v", err)
	}
	if written != 5 {
		t.Fatalf("expected 5 rows written, got %d", written)
	}

	result, err := NewParser().Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Rows) != 5 || len(result.Skipped) != 0 {
		t.Fatalf("expected 5 valid rows and no skips, got %d rows %d skipped", len(result.Rows), len(result.Skipped))
	}
	if result.Rows[0].UserName != "johndoe" || result.Rows[4].AccountNumber != "ACC005" {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
}

func TestSampleWorkbookLayout(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteSampleWorkbook(&buf); err != nil {
		t.Fatalf("WriteSampleWorkbook returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetName(0); got != SampleSheet {
		t.Fatalf("expected sheet %q, got %q", SampleSheet, got)
	}
	width, err := f.GetColWidth(SampleSheet, "C")
	if err != nil {
		t.Fatalf("GetColWidth returned error: %v", err)
	}
	if width != 25 {
		t.Fatalf("expected email column width 25, got %v", width)
	}
}
