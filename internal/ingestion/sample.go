package ingestion

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SampleSheet is the sheet name used for generated sample workbooks.
const SampleSheet = "IPTV Users"

// SampleHeader is the expected header row of an account sheet.
var SampleHeader = []string{"Name", "Username", "Email", "IP", "MAC", "Account Number"}

var sampleRows = [][]string{
	{"John Doe", "johndoe", "john.doe@example.com", "192.168.1.10", "AA:BB:CC:DD:EE:FF", "ACC001"},
	{"Jane Smith", "janesmith", "jane.smith@example.com", "192.168.1.11", "BB:CC:DD:EE:FF:AA", "ACC002"},
	{"Bob Johnson", "bobjohnson", "bob.johnson@example.com", "192.168.1.12", "CC:DD:EE:FF:AA:BB", "ACC003"},
	{"Alice Brown", "alicebrown", "alice.brown@example.com", "192.168.1.13", "DD:EE:FF:AA:BB:CC", "ACC004"},
	{"Charlie Wilson", "charliewilson", "charlie.wilson@example.com", "192.168.1.14", "EE:FF:AA:BB:CC:DD", "ACC005"},
}

var sampleWidths = []float64{20, 15, 25, 15, 18, 15}

// WriteSampleWorkbook writes a workbook with the header and five valid
// accounts to w. It returns the number of account rows written.
func WriteSampleWorkbook(w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SampleSheet); err != nil {
		return 0, fmt.Errorf("failed to rename sheet: %w", err)
	}

	for i, row := range append([][]string{SampleHeader}, sampleRows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return 0, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SampleSheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	for i, width := range sampleWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetColWidth(SampleSheet, col, col, width); err != nil {
			return 0, fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(sampleRows), nil
}
