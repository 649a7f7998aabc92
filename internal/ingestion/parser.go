package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	columnCount = 6

	// BIFF8 caps a sheet at 256 columns.
	maxBIFFColumns = 256

	ReasonInsufficientColumns = "insufficient columns"
	ReasonInvalidData         = "invalid data"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("excel file has no sheets")

// oleMagic opens every OLE2 compound file, which is how legacy .xls
// workbooks are stored.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// SkippedRow is a data row the parser dropped. RowIndex is the 1-based sheet
// row number.
type SkippedRow struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// ParseResult holds the valid candidates in sheet order plus a diagnostic per
// dropped row. RowNumbers[i] is the sheet row Rows[i] came from.
type ParseResult struct {
	Rows       []domain.Candidate `json:"rows"`
	RowNumbers []int              `json:"row_numbers"`
	Skipped    []SkippedRow       `json:"skipped"`
}

// Parser turns spreadsheet payloads into candidates.
type Parser struct{}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the first worksheet of a workbook. OLE2 payloads are read as
// legacy BIFF (.xls), anything else as OOXML (.xlsx). The first row is the
// header. A payload that is not a readable workbook is returned as an error.
func (p *Parser) Parse(source []byte) (ParseResult, error) {
	if bytes.HasPrefix(source, oleMagic) {
		rows, err := readBIFF(source)
		if err != nil {
			return ParseResult{}, err
		}
		return ParseRows(rows), nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(source))
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return ParseRows(rows), nil
}

// readBIFF decodes the first sheet of a .xls workbook into the same shape
// excelize GetRows produces: missing rows are empty and trailing empty cells
// are dropped.
func readBIFF(source []byte) (rows [][]string, err error) {
	// The BIFF reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("failed to open xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(source), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	if wb == nil {
		return nil, errors.New("failed to open xls: no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheets
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheets
	}

	rows = [][]string{}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, []string{})
			continue
		}
		cells := make([]string, 0, columnCount)
		for j := 0; j < maxBIFFColumns; j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, trimTrailingEmpty(cells))
	}

	// MaxRow is zero for both an empty sheet and a single-row sheet.
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func trimTrailingEmpty(cells []string) []string {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	return cells[:end]
}

// ParseRows applies the row rules to an already decoded sheet, header included.
func ParseRows(rows [][]string) ParseResult {
	result := ParseResult{Rows: []domain.Candidate{}, RowNumbers: []int{}, Skipped: []SkippedRow{}}
	if len(rows) <= 1 {
		return result
	}

	for i, row := range rows[1:] {
		rowIndex := i + 2
		if blankRow(row) || len(row) < columnCount {
			result.Skipped = append(result.Skipped, SkippedRow{RowIndex: rowIndex, Reason: ReasonInsufficientColumns})
			continue
		}

		candidate := domain.NewCandidate(row[0], row[1], row[2], row[3], row[4], row[5])
		if !validCandidate(candidate) {
			result.Skipped = append(result.Skipped, SkippedRow{RowIndex: rowIndex, Reason: ReasonInvalidData})
			continue
		}
		result.Rows = append(result.Rows, candidate)
		result.RowNumbers = append(result.RowNumbers, rowIndex)
	}

	return result
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
