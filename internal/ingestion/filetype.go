package ingestion

import (
	"path/filepath"
	"strings"
)

var spreadsheetExtensions = map[string]struct{}{
	".xlsx": {},
	".xls":  {},
	".xlsm": {},
}

var spreadsheetMimeTypes = map[string]struct{}{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-excel":                       {},
	"application/vnd.ms-excel.sheet.macroenabled.12": {},
}

// IsSpreadsheet reports whether an upload should be processed, judged by its
// file extension or its declared MIME type. Either one is enough.
func IsSpreadsheet(fileName, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if _, ok := spreadsheetExtensions[ext]; ok {
		return true
	}
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	_, ok := spreadsheetMimeTypes[mime]
	return ok
}
