package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry captures row level issues that occur while processing an
// uploaded file: rows the parser skipped and rows the repository rejected.
type IngestionLogEntry struct {
	ID        uuid.UUID   `json:"id"`
	FileID    string      `json:"file_id"`
	FileName  string      `json:"file_name"`
	RowNumber *int        `json:"row_number,omitempty"`
	Field     UniqueField `json:"field,omitempty"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}
