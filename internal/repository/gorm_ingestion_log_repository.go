package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormIngestionLogRepository struct {
	db *gorm.DB
}

// NewGormIngestionLogRepository wires an ingestion log repository backed by gorm.
func NewGormIngestionLogRepository(db *gorm.DB) IngestionLogRepository {
	return &gormIngestionLogRepository{db: db}
}

func (r *gormIngestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	record := ingestionLogRecord{
		ID:        uuid.NewString(),
		FileID:    entry.FileID,
		FileName:  entry.FileName,
		RowNumber: entry.RowNumber,
		Field:     string(entry.Field),
		Reason:    entry.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", err)
	}
	return nil
}

func (r *gormIngestionLogRepository) ListByFile(ctx context.Context, fileID string, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	limit, offset = normalizePage(limit, offset)

	var records []ingestionLogRecord
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("row_number IS NULL, row_number, created_at").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}

	logs := make([]domain.IngestionLogEntry, 0, len(records))
	for _, record := range records {
		id, err := uuid.Parse(record.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ingestion log id: %w", err)
		}
		logs = append(logs, domain.IngestionLogEntry{
			ID:        id,
			FileID:    record.FileID,
			FileName:  record.FileName,
			RowNumber: record.RowNumber,
			Field:     domain.UniqueField(record.Field),
			Reason:    record.Reason,
			CreatedAt: record.CreatedAt.UTC(),
		})
	}
	return logs, nil
}
