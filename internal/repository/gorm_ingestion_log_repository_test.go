package repository

import (
	"context"
	"testing"

	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormIngestionLogRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewGormIngestionLogRepository(openTestDB(t))

	row3, row2 := 3, 2
	entries := []domain.IngestionLogEntry{
		{FileID: "f-1", FileName: "accounts.xlsx", RowNumber: &row3, Field: domain.FieldUserName, Reason: "already exists"},
		{FileID: "f-1", FileName: "accounts.xlsx", Reason: "no accounts created"},
		{FileID: "f-1", FileName: "accounts.xlsx", RowNumber: &row2, Reason: "invalid data"},
		{FileID: "f-2", FileName: "other.xlsx", RowNumber: &row2, Reason: "insufficient columns"},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Record(ctx, entry))
	}

	logs, err := repo.ListByFile(ctx, "f-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	require.NotNil(t, logs[0].RowNumber)
	assert.Equal(t, 2, *logs[0].RowNumber)
	assert.Equal(t, "invalid data", logs[0].Reason)
	assert.Equal(t, domain.FieldUserName, logs[1].Field)
	assert.Nil(t, logs[2].RowNumber)

	page, err := repo.ListByFile(ctx, "f-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 3, *page[0].RowNumber)
}
